// Package morphology implements the binary morphological operations used to
// clean per-vertebra segmentation masks: hole filling, closing and opening
// with cubic structuring elements.
package morphology

import "github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/volume"

// DefaultClosingSize and DefaultOpeningSize are the structuring element
// sides used by the cleaning pipeline.
const (
	DefaultClosingSize = 3
	DefaultOpeningSize = 2
)

// offset is one displacement of a structuring element.
type offset struct {
	dx, dy, dz int
}

// cubeOffsets returns the displacements of a cubic structuring element of
// the given side. Even sides are anchored one voxel toward the negative
// axes, matching the centering convention of the numerical library the
// pipeline was validated against.
func cubeOffsets(size int) []offset {
	lo := -(size / 2)
	hi := size - 1 - (size / 2)
	offsets := make([]offset, 0, size*size*size)
	for dz := lo; dz <= hi; dz++ {
		for dy := lo; dy <= hi; dy++ {
			for dx := lo; dx <= hi; dx++ {
				offsets = append(offsets, offset{dx, dy, dz})
			}
		}
	}
	return offsets
}

// dilate sets every voxel covered by the structuring element placed on a
// foreground voxel. Voxels stamped outside the volume are discarded.
func dilate(mask *volume.BinaryMask, offsets []offset) *volume.BinaryMask {
	out := volume.NewBinaryMask(mask.Width, mask.Height, mask.Depth)
	for z := 0; z < mask.Depth; z++ {
		for y := 0; y < mask.Height; y++ {
			for x := 0; x < mask.Width; x++ {
				if mask.Data[mask.Index(x, y, z)] == 0 {
					continue
				}
				for _, o := range offsets {
					nx, ny, nz := x+o.dx, y+o.dy, z+o.dz
					if mask.In(nx, ny, nz) {
						out.Data[out.Index(nx, ny, nz)] = 1
					}
				}
			}
		}
	}
	return out
}

// erode keeps a voxel only when the whole structuring element placed on it
// is foreground. Neighborhoods reaching outside the volume count as
// background, so foreground touching the border erodes away.
func erode(mask *volume.BinaryMask, offsets []offset) *volume.BinaryMask {
	out := volume.NewBinaryMask(mask.Width, mask.Height, mask.Depth)
	for z := 0; z < mask.Depth; z++ {
		for y := 0; y < mask.Height; y++ {
			for x := 0; x < mask.Width; x++ {
				if mask.Data[mask.Index(x, y, z)] == 0 {
					continue
				}
				keep := true
				for _, o := range offsets {
					nx, ny, nz := x+o.dx, y+o.dy, z+o.dz
					if !mask.In(nx, ny, nz) || mask.Data[mask.Index(nx, ny, nz)] == 0 {
						keep = false
						break
					}
				}
				if keep {
					out.Data[out.Index(x, y, z)] = 1
				}
			}
		}
	}
	return out
}

// Close performs morphological closing: dilation followed by erosion with a
// cubic element of the given side. Closing merges nearby fragments and
// fills small surface gaps without growing the object's outer extent
// beyond the dilation.
// Away from the volume border, closing never removes original foreground:
// with the erosion and dilation defined above, (A dilate B) erode B contains
// A for any element, even-sided ones included. Foreground whose dilation
// would spill past the border can still erode away.
func Close(mask *volume.BinaryMask, size int) *volume.BinaryMask {
	offsets := cubeOffsets(size)
	return erode(dilate(mask, offsets), offsets)
}

// Open performs morphological opening: erosion followed by dilation with a
// cubic element of the given side. Opening strips thin protrusions and
// isolated noise voxels that do not survive the erosion. Opening never adds
// voxels outside the original foreground, the dual of the closing identity.
func Open(mask *volume.BinaryMask, size int) *volume.BinaryMask {
	offsets := cubeOffsets(size)
	return dilate(erode(mask, offsets), offsets)
}

// FillHoles flips to foreground every background voxel that cannot reach
// the volume boundary through face-connected background paths. The search
// floods the background from all boundary voxels; whatever background
// remains unreached is fully enclosed and therefore a hole.
func FillHoles(mask *volume.BinaryMask) *volume.BinaryMask {
	w, h, d := mask.Width, mask.Height, mask.Depth
	outside := make([]bool, len(mask.Data))
	queue := make([]int, 0, 2*(w*h+w*d+h*d))

	push := func(x, y, z int) {
		idx := mask.Index(x, y, z)
		if mask.Data[idx] == 0 && !outside[idx] {
			outside[idx] = true
			queue = append(queue, idx)
		}
	}

	// Seed from every boundary face.
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			push(0, y, z)
			push(w-1, y, z)
		}
	}
	for z := 0; z < d; z++ {
		for x := 0; x < w; x++ {
			push(x, 0, z)
			push(x, h-1, z)
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			push(x, y, 0)
			push(x, y, d-1)
		}
	}

	// Flood fill the exterior background with 6-connectivity.
	for len(queue) > 0 {
		idx := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		x := idx % w
		y := (idx / w) % h
		z := idx / (w * h)

		for _, n := range [6][3]int{
			{x - 1, y, z}, {x + 1, y, z},
			{x, y - 1, z}, {x, y + 1, z},
			{x, y, z - 1}, {x, y, z + 1},
		} {
			if mask.In(n[0], n[1], n[2]) {
				push(n[0], n[1], n[2])
			}
		}
	}

	out := mask.Clone()
	for i := range out.Data {
		if out.Data[i] == 0 && !outside[i] {
			out.Data[i] = 1
		}
	}
	return out
}

// Clean applies the fixed 3-operation cleanup to one binary mask: hole
// filling, then closing, then opening. The order is not reorderable; each
// operation depends on the previous result. An all-zero mask passes through
// unchanged.
func Clean(mask *volume.BinaryMask, closingSize, openingSize int) *volume.BinaryMask {
	cleaned := FillHoles(mask)
	cleaned = Close(cleaned, closingSize)
	cleaned = Open(cleaned, openingSize)
	return cleaned
}
