// Package volume defines the in-memory representation of multi-label
// segmentation volumes and the binary masks derived from them. All voxel
// data is stored as flat slices in z-major order (index = z*W*H + y*W + x)
// so that whole-volume passes are simple linear scans.
package volume

import (
	"fmt"
	"sort"
)

// Spacing is the physical size of one voxel step along each axis in mm.
// It is required to place meshes extracted from different volumes in the
// same physical space.
type Spacing struct {
	X, Y, Z float64
}

// LabelVolume is a 3D array of label codes. Background voxels are 0 and
// foreground voxels carry one of the known anatomical label codes.
//
// Geometry is an opaque token (for NIfTI volumes, the raw header bytes)
// owned by the I/O layer. Cleaning never inspects or modifies it; a cleaned
// volume is written back with the bit-identical token it was loaded with.
type LabelVolume struct {
	// Data holds the label codes in z-major order.
	Data []uint8

	// Width, Height and Depth are the voxel dimensions of the volume.
	Width, Height, Depth int

	// Spacing is the physical voxel size in mm along each axis.
	Spacing Spacing

	// Geometry is the opaque geometry/affine token carried through
	// processing unmodified.
	Geometry []byte
}

// NewLabelVolume allocates a zero-filled label volume with the given
// dimensions and spacing.
func NewLabelVolume(width, height, depth int, spacing Spacing) *LabelVolume {
	return &LabelVolume{
		Data:    make([]uint8, width*height*depth),
		Width:   width,
		Height:  height,
		Depth:   depth,
		Spacing: spacing,
	}
}

// Index returns the flat index of voxel (x, y, z).
func (v *LabelVolume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// SameShape reports whether two volumes have identical voxel dimensions.
func (v *LabelVolume) SameShape(o *LabelVolume) bool {
	return v.Width == o.Width && v.Height == o.Height && v.Depth == o.Depth
}

// UniqueLabels returns the distinct non-zero label values present in the
// volume in ascending numeric order. The ascending order keeps per-label
// processing and reporting deterministic.
func (v *LabelVolume) UniqueLabels() []uint8 {
	var present [256]bool
	for _, code := range v.Data {
		present[code] = true
	}

	var labels []uint8
	for code := 1; code < 256; code++ {
		if present[code] {
			labels = append(labels, uint8(code))
		}
	}
	return labels
}

// ExtractMask derives the binary indicator mask of one label by equality
// test. The returned mask owns its own buffer.
func (v *LabelVolume) ExtractMask(label uint8) *BinaryMask {
	mask := NewBinaryMask(v.Width, v.Height, v.Depth)
	for i, code := range v.Data {
		if code == label {
			mask.Data[i] = 1
		}
	}
	return mask
}

// ForegroundMask derives the binary mask of all non-background voxels.
func (v *LabelVolume) ForegroundMask() *BinaryMask {
	mask := NewBinaryMask(v.Width, v.Height, v.Depth)
	for i, code := range v.Data {
		if code != 0 {
			mask.Data[i] = 1
		}
	}
	return mask
}

// VoxelCount returns the number of voxels carrying the given label.
func (v *LabelVolume) VoxelCount(label uint8) int {
	count := 0
	for _, code := range v.Data {
		if code == label {
			count++
		}
	}
	return count
}

// Clone returns a deep copy of the volume, including the geometry token.
func (v *LabelVolume) Clone() *LabelVolume {
	out := &LabelVolume{
		Data:    make([]uint8, len(v.Data)),
		Width:   v.Width,
		Height:  v.Height,
		Depth:   v.Depth,
		Spacing: v.Spacing,
	}
	copy(out.Data, v.Data)
	if v.Geometry != nil {
		out.Geometry = make([]byte, len(v.Geometry))
		copy(out.Geometry, v.Geometry)
	}
	return out
}

// Validate checks the internal consistency of the volume dimensions.
func (v *LabelVolume) Validate() error {
	if v.Width <= 0 || v.Height <= 0 || v.Depth <= 0 {
		return fmt.Errorf("invalid volume dimensions %dx%dx%d", v.Width, v.Height, v.Depth)
	}
	if len(v.Data) != v.Width*v.Height*v.Depth {
		return fmt.Errorf("volume data length %d does not match dimensions %dx%dx%d",
			len(v.Data), v.Width, v.Height, v.Depth)
	}
	return nil
}

// BinaryMask is a 3D array restricted to {0, 1}: the indicator of one
// structure's voxels. Masks are ephemeral values created per label and
// discarded after the cleaned voxels are written back.
type BinaryMask struct {
	// Data holds 0 or 1 per voxel in z-major order.
	Data []uint8

	// Width, Height and Depth are the voxel dimensions of the mask.
	Width, Height, Depth int
}

// NewBinaryMask allocates a zero-filled mask with the given dimensions.
func NewBinaryMask(width, height, depth int) *BinaryMask {
	return &BinaryMask{
		Data:   make([]uint8, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
}

// Index returns the flat index of voxel (x, y, z).
func (m *BinaryMask) Index(x, y, z int) int {
	return z*m.Width*m.Height + y*m.Width + x
}

// In reports whether (x, y, z) lies inside the mask bounds.
func (m *BinaryMask) In(x, y, z int) bool {
	return x >= 0 && x < m.Width && y >= 0 && y < m.Height && z >= 0 && z < m.Depth
}

// Sum returns the number of foreground voxels.
func (m *BinaryMask) Sum() int {
	count := 0
	for _, v := range m.Data {
		if v != 0 {
			count++
		}
	}
	return count
}

// Empty reports whether the mask has no foreground voxels.
func (m *BinaryMask) Empty() bool {
	for _, v := range m.Data {
		if v != 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the mask.
func (m *BinaryMask) Clone() *BinaryMask {
	out := NewBinaryMask(m.Width, m.Height, m.Depth)
	copy(out.Data, m.Data)
	return out
}

// Equal reports whether two masks have identical shape and voxels.
func (m *BinaryMask) Equal(o *BinaryMask) bool {
	if m.Width != o.Width || m.Height != o.Height || m.Depth != o.Depth {
		return false
	}
	for i := range m.Data {
		if m.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// SortedLabels returns the keys of a per-label map in ascending order.
// Reports iterate labels through this helper so output ordering is stable.
func SortedLabels[V any](m map[uint8]V) []uint8 {
	labels := make([]uint8, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}
