// Package components implements connected-component labeling of binary
// masks and the largest-component selection used to discard disconnected
// segmentation fragments.
package components

import (
	"fmt"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/volume"
)

// Connectivity selects which voxel adjacencies join a component.
type Connectivity int

const (
	// Face connects across the 6 shared faces.
	Face Connectivity = 6
	// FaceEdge connects across the 6 faces and 12 edges.
	FaceEdge Connectivity = 18
	// Full connects across faces, edges and corners (all 26 neighbors).
	// The cleaning pipeline uses Full by default.
	Full Connectivity = 26
)

// ParseConnectivity maps the numeric configuration value (6, 18 or 26)
// onto a Connectivity.
func ParseConnectivity(n int) (Connectivity, error) {
	switch n {
	case 6:
		return Face, nil
	case 18:
		return FaceEdge, nil
	case 26:
		return Full, nil
	}
	return 0, fmt.Errorf("invalid connectivity %d: must be 6, 18 or 26", n)
}

// neighborhood returns the displacement set for a connectivity mode.
func neighborhood(conn Connectivity) [][3]int {
	var offsets [][3]int
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				order := abs(dx) + abs(dy) + abs(dz)
				if order == 0 {
					continue
				}
				switch conn {
				case Face:
					if order > 1 {
						continue
					}
				case FaceEdge:
					if order > 2 {
						continue
					}
				}
				offsets = append(offsets, [3]int{dx, dy, dz})
			}
		}
	}
	return offsets
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Labeling assigns a component id to every voxel of a binary mask:
// 0 for background, 1..Count for foreground components. Component ids are
// assigned in raster scan order, so the labeling is deterministic for a
// given mask and connectivity.
type Labeling struct {
	// Labels holds the component id per voxel in z-major order.
	Labels []int32

	// Count is the number of components found.
	Count int

	// Sizes holds the voxel volume of each component, indexed by
	// component id - 1.
	Sizes []int
}

// Label performs connected-component analysis on a binary mask.
func Label(mask *volume.BinaryMask, conn Connectivity) *Labeling {
	w, h := mask.Width, mask.Height
	offsets := neighborhood(conn)

	labeling := &Labeling{Labels: make([]int32, len(mask.Data))}
	queue := make([]int, 0, 1024)

	for start, v := range mask.Data {
		if v == 0 || labeling.Labels[start] != 0 {
			continue
		}

		// New component: flood fill from this seed.
		labeling.Count++
		id := int32(labeling.Count)
		size := 0

		labeling.Labels[start] = id
		queue = append(queue[:0], start)

		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			size++

			x := idx % w
			y := (idx / w) % h
			z := idx / (w * h)

			for _, o := range offsets {
				nx, ny, nz := x+o[0], y+o[1], z+o[2]
				if !mask.In(nx, ny, nz) {
					continue
				}
				nIdx := mask.Index(nx, ny, nz)
				if mask.Data[nIdx] != 0 && labeling.Labels[nIdx] == 0 {
					labeling.Labels[nIdx] = id
					queue = append(queue, nIdx)
				}
			}
		}

		labeling.Sizes = append(labeling.Sizes, size)
	}

	return labeling
}

// Count returns the number of connected components in the mask.
func Count(mask *volume.BinaryMask, conn Connectivity) int {
	return Label(mask, conn).Count
}

// LargestComponent retains only the component with the strictly maximal
// voxel volume. A mask with zero or one component is returned unchanged
// (as a copy), so the operation is idempotent. On an exact volume tie the
// component with the lowest id wins; ids are assigned in scan order, so the
// tie-break is deterministic and reproducible.
func LargestComponent(mask *volume.BinaryMask, conn Connectivity) *volume.BinaryMask {
	labeling := Label(mask, conn)
	if labeling.Count <= 1 {
		return mask.Clone()
	}

	largest := int32(1)
	for id := 2; id <= labeling.Count; id++ {
		if labeling.Sizes[id-1] > labeling.Sizes[largest-1] {
			largest = int32(id)
		}
	}

	out := volume.NewBinaryMask(mask.Width, mask.Height, mask.Depth)
	for i, id := range labeling.Labels {
		if id == largest {
			out.Data[i] = 1
		}
	}
	return out
}
