package morphology

import (
	"testing"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/volume"
)

// fillBlock sets every voxel of the axis-aligned block [x0,x1]x[y0,y1]x[z0,z1].
func fillBlock(mask *volume.BinaryMask, x0, x1, y0, y1, z0, z1 int) {
	for z := z0; z <= z1; z++ {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				mask.Data[mask.Index(x, y, z)] = 1
			}
		}
	}
}

// TestFillHolesEnclosedCavity verifies that a background voxel fully
// surrounded by foreground is filled
func TestFillHolesEnclosedCavity(t *testing.T) {
	mask := volume.NewBinaryMask(7, 7, 7)
	fillBlock(mask, 1, 5, 1, 5, 1, 5)
	mask.Data[mask.Index(3, 3, 3)] = 0

	filled := FillHoles(mask)

	if filled.Data[filled.Index(3, 3, 3)] != 1 {
		t.Error("Expected enclosed cavity voxel to be filled")
	}
	if filled.Sum() != 5*5*5 {
		t.Errorf("Expected filled mask to have %d voxels, got %d", 5*5*5, filled.Sum())
	}
}

// TestFillHolesOpenTunnel verifies that a cavity connected to the exterior
// through a face-connected background path is not filled
func TestFillHolesOpenTunnel(t *testing.T) {
	mask := volume.NewBinaryMask(7, 7, 7)
	fillBlock(mask, 1, 5, 1, 5, 1, 5)
	// Carve a tunnel from the center to the z=0 face.
	for z := 1; z <= 3; z++ {
		mask.Data[mask.Index(3, 3, z)] = 0
	}

	filled := FillHoles(mask)

	for z := 1; z <= 3; z++ {
		if filled.Data[filled.Index(3, 3, z)] != 0 {
			t.Errorf("Expected tunnel voxel at z=%d to stay background", z)
		}
	}
}

// TestFillHolesEmptyMask verifies that an all-background mask passes
// through unchanged
func TestFillHolesEmptyMask(t *testing.T) {
	mask := volume.NewBinaryMask(5, 5, 5)

	filled := FillHoles(mask)

	if filled.Sum() != 0 {
		t.Errorf("Expected empty mask to stay empty, got %d voxels", filled.Sum())
	}
}

// TestCloseBridgesGap verifies that closing with a size-3 element merges
// two voxels separated by a one-voxel gap
func TestCloseBridgesGap(t *testing.T) {
	mask := volume.NewBinaryMask(7, 7, 7)
	mask.Data[mask.Index(2, 3, 3)] = 1
	mask.Data[mask.Index(4, 3, 3)] = 1

	closed := Close(mask, 3)

	for _, x := range []int{2, 3, 4} {
		if closed.Data[closed.Index(x, 3, 3)] != 1 {
			t.Errorf("Expected voxel (%d,3,3) to be foreground after closing", x)
		}
	}
}

// TestCloseKeepsInteriorForeground verifies that closing never removes
// foreground away from the volume border
func TestCloseKeepsInteriorForeground(t *testing.T) {
	mask := volume.NewBinaryMask(9, 9, 9)
	fillBlock(mask, 3, 5, 3, 5, 3, 5)

	for _, size := range []int{2, 3} {
		closed := Close(mask, size)
		for i, v := range mask.Data {
			if v == 1 && closed.Data[i] != 1 {
				t.Errorf("Closing with size %d removed an interior foreground voxel", size)
				break
			}
		}
	}
}

// TestOpenRemovesIsolatedVoxel verifies that opening with a size-2 element
// strips a single noise voxel
func TestOpenRemovesIsolatedVoxel(t *testing.T) {
	mask := volume.NewBinaryMask(7, 7, 7)
	mask.Data[mask.Index(3, 3, 3)] = 1

	opened := Open(mask, 2)

	if opened.Sum() != 0 {
		t.Errorf("Expected isolated voxel to be removed, got %d voxels", opened.Sum())
	}
}

// TestOpenPreservesBlock verifies that opening with a size-2 element keeps
// a 2x2x2 block exactly, and never adds voxels outside the original mask
func TestOpenPreservesBlock(t *testing.T) {
	mask := volume.NewBinaryMask(7, 7, 7)
	fillBlock(mask, 2, 3, 2, 3, 2, 3)

	opened := Open(mask, 2)

	if !opened.Equal(mask) {
		t.Error("Expected 2x2x2 block to survive opening unchanged")
	}
}

// TestCleanCombined verifies the full hole-fill + closing + opening
// sequence on a block with an internal cavity and a distant noise voxel
func TestCleanCombined(t *testing.T) {
	mask := volume.NewBinaryMask(13, 13, 13)
	fillBlock(mask, 2, 8, 2, 8, 2, 8)
	mask.Data[mask.Index(5, 5, 5)] = 0    // cavity
	mask.Data[mask.Index(11, 11, 11)] = 1 // speck

	cleaned := Clean(mask, DefaultClosingSize, DefaultOpeningSize)

	if cleaned.Data[cleaned.Index(5, 5, 5)] != 1 {
		t.Error("Expected cavity to be filled")
	}
	if cleaned.Data[cleaned.Index(11, 11, 11)] != 0 {
		t.Error("Expected isolated noise voxel to be removed")
	}
	if cleaned.Sum() != 7*7*7 {
		t.Errorf("Expected %d voxels after cleanup, got %d", 7*7*7, cleaned.Sum())
	}
}

// TestCleanEmptyMask verifies that an all-zero mask flows through every
// operation and comes out all-zero
func TestCleanEmptyMask(t *testing.T) {
	mask := volume.NewBinaryMask(6, 6, 6)

	cleaned := Clean(mask, DefaultClosingSize, DefaultOpeningSize)

	if cleaned.Sum() != 0 {
		t.Errorf("Expected empty mask to stay empty, got %d voxels", cleaned.Sum())
	}
}

// TestCubeOffsetsAnchoring verifies the negative-side anchoring of
// even-sided structuring elements
func TestCubeOffsetsAnchoring(t *testing.T) {
	offsets := cubeOffsets(2)
	if len(offsets) != 8 {
		t.Fatalf("Expected 8 offsets for size 2, got %d", len(offsets))
	}
	for _, o := range offsets {
		if o.dx < -1 || o.dx > 0 || o.dy < -1 || o.dy > 0 || o.dz < -1 || o.dz > 0 {
			t.Errorf("Offset (%d,%d,%d) outside expected range [-1,0]", o.dx, o.dy, o.dz)
		}
	}

	offsets = cubeOffsets(3)
	if len(offsets) != 27 {
		t.Fatalf("Expected 27 offsets for size 3, got %d", len(offsets))
	}
}
