package mesh

import (
	"math"
	"testing"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/volume"
)

// sphereMask builds a binary sphere of the given radius centered in a
// cubic mask.
func sphereMask(size int, radius float64) *volume.BinaryMask {
	mask := volume.NewBinaryMask(size, size, size)
	center := float64(size) / 2.0
	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dx := float64(x) - center
				dy := float64(y) - center
				dz := float64(z) - center
				if math.Sqrt(dx*dx+dy*dy+dz*dz) < radius {
					mask.Data[mask.Index(x, y, z)] = 1
				}
			}
		}
	}
	return mask
}

// TestGenerateTrianglesSphere verifies surface extraction on a binary
// sphere: enough triangles for a closed surface and outward-facing normals
func TestGenerateTrianglesSphere(t *testing.T) {
	size := 20
	center := float32(size) / 2.0
	mask := sphereMask(size, float64(size)/4.0)

	triangles := FromMask(mask, volume.Spacing{X: 1, Y: 1, Z: 1}).GenerateTriangles()

	if len(triangles) < 100 {
		t.Fatalf("Expected at least 100 triangles for sphere, got %d", len(triangles))
	}

	for _, triangle := range triangles {
		// Vector from sphere center to triangle centroid.
		vx := (triangle.Vertex1[0]+triangle.Vertex2[0]+triangle.Vertex3[0])/3 - center
		vy := (triangle.Vertex1[1]+triangle.Vertex2[1]+triangle.Vertex3[1])/3 - center
		vz := (triangle.Vertex1[2]+triangle.Vertex2[2]+triangle.Vertex3[2])/3 - center

		mag := float32(math.Sqrt(float64(vx*vx + vy*vy + vz*vz)))
		if mag == 0 {
			continue
		}
		// Staircase facets can be near-tangential, so only flag normals
		// pointing clearly back toward the center.
		dot := (vx*triangle.Normal[0] + vy*triangle.Normal[1] + vz*triangle.Normal[2]) / mag
		if dot < -0.9 {
			t.Errorf("Triangle normal appears to point inward, dot product: %f", dot)
		}
	}
}

// TestGenerateTrianglesBorderVoxel verifies that foreground touching the
// volume border still produces a closed surface via the implicit zero
// border
func TestGenerateTrianglesBorderVoxel(t *testing.T) {
	mask := volume.NewBinaryMask(4, 4, 4)
	mask.Data[mask.Index(0, 0, 0)] = 1

	triangles := FromMask(mask, volume.Spacing{X: 1, Y: 1, Z: 1}).GenerateTriangles()

	if len(triangles) == 0 {
		t.Fatal("Expected triangles for a border voxel")
	}
	// A closed surface of n triangles has 3n/2 shared edges, so n is even.
	if len(triangles)%2 != 0 {
		t.Errorf("Expected an even triangle count for a closed surface, got %d", len(triangles))
	}
}

// TestGenerateTrianglesEmptyMask verifies an all-background mask yields no
// surface
func TestGenerateTrianglesEmptyMask(t *testing.T) {
	mask := volume.NewBinaryMask(6, 6, 6)

	triangles := FromMask(mask, volume.Spacing{X: 1, Y: 1, Z: 1}).GenerateTriangles()

	if len(triangles) != 0 {
		t.Errorf("Expected no triangles for empty mask, got %d", len(triangles))
	}
}

// TestSpacingScalesVertices verifies that voxel spacing scales vertex
// coordinates into physical units
func TestSpacingScalesVertices(t *testing.T) {
	mask := volume.NewBinaryMask(8, 8, 8)
	mask.Data[mask.Index(3, 3, 3)] = 1

	unit := FromMask(mask, volume.Spacing{X: 1, Y: 1, Z: 1}).GenerateTriangles()
	scaled := FromMask(mask, volume.Spacing{X: 2, Y: 2, Z: 2}).GenerateTriangles()

	if len(unit) != len(scaled) {
		t.Fatalf("Expected identical topology, got %d vs %d triangles", len(unit), len(scaled))
	}

	maxCoord := func(triangles []Triangle) float32 {
		var m float32
		for _, tri := range triangles {
			for _, v := range [][3]float32{tri.Vertex1, tri.Vertex2, tri.Vertex3} {
				for _, c := range v {
					if c > m {
						m = c
					}
				}
			}
		}
		return m
	}

	if math.Abs(float64(maxCoord(scaled)-2*maxCoord(unit))) > 1e-5 {
		t.Errorf("Expected doubled spacing to double coordinates: %f vs %f",
			maxCoord(scaled), maxCoord(unit))
	}
}

// TestInterpolatedVerticesOnEdges verifies isosurface crossings are placed
// between the inside and outside sample positions
func TestInterpolatedVerticesOnEdges(t *testing.T) {
	mask := volume.NewBinaryMask(8, 8, 8)
	mask.Data[mask.Index(3, 3, 3)] = 1

	triangles := FromMask(mask, volume.Spacing{X: 1, Y: 1, Z: 1}).GenerateTriangles()

	for _, tri := range triangles {
		for _, v := range [][3]float32{tri.Vertex1, tri.Vertex2, tri.Vertex3} {
			for axis, c := range v {
				if c < 2.0 || c > 4.0 {
					t.Fatalf("Vertex coordinate %f on axis %d outside the voxel neighborhood", c, axis)
				}
			}
		}
	}
}
