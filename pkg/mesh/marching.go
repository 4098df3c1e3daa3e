// Package mesh extracts triangulated isosurfaces from binary masks and
// scalar volumes, for STL output and for the JSON meshes consumed by the
// web overlay. Vertex coordinates are emitted in physical units (mm) when
// a voxel spacing is applied, so meshes extracted from different volumes
// of the same patient overlay correctly.
package mesh

import (
	"math"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/volume"
)

// Triangle is a single mesh triangle with an outward-facing normal.
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// MarchingCubes extracts the isosurface of a scalar volume. Each cell of
// the voxel grid is decomposed into six tetrahedra and triangulated per
// tetrahedron, which produces a watertight surface without case tables.
// Sampling outside the volume reads as zero, so foreground touching the
// volume border still yields a closed surface.
type MarchingCubes struct {
	data                 []float64
	width, height, depth int
	isoLevel             float64
	scale                [3]float32
}

// NewMarchingCubes creates an extractor over a flat z-major scalar volume
// with the given iso level.
func NewMarchingCubes(data []float64, width, height, depth int, isoLevel float64) *MarchingCubes {
	return &MarchingCubes{
		data:     data,
		width:    width,
		height:   height,
		depth:    depth,
		isoLevel: isoLevel,
		scale:    [3]float32{1, 1, 1},
	}
}

// FromMask creates an extractor for a binary mask at iso level 0.5 with
// the mask's physical voxel spacing applied, so vertices come out in mm.
func FromMask(mask *volume.BinaryMask, spacing volume.Spacing) *MarchingCubes {
	data := make([]float64, len(mask.Data))
	for i, v := range mask.Data {
		if v != 0 {
			data[i] = 1.0
		}
	}
	mc := NewMarchingCubes(data, mask.Width, mask.Height, mask.Depth, 0.5)
	mc.SetScale(float32(spacing.X), float32(spacing.Y), float32(spacing.Z))
	return mc
}

// SetScale sets the physical size of one voxel step along each axis.
func (mc *MarchingCubes) SetScale(x, y, z float32) {
	mc.scale = [3]float32{x, y, z}
}

// sample reads the volume at (x, y, z), treating everything outside the
// bounds as zero.
func (mc *MarchingCubes) sample(x, y, z int) float64 {
	if x < 0 || x >= mc.width || y < 0 || y >= mc.height || z < 0 || z >= mc.depth {
		return 0
	}
	return mc.data[z*mc.width*mc.height+y*mc.width+x]
}

// cube corner offsets in (x, y, z).
var cornerOffsets = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// six-tetrahedron decomposition of a cube around the 0-6 diagonal.
var tetrahedra = [6][4]int{
	{0, 5, 1, 6},
	{0, 1, 2, 6},
	{0, 2, 3, 6},
	{0, 3, 7, 6},
	{0, 7, 4, 6},
	{0, 4, 5, 6},
}

// GenerateTriangles walks every cell (including a one-cell border of
// implicit zeros) and emits the triangulated isosurface.
func (mc *MarchingCubes) GenerateTriangles() []Triangle {
	var triangles []Triangle

	var positions [8][3]float64
	var values [8]float64

	for z := -1; z < mc.depth; z++ {
		for y := -1; y < mc.height; y++ {
			for x := -1; x < mc.width; x++ {
				for i, off := range cornerOffsets {
					cx, cy, cz := x+off[0], y+off[1], z+off[2]
					positions[i] = [3]float64{float64(cx), float64(cy), float64(cz)}
					values[i] = mc.sample(cx, cy, cz)
				}
				for _, tet := range tetrahedra {
					triangles = mc.triangulateTet(triangles, &positions, &values, tet)
				}
			}
		}
	}

	return triangles
}

// triangulateTet emits 0, 1 or 2 triangles for one tetrahedron depending
// on which of its four corners are inside the isosurface.
func (mc *MarchingCubes) triangulateTet(out []Triangle, positions *[8][3]float64, values *[8]float64, tet [4]int) []Triangle {
	var inside, outside []int
	for _, corner := range tet {
		if values[corner] > mc.isoLevel {
			inside = append(inside, corner)
		} else {
			outside = append(outside, corner)
		}
	}

	switch len(inside) {
	case 0, 4:
		return out

	case 1:
		// One corner inside: a single triangle caps it.
		a := inside[0]
		p1 := mc.interp(positions[a], positions[outside[0]], values[a], values[outside[0]])
		p2 := mc.interp(positions[a], positions[outside[1]], values[a], values[outside[1]])
		p3 := mc.interp(positions[a], positions[outside[2]], values[a], values[outside[2]])
		return append(out, mc.orient(p1, p2, p3, positions[a]))

	case 3:
		// One corner outside: a single triangle caps it, oriented away
		// from the inside corners.
		a := outside[0]
		p1 := mc.interp(positions[inside[0]], positions[a], values[inside[0]], values[a])
		p2 := mc.interp(positions[inside[1]], positions[a], values[inside[1]], values[a])
		p3 := mc.interp(positions[inside[2]], positions[a], values[inside[2]], values[a])
		return append(out, mc.orient(p1, p2, p3, positions[inside[0]]))

	default:
		// Two in, two out: the surface crosses as a quad.
		a, b := inside[0], inside[1]
		c, d := outside[0], outside[1]
		q1 := mc.interp(positions[a], positions[c], values[a], values[c])
		q2 := mc.interp(positions[a], positions[d], values[a], values[d])
		q3 := mc.interp(positions[b], positions[d], values[b], values[d])
		q4 := mc.interp(positions[b], positions[c], values[b], values[c])
		out = append(out, mc.orient(q1, q2, q3, positions[a]))
		return append(out, mc.orient(q1, q3, q4, positions[a]))
	}
}

// interp locates the isosurface crossing on the edge between two corners
// by linear interpolation and applies the voxel scale.
func (mc *MarchingCubes) interp(pa, pb [3]float64, va, vb float64) [3]float32 {
	t := 0.5
	if math.Abs(vb-va) > 1e-12 {
		t = (mc.isoLevel - va) / (vb - va)
	}
	return [3]float32{
		float32(pa[0]+t*(pb[0]-pa[0])) * mc.scale[0],
		float32(pa[1]+t*(pb[1]-pa[1])) * mc.scale[1],
		float32(pa[2]+t*(pb[2]-pa[2])) * mc.scale[2],
	}
}

// orient builds a triangle whose normal points away from the inside
// reference point, flipping the winding when needed.
func (mc *MarchingCubes) orient(v1, v2, v3 [3]float32, insideRef [3]float64) Triangle {
	normal := cross(sub(v2, v1), sub(v3, v1))

	ref := [3]float32{
		float32(insideRef[0]) * mc.scale[0],
		float32(insideRef[1]) * mc.scale[1],
		float32(insideRef[2]) * mc.scale[2],
	}
	centroid := [3]float32{
		(v1[0] + v2[0] + v3[0]) / 3,
		(v1[1] + v2[1] + v3[1]) / 3,
		(v1[2] + v2[2] + v3[2]) / 3,
	}
	toOutside := sub(centroid, ref)
	if dot(normal, toOutside) < 0 {
		v2, v3 = v3, v2
		normal = cross(sub(v2, v1), sub(v3, v1))
	}

	return Triangle{Normal: normalize(normal), Vertex1: v1, Vertex2: v2, Vertex3: v3}
}

func sub(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func cross(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func normalize(v [3]float32) [3]float32 {
	mag := float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
	if mag == 0 {
		return v
	}
	return [3]float32{v[0] / mag, v[1] / mag, v[2] / mag}
}
