package mesh

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Mesh is an indexed triangle mesh: a vertex list plus faces referencing it
// by index. This is the representation serialized for the web viewer.
type Mesh struct {
	Vertices [][3]float32 `json:"vertices"`
	Faces    [][3]int     `json:"faces"`

	// Color is an optional display color carried by difference meshes.
	Color string `json:"color,omitempty"`
}

// BuildMesh converts a triangle soup into an indexed mesh, welding
// vertices that coincide exactly. Extraction interpolates shared edges to
// identical coordinates, so exact welding closes the surface.
func BuildMesh(triangles []Triangle) *Mesh {
	m := &Mesh{}
	index := make(map[[3]float32]int)

	add := func(v [3]float32) int {
		if idx, ok := index[v]; ok {
			return idx
		}
		idx := len(m.Vertices)
		index[v] = idx
		m.Vertices = append(m.Vertices, v)
		return idx
	}

	for _, t := range triangles {
		a, b, c := add(t.Vertex1), add(t.Vertex2), add(t.Vertex3)
		if a == b || b == c || a == c {
			// Degenerate after welding.
			continue
		}
		m.Faces = append(m.Faces, [3]int{a, b, c})
	}
	return m
}

// VertexCount returns the number of distinct vertices.
func (m *Mesh) VertexCount() int { return len(m.Vertices) }

// FaceCount returns the number of triangles.
func (m *Mesh) FaceCount() int { return len(m.Faces) }

// Smooth applies Laplacian smoothing: each vertex moves toward the mean of
// its neighbors by the relaxation factor, repeated for the given number of
// iterations. The vertex and face counts are unchanged; only positions
// move. Used to soften staircase artifacts for display.
func (m *Mesh) Smooth(iterations int, relaxation float64) {
	if iterations <= 0 || relaxation <= 0 || len(m.Vertices) == 0 {
		return
	}

	// Neighbor sets from face edges.
	neighbors := make([]map[int]struct{}, len(m.Vertices))
	for i := range neighbors {
		neighbors[i] = make(map[int]struct{})
	}
	for _, f := range m.Faces {
		neighbors[f[0]][f[1]] = struct{}{}
		neighbors[f[0]][f[2]] = struct{}{}
		neighbors[f[1]][f[0]] = struct{}{}
		neighbors[f[1]][f[2]] = struct{}{}
		neighbors[f[2]][f[0]] = struct{}{}
		neighbors[f[2]][f[1]] = struct{}{}
	}

	current := m.Vertices
	next := make([][3]float32, len(current))
	for iter := 0; iter < iterations; iter++ {
		for i, v := range current {
			if len(neighbors[i]) == 0 {
				next[i] = v
				continue
			}
			var mean [3]float64
			for n := range neighbors[i] {
				mean[0] += float64(current[n][0])
				mean[1] += float64(current[n][1])
				mean[2] += float64(current[n][2])
			}
			count := float64(len(neighbors[i]))
			next[i] = [3]float32{
				v[0] + float32(relaxation*(mean[0]/count-float64(v[0]))),
				v[1] + float32(relaxation*(mean[1]/count-float64(v[1]))),
				v[2] + float32(relaxation*(mean[2]/count-float64(v[2]))),
			}
		}
		current, next = next, current
	}
	m.Vertices = current
}

// WriteJSON serializes the mesh as {"vertices": [...], "faces": [...]}.
func (m *Mesh) WriteJSON(w io.Writer) error {
	return json.NewEncoder(w).Encode(m)
}

// SaveJSON writes the mesh JSON document to a file.
func (m *Mesh) SaveJSON(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create mesh file: %v", err)
	}
	defer file.Close()
	return m.WriteJSON(file)
}
