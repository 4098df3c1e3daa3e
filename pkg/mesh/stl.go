package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// stlHeader is the fixed 80-byte binary STL header.
var stlHeader = [80]byte{'V', 'e', 'r', 't', 'e', 'b', 'r', 'a', 'e', '-', 'S', 'e', 'g'}

// SaveToSTL writes the triangles to a binary STL file: the 80-byte header,
// a uint32 triangle count, then 50 bytes per triangle (normal, three
// vertices, attribute count).
func SaveToSTL(filename string, triangles []Triangle) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %v", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)

	if _, err := w.Write(stlHeader[:]); err != nil {
		return fmt.Errorf("failed to write STL header: %v", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return fmt.Errorf("failed to write triangle count: %v", err)
	}

	for _, t := range triangles {
		for _, vec := range [][3]float32{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3} {
			if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
				return fmt.Errorf("failed to write triangle data: %v", err)
			}
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(0)); err != nil {
			return fmt.Errorf("failed to write attribute count: %v", err)
		}
	}

	return w.Flush()
}
