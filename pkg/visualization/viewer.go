// Package visualization renders 2D slice images of multi-label volumes for
// quality control, coloring each vertebra with its display color.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/volume"
)

// Viewer extracts and saves colored slice images from a label volume.
type Viewer struct {
	vol *volume.LabelVolume

	// palette caches the parsed display color per label code.
	palette [256]color.RGBA
}

// NewViewer creates a viewer over a label volume.
func NewViewer(vol *volume.LabelVolume) *Viewer {
	v := &Viewer{vol: vol}
	for code := 1; code < 256; code++ {
		v.palette[code] = parseHexColor(volume.LabelColor(uint8(code)))
	}
	return v
}

// parseHexColor decodes a #RRGGBB display color. Malformed values fall
// back to mid grey.
func parseHexColor(s string) color.RGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02X%02X%02X", &r, &g, &b); err != nil {
		return color.RGBA{R: 0xCC, G: 0xCC, B: 0xCC, A: 0xFF}
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}
}

// labelColor returns the render color for a voxel: black for background,
// the label's display color otherwise.
func (v *Viewer) labelColor(code uint8) color.RGBA {
	if code == 0 {
		return color.RGBA{A: 0xFF}
	}
	return v.palette[code]
}

// ExtractSlice extracts a 2D colored slice from the volume along the
// specified axis at the given position.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	vol := v.vol
	var img *image.RGBA

	switch axis {
	case "x", "X":
		if position >= vol.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, vol.Width)
		}
		img = image.NewRGBA(image.Rect(0, 0, vol.Depth, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for z := 0; z < vol.Depth; z++ {
				img.SetRGBA(z, y, v.labelColor(vol.Data[vol.Index(position, y, z)]))
			}
		}

	case "y", "Y":
		if position >= vol.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, vol.Height)
		}
		img = image.NewRGBA(image.Rect(0, 0, vol.Width, vol.Depth))
		for z := 0; z < vol.Depth; z++ {
			for x := 0; x < vol.Width; x++ {
				img.SetRGBA(x, z, v.labelColor(vol.Data[vol.Index(x, position, z)]))
			}
		}

	case "z", "Z":
		if position >= vol.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, vol.Depth)
		}
		img = image.NewRGBA(image.Rect(0, 0, vol.Width, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				img.SetRGBA(x, y, v.labelColor(vol.Data[vol.Index(x, y, position)]))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a PNG image. Label renders must be
// lossless, so PNG rather than JPEG.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSliceSequence extracts and saves every slice along the specified
// axis into outputDir.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.vol.Width
	case "y", "Y":
		maxPos = v.vol.Height
	case "z", "Z":
		maxPos = v.vol.Depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
