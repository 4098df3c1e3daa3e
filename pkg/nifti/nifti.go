// Package nifti loads and saves NIfTI-1 label volumes (.nii and .nii.gz).
//
// The raw header bytes (everything up to vox_offset, including any header
// extensions) are carried on the volume as its opaque geometry token and
// written back bit-identical on save, so cleaning can never alter the
// spacing or orientation metadata of a scan.
package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/volume"
)

const (
	headerSize       = 348
	defaultVoxOffset = 352
)

// NIfTI-1 datatype codes for the integer/float types a segmentation mask
// can reasonably be stored as.
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
	dtInt8    = 256
	dtUint16  = 512
	dtUint32  = 768
)

// header is the subset of NIfTI-1 fields the loader needs. The full raw
// bytes are preserved separately as the geometry token.
type header struct {
	dim       [8]int16
	datatype  int16
	bitpix    int16
	pixdim    [8]float32
	voxOffset float32
	sclSlope  float32
	sclInter  float32
	order     binary.ByteOrder
}

// parseHeader decodes the fields of interest from the first 348 bytes,
// detecting byte order from sizeof_hdr.
func parseHeader(raw []byte) (*header, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("truncated NIfTI header: %d bytes", len(raw))
	}

	var order binary.ByteOrder = binary.LittleEndian
	if binary.LittleEndian.Uint32(raw[0:4]) != headerSize {
		if binary.BigEndian.Uint32(raw[0:4]) != headerSize {
			return nil, fmt.Errorf("not a NIfTI-1 file: sizeof_hdr != %d", headerSize)
		}
		order = binary.BigEndian
	}

	magic := string(raw[344:347])
	if magic != "n+1" && magic != "ni1" {
		return nil, fmt.Errorf("not a NIfTI-1 file: bad magic %q", magic)
	}
	if magic == "ni1" {
		return nil, fmt.Errorf("detached .hdr/.img NIfTI pairs are not supported")
	}

	h := &header{order: order}
	for i := 0; i < 8; i++ {
		h.dim[i] = int16(order.Uint16(raw[40+2*i : 42+2*i]))
		h.pixdim[i] = math.Float32frombits(order.Uint32(raw[76+4*i : 80+4*i]))
	}
	h.datatype = int16(order.Uint16(raw[70:72]))
	h.bitpix = int16(order.Uint16(raw[72:74]))
	h.voxOffset = math.Float32frombits(order.Uint32(raw[108:112]))
	h.sclSlope = math.Float32frombits(order.Uint32(raw[112:116]))
	h.sclInter = math.Float32frombits(order.Uint32(raw[116:120]))

	if h.dim[0] < 3 || h.dim[0] > 7 {
		return nil, fmt.Errorf("unsupported NIfTI dimensionality %d", h.dim[0])
	}
	for i := 1; i <= 3; i++ {
		if h.dim[i] <= 0 {
			return nil, fmt.Errorf("invalid NIfTI dim[%d] = %d", i, h.dim[i])
		}
	}
	// Trailing dims beyond 3 must be singleton for a label volume.
	for i := 4; i <= int(h.dim[0]); i++ {
		if h.dim[i] > 1 {
			return nil, fmt.Errorf("volume has %d timepoints/components; expected a single 3D label volume", h.dim[i])
		}
	}
	return h, nil
}

// bytesPerVoxel returns the storage width of a datatype code.
func bytesPerVoxel(datatype int16) (int, error) {
	switch datatype {
	case dtUint8, dtInt8:
		return 1, nil
	case dtInt16, dtUint16:
		return 2, nil
	case dtInt32, dtUint32, dtFloat32:
		return 4, nil
	case dtFloat64:
		return 8, nil
	}
	return 0, fmt.Errorf("unsupported NIfTI datatype %d", datatype)
}

// readAll reads a file, transparently gunzipping .gz content (detected by
// magic bytes, not just the extension).
func readAll(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %v", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	}
	return raw, nil
}

// Load reads a NIfTI-1 label volume. Voxel values are converted to uint8
// label codes (scaling applied when the header carries a non-trivial
// scl_slope, floats rounded to the nearest integer).
func Load(path string) (*volume.LabelVolume, error) {
	raw, err := readAll(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", path, err)
	}

	h, err := parseHeader(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}

	voxOffset := int(h.voxOffset)
	if voxOffset < headerSize || voxOffset > len(raw) {
		return nil, fmt.Errorf("%s: invalid vox_offset %d", path, voxOffset)
	}

	w, ht, d := int(h.dim[1]), int(h.dim[2]), int(h.dim[3])
	n := w * ht * d
	width, err := bytesPerVoxel(h.datatype)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	if len(raw)-voxOffset < n*width {
		return nil, fmt.Errorf("%s: data truncated: have %d bytes, need %d",
			path, len(raw)-voxOffset, n*width)
	}

	vol := volume.NewLabelVolume(w, ht, d, volume.Spacing{
		X: float64(h.pixdim[1]),
		Y: float64(h.pixdim[2]),
		Z: float64(h.pixdim[3]),
	})
	vol.Geometry = raw[:voxOffset]

	data := raw[voxOffset:]
	slope, inter := float64(h.sclSlope), float64(h.sclInter)
	scaled := slope != 0 && (slope != 1 || inter != 0)

	for i := 0; i < n; i++ {
		v := decodeVoxel(data, i, width, h.datatype, h.order)
		if scaled {
			v = v*slope + inter
		}
		vol.Data[i] = clampLabel(v)
	}
	return vol, nil
}

// decodeVoxel reads voxel i as a float64 regardless of storage type.
func decodeVoxel(data []byte, i, width int, datatype int16, order binary.ByteOrder) float64 {
	off := i * width
	switch datatype {
	case dtUint8:
		return float64(data[off])
	case dtInt8:
		return float64(int8(data[off]))
	case dtInt16:
		return float64(int16(order.Uint16(data[off:])))
	case dtUint16:
		return float64(order.Uint16(data[off:]))
	case dtInt32:
		return float64(int32(order.Uint32(data[off:])))
	case dtUint32:
		return float64(order.Uint32(data[off:]))
	case dtFloat32:
		return float64(math.Float32frombits(order.Uint32(data[off:])))
	default: // dtFloat64
		return math.Float64frombits(order.Uint64(data[off:]))
	}
}

func clampLabel(v float64) uint8 {
	r := math.Round(v)
	if r <= 0 {
		return 0
	}
	if r >= 255 {
		return 255
	}
	return uint8(r)
}

// Save writes a label volume as NIfTI-1, re-using the volume's geometry
// token verbatim and encoding the labels in the datatype and byte order
// the token declares. The file is gzip-compressed when the path ends in
// .gz.
func Save(path string, vol *volume.LabelVolume) error {
	if err := vol.Validate(); err != nil {
		return err
	}
	if vol.Geometry == nil {
		return fmt.Errorf("volume has no geometry token; load it from a NIfTI file or attach NewGeometry")
	}

	h, err := parseHeader(vol.Geometry)
	if err != nil {
		return fmt.Errorf("invalid geometry token: %v", err)
	}
	if int(h.dim[1]) != vol.Width || int(h.dim[2]) != vol.Height || int(h.dim[3]) != vol.Depth {
		return fmt.Errorf("geometry token dims %dx%dx%d do not match volume %dx%dx%d",
			h.dim[1], h.dim[2], h.dim[3], vol.Width, vol.Height, vol.Depth)
	}
	width, err := bytesPerVoxel(h.datatype)
	if err != nil {
		return fmt.Errorf("invalid geometry token: %v", err)
	}

	payload := make([]byte, len(vol.Data)*width)
	for i, label := range vol.Data {
		encodeVoxel(payload, i, width, h.datatype, h.order, label)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", path, err)
	}
	defer file.Close()

	var w io.Writer = file
	var zw *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		zw = gzip.NewWriter(file)
		w = zw
	}

	if _, err := w.Write(vol.Geometry); err != nil {
		return fmt.Errorf("failed to write header: %v", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write voxel data: %v", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to finish gzip stream: %v", err)
		}
	}
	return nil
}

// encodeVoxel stores a label code at voxel i in the given storage type.
func encodeVoxel(data []byte, i, width int, datatype int16, order binary.ByteOrder, label uint8) {
	off := i * width
	switch datatype {
	case dtUint8, dtInt8:
		data[off] = label
	case dtInt16, dtUint16:
		order.PutUint16(data[off:], uint16(label))
	case dtInt32, dtUint32:
		order.PutUint32(data[off:], uint32(label))
	case dtFloat32:
		order.PutUint32(data[off:], math.Float32bits(float32(label)))
	default: // dtFloat64
		order.PutUint64(data[off:], math.Float64bits(float64(label)))
	}
}

// NewGeometry builds a minimal little-endian NIfTI-1 geometry token (348
// byte header plus the 4-byte extension pad) for a uint8 label volume.
// Volumes assembled in memory get one of these so they can round-trip
// through Save/Load; volumes loaded from disk keep their original token.
func NewGeometry(width, height, depth int, spacing volume.Spacing) []byte {
	raw := make([]byte, defaultVoxOffset)
	le := binary.LittleEndian

	le.PutUint32(raw[0:], headerSize) // sizeof_hdr

	dims := [8]int16{3, int16(width), int16(height), int16(depth), 1, 1, 1, 1}
	for i, v := range dims {
		le.PutUint16(raw[40+2*i:], uint16(v))
	}
	le.PutUint16(raw[70:], dtUint8) // datatype
	le.PutUint16(raw[72:], 8)       // bitpix

	pixdim := [8]float32{1, float32(spacing.X), float32(spacing.Y), float32(spacing.Z), 1, 1, 1, 1}
	for i, v := range pixdim {
		le.PutUint32(raw[76+4*i:], math.Float32bits(v))
	}
	le.PutUint32(raw[108:], math.Float32bits(defaultVoxOffset)) // vox_offset
	le.PutUint32(raw[112:], math.Float32bits(1))                // scl_slope
	copy(raw[344:], "n+1\x00")

	return raw
}
