package volume

import "fmt"

// vertebraNames maps label codes to anatomical vertebra names: cervical
// C1-C7 (1-7), thoracic T1-T12 (8-19), lumbar L1-L5 (20-24). The tables are
// static configuration data built once at init and never mutated.
var vertebraNames = map[uint8]string{
	1: "C1", 2: "C2", 3: "C3", 4: "C4", 5: "C5", 6: "C6", 7: "C7",
	8: "T1", 9: "T2", 10: "T3", 11: "T4", 12: "T5", 13: "T6",
	14: "T7", 15: "T8", 16: "T9", 17: "T10", 18: "T11", 19: "T12",
	20: "L1", 21: "L2", 22: "L3", 23: "L4", 24: "L5",
}

// vertebraColors maps label codes to the display colors used by the web
// overlay metadata.
var vertebraColors = map[uint8]string{
	1: "#FF0000", 2: "#FF4500", 3: "#FF8C00", 4: "#FFD700", 5: "#ADFF2F",
	6: "#00FF00", 7: "#00CED1", 8: "#1E90FF", 9: "#0000FF", 10: "#8A2BE2",
	11: "#9400D3", 12: "#FF00FF", 13: "#FF1493", 14: "#DC143C",
	15: "#8B4513", 16: "#D2691E", 17: "#CD853F", 18: "#DEB887",
	19: "#F0E68C", 20: "#808000", 21: "#556B2F", 22: "#228B22",
	23: "#008080", 24: "#4682B4",
}

// Difference overlay colors: voxels removed by cleaning render red, voxels
// added by cleaning render blue.
const (
	RemovedColor = "#FF4444"
	AddedColor   = "#4444FF"
)

// KnownLabels returns the full set of anatomical label codes (1-24) in
// ascending order, for callers that want a fixed reporting order regardless
// of which labels are present in a particular volume.
func KnownLabels() []uint8 {
	labels := make([]uint8, 0, len(vertebraNames))
	for code := uint8(1); code <= 24; code++ {
		labels = append(labels, code)
	}
	return labels
}

// LabelName returns the anatomical name for a label code, or a generic
// "Label_N" name for codes outside the known set.
func LabelName(label uint8) string {
	if name, ok := vertebraNames[label]; ok {
		return name
	}
	return fmt.Sprintf("Label_%d", label)
}

// LabelColor returns the display color for a label code, or a neutral grey
// for codes outside the known set.
func LabelColor(label uint8) string {
	if c, ok := vertebraColors[label]; ok {
		return c
	}
	return "#CCCCCC"
}
