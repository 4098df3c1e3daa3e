// Package report serializes cleaning statistics, difference reports and
// web-viewer mesh metadata as JSON documents.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/cleaning"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/diffing"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/volume"
)

// LabelStats is one label's cleaning record enriched with its anatomical
// name for the report.
type LabelStats struct {
	Label uint8  `json:"label"`
	Name  string `json:"name"`
	cleaning.Stats
}

// CleaningReport is the per-patient document produced by a cleaning run.
type CleaningReport struct {
	RunID         string                  `json:"run_id"`
	Patient       string                  `json:"patient"`
	GeneratedAt   time.Time               `json:"generated_at"`
	Labels        []LabelStats            `json:"labels"`
	Failures      []cleaning.LabelFailure `json:"failures,omitempty"`
	OverlapVoxels int                     `json:"overlap_voxels"`
}

// NewCleaningReport assembles a report document from an orchestrator
// result, with labels in ascending order and a fresh run id.
func NewCleaningReport(patient string, result *cleaning.Result) *CleaningReport {
	r := &CleaningReport{
		RunID:         uuid.NewString(),
		Patient:       patient,
		GeneratedAt:   time.Now().UTC(),
		Failures:      result.Failures,
		OverlapVoxels: result.OverlapVoxels,
	}
	for _, label := range volume.SortedLabels(result.Stats) {
		r.Labels = append(r.Labels, LabelStats{
			Label: label,
			Name:  volume.LabelName(label),
			Stats: result.Stats[label],
		})
	}
	return r
}

// DifferenceReport wraps a diffing report with run provenance and, when
// the conservation identity failed, the violation message.
type DifferenceReport struct {
	RunID       string    `json:"run_id"`
	Patient     string    `json:"patient"`
	GeneratedAt time.Time `json:"generated_at"`
	*diffing.Report
	ConservationViolation string `json:"conservation_violation,omitempty"`
}

// NewDifferenceReport assembles the difference document. conservationErr
// may be nil.
func NewDifferenceReport(patient string, r *diffing.Report, conservationErr error) *DifferenceReport {
	doc := &DifferenceReport{
		RunID:       uuid.NewString(),
		Patient:     patient,
		GeneratedAt: time.Now().UTC(),
		Report:      r,
	}
	if conservationErr != nil {
		doc.ConservationViolation = conservationErr.Error()
	}
	return doc
}

// MeshRef points the web viewer at one exported mesh file.
type MeshRef struct {
	File     string `json:"file"`
	Color    string `json:"color"`
	Vertices int    `json:"vertices"`
	Faces    int    `json:"faces"`
	Voxels   int    `json:"voxels,omitempty"`
}

// VertebraMeshes groups the mesh files exported for one vertebra.
type VertebraMeshes struct {
	Name          string             `json:"name"`
	Label         uint8              `json:"label"`
	RawVoxels     int                `json:"raw_voxels,omitempty"`
	CleanedVoxels int                `json:"cleaned_voxels,omitempty"`
	RemovedVoxels int                `json:"removed_voxels,omitempty"`
	AddedVoxels   int                `json:"added_voxels,omitempty"`
	Surface       *MeshRef           `json:"surface,omitempty"`
	Meshes        map[string]MeshRef `json:"meshes,omitempty"`
}

// MeshMetadata is the metadata.json document accompanying a directory of
// exported mesh files.
type MeshMetadata struct {
	Patient           string                    `json:"patient_id"`
	VisualizationType string                    `json:"visualization_type"`
	Description       string                    `json:"description,omitempty"`
	Shape             [3]int                    `json:"shape"`
	Spacing           [3]float64                `json:"spacing"`
	Colors            map[string]string         `json:"colors,omitempty"`
	Vertebrae         map[string]VertebraMeshes `json:"vertebrae"`
}

// NewMeshMetadata creates an empty metadata document for a volume.
func NewMeshMetadata(patient, visualizationType string, vol *volume.LabelVolume) *MeshMetadata {
	return &MeshMetadata{
		Patient:           patient,
		VisualizationType: visualizationType,
		Shape:             [3]int{vol.Width, vol.Height, vol.Depth},
		Spacing:           [3]float64{vol.Spacing.X, vol.Spacing.Y, vol.Spacing.Z},
		Vertebrae:         make(map[string]VertebraMeshes),
	}
}

// WriteJSON writes any report document as indented JSON.
func WriteJSON(path string, doc any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %v", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode report: %v", err)
	}
	return nil
}
