// Package webexport writes per-vertebra surface meshes and their metadata
// documents in the layout the web viewer consumes:
//
//	<outdir>/<patient>/<name>.json                raw surfaces
//	<outdir>/<patient>_cleaned/<name>.json        cleaned surfaces
//	<outdir>/<patient>_difference/<name>_removed.json
//	<outdir>/<patient>_difference/<name>_added.json
//
// plus a metadata.json per directory. All meshes are emitted in physical
// coordinates (mm) so the raw, cleaned and difference surfaces of one
// patient overlay correctly.
package webexport

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/diffing"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/mesh"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/report"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/volume"
)

// Exporter writes mesh files for web viewing.
type Exporter struct {
	// OutDir is the root of the exported tree.
	OutDir string

	// SmoothIterations and SmoothRelaxation configure the Laplacian
	// display smoothing applied to every exported mesh (0 iterations
	// disables it).
	SmoothIterations int
	SmoothRelaxation float64

	// Logger may be nil.
	Logger *zap.Logger
}

func (e *Exporter) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// meshFromMask extracts, smooths and indexes the surface of one mask.
// Returns nil for an empty mask.
func (e *Exporter) meshFromMask(mask *volume.BinaryMask, spacing volume.Spacing) *mesh.Mesh {
	if mask.Empty() {
		return nil
	}
	triangles := mesh.FromMask(mask, spacing).GenerateTriangles()
	m := mesh.BuildMesh(triangles)
	m.Smooth(e.SmoothIterations, e.SmoothRelaxation)
	return m
}

// ExportLabelMeshes writes one surface mesh per label present in the
// volume. variant selects the directory: "raw" exports to
// <outdir>/<patient>, anything else to <outdir>/<patient>_<variant>.
func (e *Exporter) ExportLabelMeshes(patient, variant string, vol *volume.LabelVolume) (*report.MeshMetadata, error) {
	dir := filepath.Join(e.OutDir, patient)
	if variant != "raw" {
		dir = filepath.Join(e.OutDir, patient+"_"+variant)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %v", err)
	}

	meta := report.NewMeshMetadata(patient, variant, vol)
	for _, label := range vol.UniqueLabels() {
		name := volume.LabelName(label)
		m := e.meshFromMask(vol.ExtractMask(label), vol.Spacing)
		if m == nil {
			continue
		}

		file := filepath.Join(dir, name+".json")
		if err := m.SaveJSON(file); err != nil {
			return nil, fmt.Errorf("failed to export %s: %v", name, err)
		}

		meta.Vertebrae[name] = report.VertebraMeshes{
			Name:  name,
			Label: label,
			Surface: &report.MeshRef{
				File:     file,
				Color:    volume.LabelColor(label),
				Vertices: m.VertexCount(),
				Faces:    m.FaceCount(),
			},
		}
		e.logger().Debug("exported mesh",
			zap.String("patient", patient),
			zap.String("variant", variant),
			zap.String("vertebra", name),
			zap.Int("vertices", m.VertexCount()),
		)
	}

	if err := report.WriteJSON(filepath.Join(dir, "metadata.json"), meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// ExportDifferenceMeshes writes removed/added surface meshes per label for
// the difference between a raw and a cleaned volume, together with the
// difference metadata document.
func (e *Exporter) ExportDifferenceMeshes(patient string, raw, cleaned *volume.LabelVolume, rep *diffing.Report) (*report.MeshMetadata, error) {
	dir := filepath.Join(e.OutDir, patient+"_difference")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %v", err)
	}

	meta := report.NewMeshMetadata(patient, "difference", raw)
	meta.Description = "Difference between raw and post-processed predictions"
	meta.Colors = map[string]string{
		"removed": volume.RemovedColor,
		"added":   volume.AddedColor,
	}

	for _, d := range rep.Labels {
		if d.RawVoxels == 0 && d.CleanedVoxels == 0 {
			continue
		}
		info := report.VertebraMeshes{
			Name:          d.Name,
			Label:         d.Label,
			RawVoxels:     d.RawVoxels,
			CleanedVoxels: d.CleanedVoxels,
			RemovedVoxels: d.RemovedVoxels,
			AddedVoxels:   d.AddedVoxels,
			Meshes:        make(map[string]report.MeshRef),
		}

		if d.RemovedVoxels > 0 {
			m := e.meshFromMask(diffing.RemovedMask(raw, cleaned, d.Label), raw.Spacing)
			if m != nil {
				m.Color = volume.RemovedColor
				file := filepath.Join(dir, d.Name+"_removed.json")
				if err := m.SaveJSON(file); err != nil {
					return nil, fmt.Errorf("failed to export %s removed mesh: %v", d.Name, err)
				}
				info.Meshes["removed"] = report.MeshRef{
					File:     file,
					Color:    volume.RemovedColor,
					Vertices: m.VertexCount(),
					Faces:    m.FaceCount(),
					Voxels:   d.RemovedVoxels,
				}
			}
		}

		if d.AddedVoxels > 0 {
			m := e.meshFromMask(diffing.AddedMask(raw, cleaned, d.Label), raw.Spacing)
			if m != nil {
				m.Color = volume.AddedColor
				file := filepath.Join(dir, d.Name+"_added.json")
				if err := m.SaveJSON(file); err != nil {
					return nil, fmt.Errorf("failed to export %s added mesh: %v", d.Name, err)
				}
				info.Meshes["added"] = report.MeshRef{
					File:     file,
					Color:    volume.AddedColor,
					Vertices: m.VertexCount(),
					Faces:    m.FaceCount(),
					Voxels:   d.AddedVoxels,
				}
			}
		}

		meta.Vertebrae[d.Name] = info
	}

	if err := report.WriteJSON(filepath.Join(dir, "metadata.json"), meta); err != nil {
		return nil, err
	}
	return meta, nil
}
