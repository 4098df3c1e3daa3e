package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/internal/webexport"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/diffing"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/mesh"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/nifti"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/visualization"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/volume"
)

var (
	exportOutDir    string
	exportSliceAxis string
	exportSTL       bool
)

var exportCmd = &cobra.Command{
	Use:   "export <patient-dir> [<patient-dir>...]",
	Short: "Export surface meshes for the web overlay viewer",
	Long: `Export extracts one surface mesh per vertebra from a patient's raw
and cleaned volumes and writes them as indexed-JSON meshes, plus
removed/added difference surfaces, in the directory layout the web viewer
loads.

Each patient directory must contain combined_labels.nii.gz; the cleaned
counterpart is read from the post-processed mirror directory produced by
'vertseg clean'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutDir, "out", "o", "",
		"output directory (default: the configured webDataDir)")
	exportCmd.Flags().StringVar(&exportSliceAxis, "slices", "",
		"also save per-slice QC images along this axis (x, y or z)")
	exportCmd.Flags().BoolVar(&exportSTL, "stl", false,
		"also save one binary STL per vertebra of the cleaned volume")
}

func runExport(cmd *cobra.Command, args []string) error {
	outDir := exportOutDir
	if outDir == "" {
		outDir = cfg.Output.WebDataDir
	}
	exporter := &webexport.Exporter{
		OutDir:           outDir,
		SmoothIterations: cfg.Mesh.SmoothIterations,
		SmoothRelaxation: cfg.Mesh.SmoothRelaxation,
		Logger:           logger,
	}

	for _, dir := range args {
		if err := exportPatient(cmd, exporter, filepath.Clean(dir)); err != nil {
			return err
		}
	}
	return nil
}

func exportPatient(cmd *cobra.Command, exporter *webexport.Exporter, dir string) error {
	patient := filepath.Base(dir)
	cleanedDir := dir + cfg.Output.CleanedSuffix

	raw, err := nifti.Load(filepath.Join(dir, combinedLabelsFile))
	if err != nil {
		return fmt.Errorf("failed to load raw volume: %w", err)
	}
	cleaned, err := nifti.Load(filepath.Join(cleanedDir, combinedLabelsFile))
	if err != nil {
		return fmt.Errorf("failed to load cleaned volume (run 'vertseg clean' first): %w", err)
	}

	if _, err := exporter.ExportLabelMeshes(patient, "raw", raw); err != nil {
		return err
	}
	if _, err := exporter.ExportLabelMeshes(patient, "cleaned", cleaned); err != nil {
		return err
	}

	engine := diffing.NewEngine(cfg.Cleaning.Workers)
	rep, diffErr := engine.Compute(raw, cleaned)
	if rep == nil {
		return diffErr
	}
	var conservation *diffing.ConservationError
	if errors.As(diffErr, &conservation) {
		// The difference meshes are still geometrically valid, so export
		// them, but make the inconsistency impossible to miss.
		cmd.PrintErrf("CONSERVATION VIOLATION for %s: %v\n", patient, conservation)
	} else if diffErr != nil {
		return diffErr
	}
	if _, err := exporter.ExportDifferenceMeshes(patient, raw, cleaned, rep); err != nil {
		return err
	}

	if exportSTL {
		if err := exportSTLMeshes(cleaned, filepath.Join(exporter.OutDir, patient+"_stl")); err != nil {
			return err
		}
	}
	if exportSliceAxis != "" {
		sliceDir := filepath.Join(exporter.OutDir, patient+"_slices")
		if err := visualization.NewViewer(cleaned).SaveSliceSequence(exportSliceAxis, sliceDir); err != nil {
			return fmt.Errorf("failed to save QC slices: %w", err)
		}
	}

	logger.Info("patient exported",
		zap.String("patient", patient),
		zap.String("outdir", exporter.OutDir),
	)
	cmd.Printf("%s: meshes written to %s\n", patient, exporter.OutDir)
	return nil
}

// exportSTLMeshes writes one binary STL per vertebra, for consumers that
// want printable or CAD-loadable surfaces rather than the viewer JSON.
func exportSTLMeshes(vol *volume.LabelVolume, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create STL directory: %w", err)
	}
	for _, label := range vol.UniqueLabels() {
		mask := vol.ExtractMask(label)
		if mask.Empty() {
			continue
		}
		triangles := mesh.FromMask(mask, vol.Spacing).GenerateTriangles()
		if len(triangles) == 0 {
			continue
		}
		file := filepath.Join(dir, volume.LabelName(label)+".stl")
		if err := mesh.SaveToSTL(file, triangles); err != nil {
			return fmt.Errorf("failed to save %s: %w", file, err)
		}
	}
	return nil
}
