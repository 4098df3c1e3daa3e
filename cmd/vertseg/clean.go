package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/cleaning"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/nifti"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/report"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/volume"
)

const combinedLabelsFile = "combined_labels.nii.gz"

var cleanCmd = &cobra.Command{
	Use:   "clean <patient-dir> [<patient-dir>...]",
	Short: "Post-process patient segmentation volumes",
	Long: `Clean runs the per-vertebra cleanup pipeline over each patient
directory and writes a post-processed mirror next to it.

A patient directory is expected to contain combined_labels.nii.gz (the
multi-label volume) and optionally a segmentations/ subdirectory with one
binary mask file per vertebra. The cleaned copies land in
<patient-dir><cleanedSuffix> with the same file layout, plus a
cleaning_report.json with the per-label voxel accounting.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
	pipeline, err := cfg.Pipeline()
	if err != nil {
		return err
	}
	orch := cleaning.NewOrchestrator(pipeline, cfg.Cleaning.Workers, logger)

	var failed []string
	for _, dir := range args {
		if err := cleanPatient(cmd, orch, filepath.Clean(dir)); err != nil {
			logger.Error("patient failed", zap.String("patient", dir), zap.Error(err))
			failed = append(failed, dir)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d patients failed: %s",
			len(failed), len(args), strings.Join(failed, ", "))
	}
	return nil
}

// cleanPatient processes one patient directory into its post-processed
// mirror.
func cleanPatient(cmd *cobra.Command, orch *cleaning.Orchestrator, dir string) error {
	patient := filepath.Base(dir)
	outDir := dir + cfg.Output.CleanedSuffix
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	combined := filepath.Join(dir, combinedLabelsFile)
	vol, err := nifti.Load(combined)
	if err != nil {
		return fmt.Errorf("failed to load combined volume: %w", err)
	}

	cleaned, result, err := orch.CleanVolume(vol)
	if err != nil {
		return err
	}
	if err := nifti.Save(filepath.Join(outDir, combinedLabelsFile), cleaned); err != nil {
		return fmt.Errorf("failed to save cleaned volume: %w", err)
	}

	if err := cleanSegmentations(orch, dir, outDir); err != nil {
		return err
	}

	rep := report.NewCleaningReport(patient, result)
	if err := report.WriteJSON(filepath.Join(outDir, "cleaning_report.json"), rep); err != nil {
		return fmt.Errorf("failed to write cleaning report: %w", err)
	}

	printCleanSummary(cmd, patient, result)
	return nil
}

// cleanSegmentations mirrors the per-vertebra mask files, running the
// pipeline on each one individually. A missing segmentations/ directory is
// not an error; not every dataset ships the split masks.
func cleanSegmentations(orch *cleaning.Orchestrator, dir, outDir string) error {
	segDir := filepath.Join(dir, "segmentations")
	entries, err := os.ReadDir(segDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read segmentations directory: %w", err)
	}

	outSegDir := filepath.Join(outDir, "segmentations")
	if err := os.MkdirAll(outSegDir, 0755); err != nil {
		return fmt.Errorf("failed to create output segmentations directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.Contains(name, ".nii") {
			continue
		}
		vol, err := nifti.Load(filepath.Join(segDir, name))
		if err != nil {
			return fmt.Errorf("failed to load segmentation %s: %w", name, err)
		}

		// Single-mask files store one vertebra; keep whatever code the
		// foreground voxels carried (some datasets store 1, some store
		// the anatomical label).
		code := uint8(1)
		if labels := vol.UniqueLabels(); len(labels) > 0 {
			code = labels[0]
		}

		cleanedMask, _ := orch.CleanMask(vol.ForegroundMask())
		out := volume.NewLabelVolume(vol.Width, vol.Height, vol.Depth, vol.Spacing)
		out.Geometry = vol.Geometry
		for i, v := range cleanedMask.Data {
			if v != 0 {
				out.Data[i] = code
			}
		}
		if err := nifti.Save(filepath.Join(outSegDir, name), out); err != nil {
			return fmt.Errorf("failed to save segmentation %s: %w", name, err)
		}
	}
	return nil
}

// printCleanSummary writes the per-patient voxel accounting table to the
// command's stdout.
func printCleanSummary(cmd *cobra.Command, patient string, result *cleaning.Result) {
	cmd.Printf("\n%s\n", patient)

	var before, after int64
	for _, label := range volume.SortedLabels(result.Stats) {
		s := result.Stats[label]
		before += int64(s.OriginalVolume)
		after += int64(s.FinalVolume)
		cmd.Printf("  %-4s %10s -> %10s voxels (%+d, %d components)\n",
			volume.LabelName(label),
			humanize.Comma(int64(s.OriginalVolume)),
			humanize.Comma(int64(s.FinalVolume)),
			s.VolumeChange,
			s.NumComponents,
		)
	}
	cmd.Printf("  total %s -> %s voxels\n", humanize.Comma(before), humanize.Comma(after))

	if result.OverlapVoxels > 0 {
		cmd.Printf("  warning: %s overlapping voxels resolved last-writer-wins\n",
			humanize.Comma(int64(result.OverlapVoxels)))
	}
	if len(result.Failures) > 0 {
		sort.Slice(result.Failures, func(i, j int) bool {
			return result.Failures[i].Label < result.Failures[j].Label
		})
		for _, f := range result.Failures {
			cmd.Printf("  failed: %s (label %d): %s\n", f.Name, f.Label, f.Err)
		}
	}
}
