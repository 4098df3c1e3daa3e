// Package diffing computes label-wise voxel differences between a raw and
// a cleaned segmentation volume of identical geometry, together with the
// conservation identity that validates the computation.
package diffing

import (
	"fmt"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/volume"
)

// ShapeMismatchError reports two volumes whose dimensions differ. The
// comparison is fatal and not retried.
type ShapeMismatchError struct {
	RawWidth, RawHeight, RawDepth             int
	CleanedWidth, CleanedHeight, CleanedDepth int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("volume shape mismatch: raw %dx%dx%d vs cleaned %dx%dx%d",
		e.RawWidth, e.RawHeight, e.RawDepth,
		e.CleanedWidth, e.CleanedHeight, e.CleanedDepth)
}

// ConservationError reports a difference report whose totals violate
// raw - removed + added == cleaned. The identity holds for any correct
// labeling, so a violation indicates a defect in mask or label indexing
// and must be surfaced, never silently corrected.
type ConservationError struct {
	RawTotal, CleanedTotal, RemovedTotal, AddedTotal int
}

func (e *ConservationError) Error() string {
	return fmt.Sprintf("conservation violation: raw %d - removed %d + added %d = %d, expected cleaned %d",
		e.RawTotal, e.RemovedTotal, e.AddedTotal,
		e.RawTotal-e.RemovedTotal+e.AddedTotal, e.CleanedTotal)
}

// LabelDiff is the voxel accounting of one label across the two volumes.
type LabelDiff struct {
	Label uint8  `json:"label"`
	Name  string `json:"name"`

	// RawVoxels and CleanedVoxels are the label's voxel counts in each
	// volume.
	RawVoxels     int `json:"raw_voxels"`
	CleanedVoxels int `json:"cleaned_voxels"`

	// RemovedVoxels counts voxels present in raw but absent in cleaned;
	// AddedVoxels counts voxels absent in raw but present in cleaned.
	RemovedVoxels int `json:"removed_voxels"`
	AddedVoxels   int `json:"added_voxels"`

	// PercentChange is (cleaned - raw) / raw * 100, or 0 when the label
	// has no raw voxels.
	PercentChange float64 `json:"percent_change"`
}

// Report is the aggregate difference between two label volumes.
type Report struct {
	// Labels lists the per-label records in ascending label order.
	Labels []LabelDiff `json:"labels"`

	TotalRaw     int `json:"total_raw"`
	TotalCleaned int `json:"total_cleaned"`
	TotalRemoved int `json:"total_removed"`
	TotalAdded   int `json:"total_added"`

	// MeanPercentChange and MaxAbsPercentChange summarize the per-label
	// percentage changes across labels with raw voxels.
	MeanPercentChange   float64 `json:"mean_percent_change"`
	MaxAbsPercentChange float64 `json:"max_abs_percent_change"`
}

// Engine computes difference reports. Per-label computations are
// independent and run on a bounded worker pool, mirroring the cleaning
// orchestrator.
type Engine struct {
	workers int

	// FixedLabelOrder reports over the full known anatomical label set
	// instead of only the labels present in either volume, giving
	// downstream tables a stable row set.
	FixedLabelOrder bool
}

// NewEngine creates a difference engine with up to workers goroutines.
// A non-positive count uses all CPUs.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{workers: workers}
}

// Compute builds the difference report between a raw and a cleaned volume.
// The volumes must have identical shape; otherwise a ShapeMismatchError is
// returned. The report is returned even when the conservation identity
// fails, together with a ConservationError, so callers can both inspect
// and loudly report the inconsistency.
func (e *Engine) Compute(raw, cleaned *volume.LabelVolume) (*Report, error) {
	if !raw.SameShape(cleaned) {
		return nil, &ShapeMismatchError{
			RawWidth: raw.Width, RawHeight: raw.Height, RawDepth: raw.Depth,
			CleanedWidth: cleaned.Width, CleanedHeight: cleaned.Height, CleanedDepth: cleaned.Depth,
		}
	}

	labels := e.reportLabels(raw, cleaned)
	report := &Report{Labels: make([]LabelDiff, len(labels))}
	if len(labels) == 0 {
		return report, nil
	}

	// Per-label voxel accounting on a worker pool. Each worker scans the
	// two volumes for its label only; no shared mutable state.
	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				report.Labels[idx] = diffLabel(raw, cleaned, labels[idx])
			}
		}()
	}
	for idx := range labels {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	var changes []float64
	for _, d := range report.Labels {
		report.TotalRaw += d.RawVoxels
		report.TotalCleaned += d.CleanedVoxels
		report.TotalRemoved += d.RemovedVoxels
		report.TotalAdded += d.AddedVoxels
		if d.RawVoxels > 0 {
			changes = append(changes, d.PercentChange)
			if abs := positive(d.PercentChange); abs > report.MaxAbsPercentChange {
				report.MaxAbsPercentChange = abs
			}
		}
	}
	if len(changes) > 0 {
		report.MeanPercentChange = stat.Mean(changes, nil)
	}

	if err := report.checkConservation(); err != nil {
		return report, err
	}
	return report, nil
}

// diffLabel computes one label's record with a single linear pass over the
// two volumes.
func diffLabel(raw, cleaned *volume.LabelVolume, label uint8) LabelDiff {
	d := LabelDiff{Label: label, Name: volume.LabelName(label)}
	for i, rv := range raw.Data {
		cv := cleaned.Data[i]
		inRaw := rv == label
		inCleaned := cv == label
		if inRaw {
			d.RawVoxels++
			if !inCleaned {
				d.RemovedVoxels++
			}
		}
		if inCleaned {
			d.CleanedVoxels++
			if !inRaw {
				d.AddedVoxels++
			}
		}
	}
	if d.RawVoxels > 0 {
		d.PercentChange = float64(d.CleanedVoxels-d.RawVoxels) / float64(d.RawVoxels) * 100
	}
	return d
}

// reportLabels selects the label set to report: the union of labels present
// in either volume, or the fixed known set when FixedLabelOrder is set.
// Either way the order is ascending.
func (e *Engine) reportLabels(raw, cleaned *volume.LabelVolume) []uint8 {
	if e.FixedLabelOrder {
		return volume.KnownLabels()
	}
	seen := make(map[uint8]struct{})
	for _, l := range raw.UniqueLabels() {
		seen[l] = struct{}{}
	}
	for _, l := range cleaned.UniqueLabels() {
		seen[l] = struct{}{}
	}
	return volume.SortedLabels(seen)
}

// checkConservation asserts raw - removed + added == cleaned over the
// aggregate totals.
func (r *Report) checkConservation() error {
	if r.TotalRaw-r.TotalRemoved+r.TotalAdded != r.TotalCleaned {
		return &ConservationError{
			RawTotal:     r.TotalRaw,
			CleanedTotal: r.TotalCleaned,
			RemovedTotal: r.TotalRemoved,
			AddedTotal:   r.TotalAdded,
		}
	}
	return nil
}

func positive(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
