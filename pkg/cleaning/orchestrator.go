package cleaning

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/volume"
)

// LabelFailure records a label whose pipeline run failed. Failures are
// isolated: one label's failure never aborts or corrupts the processing of
// the remaining labels.
type LabelFailure struct {
	Label uint8  `json:"label"`
	Name  string `json:"name"`
	Err   string `json:"error"`
}

// Result aggregates the outcome of cleaning one multi-label volume.
type Result struct {
	// Stats holds the per-label cleanup accounting, keyed by label code.
	// Labels whose input mask was entirely empty get a zero-valued entry.
	Stats map[uint8]Stats

	// Failures lists labels whose pipeline run failed, in ascending
	// label order.
	Failures []LabelFailure

	// OverlapVoxels counts output voxels claimed by more than one label's
	// cleaned mask. Overlaps are resolved last-writer-wins in ascending
	// label order and surfaced here rather than silently dropped.
	OverlapVoxels int
}

// Orchestrator runs the cleaning pipeline over every non-background label
// of a volume and recomposes a single cleaned multi-label volume.
//
// Per-label runs have no data dependency on each other, so they execute on
// a bounded pool of workers, each owning its own mask buffers. The cleaned
// masks are folded into the zero-initialized output volume sequentially in
// ascending label order after the compute phase, which keeps the merge
// lock-free and the write-back order deterministic.
type Orchestrator struct {
	pipeline processor
	workers  int
	logger   *zap.Logger
}

// processor runs the per-mask cleanup. Pipeline is the only production
// implementation.
type processor interface {
	Process(mask *volume.BinaryMask) (*volume.BinaryMask, Stats)
}

// NewOrchestrator creates an orchestrator running the given pipeline on up
// to workers goroutines. A non-positive worker count uses all CPUs. A nil
// logger disables logging.
func NewOrchestrator(pipeline *Pipeline, workers int, logger *zap.Logger) *Orchestrator {
	if pipeline == nil {
		pipeline = NewPipeline()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{pipeline: pipeline, workers: workers, logger: logger}
}

// labelResult carries one label's outcome from a worker to the merge.
type labelResult struct {
	label uint8
	mask  *volume.BinaryMask
	stats Stats
	err   error
}

// CleanVolume cleans every non-background label of the volume and returns
// the recomposed cleaned volume together with the per-label result. The
// input volume is not modified; the output volume carries the input's
// spacing and geometry token unchanged.
func (o *Orchestrator) CleanVolume(vol *volume.LabelVolume) (*volume.LabelVolume, *Result, error) {
	if err := vol.Validate(); err != nil {
		return nil, nil, err
	}

	labels := vol.UniqueLabels()
	o.logger.Info("cleaning volume",
		zap.Int("width", vol.Width),
		zap.Int("height", vol.Height),
		zap.Int("depth", vol.Depth),
		zap.Int("labels", len(labels)),
		zap.Int("workers", o.workers),
	)

	result := &Result{Stats: make(map[uint8]Stats, len(labels))}
	out := volume.NewLabelVolume(vol.Width, vol.Height, vol.Depth, vol.Spacing)
	if vol.Geometry != nil {
		out.Geometry = make([]byte, len(vol.Geometry))
		copy(out.Geometry, vol.Geometry)
	}
	if len(labels) == 0 {
		return out, result, nil
	}

	// Compute phase: per-label pipeline runs on a bounded worker pool.
	jobs := make(chan uint8)
	results := make(chan labelResult, len(labels))

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for label := range jobs {
				results <- o.cleanLabel(vol, label)
			}
		}()
	}

	go func() {
		for _, label := range labels {
			jobs <- label
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	cleaned := make(map[uint8]*volume.BinaryMask, len(labels))
	for res := range results {
		if res.err != nil {
			o.logger.Error("label pipeline failed",
				zap.Uint8("label", res.label),
				zap.String("name", volume.LabelName(res.label)),
				zap.Error(res.err),
			)
			result.Failures = append(result.Failures, LabelFailure{
				Label: res.label,
				Name:  volume.LabelName(res.label),
				Err:   res.err.Error(),
			})
			continue
		}
		cleaned[res.label] = res.mask
		result.Stats[res.label] = res.stats
	}
	sortFailures(result.Failures)

	// Merge phase: fold cleaned masks into the output volume in ascending
	// label order. A voxel already claimed by a lower label is counted as
	// an overlap and overwritten (last writer wins).
	for _, label := range labels {
		mask, ok := cleaned[label]
		if !ok {
			continue
		}
		for i, v := range mask.Data {
			if v == 0 {
				continue
			}
			if out.Data[i] != 0 {
				result.OverlapVoxels++
			}
			out.Data[i] = label
		}
	}
	if result.OverlapVoxels > 0 {
		o.logger.Warn("cleaned masks overlap; later labels overwrote earlier ones",
			zap.Int("voxels", result.OverlapVoxels))
	}

	return out, result, nil
}

// cleanLabel runs the pipeline for one label, converting panics into
// per-label failures so a defect in one label's data cannot take down the
// whole volume.
func (o *Orchestrator) cleanLabel(vol *volume.LabelVolume, label uint8) (res labelResult) {
	res.label = label
	defer func() {
		if r := recover(); r != nil {
			res.mask = nil
			res.err = fmt.Errorf("pipeline panic on label %d (%s): %v",
				label, volume.LabelName(label), r)
		}
	}()

	mask := vol.ExtractMask(label)
	if mask.Empty() {
		// Degenerate: nothing to clean. Recorded as a zero-valued stats
		// entry so the report still covers the label.
		res.mask = mask
		return res
	}

	cleanedMask, stats := o.pipeline.Process(mask)
	o.logger.Debug("label cleaned",
		zap.Uint8("label", label),
		zap.String("name", volume.LabelName(label)),
		zap.Int("original_volume", stats.OriginalVolume),
		zap.Int("final_volume", stats.FinalVolume),
		zap.Int("components", stats.NumComponents),
	)
	res.mask = cleanedMask
	res.stats = stats
	return res
}

// CleanMask runs the orchestrator's pipeline on a single standalone binary
// mask, as used for the per-vertebra segmentation files that accompany the
// combined volume.
func (o *Orchestrator) CleanMask(mask *volume.BinaryMask) (*volume.BinaryMask, Stats) {
	return o.pipeline.Process(mask)
}

func sortFailures(failures []LabelFailure) {
	sort.Slice(failures, func(i, j int) bool { return failures[i].Label < failures[j].Label })
}
