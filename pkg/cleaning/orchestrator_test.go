package cleaning

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/volume"
)

// fillVolumeBlock assigns a label to every voxel of an axis-aligned block.
func fillVolumeBlock(vol *volume.LabelVolume, label uint8, x0, x1, y0, y1, z0, z1 int) {
	for z := z0; z <= z1; z++ {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				vol.Data[vol.Index(x, y, z)] = label
			}
		}
	}
}

// twoVertebraVolume builds a volume with two well-separated solid labels
// plus one noise voxel per label.
func twoVertebraVolume() *volume.LabelVolume {
	vol := volume.NewLabelVolume(30, 16, 16, volume.Spacing{X: 1, Y: 1, Z: 1})
	fillVolumeBlock(vol, 1, 2, 10, 3, 11, 3, 11)
	fillVolumeBlock(vol, 2, 16, 24, 3, 11, 3, 11)
	vol.Data[vol.Index(13, 2, 2)] = 1
	vol.Data[vol.Index(28, 13, 13)] = 2
	return vol
}

// TestCleanVolumeMultiLabel verifies per-label cleanup, stats accounting
// and recomposition of a two-label volume
func TestCleanVolumeMultiLabel(t *testing.T) {
	vol := twoVertebraVolume()
	orch := NewOrchestrator(NewPipeline(), 4, nil)

	cleaned, result, err := orch.CleanVolume(vol)
	if err != nil {
		t.Fatalf("CleanVolume returned error: %v", err)
	}

	if len(result.Stats) != 2 {
		t.Fatalf("Expected stats for 2 labels, got %d", len(result.Stats))
	}
	if len(result.Failures) != 0 {
		t.Fatalf("Expected no failures, got %v", result.Failures)
	}
	for _, label := range []uint8{1, 2} {
		stats := result.Stats[label]
		if stats.NumComponents != 1 {
			t.Errorf("Expected label %d to end with 1 component, got %d", label, stats.NumComponents)
		}
		if stats.FinalVolume != cleaned.VoxelCount(label) {
			t.Errorf("Label %d stats report %d voxels but the volume has %d",
				label, stats.FinalVolume, cleaned.VoxelCount(label))
		}
	}

	if cleaned.Data[cleaned.Index(13, 2, 2)] != 0 {
		t.Error("Expected label 1 noise voxel to be removed")
	}
	if cleaned.Data[cleaned.Index(28, 13, 13)] != 0 {
		t.Error("Expected label 2 noise voxel to be removed")
	}
	if cleaned.Data[cleaned.Index(6, 7, 7)] != 1 {
		t.Error("Expected label 1 body to survive")
	}
	if cleaned.Data[cleaned.Index(20, 7, 7)] != 2 {
		t.Error("Expected label 2 body to survive")
	}
}

// TestCleanVolumeOverlapResolution verifies that a voxel claimed by two
// labels' cleaned masks is counted and resolved last-writer-wins in
// ascending label order: the hole-fill of an enclosing label claims the
// region a nested label also occupies
func TestCleanVolumeOverlapResolution(t *testing.T) {
	vol := volume.NewLabelVolume(15, 15, 15, volume.Spacing{X: 1, Y: 1, Z: 1})
	// Label 1 is a thick shell around a 5x5x5 cavity; hole filling claims
	// the cavity for label 1.
	fillVolumeBlock(vol, 1, 2, 12, 2, 12, 2, 12)
	// Label 2 fills the cavity, and survives cleanup on its own.
	fillVolumeBlock(vol, 2, 5, 9, 5, 9, 5, 9)

	orch := NewOrchestrator(NewPipeline(), 2, nil)
	cleaned, result, err := orch.CleanVolume(vol)
	if err != nil {
		t.Fatalf("CleanVolume returned error: %v", err)
	}

	if result.OverlapVoxels == 0 {
		t.Fatal("Expected overlapping cleaned masks to be counted")
	}
	if result.OverlapVoxels != result.Stats[2].FinalVolume {
		t.Errorf("Expected every label 2 voxel to overlap label 1: %d overlaps vs %d voxels",
			result.OverlapVoxels, result.Stats[2].FinalVolume)
	}
	// Ascending merge order means label 2 overwrote label 1 in the cavity.
	if cleaned.Data[cleaned.Index(7, 7, 7)] != 2 {
		t.Errorf("Expected cavity center to carry label 2, got %d",
			cleaned.Data[cleaned.Index(7, 7, 7)])
	}
	if cleaned.Data[cleaned.Index(3, 3, 3)] != 1 {
		t.Errorf("Expected shell to carry label 1, got %d",
			cleaned.Data[cleaned.Index(3, 3, 3)])
	}
}

// panicOnVoxels wraps the default pipeline and panics on masks with a
// specific voxel count, standing in for a defect in one label's data.
type panicOnVoxels struct {
	inner  *Pipeline
	voxels int
}

func (p panicOnVoxels) Process(mask *volume.BinaryMask) (*volume.BinaryMask, Stats) {
	if mask.Sum() == p.voxels {
		panic("corrupt mask buffer")
	}
	return p.inner.Process(mask)
}

// TestCleanVolumeIsolatesLabelFailure verifies that a panic in one label's
// pipeline run is caught and recorded as a failure while the remaining
// labels still clean through to the output
func TestCleanVolumeIsolatesLabelFailure(t *testing.T) {
	vol := volume.NewLabelVolume(30, 16, 16, volume.Spacing{X: 1, Y: 1, Z: 1})
	fillVolumeBlock(vol, 3, 2, 10, 3, 11, 3, 11)
	fillVolumeBlock(vol, 7, 16, 22, 4, 10, 4, 10)

	orch := &Orchestrator{
		pipeline: panicOnVoxels{inner: NewPipeline(), voxels: vol.VoxelCount(7)},
		workers:  2,
		logger:   zap.NewNop(),
	}

	cleaned, result, err := orch.CleanVolume(vol)
	if err != nil {
		t.Fatalf("CleanVolume returned error: %v", err)
	}

	if len(result.Failures) != 1 {
		t.Fatalf("Expected 1 failure, got %v", result.Failures)
	}
	failure := result.Failures[0]
	if failure.Label != 7 {
		t.Errorf("Expected the failure recorded under label 7, got %d", failure.Label)
	}
	if failure.Name != volume.LabelName(7) {
		t.Errorf("Expected failure name %q, got %q", volume.LabelName(7), failure.Name)
	}
	if !strings.Contains(failure.Err, "label 7") {
		t.Errorf("Expected the failure to name the label, got %q", failure.Err)
	}

	if _, ok := result.Stats[7]; ok {
		t.Error("Expected no stats entry for the failed label")
	}
	stats, ok := result.Stats[3]
	if !ok {
		t.Fatal("Expected stats for the healthy label")
	}
	if stats.NumComponents != 1 {
		t.Errorf("Expected the healthy label to end with 1 component, got %d", stats.NumComponents)
	}
	if cleaned.Data[cleaned.Index(6, 7, 7)] != 3 {
		t.Error("Expected the healthy label's body to survive")
	}
	if cleaned.VoxelCount(7) != 0 {
		t.Errorf("Expected no output voxels for the failed label, got %d", cleaned.VoxelCount(7))
	}
}

// TestCleanVolumeDeterministic verifies that two runs over the same volume
// produce bit-identical output regardless of worker scheduling
func TestCleanVolumeDeterministic(t *testing.T) {
	orch := NewOrchestrator(NewPipeline(), 8, nil)

	first, _, err := orch.CleanVolume(twoVertebraVolume())
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := orch.CleanVolume(twoVertebraVolume())
	if err != nil {
		t.Fatal(err)
	}

	for i := range first.Data {
		if first.Data[i] != second.Data[i] {
			t.Fatalf("Output differs at voxel %d: %d vs %d", i, first.Data[i], second.Data[i])
		}
	}
}

// TestCleanVolumePreservesGeometry verifies the input's spacing and
// geometry token are carried to the output bit-identical
func TestCleanVolumePreservesGeometry(t *testing.T) {
	vol := twoVertebraVolume()
	vol.Spacing = volume.Spacing{X: 0.5, Y: 0.5, Z: 1.25}
	vol.Geometry = []byte{0x01, 0x02, 0x03, 0x04}

	orch := NewOrchestrator(nil, 0, nil)
	cleaned, _, err := orch.CleanVolume(vol)
	if err != nil {
		t.Fatal(err)
	}

	if cleaned.Spacing != vol.Spacing {
		t.Errorf("Expected spacing %v, got %v", vol.Spacing, cleaned.Spacing)
	}
	if len(cleaned.Geometry) != len(vol.Geometry) {
		t.Fatalf("Expected geometry token of %d bytes, got %d", len(vol.Geometry), len(cleaned.Geometry))
	}
	for i := range vol.Geometry {
		if cleaned.Geometry[i] != vol.Geometry[i] {
			t.Fatalf("Geometry token differs at byte %d", i)
		}
	}
	// The token must be a copy, not an alias of the input's.
	cleaned.Geometry[0] = 0xFF
	if vol.Geometry[0] == 0xFF {
		t.Error("Expected the output geometry token to be an independent copy")
	}
}

// TestCleanVolumeNoLabels verifies an all-background volume yields an
// all-background output and an empty result
func TestCleanVolumeNoLabels(t *testing.T) {
	vol := volume.NewLabelVolume(8, 8, 8, volume.Spacing{X: 1, Y: 1, Z: 1})
	orch := NewOrchestrator(NewPipeline(), 2, nil)

	cleaned, result, err := orch.CleanVolume(vol)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Stats) != 0 || len(result.Failures) != 0 {
		t.Errorf("Expected empty result, got %+v", result)
	}
	for i, v := range cleaned.Data {
		if v != 0 {
			t.Fatalf("Expected background at voxel %d, got %d", i, v)
		}
	}
}

// TestCleanMask verifies the standalone single-mask entry point matches
// the pipeline's behavior
func TestCleanMask(t *testing.T) {
	mask := volume.NewBinaryMask(16, 16, 16)
	for z := 3; z <= 11; z++ {
		for y := 3; y <= 11; y++ {
			for x := 3; x <= 11; x++ {
				mask.Data[mask.Index(x, y, z)] = 1
			}
		}
	}
	mask.Data[mask.Index(14, 14, 14)] = 1

	orch := NewOrchestrator(NewPipeline(), 1, nil)
	cleaned, stats := orch.CleanMask(mask)

	if cleaned.Data[cleaned.Index(14, 14, 14)] != 0 {
		t.Error("Expected noise voxel to be removed")
	}
	if stats.NumComponents != 1 {
		t.Errorf("Expected 1 component, got %d", stats.NumComponents)
	}
	if stats.FinalVolume != cleaned.Sum() {
		t.Errorf("Stats final volume %d disagrees with mask sum %d", stats.FinalVolume, cleaned.Sum())
	}
}
