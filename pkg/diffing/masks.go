package diffing

import "github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/volume"

// RemovedMask returns the voxels carrying the label in raw but not in
// cleaned. These are the voxels the cleanup discarded.
func RemovedMask(raw, cleaned *volume.LabelVolume, label uint8) *volume.BinaryMask {
	mask := volume.NewBinaryMask(raw.Width, raw.Height, raw.Depth)
	for i, rv := range raw.Data {
		if rv == label && cleaned.Data[i] != label {
			mask.Data[i] = 1
		}
	}
	return mask
}

// AddedMask returns the voxels carrying the label in cleaned but not in
// raw. These are the voxels the cleanup introduced (hole filling, closing
// or smoothing growth).
func AddedMask(raw, cleaned *volume.LabelVolume, label uint8) *volume.BinaryMask {
	mask := volume.NewBinaryMask(raw.Width, raw.Height, raw.Depth)
	for i, cv := range cleaned.Data {
		if cv == label && raw.Data[i] != label {
			mask.Data[i] = 1
		}
	}
	return mask
}
