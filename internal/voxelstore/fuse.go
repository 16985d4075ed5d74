package voxelstore

import (
	"github.com/chewxy/math32"

	"github.com/hupe1980/voxfuse/model"
)

// FuseDepth merges one normalized distance sample f with weight 1 into v:
//
//	F' = (F*W + f) / (W + 1)
//	W' = min(W + 1, maxWeight)
//
// With stopAtMax set, a voxel that reached maxWeight is left untouched.
// Reports whether v changed.
func FuseDepth(v *model.Voxel, f float32, maxWeight uint16, stopAtMax bool) bool {
	w := uint32(v.Weight)
	if w >= uint32(maxWeight) && stopAtMax {
		return false
	}
	v.SDF = (v.SDF*float32(w) + f) / float32(w+1)
	v.Weight = capWeight(w+1, maxWeight)
	return true
}

// FuseColor merges one colour sample (channels in [0, 255]) into v using the
// same rule on ColorWeight.
func FuseColor(v *model.Voxel, rgb [3]float32, maxWeight uint16, stopAtMax bool) bool {
	w := uint32(v.ColorWeight)
	if w >= uint32(maxWeight) && stopAtMax {
		return false
	}
	fw := float32(w)
	for i := range v.Color {
		c := (float32(v.Color[i])*fw + rgb[i]) / (fw + 1)
		v.Color[i] = uint8(math32.Min(math32.Max(math32.Floor(c+0.5), 0), 255))
	}
	v.ColorWeight = capWeight(w+1, maxWeight)
	return true
}

func capWeight(w uint32, maxWeight uint16) uint16 {
	if w > uint32(maxWeight) {
		return maxWeight
	}
	return uint16(w)
}
