package allocation

import "github.com/hupe1980/voxfuse/model"

const (
	claimNone    uint64 = 0
	claimPrimary uint64 = 1 << 48
	claimExcess  uint64 = 2 << 48
	claimMask    uint64 = 3 << 48
	coordMask    uint64 = 1<<48 - 1
)

func packCoord(c model.BlockCoord) uint64 {
	return uint64(uint16(c.X)) | uint64(uint16(c.Y))<<16 | uint64(uint16(c.Z))<<32
}

func unpackCoord(w uint64) model.BlockCoord {
	return model.BlockCoord{
		X: int16(uint16(w)),
		Y: int16(uint16(w >> 16)),
		Z: int16(uint16(w >> 32)),
	}
}

func claimState(w uint64) uint64 {
	return w & claimMask
}
