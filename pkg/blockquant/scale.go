package blockquant

import "math"

// BlockScale computes the scale for one block: maxAbs / levelMax, or the
// 1.0 sentinel for an all-zero block so that division is always defined.
// The result is single precision regardless of the source buffer precision.
func BlockScale(block []float32, bits int) float32 {
	levelMax := float32(int32(1)<<(bits-1) - 1)
	var maxAbs float32
	for _, v := range block {
		if a := float32(math.Abs(float64(v))); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs > 0 {
		return maxAbs / levelMax
	}
	return 1.0
}
