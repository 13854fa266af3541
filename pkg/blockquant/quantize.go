package blockquant

import "math"

// Quantise converts one tensor into a packed code stream with per-block
// scales. Pad codes from the zero-padded tail block are trimmed before
// packing, so Data covers exactly NumElements codes (plus one zero code
// when a 4-bit stream has odd length).
func Quantise(t Tensor, cfg Config) (QuantTensor, error) {
	if err := cfg.Validate(); err != nil {
		return QuantTensor{}, err
	}
	blocks, err := Partition(t.Data, cfg.BlockSize)
	if err != nil {
		return QuantTensor{}, err
	}

	scales := make([]float32, len(blocks))
	codes := make([]int8, len(blocks)*cfg.BlockSize)
	for i, b := range blocks {
		s := BlockScale(b, cfg.Bits)
		scales[i] = s
		quantiseBlock(codes[i*cfg.BlockSize:(i+1)*cfg.BlockSize], b, s, cfg)
	}
	codes = codes[:len(t.Data)]

	data, err := Pack(codes, cfg.Bits)
	if err != nil {
		return QuantTensor{}, err
	}
	return QuantTensor{
		Bits:      cfg.Bits,
		BlockSize: cfg.BlockSize,
		Shape:     t.Shape,
		Scales:    scales,
		Data:      data,
	}, nil
}

// quantiseBlock writes round(x/scale) clipped to [levelMin, levelMax] into
// dst. Rounding is ties away from zero (math.Round). Clipping stays even
// though the scale already bounds the quotient: float rounding at the
// boundary can land one step outside the code range.
func quantiseBlock(dst []int8, block []float32, scale float32, cfg Config) {
	lo, hi := cfg.levelMin(), cfg.levelMax()
	for i, v := range block {
		q := int32(math.Round(float64(v / scale)))
		if q < lo {
			q = lo
		}
		if q > hi {
			q = hi
		}
		dst[i] = int8(q)
	}
}
