package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/samcharles93/blockquant/pkg/blockquant"
)

// ErrUnsupportedDType marks an entry whose element type cannot be losslessly
// widened to float32.
var ErrUnsupportedDType = errors.New("store: unsupported dtype")

// Widen decodes an entry's raw little-endian bytes into the engine's
// float32 working type. F16 and BF16 widen losslessly; quantised dtypes do
// not belong here and are rejected.
func Widen(e blockquant.Entry) ([]float32, error) {
	switch e.DType {
	case blockquant.DTypeF32:
		out, err := blockquant.DecodeF32(e.Data)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", e.Name, err)
		}
		return out, nil
	case blockquant.DTypeF16:
		return widen16(e, f16ToF32)
	case blockquant.DTypeBF16:
		return widen16(e, bf16ToF32)
	default:
		return nil, fmt.Errorf("%w: cannot widen %s tensor %s to float32", ErrUnsupportedDType, e.DType, e.Name)
	}
}

func widen16(e blockquant.Entry, conv func(uint16) float32) ([]float32, error) {
	if len(e.Data)%2 != 0 {
		return nil, fmt.Errorf("store: tensor %s: odd buffer length %d for 16-bit dtype", e.Name, len(e.Data))
	}
	out := make([]float32, len(e.Data)/2)
	for i := range out {
		out[i] = conv(binary.LittleEndian.Uint16(e.Data[i*2:]))
	}
	return out, nil
}

// bf16ToF32 widens bfloat16 by restoring the truncated mantissa bits.
func bf16ToF32(u uint16) float32 {
	return math.Float32frombits(uint32(u) << 16)
}

// f16ToF32 widens IEEE-754 half precision, including subnormals, infinities
// and NaN payloads.
func f16ToF32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1F
	frac := uint32(h & 0x3FF)
	var bits uint32
	switch exp {
	case 0:
		if frac == 0 {
			bits = sign << 31
		} else {
			e := uint32(127 - 15 + 1)
			for frac&0x400 == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x3FF
			bits = sign<<31 | e<<23 | frac<<13
		}
	case 0x1F:
		bits = sign<<31 | 0x7F800000 | frac<<13
	default:
		bits = sign<<31 | (exp+127-15)<<23 | frac<<13
	}
	return math.Float32frombits(bits)
}
