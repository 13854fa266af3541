package blockquant

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DType identifies the element encoding of a stored tensor entry.
type DType string

const (
	DTypeF32  DType = "F32"
	DTypeF16  DType = "F16"
	DTypeBF16 DType = "BF16"
	DTypeI8   DType = "INT8"
	DTypeI4   DType = "INT4"
)

// ScaleSuffix is appended to a tensor's name to form the synthetic store
// entry holding its per-block scale factors.
const ScaleSuffix = ".__scales__"

// Quantised reports whether the dtype is a packed code encoding.
func (d DType) Quantised() bool {
	return d == DTypeI4 || d == DTypeI8
}

// Bits returns the code width of a quantised dtype, or 0.
func (d DType) Bits() int {
	switch d {
	case DTypeI4:
		return 4
	case DTypeI8:
		return 8
	default:
		return 0
	}
}

// Tensor is a named float32 buffer with its logical shape. The engine works
// on the flattened buffer; Shape travels through untouched.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float32
}

func (t Tensor) NumElements() int { return len(t.Data) }

// SizeBytes is the buffer size in its float32 working representation.
func (t Tensor) SizeBytes() int { return len(t.Data) * 4 }

// Entry is one unit in a model store: raw bytes plus the dtype needed to
// interpret them.
type Entry struct {
	Name  string
	Shape []int
	DType DType
	Data  []byte
}

// QuantTensor is the result of quantising a single tensor: packed codes plus
// one scale per block.
type QuantTensor struct {
	Bits      int
	BlockSize int
	Shape     []int
	Scales    []float32
	Data      []byte
}

// NumElementsOf returns the element count implied by shape.
func NumElementsOf(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("blockquant: empty shape")
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("blockquant: invalid dim %d", d)
		}
		if n > (int(^uint(0)>>1))/d {
			return 0, fmt.Errorf("blockquant: tensor too large")
		}
		n *= d
	}
	return n, nil
}

// EncodeF32 serialises values as little-endian IEEE-754 singles.
func EncodeF32(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// DecodeF32 is the inverse of EncodeF32.
func DecodeF32(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("blockquant: f32 buffer length %d not a multiple of 4", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}
