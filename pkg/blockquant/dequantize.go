package blockquant

import (
	"fmt"
	"strings"
)

// Dequantise reconstructs approximate float32 values from a quantised
// tensor: value = code * scale(block). Each element differs from its
// clipped source by at most scale/2 (the rounding error).
func Dequantise(q QuantTensor) ([]float32, error) {
	if q.Bits != 4 && q.Bits != 8 {
		return nil, ErrInvalidBits
	}
	if q.BlockSize < 1 {
		return nil, ErrInvalidBlockSize
	}
	n, err := NumElementsOf(q.Shape)
	if err != nil {
		return nil, err
	}
	if want := NumBlocks(n, q.BlockSize); len(q.Scales) != want {
		return nil, fmt.Errorf("blockquant: got %d scales, want %d for %d elements at block size %d",
			len(q.Scales), want, n, q.BlockSize)
	}
	codes, err := Unpack(q.Data, q.Bits, n)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i, c := range codes {
		out[i] = float32(c) * q.Scales[i/q.BlockSize]
	}
	return out, nil
}

// ReconstructEntries inverts QuantiseModel's output set: packed entries are
// dequantised against their sibling scale entries, kept float32 entries
// decode as-is. Scale entries themselves do not appear in the result.
func ReconstructEntries(entries []Entry, blockSize int) ([]Tensor, error) {
	byName := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}

	out := make([]Tensor, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name, ScaleSuffix) {
			continue
		}
		switch {
		case e.DType.Quantised():
			sc, ok := byName[e.Name+ScaleSuffix]
			if !ok {
				return nil, fmt.Errorf("blockquant: missing scales for %s", e.Name)
			}
			scales, err := DecodeF32(sc.Data)
			if err != nil {
				return nil, fmt.Errorf("decode scales for %s: %w", e.Name, err)
			}
			data, err := Dequantise(QuantTensor{
				Bits:      e.DType.Bits(),
				BlockSize: blockSize,
				Shape:     e.Shape,
				Scales:    scales,
				Data:      e.Data,
			})
			if err != nil {
				return nil, fmt.Errorf("dequantise %s: %w", e.Name, err)
			}
			out = append(out, Tensor{Name: e.Name, Shape: e.Shape, Data: data})
		case e.DType == DTypeF32:
			data, err := DecodeF32(e.Data)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", e.Name, err)
			}
			out = append(out, Tensor{Name: e.Name, Shape: e.Shape, Data: data})
		default:
			return nil, fmt.Errorf("blockquant: cannot reconstruct %s entry %s", e.DType, e.Name)
		}
	}
	return out, nil
}
