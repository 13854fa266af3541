package blockquant

import "fmt"

// Pack serialises signed codes at the given bit width.
//
// 8-bit codes map one per byte as two's complement. 4-bit codes are packed
// two per byte with the first code in the high nibble; an odd-length stream
// gets one zero code appended. Codes are masked to their low 4 bits here and
// sign-extended in Unpack. The asymmetry is load-bearing: replacing either
// side with a plain int8 cast corrupts negative codes on round-trip.
func Pack(codes []int8, bits int) ([]byte, error) {
	switch bits {
	case 8:
		out := make([]byte, len(codes))
		for i, c := range codes {
			out[i] = byte(c)
		}
		return out, nil
	case 4:
		n := len(codes)
		out := make([]byte, (n+1)/2)
		for i := 0; i < n; i += 2 {
			hi := byte(codes[i]) & 0x0F
			var lo byte
			if i+1 < n {
				lo = byte(codes[i+1]) & 0x0F
			}
			out[i/2] = hi<<4 | lo
		}
		return out, nil
	default:
		return nil, ErrInvalidBits
	}
}

// Unpack recovers exactly count signed codes from a packed buffer.
func Unpack(packed []byte, bits, count int) ([]int8, error) {
	if count < 0 {
		return nil, fmt.Errorf("blockquant: negative code count %d", count)
	}
	switch bits {
	case 8:
		if len(packed) < count {
			return nil, fmt.Errorf("blockquant: packed buffer too short: %d bytes for %d int8 codes", len(packed), count)
		}
		out := make([]int8, count)
		for i := range out {
			out[i] = int8(packed[i])
		}
		return out, nil
	case 4:
		if len(packed) < (count+1)/2 {
			return nil, fmt.Errorf("blockquant: packed buffer too short: %d bytes for %d int4 codes", len(packed), count)
		}
		out := make([]int8, count)
		for i := range out {
			b := packed[i/2]
			nib := b & 0x0F
			if i%2 == 0 {
				nib = b >> 4
			}
			out[i] = signExtend4(nib)
		}
		return out, nil
	default:
		return nil, ErrInvalidBits
	}
}

// signExtend4 widens a nibble to int8, treating bit 3 as the sign bit.
func signExtend4(v byte) int8 {
	if v&0x08 != 0 {
		return int8(v | 0xF0)
	}
	return int8(v)
}
