package blockquant

import (
	"errors"
	"math"
	"testing"
)

func TestQuantiseUniformTensor(t *testing.T) {
	// 256 identical values at block size 128: two blocks, scale 3.5/7 = 0.5,
	// every code 7, every packed byte 0x77.
	data := make([]float32, 256)
	for i := range data {
		data[i] = 3.5
	}
	q, err := Quantise(Tensor{Name: "w", Shape: []int{256}, Data: data}, Config{BlockSize: 128, Bits: 4})
	if err != nil {
		t.Fatalf("Quantise: %v", err)
	}
	if len(q.Scales) != 2 {
		t.Fatalf("scales: got %d, want 2", len(q.Scales))
	}
	for i, s := range q.Scales {
		if s != 0.5 {
			t.Errorf("scale[%d]: got %v, want 0.5", i, s)
		}
	}
	if len(q.Data) != 128 {
		t.Fatalf("packed size: got %d, want 128", len(q.Data))
	}
	for i, b := range q.Data {
		if b != 0x77 {
			t.Fatalf("packed[%d]: got %#02x, want 0x77", i, b)
		}
	}
}

func TestQuantiseAllZeroPaddedBlock(t *testing.T) {
	// Five zeros pad out to one 128-element block: sentinel scale 1.0,
	// all codes zero, perfect reconstruction.
	q, err := Quantise(Tensor{Name: "z", Shape: []int{5}, Data: make([]float32, 5)}, Config{BlockSize: 128, Bits: 8})
	if err != nil {
		t.Fatalf("Quantise: %v", err)
	}
	if len(q.Scales) != 1 || q.Scales[0] != 1.0 {
		t.Fatalf("scales: got %v, want [1.0]", q.Scales)
	}
	if len(q.Data) != 5 {
		t.Fatalf("data size: got %d, want 5", len(q.Data))
	}
	for i, b := range q.Data {
		if b != 0 {
			t.Fatalf("code[%d]: got %d, want 0", i, b)
		}
	}
	out, err := Dequantise(q)
	if err != nil {
		t.Fatalf("Dequantise: %v", err)
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("dequantised[%d]: got %v, want 0", i, v)
		}
	}
}

func TestQuantiseRoundsTiesAwayFromZero(t *testing.T) {
	// maxAbs 127 at 8 bits pins the scale to exactly 1, so the quotients
	// below are exact halves.
	data := []float32{127, 2.5, -2.5, 0.5, -0.5, 1.5}
	q, err := Quantise(Tensor{Name: "t", Shape: []int{6}, Data: data}, Config{BlockSize: 6, Bits: 8})
	if err != nil {
		t.Fatalf("Quantise: %v", err)
	}
	if q.Scales[0] != 1 {
		t.Fatalf("scale: got %v, want 1", q.Scales[0])
	}
	want := []int8{127, 3, -3, 1, -1, 2}
	codes, err := Unpack(q.Data, 8, len(data))
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("code[%d]: got %d, want %d", i, codes[i], want[i])
		}
	}
}

func TestQuantiseCodesStayInRange(t *testing.T) {
	for _, bits := range []int{4, 8} {
		data := make([]float32, 300)
		for i := range data {
			data[i] = float32(i%23-11) * 0.137
		}
		q, err := Quantise(Tensor{Name: "t", Shape: []int{300}, Data: data}, Config{BlockSize: 64, Bits: bits})
		if err != nil {
			t.Fatalf("bits=%d: Quantise: %v", bits, err)
		}
		lo := -(1 << (bits - 1))
		hi := 1<<(bits-1) - 1
		codes, err := Unpack(q.Data, bits, 300)
		if err != nil {
			t.Fatalf("bits=%d: Unpack: %v", bits, err)
		}
		for i, c := range codes {
			if int(c) < lo || int(c) > hi {
				t.Fatalf("bits=%d: code[%d]=%d outside [%d,%d]", bits, i, c, lo, hi)
			}
		}
		for i, s := range q.Scales {
			if s < 0 {
				t.Fatalf("bits=%d: scale[%d]=%v negative", bits, i, s)
			}
		}
	}
}

func TestDequantiseErrorBound(t *testing.T) {
	// |dequantise(quantise(x)) - x| <= scale/2 per element; nothing here
	// clips, so x is its own clamped target.
	data := make([]float32, 320)
	for i := range data {
		data[i] = float32(math.Sin(float64(i)*0.7)) * 4.2
	}
	cfg := Config{BlockSize: 128, Bits: 4}
	q, err := Quantise(Tensor{Name: "t", Shape: []int{320}, Data: data}, cfg)
	if err != nil {
		t.Fatalf("Quantise: %v", err)
	}
	if want := NumBlocks(len(data), cfg.BlockSize); len(q.Scales) != want {
		t.Fatalf("scales: got %d, want %d", len(q.Scales), want)
	}
	out, err := Dequantise(q)
	if err != nil {
		t.Fatalf("Dequantise: %v", err)
	}
	if len(out) != len(data) {
		t.Fatalf("length: got %d, want %d", len(out), len(data))
	}
	for i := range data {
		s := q.Scales[i/cfg.BlockSize]
		if diff := math.Abs(float64(out[i] - data[i])); diff > float64(s)/2+1e-6 {
			t.Fatalf("element %d: |%v - %v| = %v exceeds scale/2 = %v", i, out[i], data[i], diff, s/2)
		}
	}
}

func TestQuantiseConfigValidation(t *testing.T) {
	tensor := Tensor{Name: "t", Shape: []int{4}, Data: []float32{1, 2, 3, 4}}
	if _, err := Quantise(tensor, Config{BlockSize: 128, Bits: 5}); !errors.Is(err, ErrInvalidBits) {
		t.Errorf("bits=5: got %v, want ErrInvalidBits", err)
	}
	if _, err := Quantise(tensor, Config{BlockSize: 0, Bits: 4}); !errors.Is(err, ErrInvalidBlockSize) {
		t.Errorf("blockSize=0: got %v, want ErrInvalidBlockSize", err)
	}
}

func TestDequantiseScaleCountMismatch(t *testing.T) {
	q := QuantTensor{Bits: 8, BlockSize: 2, Shape: []int{4}, Scales: []float32{1}, Data: []byte{1, 2, 3, 4}}
	if _, err := Dequantise(q); err == nil {
		t.Fatal("expected error for scale count mismatch")
	}
}
