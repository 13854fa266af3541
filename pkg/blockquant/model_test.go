package blockquant

import (
	"context"
	"errors"
	"math"
	"testing"
)

type fakeReader struct {
	names   []string
	tensors map[string]Tensor
	err     error
}

func (r fakeReader) Names() []string { return r.names }

func (r fakeReader) Tensor(name string) (Tensor, error) {
	if r.err != nil {
		return Tensor{}, r.err
	}
	return r.tensors[name], nil
}

type fakeWriter struct {
	entries []Entry
	err     error
	calls   int
}

func (w *fakeWriter) WriteModel(entries []Entry) error {
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.entries = entries
	return nil
}

func uniform(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestQuantiseModel(t *testing.T) {
	reader := fakeReader{
		names: []string{"layer1.weight", "layer1.bias"},
		tensors: map[string]Tensor{
			"layer1.weight": {Name: "layer1.weight", Shape: []int{8, 128}, Data: uniform(1024, 3.5)},
			"layer1.bias":   {Name: "layer1.bias", Shape: []int{64}, Data: uniform(64, 0.1)},
		},
	}
	writer := &fakeWriter{}

	var reports []TensorReport
	stats, err := QuantiseModel(context.Background(), reader, writer, Config{BlockSize: 128, Bits: 4}, nil,
		func(rep TensorReport) { reports = append(reports, rep) })
	if err != nil {
		t.Fatalf("QuantiseModel: %v", err)
	}

	if stats.TotalTensors != 2 || stats.QuantisedTensors != 1 || stats.KeptTensors != 1 {
		t.Fatalf("counts: %+v", stats)
	}
	if stats.OriginalBytes != 4352 || stats.PackedBytes != 512 || stats.ScaleBytes != 32 || stats.KeptBytes != 256 {
		t.Fatalf("byte totals: %+v", stats)
	}
	// 4352 / (512 + 32) = 8.00 to two decimals.
	if got := stats.CompressionRatio(); math.Abs(got-8.00) > 0.005 {
		t.Fatalf("compression ratio: got %v, want 8.00", got)
	}

	if len(writer.entries) != 3 {
		t.Fatalf("entries: got %d, want 3", len(writer.entries))
	}
	byName := map[string]Entry{}
	for _, e := range writer.entries {
		byName[e.Name] = e
	}
	w, ok := byName["layer1.weight"]
	if !ok || w.DType != DTypeI4 || len(w.Data) != 512 {
		t.Fatalf("weight entry: %+v", w)
	}
	sc, ok := byName["layer1.weight"+ScaleSuffix]
	if !ok || sc.DType != DTypeF32 || len(sc.Data) != 32 {
		t.Fatalf("scales entry: %+v", sc)
	}
	if len(sc.Shape) != 1 || sc.Shape[0] != 8 {
		t.Fatalf("scales shape: %v", sc.Shape)
	}
	b, ok := byName["layer1.bias"]
	if !ok || b.DType != DTypeF32 || len(b.Data) != 256 {
		t.Fatalf("bias entry: %+v", b)
	}

	if len(reports) != 2 {
		t.Fatalf("reports: got %d, want 2", len(reports))
	}
	if !reports[0].Quantised || reports[0].Rule != "weights" {
		t.Errorf("weight report: %+v", reports[0])
	}
	if reports[1].Quantised || reports[1].Rule != "small" {
		t.Errorf("bias report: %+v", reports[1])
	}
}

func TestReconstructEntriesRoundTrip(t *testing.T) {
	data := make([]float32, 1024)
	for i := range data {
		data[i] = float32(math.Cos(float64(i)*0.31)) * 2.5
	}
	bias := uniform(64, 0.25)
	reader := fakeReader{
		names: []string{"enc.weight", "enc.bias"},
		tensors: map[string]Tensor{
			"enc.weight": {Name: "enc.weight", Shape: []int{8, 128}, Data: data},
			"enc.bias":   {Name: "enc.bias", Shape: []int{64}, Data: bias},
		},
	}
	writer := &fakeWriter{}
	cfg := Config{BlockSize: 128, Bits: 4}
	if _, err := QuantiseModel(context.Background(), reader, writer, cfg, nil, nil); err != nil {
		t.Fatalf("QuantiseModel: %v", err)
	}

	tensors, err := ReconstructEntries(writer.entries, cfg.BlockSize)
	if err != nil {
		t.Fatalf("ReconstructEntries: %v", err)
	}
	if len(tensors) != 2 {
		t.Fatalf("tensors: got %d, want 2", len(tensors))
	}
	byName := map[string]Tensor{}
	for _, tr := range tensors {
		byName[tr.Name] = tr
	}
	// Kept tensors come back bit-exact.
	for i, v := range byName["enc.bias"].Data {
		if v != bias[i] {
			t.Fatalf("bias[%d]: got %v, want %v", i, v, bias[i])
		}
	}
	// Quantised tensors come back within half a quantisation step;
	// maxAbs 2.5 at 4 bits bounds the scale by 2.5/7.
	got := byName["enc.weight"].Data
	if len(got) != len(data) {
		t.Fatalf("weight length: got %d, want %d", len(got), len(data))
	}
	bound := 2.5/7.0/2.0 + 1e-6
	for i := range data {
		if diff := math.Abs(float64(got[i] - data[i])); diff > bound {
			t.Fatalf("weight[%d]: |%v - %v| = %v exceeds %v", i, got[i], data[i], diff, bound)
		}
	}
}

func TestQuantiseModelValidatesConfigFirst(t *testing.T) {
	reader := fakeReader{names: []string{"t"}, err: errors.New("reader must not be touched")}
	writer := &fakeWriter{}
	_, err := QuantiseModel(context.Background(), reader, writer, Config{BlockSize: 128, Bits: 3}, nil, nil)
	if !errors.Is(err, ErrInvalidBits) {
		t.Fatalf("got %v, want ErrInvalidBits", err)
	}
	if writer.calls != 0 {
		t.Fatal("writer called despite invalid config")
	}
}

func TestQuantiseModelFailsFastOnReader(t *testing.T) {
	readErr := errors.New("boom")
	reader := fakeReader{names: []string{"t"}, err: readErr}
	writer := &fakeWriter{}
	_, err := QuantiseModel(context.Background(), reader, writer, DefaultConfig(), nil, nil)
	if !errors.Is(err, readErr) {
		t.Fatalf("got %v, want wrapped reader error", err)
	}
	if writer.calls != 0 {
		t.Fatal("writer called after reader failure")
	}
}

func TestQuantiseModelPropagatesWriterFailure(t *testing.T) {
	writeErr := errors.New("disk full")
	reader := fakeReader{
		names:   []string{"t"},
		tensors: map[string]Tensor{"t": {Name: "t", Shape: []int{4}, Data: uniform(4, 1)}},
	}
	writer := &fakeWriter{err: writeErr}
	_, err := QuantiseModel(context.Background(), reader, writer, DefaultConfig(), nil, nil)
	if !errors.Is(err, writeErr) {
		t.Fatalf("got %v, want wrapped writer error", err)
	}
}

func TestQuantiseModelHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader := fakeReader{
		names:   []string{"t"},
		tensors: map[string]Tensor{"t": {Name: "t", Shape: []int{4}, Data: uniform(4, 1)}},
	}
	writer := &fakeWriter{}
	_, err := QuantiseModel(ctx, reader, writer, DefaultConfig(), nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if writer.calls != 0 {
		t.Fatal("writer called after cancellation")
	}
}
