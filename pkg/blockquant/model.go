package blockquant

import (
	"context"
	"fmt"
)

// ModelReader yields the tensors of a model store in a deterministic order.
type ModelReader interface {
	Names() []string
	Tensor(name string) (Tensor, error)
}

// ModelWriter persists a complete output set atomically; a failure must
// leave no partial model behind.
type ModelWriter interface {
	WriteModel(entries []Entry) error
}

// Stats aggregates the outcome of a whole-model quantisation run.
type Stats struct {
	TotalTensors     int
	QuantisedTensors int
	KeptTensors      int

	OriginalBytes int64
	PackedBytes   int64
	ScaleBytes    int64
	KeptBytes     int64
}

// CompressionRatio is OriginalBytes / (PackedBytes + ScaleBytes), the gain
// on the quantised portion of the model. Zero when nothing was quantised.
func (s Stats) CompressionRatio() float64 {
	denom := s.PackedBytes + s.ScaleBytes
	if denom == 0 {
		return 0
	}
	return float64(s.OriginalBytes) / float64(denom)
}

// TensorReport describes the outcome for a single tensor.
type TensorReport struct {
	Name          string
	Rule          string
	Quantised     bool
	Elements      int
	OriginalBytes int
	PackedBytes   int
	ScaleBytes    int
}

// QuantiseModel runs the full pipeline over every tensor the reader yields:
// policy selection, then partition, scale, quantise and pack for the chosen
// ones. Quantised tensors are stored under their own name with a sibling
// "<name>.__scales__" entry; kept tensors are copied verbatim. The run is
// fail-fast: any reader, quantise or writer error aborts with no output.
//
// policy may be nil for DefaultPolicy. progress, when non-nil, is invoked
// once per tensor after it has been processed; callers layer logging and
// progress printing on top of it.
func QuantiseModel(ctx context.Context, r ModelReader, w ModelWriter, cfg Config, policy Policy, progress func(TensorReport)) (Stats, error) {
	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}
	if policy == nil {
		policy = DefaultPolicy()
	}

	var stats Stats
	names := r.Names()
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return Stats{}, err
		}
		t, err := r.Tensor(name)
		if err != nil {
			return Stats{}, fmt.Errorf("read tensor %s: %w", name, err)
		}

		stats.TotalTensors++
		stats.OriginalBytes += int64(t.SizeBytes())

		action, rule := policy.Select(name, t.NumElements())
		rep := TensorReport{
			Name:          name,
			Rule:          rule,
			Elements:      t.NumElements(),
			OriginalBytes: t.SizeBytes(),
		}

		if action == QuantiseTensor {
			q, err := Quantise(t, cfg)
			if err != nil {
				return Stats{}, fmt.Errorf("quantise tensor %s: %w", name, err)
			}
			entries = append(entries,
				Entry{Name: name, Shape: q.Shape, DType: cfg.quantDType(), Data: q.Data},
				Entry{Name: name + ScaleSuffix, Shape: []int{len(q.Scales)}, DType: DTypeF32, Data: EncodeF32(q.Scales)},
			)
			stats.QuantisedTensors++
			stats.PackedBytes += int64(len(q.Data))
			stats.ScaleBytes += int64(len(q.Scales) * 4)
			rep.Quantised = true
			rep.PackedBytes = len(q.Data)
			rep.ScaleBytes = len(q.Scales) * 4
		} else {
			entries = append(entries, Entry{Name: name, Shape: t.Shape, DType: DTypeF32, Data: EncodeF32(t.Data)})
			stats.KeptTensors++
			stats.KeptBytes += int64(t.SizeBytes())
		}

		if progress != nil {
			progress(rep)
		}
	}

	if err := w.WriteModel(entries); err != nil {
		return Stats{}, fmt.Errorf("write model: %w", err)
	}
	return stats, nil
}
