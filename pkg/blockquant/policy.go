package blockquant

import "strings"

// Action is a selection policy verdict for one tensor.
type Action int

const (
	Keep Action = iota
	QuantiseTensor
)

func (a Action) String() string {
	if a == QuantiseTensor {
		return "quantise"
	}
	return "keep"
}

// Rule is one row in the selection table. Zero-valued fields do not
// constrain; a rule matches when every set field matches.
type Rule struct {
	// Name labels the rule in reports and audits.
	Name string
	// MaxElements matches tensors with fewer than this many elements.
	MaxElements int
	// MinElements matches tensors with more than this many elements.
	MinElements int
	// Contains matches when the lowercased tensor name contains any of
	// these substrings.
	Contains []string

	Action Action
}

func (r Rule) Matches(name string, count int) bool {
	if r.MaxElements > 0 && count >= r.MaxElements {
		return false
	}
	if r.MinElements > 0 && count <= r.MinElements {
		return false
	}
	if len(r.Contains) > 0 {
		lower := strings.ToLower(name)
		hit := false
		for _, s := range r.Contains {
			if strings.Contains(lower, s) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// Policy is an ordered rule list; the first matching rule wins and tensors
// matching no rule are kept. It is data, not dispatch: rules can be audited
// and reordered without touching the pipeline.
type Policy []Rule

// DefaultPolicy keeps small tensors, embeddings, normalisation parameters
// and biases in full precision; weight matrices and any other large tensor
// are quantised.
func DefaultPolicy() Policy {
	return Policy{
		{Name: "small", MaxElements: 512, Action: Keep},
		{Name: "embeddings", Contains: []string{"embed"}, Action: Keep},
		{Name: "normalisation", Contains: []string{"norm", "ln"}, Action: Keep},
		{Name: "bias", Contains: []string{"bias"}, Action: Keep},
		{Name: "weights", Contains: []string{"weight"}, Action: QuantiseTensor},
		{Name: "large", MinElements: 10000, Action: QuantiseTensor},
	}
}

// Select returns the verdict for a tensor and the name of the rule that
// decided it ("default" when nothing matched).
func (p Policy) Select(name string, count int) (Action, string) {
	for _, r := range p {
		if r.Matches(name, count) {
			return r.Action, r.Name
		}
	}
	return Keep, "default"
}
