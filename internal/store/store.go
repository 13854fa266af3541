// Package store provides the model store collaborators the quantisation
// engine reads from and writes to: an in-memory entry set and a directory
// layout of manifest.json plus a raw data blob. Host container formats
// (safetensors, GGUF) stay outside this repository; adapters for them
// implement the same blockquant reader/writer interfaces.
package store

import (
	"fmt"

	"github.com/samcharles93/blockquant/pkg/blockquant"
)

// Meta is the model-level metadata recorded alongside the entries. Bits and
// BlockSize are zero for unquantised models.
type Meta struct {
	Bits        int
	BlockSize   int
	Compression string // "" or CompressionZstd
}

// Model is an in-memory entry set. It implements both the reader and the
// writer side of the pipeline, which makes it the natural collaborator for
// tests and the REST service.
type Model struct {
	names   []string
	entries map[string]blockquant.Entry
}

func NewModel() *Model {
	return &Model{entries: make(map[string]blockquant.Entry)}
}

// Set inserts or replaces an entry, preserving first-insertion order.
func (m *Model) Set(e blockquant.Entry) {
	if _, ok := m.entries[e.Name]; !ok {
		m.names = append(m.names, e.Name)
	}
	m.entries[e.Name] = e
}

// SetTensor stores a float32 tensor as an F32 entry.
func (m *Model) SetTensor(t blockquant.Tensor) {
	m.Set(blockquant.Entry{
		Name:  t.Name,
		Shape: t.Shape,
		DType: blockquant.DTypeF32,
		Data:  blockquant.EncodeF32(t.Data),
	})
}

// Names returns entry names in insertion order.
func (m *Model) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

func (m *Model) Entry(name string) (blockquant.Entry, bool) {
	e, ok := m.entries[name]
	return e, ok
}

// Entries returns all entries in insertion order.
func (m *Model) Entries() []blockquant.Entry {
	out := make([]blockquant.Entry, 0, len(m.names))
	for _, name := range m.names {
		out = append(out, m.entries[name])
	}
	return out
}

// Tensor widens the named entry to the float32 working type.
func (m *Model) Tensor(name string) (blockquant.Tensor, error) {
	e, ok := m.entries[name]
	if !ok {
		return blockquant.Tensor{}, fmt.Errorf("store: tensor not found: %s", name)
	}
	return widenEntry(e)
}

// WriteModel replaces the model's contents with the given output set.
func (m *Model) WriteModel(entries []blockquant.Entry) error {
	m.names = m.names[:0]
	m.entries = make(map[string]blockquant.Entry, len(entries))
	for _, e := range entries {
		m.Set(e)
	}
	return nil
}

func widenEntry(e blockquant.Entry) (blockquant.Tensor, error) {
	data, err := Widen(e)
	if err != nil {
		return blockquant.Tensor{}, err
	}
	n, err := blockquant.NumElementsOf(e.Shape)
	if err != nil {
		return blockquant.Tensor{}, fmt.Errorf("tensor %s: %w", e.Name, err)
	}
	if n != len(data) {
		return blockquant.Tensor{}, fmt.Errorf("store: tensor %s: shape %v implies %d elements, buffer holds %d",
			e.Name, e.Shape, n, len(data))
	}
	return blockquant.Tensor{Name: e.Name, Shape: e.Shape, Data: data}, nil
}
