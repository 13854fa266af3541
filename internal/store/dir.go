package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sys/unix"

	"github.com/samcharles93/blockquant/pkg/blockquant"
)

const (
	ManifestName = "manifest.json"
	DataName     = "data.bin"
	DataNameZstd = "data.bin.zst"

	CompressionZstd = "zstd"

	manifestVersion = 1
)

type manifest struct {
	Version     int             `json:"version"`
	Compression string          `json:"compression,omitempty"`
	Quant       *quantMeta      `json:"quant,omitempty"`
	Tensors     []manifestEntry `json:"tensors"`
}

type quantMeta struct {
	Bits      int `json:"bits"`
	BlockSize int `json:"block_size"`
}

type manifestEntry struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// DirWriter persists a model as a directory holding manifest.json and a
// single data blob. The write is staged in a temp directory and renamed
// into place, so a failure never leaves a partial model behind.
type DirWriter struct {
	path string
	meta Meta
}

func NewDirWriter(path string, meta Meta) *DirWriter {
	return &DirWriter{path: path, meta: meta}
}

func (w *DirWriter) WriteModel(entries []blockquant.Entry) error {
	if w.meta.Compression != "" && w.meta.Compression != CompressionZstd {
		return fmt.Errorf("store: unknown compression %q", w.meta.Compression)
	}

	parent := filepath.Dir(w.path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(parent, ".blockquant-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	if err := w.stage(tmp, entries); err != nil {
		return err
	}

	// Everything is on disk; swap the staged directory into place.
	if err := os.RemoveAll(w.path); err != nil {
		return err
	}
	return os.Rename(tmp, w.path)
}

func (w *DirWriter) stage(dir string, entries []blockquant.Entry) error {
	dataName := DataName
	if w.meta.Compression == CompressionZstd {
		dataName = DataNameZstd
	}
	f, err := os.Create(filepath.Join(dir, dataName))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	var dst io.Writer = f
	var enc *zstd.Encoder
	if w.meta.Compression == CompressionZstd {
		enc, err = zstd.NewWriter(f)
		if err != nil {
			return fmt.Errorf("store: create zstd writer: %w", err)
		}
		dst = enc
	}

	m := manifest{
		Version:     manifestVersion,
		Compression: w.meta.Compression,
		Tensors:     make([]manifestEntry, 0, len(entries)),
	}
	if w.meta.Bits != 0 {
		m.Quant = &quantMeta{Bits: w.meta.Bits, BlockSize: w.meta.BlockSize}
	}

	// Offsets index the decompressed stream.
	var off int64
	for _, e := range entries {
		if _, err := dst.Write(e.Data); err != nil {
			return fmt.Errorf("store: write tensor %s: %w", e.Name, err)
		}
		m.Tensors = append(m.Tensors, manifestEntry{
			Name:   e.Name,
			DType:  string(e.DType),
			Shape:  e.Shape,
			Offset: off,
			Size:   int64(len(e.Data)),
		})
		off += int64(len(e.Data))
	}

	if enc != nil {
		if err := enc.Close(); err != nil {
			return fmt.Errorf("store: finish zstd stream: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestName), raw, 0o644)
}

// DirModel is a read view over a store directory. An uncompressed data blob
// is mmapped where available (entries alias the mapping); a zstd blob is
// decompressed into memory on open. Close releases any mapping.
type DirModel struct {
	meta    Meta
	names   []string
	entries map[string]blockquant.Entry
	data    []byte
	mmapped bool
}

func OpenDir(path string) (*DirModel, error) {
	raw, err := os.ReadFile(filepath.Join(path, ManifestName))
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("store: parse manifest: %w", err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("store: unsupported manifest version %d", m.Version)
	}

	dm := &DirModel{
		meta:    Meta{Compression: m.Compression},
		entries: make(map[string]blockquant.Entry, len(m.Tensors)),
	}
	if m.Quant != nil {
		dm.meta.Bits = m.Quant.Bits
		dm.meta.BlockSize = m.Quant.BlockSize
	}

	switch m.Compression {
	case "":
		dm.data, dm.mmapped, err = loadBlob(filepath.Join(path, DataName))
	case CompressionZstd:
		dm.data, err = loadZstdBlob(filepath.Join(path, DataNameZstd))
	default:
		return nil, fmt.Errorf("store: unknown compression %q", m.Compression)
	}
	if err != nil {
		return nil, err
	}

	for _, t := range m.Tensors {
		end := t.Offset + t.Size
		if t.Offset < 0 || t.Size < 0 || end > int64(len(dm.data)) {
			_ = dm.Close()
			return nil, fmt.Errorf("store: tensor %s: data range [%d,%d) outside blob of %d bytes",
				t.Name, t.Offset, end, len(dm.data))
		}
		dm.names = append(dm.names, t.Name)
		dm.entries[t.Name] = blockquant.Entry{
			Name:  t.Name,
			Shape: t.Shape,
			DType: blockquant.DType(t.DType),
			Data:  dm.data[t.Offset:end],
		}
	}
	return dm, nil
}

func (m *DirModel) Meta() Meta { return m.meta }

// Names returns tensor names in manifest order; this is the deterministic
// iteration order of the store.
func (m *DirModel) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

func (m *DirModel) Entry(name string) (blockquant.Entry, bool) {
	e, ok := m.entries[name]
	return e, ok
}

func (m *DirModel) Entries() []blockquant.Entry {
	out := make([]blockquant.Entry, 0, len(m.names))
	for _, name := range m.names {
		out = append(out, m.entries[name])
	}
	return out
}

// Tensor widens the named entry to float32, satisfying the engine's reader
// interface.
func (m *DirModel) Tensor(name string) (blockquant.Tensor, error) {
	e, ok := m.entries[name]
	if !ok {
		return blockquant.Tensor{}, fmt.Errorf("store: tensor not found: %s", name)
	}
	return widenEntry(e)
}

// Close releases the mapping; entries must not be used afterwards.
func (m *DirModel) Close() error {
	if !m.mmapped || m.data == nil {
		m.data = nil
		return nil
	}
	data := m.data
	m.data = nil
	m.mmapped = false
	return unix.Munmap(data)
}

// loadBlob prefers mmap for zero-copy entry slices and falls back to a
// plain read when mapping is unavailable (or the blob is empty).
func loadBlob(path string) ([]byte, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, false, err
	}
	size := stat.Size()
	if size > int64(int(^uint(0)>>1)) {
		return nil, false, fmt.Errorf("store: data blob too large to map: %d bytes", size)
	}
	if size == 0 {
		return []byte{}, false, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return data, true, nil
	}

	out := make([]byte, size)
	if _, err := io.ReadFull(f, out); err != nil {
		return nil, false, err
	}
	return out, false, nil
}

func loadZstdBlob(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("store: open zstd stream: %w", err)
	}
	defer dec.Close()

	out, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("store: decompress data blob: %w", err)
	}
	return out, nil
}
