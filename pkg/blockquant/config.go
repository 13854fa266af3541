package blockquant

import "errors"

const (
	DefaultBlockSize = 128
	DefaultBits      = 4
)

var (
	ErrInvalidBits      = errors.New("blockquant: bits must be 4 or 8")
	ErrInvalidBlockSize = errors.New("blockquant: block size must be at least 1")
)

// Config carries the two knobs the engine exposes. Both are validated
// before any tensor is touched.
type Config struct {
	BlockSize int
	Bits      int
}

func DefaultConfig() Config {
	return Config{BlockSize: DefaultBlockSize, Bits: DefaultBits}
}

func (c Config) Validate() error {
	if c.Bits != 4 && c.Bits != 8 {
		return ErrInvalidBits
	}
	if c.BlockSize < 1 {
		return ErrInvalidBlockSize
	}
	return nil
}

// levelMax is the largest representable code: 2^(bits-1)-1.
func (c Config) levelMax() int32 { return int32(1)<<(c.Bits-1) - 1 }

// levelMin is the smallest representable code: -2^(bits-1).
func (c Config) levelMin() int32 { return -(int32(1) << (c.Bits - 1)) }

// quantDType maps the configured width to the packed storage dtype.
func (c Config) quantDType() DType {
	if c.Bits == 8 {
		return DTypeI8
	}
	return DTypeI4
}
