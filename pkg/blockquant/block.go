package blockquant

// NumBlocks returns ceil(n / blockSize).
func NumBlocks(n, blockSize int) int {
	return (n + blockSize - 1) / blockSize
}

// Partition splits data into ceil(len/blockSize) blocks of exactly
// blockSize elements, zero-padding the tail block. Full blocks alias data;
// a padded tail is a copy. The pad positions participate in scale and
// rounding as zeros and are dropped from the code stream before packing.
func Partition(data []float32, blockSize int) ([][]float32, error) {
	if blockSize < 1 {
		return nil, ErrInvalidBlockSize
	}
	n := len(data)
	blocks := make([][]float32, 0, NumBlocks(n, blockSize))
	for off := 0; off < n; off += blockSize {
		end := off + blockSize
		if end <= n {
			blocks = append(blocks, data[off:end])
			continue
		}
		tail := make([]float32, blockSize)
		copy(tail, data[off:])
		blocks = append(blocks, tail)
	}
	return blocks, nil
}
