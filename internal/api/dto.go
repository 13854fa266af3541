package api

// TensorPayload is a float32 tensor in transit.
type TensorPayload struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// EntryPayload is one output-set entry; Data is base64 over the raw bytes.
type EntryPayload struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
	Data  string `json:"data"`
}

type QuantizeRequest struct {
	Bits      int             `json:"bits,omitempty"`
	BlockSize int             `json:"block_size,omitempty"`
	Tensors   []TensorPayload `json:"tensors"`
}

type StatsPayload struct {
	TotalTensors     int     `json:"total_tensors"`
	QuantisedTensors int     `json:"quantised_tensors"`
	KeptTensors      int     `json:"kept_tensors"`
	OriginalBytes    int64   `json:"original_bytes"`
	PackedBytes      int64   `json:"packed_bytes"`
	ScaleBytes       int64   `json:"scale_bytes"`
	KeptBytes        int64   `json:"kept_bytes"`
	CompressionRatio float64 `json:"compression_ratio"`
}

type QuantizeResponse struct {
	ID        string         `json:"id"`
	Bits      int            `json:"bits"`
	BlockSize int            `json:"block_size"`
	Stats     StatsPayload   `json:"stats"`
	Entries   []EntryPayload `json:"entries"`
}

type DequantizeRequest struct {
	Bits      int       `json:"bits"`
	BlockSize int       `json:"block_size"`
	Name      string    `json:"name"`
	Shape     []int     `json:"shape"`
	Data      string    `json:"data"`
	Scales    []float32 `json:"scales"`
}

type DequantizeResponse struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

type RulePayload struct {
	Name        string   `json:"name"`
	MaxElements int      `json:"max_elements,omitempty"`
	MinElements int      `json:"min_elements,omitempty"`
	Contains    []string `json:"contains,omitempty"`
	Action      string   `json:"action"`
}

type PolicyResponse struct {
	Rules []RulePayload `json:"rules"`
}

type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
