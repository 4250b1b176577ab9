package compression

// CompressionMetrics reports what one pruning pass kept. Byte counts are
// the pruner's size estimates, not rendered output sizes.
type CompressionMetrics struct {
	InputCount  int `json:"inputCount"`
	OutputCount int `json:"outputCount"`
	InputBytes  int `json:"inputBytes"`
	OutputBytes int `json:"outputBytes"`
	// CompressionRatio is OutputBytes/InputBytes; 1 when nothing was dropped
	CompressionRatio float64          `json:"compressionRatio"`
	Truncations      []TruncationInfo `json:"truncations,omitempty"`
}

// ComputeMetrics calculates compression metrics from counts, sizes and truncations
func ComputeMetrics(inputCount, outputCount, inputBytes, outputBytes int, truncations []TruncationInfo) *CompressionMetrics {
	ratio := 1.0
	if inputBytes > 0 {
		ratio = float64(outputBytes) / float64(inputBytes)
	}

	return &CompressionMetrics{
		InputCount:       inputCount,
		OutputCount:      outputCount,
		InputBytes:       inputBytes,
		OutputBytes:      outputBytes,
		CompressionRatio: ratio,
		Truncations:      truncations,
	}
}

// AddTruncation adds a truncation info to the metrics
func (m *CompressionMetrics) AddTruncation(truncation *TruncationInfo) {
	if truncation != nil && truncation.WasTruncated() {
		m.Truncations = append(m.Truncations, *truncation)
	}
}
