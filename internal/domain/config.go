package domain

// VectorConfig holds internal vectorization settings, not exposed to clients.
type VectorConfig struct {
	Model               string
	Dimensions          int
	DocumentInstruction string
	QueryInstruction    string
}

// DefaultVectorConfig returns the default configuration for text-embedding-3-small.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
	}
}

// ModelDimensions maps known embedding models to their native vector widths.
// Used to validate configured dimensions against the chosen model.
var ModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}
