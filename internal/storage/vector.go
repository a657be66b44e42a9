package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// serializeSparse encodes a sparse term-weight map as JSON text
func serializeSparse(sparse map[string]float64) ([]byte, error) {
	if sparse == nil {
		return nil, nil
	}
	data, err := json.Marshal(sparse)
	if err != nil {
		return nil, fmt.Errorf("marshal sparse vector: %w", err)
	}
	return data, nil
}

// deserializeSparse decodes a JSON sparse term-weight map
func deserializeSparse(data []byte) (map[string]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var sparse map[string]float64
	if err := json.Unmarshal(data, &sparse); err != nil {
		return nil, fmt.Errorf("unmarshal sparse vector: %w", err)
	}
	return sparse, nil
}

// serializeStringList encodes an ordered string list as JSON text
func serializeStringList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal string list: %w", err)
	}
	return string(data), nil
}

// deserializeStringList decodes a JSON string list
func deserializeStringList(data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, fmt.Errorf("unmarshal string list: %w", err)
	}
	return items, nil
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero-magnitude vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
