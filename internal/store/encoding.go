package store

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// EncodeEmbedding encodes vec as a little-endian float32 BLOB.
func EncodeEmbedding(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeEmbedding decodes a BLOB produced by EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("store: invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// EncodeEmbeddingText encodes vec as base64 of its BLOB form, for backends
// whose metadata holds only strings.
func EncodeEmbeddingText(vec []float32) string {
	return base64.StdEncoding.EncodeToString(EncodeEmbedding(vec))
}

// DecodeEmbeddingText decodes a string produced by EncodeEmbeddingText.
func DecodeEmbeddingText(s string) ([]float32, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("store: invalid embedding text: %w", err)
	}
	return DecodeEmbedding(b)
}

// EncodeMetadata serialises scalar metadata as a JSON object.
func EncodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("store: encode metadata: %w", err)
	}
	return string(b), nil
}

// DecodeMetadata parses a JSON object produced by EncodeMetadata. Integral
// numbers come back as int64, everything else numeric as float64.
func DecodeMetadata(s string) (map[string]any, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("store: decode metadata: %w", err)
	}
	for k, v := range raw {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			raw[k] = i
			continue
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("store: decode metadata %q: %w", k, err)
		}
		raw[k] = f
	}
	return raw, nil
}
