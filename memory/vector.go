package memory

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
)

// Embedding is a fixed-dimension float32 vector stored as a packed
// little-endian bytea column. No pgvector binding exists anywhere in the
// reference corpus this module was grounded on (see DESIGN.md), so the
// vector column is a plain binary blob and all similarity scoring happens
// application-side in cosineSimilarity.
type Embedding []float32

// Scan implements sql.Scanner, decoding the packed bytea column.
func (e *Embedding) Scan(src any) error {
	if src == nil {
		*e = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("memory: cannot scan %T into Embedding", src)
	}
	if len(b)%4 != 0 {
		return fmt.Errorf("memory: embedding byte length %d not a multiple of 4", len(b))
	}
	out := make(Embedding, len(b)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(b[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	*e = out
	return nil
}

// Value implements driver.Valuer, packing the vector as little-endian bytes.
func (e Embedding) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	b := make([]byte, len(e)*4)
	for i, f := range e {
		binary.LittleEndian.PutUint32(b[i*4:i*4+4], math.Float32bits(f))
	}
	return b, nil
}

// cosineSimilarity returns the cosine similarity of two equal-length
// vectors in [-1,1], or 0 if they differ in length or either is the zero
// vector. Grounded on the teacher's agent/memory cosineSimilarity helper,
// generalized from float64 to the float32 storage type.
func cosineSimilarity(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		fa, fb := float64(a[i]), float64(b[i])
		dot += fa * fb
		normA += fa * fa
		normB += fb * fb
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
