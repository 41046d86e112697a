package embedding

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Vector is a dense embedding. Vectors produced by Service are L2-normalized
// or all-zero.
type Vector []float64

// FromFloat32 widens a model output vector.
func FromFloat32(v []float32) Vector {
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Normalize returns a unit-length copy of v. A zero vector stays zero.
func Normalize(v Vector) Vector {
	out := make(Vector, len(v))
	copy(out, v)
	n := floats.Norm(out, 2)
	if n == 0 {
		return out
	}
	floats.Scale(1/n, out)
	return out
}

// IsZero reports whether v has no non-zero component.
func IsZero(v Vector) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Cosine returns the cosine similarity of a and b clipped to [0, 1].
// It is 0 when either side is a zero vector or the lengths differ.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return clip01(floats.Dot(a, b) / (na * nb))
}

// Mean averages vectors of equal length. Vectors whose length differs from
// the first are skipped. It returns nil for no input.
func Mean(vs []Vector) Vector {
	if len(vs) == 0 {
		return nil
	}
	sum := make(Vector, len(vs[0]))
	n := 0
	for _, v := range vs {
		if len(v) != len(sum) {
			continue
		}
		floats.Add(sum, v)
		n++
	}
	floats.Scale(1/float64(n), sum)
	return sum
}

// Encode packs v as little-endian float32 values for storage.
func Encode(v Vector) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(x)))
	}
	return buf
}

// Decode unpacks a vector written by Encode.
func Decode(b []byte) (Vector, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("decode embedding: %d bytes is not a multiple of 4", len(b))
	}
	v := make(Vector, len(b)/4)
	for i := range v {
		v[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:])))
	}
	return v, nil
}

func clip01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
