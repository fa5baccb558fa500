package features

import (
	"hash/fnv"
	"math"
)

// VectorDim is the dimensionality of the hashed bag-of-words vector.
// Small enough to keep centroid blending cheap on the hot path.
const VectorDim = 64

// Vector is an L2-normalized hashed term-frequency vector.
type Vector []float64

// NewVector hashes tokens into a fixed-width vector and normalizes it.
// An empty token list yields a zero vector.
func NewVector(tokens []string) Vector {
	v := make(Vector, VectorDim)
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[h.Sum32()%VectorDim]++
	}
	return v.normalize()
}

func (v Vector) normalize() Vector {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
	return v
}

// Dot returns the inner product with w. Vectors of mismatched length
// compare over the shorter prefix.
func (v Vector) Dot(w Vector) float64 {
	n := len(v)
	if len(w) < n {
		n = len(w)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += v[i] * w[i]
	}
	return dot
}

// Distance returns the cosine distance in [0,2]. Both vectors are unit
// length by construction, so 1 - dot suffices; a zero vector is maximally
// distant from everything.
func (v Vector) Distance(w Vector) float64 {
	if v.IsZero() || w.IsZero() {
		return 1
	}
	return 1 - v.Dot(w)
}

// IsZero reports whether the vector has no mass.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Blend returns the exponential moving average alpha*w + (1-alpha)*v,
// re-normalized. Used for bounded-cost centroid updates.
func (v Vector) Blend(w Vector, alpha float64) Vector {
	n := len(v)
	if len(w) > n {
		n = len(w)
	}
	out := make(Vector, n)
	for i := range out {
		var a, b float64
		if i < len(v) {
			a = v[i]
		}
		if i < len(w) {
			b = w[i]
		}
		out[i] = (1-alpha)*a + alpha*b
	}
	return out.normalize()
}
