package insights

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/Axinion/DynamicActive-Task/internal/embedding"
	"github.com/Axinion/DynamicActive-Task/internal/model"
)

// Clusterer partitions vectors into at most k groups and returns one label
// per vector. Labels are small non-negative integers.
type Clusterer interface {
	Cluster(vectors []embedding.Vector, k int) ([]int, error)
}

// DefaultSeed makes clustering reproducible across runs.
const DefaultSeed = 42

// KMeans is k-means with k-means++ seeding. Each run restarts Restarts times
// from a generator seeded with Seed and keeps the lowest-inertia partition,
// so identical input yields identical labels.
type KMeans struct {
	Seed     uint64
	Restarts int
	MaxIter  int
}

// NewKMeans returns a KMeans with 10 restarts and 300 iterations.
func NewKMeans(seed uint64) *KMeans {
	return &KMeans{Seed: seed, Restarts: 10, MaxIter: 300}
}

// Cluster implements Clusterer.
func (km *KMeans) Cluster(vectors []embedding.Vector, k int) ([]int, error) {
	n := len(vectors)
	if k < 1 {
		return nil, fmt.Errorf("%w: k=%d", model.ErrInvalidParameter, k)
	}
	if n == 0 {
		return []int{}, nil
	}
	if k > n {
		return nil, fmt.Errorf("%w: k=%d exceeds %d vectors", model.ErrInvalidParameter, k, n)
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}

	restarts := max(1, km.Restarts)
	maxIter := max(1, km.MaxIter)
	rng := rand.New(rand.NewPCG(km.Seed, km.Seed^0x9e3779b97f4a7c15))

	var best []int
	bestInertia := math.Inf(1)
	for range restarts {
		centers := seedCenters(vectors, k, rng)
		labels, inertia := lloyd(vectors, centers, maxIter)
		if inertia < bestInertia {
			best, bestInertia = labels, inertia
		}
	}
	return best, nil
}

// seedCenters picks k initial centers with k-means++: each next center is
// drawn with probability proportional to its squared distance from the
// nearest center chosen so far.
func seedCenters(vectors []embedding.Vector, k int, rng *rand.Rand) []embedding.Vector {
	n := len(vectors)
	centers := make([]embedding.Vector, 0, k)
	centers = append(centers, clone(vectors[rng.IntN(n)]))

	d2 := make([]float64, n)
	for len(centers) < k {
		total := 0.0
		for i, v := range vectors {
			_, d2[i] = nearest(v, centers)
			total += d2[i]
		}
		if total == 0 {
			centers = append(centers, clone(vectors[rng.IntN(n)]))
			continue
		}
		target := rng.Float64() * total
		idx := n - 1
		for i, d := range d2 {
			target -= d
			if target < 0 {
				idx = i
				break
			}
		}
		centers = append(centers, clone(vectors[idx]))
	}
	return centers
}

// lloyd alternates assignment and update steps until labels settle.
// A center that loses all its members stays where it was.
func lloyd(vectors, centers []embedding.Vector, maxIter int) ([]int, float64) {
	k, dim := len(centers), len(centers[0])
	labels := make([]int, len(vectors))
	for i := range labels {
		labels[i] = -1
	}

	for range maxIter {
		changed := false
		for i, v := range vectors {
			if c, _ := nearest(v, centers); c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([]embedding.Vector, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make(embedding.Vector, dim)
		}
		for i, v := range vectors {
			floats.Add(sums[labels[i]], v)
			counts[labels[i]]++
		}
		for c := range centers {
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			centers[c] = sums[c]
		}
	}

	inertia := 0.0
	for i, v := range vectors {
		inertia += sqDist(v, centers[labels[i]])
	}
	return labels, inertia
}

func nearest(v embedding.Vector, centers []embedding.Vector) (int, float64) {
	best, bestD := 0, math.Inf(1)
	for c, center := range centers {
		if d := sqDist(v, center); d < bestD {
			best, bestD = c, d
		}
	}
	return best, bestD
}

func sqDist(a, b embedding.Vector) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

func clone(v embedding.Vector) embedding.Vector {
	out := make(embedding.Vector, len(v))
	copy(out, v)
	return out
}
