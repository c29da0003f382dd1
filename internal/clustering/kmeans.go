package clustering

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// kmeansResult is one converged partitioning of the standardized matrix.
type kmeansResult struct {
	centers [][]float64
	labels  []int
	inertia float64
}

// runKMeans fits k-means with kmeans++ seeding and nInit restarts, keeping the
// run with the lowest inertia. The seed fixes every random draw, so identical
// inputs and configuration always produce identical assignments.
func runKMeans(x *mat.Dense, k int, seed int64, nInit, maxIter int) kmeansResult {
	best := kmeansResult{inertia: math.Inf(1)}
	for run := 0; run < nInit; run++ {
		rng := rand.New(rand.NewSource(seed + int64(run)))
		res := lloyd(x, k, rng, maxIter)
		if res.inertia < best.inertia {
			best = res
		}
	}
	return best
}

func lloyd(x *mat.Dense, k int, rng *rand.Rand, maxIter int) kmeansResult {
	rows, cols := x.Dims()
	if k > rows {
		k = rows
	}

	centers := plusPlusInit(x, k, rng)
	labels := make([]int, rows)

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i := 0; i < rows; i++ {
			nearest, _ := nearestCenter(x.RawRowView(i), centers)
			if labels[i] != nearest {
				labels[i] = nearest
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		counts := make([]int, k)
		next := make([][]float64, k)
		for c := range next {
			next[c] = make([]float64, cols)
		}
		for i := 0; i < rows; i++ {
			counts[labels[i]]++
			row := x.RawRowView(i)
			for j := 0; j < cols; j++ {
				next[labels[i]][j] += row[j]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// relocate an empty cluster to the point farthest
				// from its assigned center
				next[c] = farthestPoint(x, centers, labels)
				continue
			}
			for j := 0; j < cols; j++ {
				next[c][j] /= float64(counts[c])
			}
		}
		centers = next
	}

	inertia := 0.0
	for i := 0; i < rows; i++ {
		nearest, dist := nearestCenter(x.RawRowView(i), centers)
		labels[i] = nearest
		inertia += dist
	}

	return kmeansResult{centers: centers, labels: labels, inertia: inertia}
}

// plusPlusInit picks initial centers with probability proportional to squared
// distance from the nearest chosen center.
func plusPlusInit(x *mat.Dense, k int, rng *rand.Rand) [][]float64 {
	rows, cols := x.Dims()
	centers := make([][]float64, 0, k)

	first := rng.Intn(rows)
	centers = append(centers, copyRow(x.RawRowView(first), cols))

	for len(centers) < k {
		dists := make([]float64, rows)
		total := 0.0
		for i := 0; i < rows; i++ {
			_, d := nearestCenter(x.RawRowView(i), centers)
			dists[i] = d
			total += d
		}
		if total == 0 {
			// all remaining points coincide with a center
			centers = append(centers, copyRow(x.RawRowView(rng.Intn(rows)), cols))
			continue
		}
		target := rng.Float64() * total
		cum := 0.0
		pick := rows - 1
		for i := 0; i < rows; i++ {
			cum += dists[i]
			if cum >= target {
				pick = i
				break
			}
		}
		centers = append(centers, copyRow(x.RawRowView(pick), cols))
	}

	return centers
}

func nearestCenter(row []float64, centers [][]float64) (int, float64) {
	bestIdx := 0
	bestDist := math.Inf(1)
	for c, center := range centers {
		d := sqDist(row, center)
		if d < bestDist {
			bestDist = d
			bestIdx = c
		}
	}
	return bestIdx, bestDist
}

func farthestPoint(x *mat.Dense, centers [][]float64, labels []int) []float64 {
	rows, cols := x.Dims()
	bestIdx := 0
	bestDist := -1.0
	for i := 0; i < rows; i++ {
		d := sqDist(x.RawRowView(i), centers[labels[i]])
		if d > bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	return copyRow(x.RawRowView(bestIdx), cols)
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

func copyRow(row []float64, cols int) []float64 {
	out := make([]float64, cols)
	copy(out, row)
	return out
}
