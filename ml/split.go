package ml

import "math/rand"

// TrainTestSplit shuffles 0..n-1 with a source seeded by seed and holds out
// floor(n*testRatio) indices for testing. The same arguments always give the same partitions.
func TrainTestSplit(n int, testRatio float64, seed int64) (train, test []int) {
	if testRatio < 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	indices := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(float64(n) * testRatio)
	return indices[nTest:], indices[:nTest]
}

// SelectRows picks the given rows out of features and labels, keeping them aligned.
func SelectRows(features [][]float64, labels []int, indices []int) ([][]float64, []int) {
	x := make([][]float64, len(indices))
	y := make([]int, len(indices))
	for i, idx := range indices {
		x[i] = features[idx]
		y[i] = labels[idx]
	}
	return x, y
}
