package ml

// Classifier is a binary classifier over encoded feature vectors.
// Predict returns the class (0 or 1) and the confidence in that class.
type Classifier interface {
	Train(features [][]float64, labels []int) error
	Predict(features []float64) (int, float64, error)
}
