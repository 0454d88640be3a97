package ml

import (
	"errors"
	"math/rand"
	"sort"
)

// TreeOptions are the decision tree hyperparameters. Zero MaxDepth means unbounded,
// zero MaxFeatures means every feature is considered at each split.
type TreeOptions struct {
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MaxFeatures     int   `json:"max_features"`
	Seed            int64 `json:"seed"`
}

// DecisionTree is a binary CART classifier stored as a flat node slice.
type DecisionTree struct {
	Options TreeOptions `json:"options"`
	Nodes   []TreeNode  `json:"nodes"`
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	IsLeaf     bool    `json:"is_leaf"`
	// Probability is the share of class 1 among the training samples that reached the node.
	Probability float64 `json:"probability"`
	Samples     int     `json:"samples"`
}

func NewDecisionTree(opts TreeOptions) *DecisionTree {
	return &DecisionTree{Options: opts}
}

func (dt *DecisionTree) Train(features [][]float64, labels []int) error {
	if err := checkTrainingSet(features, labels); err != nil {
		return err
	}
	indices := make([]int, len(features))
	for i := range indices {
		indices[i] = i
	}
	dt.fit(features, labels, indices, rand.New(rand.NewSource(dt.Options.Seed)))
	return nil
}

func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	node, err := dt.leaf(features)
	if err != nil {
		return 0, 0, err
	}
	if node.ClassLabel == 1 {
		return 1, node.Probability, nil
	}
	return 0, 1 - node.Probability, nil
}

// probability returns P(class 1) for features.
func (dt *DecisionTree) probability(features []float64) (float64, error) {
	node, err := dt.leaf(features)
	if err != nil {
		return 0, err
	}
	return node.Probability, nil
}

func (dt *DecisionTree) leaf(features []float64) (TreeNode, error) {
	if len(dt.Nodes) == 0 {
		return TreeNode{}, errors.New("model not trained")
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return TreeNode{}, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx <= 0 || idx >= len(dt.Nodes) {
			return TreeNode{}, errors.New("invalid tree state")
		}
	}
}

func (dt *DecisionTree) fit(features [][]float64, labels []int, indices []int, rng *rand.Rand) {
	b := &treeBuilder{
		features: features,
		labels:   labels,
		opts:     dt.Options,
		rng:      rng,
	}
	if b.opts.MinSamplesSplit < 2 {
		b.opts.MinSamplesSplit = 2
	}
	b.build(indices, 0)
	dt.Nodes = b.nodes
}

type treeBuilder struct {
	features [][]float64
	labels   []int
	opts     TreeOptions
	rng      *rand.Rand
	nodes    []TreeNode
}

// build appends the subtree for indices in pre-order and returns the index of its root.
func (b *treeBuilder) build(indices []int, depth int) int {
	counts := b.count(indices)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, leafNode(counts))

	if b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth {
		return idx
	}
	if len(indices) < b.opts.MinSamplesSplit || counts[0] == 0 || counts[1] == 0 {
		return idx
	}

	feature, threshold, ok := b.bestSplit(indices, counts)
	if !ok {
		return idx
	}
	left, right := b.partition(indices, feature, threshold)
	leftIdx := b.build(left, depth+1)
	rightIdx := b.build(right, depth+1)

	node := &b.nodes[idx]
	node.IsLeaf = false
	node.FeatureIdx = feature
	node.Threshold = threshold
	node.LeftChild = leftIdx
	node.RightChild = rightIdx
	return idx
}

func (b *treeBuilder) count(indices []int) [2]int {
	var counts [2]int
	for _, i := range indices {
		counts[b.labels[i]]++
	}
	return counts
}

// bestSplit scans candidate features in random order. Once MaxFeatures features have been
// looked at it stops, provided a valid split was found.
func (b *treeBuilder) bestSplit(indices []int, parent [2]int) (int, float64, bool) {
	featureCount := len(b.features[0])
	order := b.rng.Perm(featureCount)
	limit := b.opts.MaxFeatures
	if limit <= 0 || limit > featureCount {
		limit = featureCount
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := 0.0
	sorted := make([]int, len(indices))

	for visited, feature := range order {
		if visited >= limit && bestFeature >= 0 {
			break
		}
		copy(sorted, indices)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.features[sorted[a]][feature] < b.features[sorted[c]][feature]
		})

		var left [2]int
		right := parent
		for pos := 0; pos < len(sorted)-1; pos++ {
			label := b.labels[sorted[pos]]
			left[label]++
			right[label]--

			current := b.features[sorted[pos]][feature]
			next := b.features[sorted[pos+1]][feature]
			if current == next {
				continue
			}
			impurity := weightedGini(left, right)
			if bestFeature < 0 || impurity < bestImpurity {
				threshold := current + (next-current)/2
				if threshold >= next {
					threshold = current
				}
				bestFeature = feature
				bestThreshold = threshold
				bestImpurity = impurity
			}
		}
	}
	if bestFeature < 0 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func (b *treeBuilder) partition(indices []int, feature int, threshold float64) ([]int, []int) {
	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, i := range indices {
		if b.features[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func leafNode(counts [2]int) TreeNode {
	total := counts[0] + counts[1]
	node := TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		IsLeaf:     true,
		Samples:    total,
	}
	if total > 0 {
		node.Probability = float64(counts[1]) / float64(total)
	}
	// ties go to class 0
	if counts[1] > counts[0] {
		node.ClassLabel = 1
	}
	return node
}

func weightedGini(left, right [2]int) float64 {
	leftWeight := float64(left[0] + left[1])
	rightWeight := float64(right[0] + right[1])
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(left) + (rightWeight/total)*gini(right)
}

func gini(counts [2]int) float64 {
	total := float64(counts[0] + counts[1])
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / total
		impurity -= prob * prob
	}
	return impurity
}

func checkTrainingSet(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	width := len(features[0])
	for _, row := range features {
		if len(row) != width {
			return errors.New("feature rows have different lengths")
		}
	}
	for _, label := range labels {
		if label != 0 && label != 1 {
			return errors.New("labels must be 0 or 1")
		}
	}
	return nil
}
