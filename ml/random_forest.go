package ml

import (
	"errors"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestOptions configure a RandomForest. Zero MaxFeatures selects sqrt(n_features).
type ForestOptions struct {
	NEstimators     int   `json:"n_estimators"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MaxFeatures     int   `json:"max_features"`
	Bootstrap       bool  `json:"bootstrap"`
	Seed            int64 `json:"seed"`
}

// RandomForest averages the class-1 probability of bootstrapped decision trees.
type RandomForest struct {
	Options ForestOptions   `json:"options"`
	Trees   []*DecisionTree `json:"trees"`
}

func NewRandomForest(opts ForestOptions) *RandomForest {
	if opts.NEstimators <= 0 {
		opts.NEstimators = 100
	}
	return &RandomForest{Options: opts}
}

// Train fits the trees concurrently. Tree i draws from its own source seeded with Seed+i,
// so the fitted forest does not depend on scheduling.
func (rf *RandomForest) Train(features [][]float64, labels []int) error {
	if err := checkTrainingSet(features, labels); err != nil {
		return err
	}
	n := len(features)
	maxFeatures := rf.Options.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Max(1, math.Sqrt(float64(len(features[0])))))
	}

	trees := make([]*DecisionTree, rf.Options.NEstimators)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		seed := rf.Options.Seed + int64(i)
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed))
			indices := make([]int, n)
			for j := range indices {
				if rf.Options.Bootstrap {
					indices[j] = rng.Intn(n)
				} else {
					indices[j] = j
				}
			}
			tree := NewDecisionTree(TreeOptions{
				MaxDepth:        rf.Options.MaxDepth,
				MinSamplesSplit: rf.Options.MinSamplesSplit,
				MaxFeatures:     maxFeatures,
				Seed:            seed,
			})
			tree.fit(features, labels, indices, rng)
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	rf.Trees = trees
	return nil
}

func (rf *RandomForest) Predict(features []float64) (int, float64, error) {
	if len(rf.Trees) == 0 {
		return 0, 0, errors.New("model not trained")
	}
	sum := 0.0
	for _, tree := range rf.Trees {
		p, err := tree.probability(features)
		if err != nil {
			return 0, 0, err
		}
		sum += p
	}
	p := sum / float64(len(rf.Trees))
	if p > 0.5 {
		return 1, p, nil
	}
	return 0, 1 - p, nil
}
