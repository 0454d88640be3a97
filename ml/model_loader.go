package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	ModelDecisionTree = "decision_tree"
	ModelRandomForest = "random_forest"
)

// Hyperparams are the training settings shared by both model types.
type Hyperparams struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MaxFeatures     int
	Seed            int64
}

// NewClassifier returns an untrained classifier of modelType.
func NewClassifier(modelType string, params Hyperparams) (Classifier, error) {
	switch modelType {
	case ModelDecisionTree:
		return NewDecisionTree(TreeOptions{
			MaxDepth:        params.MaxDepth,
			MinSamplesSplit: params.MinSamplesSplit,
			MaxFeatures:     params.MaxFeatures,
			Seed:            params.Seed,
		}), nil
	case ModelRandomForest:
		return NewRandomForest(ForestOptions{
			NEstimators:     params.NEstimators,
			MaxDepth:        params.MaxDepth,
			MinSamplesSplit: params.MinSamplesSplit,
			MaxFeatures:     params.MaxFeatures,
			Bootstrap:       true,
			Seed:            params.Seed,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}

// ModelMetadata is informational; nothing reads it back for prediction.
type ModelMetadata struct {
	RunID     string    `json:"run_id"`
	Dataset   string    `json:"dataset"`
	TrainedAt time.Time `json:"trained_at"`
	TrainRows int       `json:"train_rows"`
	TestRows  int       `json:"test_rows"`
	Report    Report    `json:"report"`
}

// ModelArtifact is the persisted classifier together with the schema it was fitted on.
type ModelArtifact struct {
	Type     string        `json:"type"`
	Schema   *Schema       `json:"schema"`
	Tree     *DecisionTree `json:"tree,omitempty"`
	Forest   *RandomForest `json:"forest,omitempty"`
	Metadata ModelMetadata `json:"metadata"`
}

// NewModelArtifact wraps a trained classifier.
func NewModelArtifact(classifier Classifier, schema *Schema) (*ModelArtifact, error) {
	artifact := &ModelArtifact{Schema: schema}
	switch model := classifier.(type) {
	case *DecisionTree:
		artifact.Type = ModelDecisionTree
		artifact.Tree = model
	case *RandomForest:
		artifact.Type = ModelRandomForest
		artifact.Forest = model
	default:
		return nil, fmt.Errorf("cannot persist classifier of type %T", classifier)
	}
	return artifact, nil
}

// Classifier returns the trained model held by the artifact.
func (a *ModelArtifact) Classifier() (Classifier, error) {
	switch a.Type {
	case ModelDecisionTree:
		if a.Tree == nil || len(a.Tree.Nodes) == 0 {
			return nil, errors.New("decision tree has no nodes")
		}
		return a.Tree, nil
	case ModelRandomForest:
		if a.Forest == nil || len(a.Forest.Trees) == 0 {
			return nil, errors.New("random forest has no trees")
		}
		for i, tree := range a.Forest.Trees {
			if tree == nil || len(tree.Nodes) == 0 {
				return nil, fmt.Errorf("tree %d has no nodes", i)
			}
		}
		return a.Forest, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", a.Type)
	}
}

// SaveModel writes the artifact as JSON.
func SaveModel(path string, artifact *ModelArtifact) error {
	payload, err := marshalModel(path, artifact)
	if err != nil {
		return err
	}
	return writeFiles(&artifactFile{path: path, payload: payload})
}

func marshalModel(path string, artifact *ModelArtifact) ([]byte, error) {
	if _, err := artifact.Classifier(); err != nil {
		return nil, artifactError(path, err)
	}
	payload, err := json.Marshal(artifact)
	if err != nil {
		return nil, artifactError(path, err)
	}
	return payload, nil
}

// LoadModel reads and checks an artifact written by SaveModel.
func LoadModel(path string) (*ModelArtifact, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, artifactError(path, err)
	}
	var artifact ModelArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, artifactError(path, err)
	}
	if artifact.Schema == nil {
		return nil, artifactError(path, errors.New("missing schema"))
	}
	if _, err := artifact.Classifier(); err != nil {
		return nil, artifactError(path, err)
	}
	return &artifact, nil
}
