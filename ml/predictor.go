package ml

import "fmt"

// Predictor bundles the loaded artifacts. It is immutable after LoadPredictor and safe
// for concurrent use.
type Predictor struct {
	schema     *Schema
	encoders   EncoderTable
	classifier Classifier
}

// NewPredictor checks that schema, encoders and classifier agree with each other.
func NewPredictor(schema *Schema, encoders EncoderTable, classifier Classifier) (*Predictor, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier is nil")
	}
	if err := schema.Validate(encoders); err != nil {
		return nil, err
	}
	return &Predictor{schema: schema, encoders: encoders, classifier: classifier}, nil
}

// LoadPredictor reads both artifacts. Any failure is wrapped in ErrArtifact.
func LoadPredictor(modelPath, encodersPath string) (*Predictor, error) {
	artifact, err := LoadModel(modelPath)
	if err != nil {
		return nil, err
	}
	encoders, err := LoadEncoders(encodersPath)
	if err != nil {
		return nil, err
	}
	classifier, err := artifact.Classifier()
	if err != nil {
		return nil, artifactError(modelPath, err)
	}
	predictor, err := NewPredictor(artifact.Schema, encoders, classifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %s and %s do not match: %w", ErrArtifact, modelPath, encodersPath, err)
	}
	return predictor, nil
}

func (p *Predictor) Schema() *Schema {
	return p.schema
}

func (p *Predictor) Encoders() EncoderTable {
	return p.encoders
}

// Vector encodes record without classifying it.
func (p *Predictor) Vector(record map[string]string) ([]float64, error) {
	return p.schema.Vector(record, p.encoders)
}

// Classify returns the class for an already encoded vector.
func (p *Predictor) Classify(vector []float64) (int, float64, error) {
	return p.classifier.Predict(vector)
}

// Predict encodes and classifies one record, returning "Y" or "N".
func (p *Predictor) Predict(record map[string]string) (string, error) {
	vector, err := p.Vector(record)
	if err != nil {
		return "", err
	}
	class, _, err := p.Classify(vector)
	if err != nil {
		return "", err
	}
	return DecodePrediction(class), nil
}

