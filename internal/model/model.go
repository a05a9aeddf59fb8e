// Package model defines the Model capability interface that replaces the
// duck-typed ".predict/.score/.n_features_" objects of the source system
// (see Design Notes) with an explicit interface and a tagged binary
// serialization envelope.
package model

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Kind identifies which concrete Model implementation an Envelope carries.
type Kind string

const (
	// KindForecastGBT is a gradient-boosted-tree-style regressor for the
	// forecast model family.
	KindForecastGBT Kind = "forecast_gbt"
	// KindAnomalyIForest is an isolation-forest-style detector for the
	// anomaly model family.
	KindAnomalyIForest Kind = "anomaly_iforest"
)

// envelopeVersion is the binary envelope's format version, bumped whenever
// the gob-encoded payload shape changes incompatibly.
const envelopeVersion = 1

// Model is the capability interface every trained model implements,
// replacing the source's duck-typed `.predict`/`.score`/`.n_features_` calls.
type Model interface {
	// Predict returns one prediction per input row.
	Predict(x [][]float64) ([]float64, error)
	// FeatureCount reports how many input columns the model expects.
	FeatureCount() int
	// Score returns a goodness-of-fit score (r² for regressors, a
	// decision-function score for detectors) given labeled data.
	Score(x [][]float64, y []float64) (float64, error)
	// Kind reports the model's family, used to pick the right decoder.
	Kind() Kind
}

// Envelope is the tagged binary serialization of a trained Model: kind,
// format version, and an opaque payload — replacing the source's generic
// object-pickler with an explicit, versioned format.
type Envelope struct {
	Kind    Kind
	Version int
	Payload []byte
}

// Encode serializes m into a versioned, kind-tagged Envelope.
func Encode(m Model) (*Envelope, error) {
	var buf bytes.Buffer

	enc := gob.NewEncoder(&buf)

	switch impl := m.(type) {
	case *ForecastGBT:
		if err := enc.Encode(impl); err != nil {
			return nil, fmt.Errorf("encode forecast model: %w", err)
		}
	case *AnomalyIForest:
		if err := enc.Encode(impl); err != nil {
			return nil, fmt.Errorf("encode anomaly model: %w", err)
		}
	default:
		return nil, fmt.Errorf("encode: unsupported model kind %T", m)
	}

	return &Envelope{Kind: m.Kind(), Version: envelopeVersion, Payload: buf.Bytes()}, nil
}

// Decode reconstructs a Model from its Envelope.
func Decode(env *Envelope) (Model, error) {
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("decode: unsupported envelope version %d", env.Version)
	}

	dec := gob.NewDecoder(bytes.NewReader(env.Payload))

	switch env.Kind {
	case KindForecastGBT:
		m := &ForecastGBT{}
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("decode forecast model: %w", err)
		}

		return m, nil
	case KindAnomalyIForest:
		m := &AnomalyIForest{}
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("decode anomaly model: %w", err)
		}

		return m, nil
	default:
		return nil, fmt.Errorf("decode: unknown model kind %q", env.Kind)
	}
}
