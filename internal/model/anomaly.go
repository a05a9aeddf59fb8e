package model

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	defaultIForestTrees    = 100
	defaultIForestSubSize  = 256
	isolationC0Correction  = 0.5772156649 // Euler-Mascheroni constant, used in the average-path-length normalizer
)

// isoNode is one node of an isolation tree: either a split (Feature/Threshold
// with Left/Right children) or a leaf (SizeAtLeaf holds the count of points
// that reached it, used for the path-length correction term).
type isoNode struct {
	Feature    int
	Threshold  float64
	Left       *isoNode
	Right      *isoNode
	IsLeaf     bool
	SizeAtLeaf int
}

// AnomalyIForest is an isolation-forest-style detector: anomaly scores derive
// from the average path length to isolate a point across a forest of random
// partitioning trees, the anomaly model family's concrete Model
// implementation (spec's Design Notes §9 calls for one concrete
// implementation per trained-model-kind rather than a duck-typed object).
type AnomalyIForest struct {
	NFeatures  int
	SubSize    int
	Trees      []*isoNode
	ScoreScale float64
}

var _ Model = (*AnomalyIForest)(nil)

// NewAnomalyIForest fits an AnomalyIForest on x with nEstimators trees,
// deterministically for a fixed seed.
func NewAnomalyIForest(x [][]float64, nEstimators int, seed int64) (*AnomalyIForest, error) {
	if len(x) == 0 {
		return nil, ErrEmptyDataset
	}

	if nEstimators <= 0 {
		nEstimators = defaultIForestTrees
	}

	nFeatures := len(x[0])
	subSize := defaultIForestSubSize

	if subSize > len(x) {
		subSize = len(x)
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic fit, not security-sensitive
	maxDepth := int(math.Ceil(math.Log2(float64(subSize))))

	trees := make([]*isoNode, 0, nEstimators)

	for t := 0; t < nEstimators; t++ {
		sample := sampleRows(rng, x, subSize)
		trees = append(trees, buildIsoTree(rng, sample, nFeatures, 0, maxDepth))
	}

	return &AnomalyIForest{
		NFeatures:  nFeatures,
		SubSize:    subSize,
		Trees:      trees,
		ScoreScale: averagePathLengthNormalizer(subSize),
	}, nil
}

func (a *AnomalyIForest) Kind() Kind { return KindAnomalyIForest }

func (a *AnomalyIForest) FeatureCount() int { return a.NFeatures }

// Predict returns an anomaly score per row in [0,1]; scores near 1 indicate
// short average isolation paths (anomalous), scores near 0.5 indicate normal
// points, matching the conventional isolation-forest score definition.
func (a *AnomalyIForest) Predict(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))

	for i, row := range x {
		if len(row) != a.NFeatures {
			return nil, fmt.Errorf("predict: expected %d features, got %d", a.NFeatures, len(row))
		}

		var pathSum float64

		for _, tree := range a.Trees {
			pathSum += pathLength(tree, row, 0)
		}

		avgPath := pathSum / float64(len(a.Trees))
		out[i] = math.Pow(2, -avgPath/a.ScoreScale)
	}

	return out, nil
}

// Score returns the mean anomaly score over x (labels y are accepted for
// interface symmetry with ForecastGBT but are not used — isolation forests
// are unsupervised).
func (a *AnomalyIForest) Score(x [][]float64, _ []float64) (float64, error) {
	scores, err := a.Predict(x)
	if err != nil {
		return 0, err
	}

	return mean(scores), nil
}

func sampleRows(rng *rand.Rand, x [][]float64, n int) [][]float64 {
	perm := rng.Perm(len(x))
	out := make([][]float64, n)

	for i := 0; i < n; i++ {
		out[i] = x[perm[i]]
	}

	return out
}

func buildIsoTree(rng *rand.Rand, rows [][]float64, nFeatures, depth, maxDepth int) *isoNode {
	if depth >= maxDepth || len(rows) <= 1 {
		return &isoNode{IsLeaf: true, SizeAtLeaf: len(rows)}
	}

	feat := rng.Intn(nFeatures)

	minV, maxV := featureRange(rows, feat)
	if minV == maxV {
		return &isoNode{IsLeaf: true, SizeAtLeaf: len(rows)}
	}

	threshold := minV + rng.Float64()*(maxV-minV)

	var left, right [][]float64

	for _, row := range rows {
		if row[feat] < threshold {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	if len(left) == 0 || len(right) == 0 {
		return &isoNode{IsLeaf: true, SizeAtLeaf: len(rows)}
	}

	return &isoNode{
		Feature:   feat,
		Threshold: threshold,
		Left:      buildIsoTree(rng, left, nFeatures, depth+1, maxDepth),
		Right:     buildIsoTree(rng, right, nFeatures, depth+1, maxDepth),
	}
}

func featureRange(rows [][]float64, feat int) (float64, float64) {
	minV, maxV := rows[0][feat], rows[0][feat]

	for _, row := range rows[1:] {
		if row[feat] < minV {
			minV = row[feat]
		}

		if row[feat] > maxV {
			maxV = row[feat]
		}
	}

	return minV, maxV
}

func pathLength(node *isoNode, row []float64, depth int) float64 {
	if node.IsLeaf {
		return float64(depth) + averagePathLengthNormalizer(node.SizeAtLeaf)
	}

	if row[node.Feature] < node.Threshold {
		return pathLength(node.Left, row, depth+1)
	}

	return pathLength(node.Right, row, depth+1)
}

// averagePathLengthNormalizer is c(n), the expected average path length of
// an unsuccessful BST search, used to normalize raw path lengths into
// isolation-forest anomaly scores.
func averagePathLengthNormalizer(n int) float64 {
	if n <= 1 {
		return 0
	}

	if n == 2 {
		return 1
	}

	return 2*(math.Log(float64(n-1))+isolationC0Correction) - 2*float64(n-1)/float64(n)
}
