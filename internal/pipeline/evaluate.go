package pipeline

import (
	"math"

	"github.com/correlator-io/trainhub/internal/model"
)

// EvaluateForecast computes {mae, rmse, mape, r2} over the test split (spec
// §4.6).
func EvaluateForecast(m model.Model, test Dataset) (map[string]float64, error) {
	x, y := test.Matrix()

	preds, err := m.Predict(x)
	if err != nil {
		return nil, err
	}

	var sumAbs, sumSq, sumPctAbs float64

	n := float64(len(y))

	for i, pred := range preds {
		diff := y[i] - pred

		sumAbs += math.Abs(diff)
		sumSq += diff * diff

		if y[i] != 0 {
			sumPctAbs += math.Abs(diff / y[i])
		}
	}

	r2, err := m.Score(x, y)
	if err != nil {
		return nil, err
	}

	return map[string]float64{
		"mae":  sumAbs / n,
		"rmse": math.Sqrt(sumSq / n),
		"mape": (sumPctAbs / n) * 100,
		"r2":   r2,
	}, nil
}

// anomalyThreshold is the isolation-score cutoff above which an observation
// is classified as anomalous for evaluation purposes (spec §4.6, anomaly
// metrics).
const anomalyThreshold = 0.6

// EvaluateAnomaly computes {prec, rec, f1, auc} over the test split, where
// Row.Target carries the binary ground-truth label (1 = anomalous) and the
// model's Predict output is thresholded at anomalyThreshold (spec §4.6).
func EvaluateAnomaly(m model.Model, test Dataset) (map[string]float64, error) {
	x, y := test.Matrix()

	scores, err := m.Predict(x)
	if err != nil {
		return nil, err
	}

	var truePos, falsePos, falseNeg, trueNeg float64

	for i, score := range scores {
		predicted := score >= anomalyThreshold
		actual := y[i] >= 0.5

		switch {
		case predicted && actual:
			truePos++
		case predicted && !actual:
			falsePos++
		case !predicted && actual:
			falseNeg++
		default:
			trueNeg++
		}
	}

	precision := safeDiv(truePos, truePos+falsePos)
	recall := safeDiv(truePos, truePos+falseNeg)
	f1 := safeDiv(2*precision*recall, precision+recall)

	return map[string]float64{
		"prec": precision,
		"rec":  recall,
		"f1":   f1,
		"auc":  approximateAUC(scores, y),
	}, nil
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}

	return a / b
}

// approximateAUC computes the rank-based (Mann-Whitney U) AUC estimator,
// avoiding an explicit ROC-curve sweep.
func approximateAUC(scores, labels []float64) float64 {
	type pair struct {
		score float64
		label float64
	}

	pairs := make([]pair, len(scores))
	for i := range scores {
		pairs[i] = pair{scores[i], labels[i]}
	}

	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j-1].score > pairs[j].score; j-- {
			pairs[j-1], pairs[j] = pairs[j], pairs[j-1]
		}
	}

	var positives, negatives, rankSum float64

	for i, p := range pairs {
		rank := float64(i + 1)
		if p.label >= 0.5 {
			positives++
			rankSum += rank
		} else {
			negatives++
		}
	}

	if positives == 0 || negatives == 0 {
		return 0
	}

	return (rankSum - positives*(positives+1)/2) / (positives * negatives)
}
