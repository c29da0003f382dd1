package calculator

import (
	"sort"
)

// ClassificationMetrics holds the validation metrics stored on a trained
// classifier. All ratios are zero-division-safe: an undefined metric is
// reported as 0 rather than raised, so callers must check class balance before
// reading a 0 as model failure.
type ClassificationMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	AUC       float64 `json:"auc"`
}

// EvaluateBinary scores hard predictions and probabilities against true
// binary labels.
func EvaluateBinary(yTrue, yPred, proba []float64) ClassificationMetrics {
	var tp, fp, tn, fn float64
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			tp++
		case yTrue[i] == 0 && yPred[i] == 1:
			fp++
		case yTrue[i] == 0 && yPred[i] == 0:
			tn++
		default:
			fn++
		}
	}

	m := ClassificationMetrics{}
	if n := tp + fp + tn + fn; n > 0 {
		m.Accuracy = (tp + tn) / n
	}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.AUC = AUC(yTrue, proba)
	return m
}

// AUC computes the rank-based (Mann-Whitney) area under the ROC curve with
// average ranks for ties. A single-class label vector yields 0, not an error.
func AUC(yTrue, proba []float64) float64 {
	var nPos, nNeg float64
	for _, y := range yTrue {
		if y == 1 {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0
	}

	idx := make([]int, len(proba))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return proba[idx[a]] < proba[idx[b]]
	})

	ranks := make([]float64, len(proba))
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && proba[idx[j]] == proba[idx[i]] {
			j++
		}
		// average rank across the tie group, 1-based
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}

	var rankSum float64
	for i, y := range yTrue {
		if y == 1 {
			rankSum += ranks[i]
		}
	}

	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}
