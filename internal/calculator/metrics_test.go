package calculator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestAUC(t *testing.T) {
	t.Run("perfect separation", func(t *testing.T) {
		auc := AUC(
			[]float64{0, 0, 1, 1},
			[]float64{0.1, 0.2, 0.8, 0.9},
		)
		require.Equal(t, 1.0, auc)
	})

	t.Run("inverted ranking", func(t *testing.T) {
		auc := AUC(
			[]float64{0, 0, 1, 1},
			[]float64{0.9, 0.8, 0.2, 0.1},
		)
		require.Equal(t, 0.0, auc)
	})

	t.Run("all tied scores", func(t *testing.T) {
		auc := AUC(
			[]float64{0, 1, 0, 1},
			[]float64{0.5, 0.5, 0.5, 0.5},
		)
		require.Equal(t, 0.5, auc)
	})

	t.Run("single class returns zero without error", func(t *testing.T) {
		auc := AUC(
			[]float64{0, 0, 0, 0},
			[]float64{0.1, 0.9, 0.4, 0.6},
		)
		require.Equal(t, 0.0, auc)
	})
}

func TestEvaluateBinary(t *testing.T) {
	t.Run("mixed outcomes", func(t *testing.T) {
		metrics := EvaluateBinary(
			[]float64{1, 1, 0, 0},
			[]float64{1, 0, 0, 1},
			[]float64{0.9, 0.4, 0.2, 0.6},
		)

		require.Equal(
			t,
			"",
			cmp.Diff(
				ClassificationMetrics{
					Accuracy:  0.5,
					Precision: 0.5,
					Recall:    0.5,
					F1:        0.5,
					AUC:       0.75,
				},
				metrics,
			),
		)
	})

	t.Run("no positive predictions keeps precision at zero", func(t *testing.T) {
		metrics := EvaluateBinary(
			[]float64{1, 0},
			[]float64{0, 0},
			[]float64{0.4, 0.3},
		)

		require.Equal(t, 0.5, metrics.Accuracy)
		require.Equal(t, 0.0, metrics.Precision)
		require.Equal(t, 0.0, metrics.Recall)
		require.Equal(t, 0.0, metrics.F1)
	})
}
