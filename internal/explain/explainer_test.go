package explain

import (
	"testing"

	"bankiq/internal/features"
	"bankiq/internal/predict"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// linearModel is a margin-only stub with no tree ensemble, forcing the
// sampling path.
type linearModel struct {
	weights []float64
	bias    float64
}

func (m linearModel) RawPredict(row []float64) float64 {
	out := m.bias
	for i, w := range m.weights {
		out += w * row[i]
	}
	return out
}

func trainedBooster(t *testing.T) *predict.Booster {
	t.Helper()

	x := mat.NewDense(60, 2, nil)
	y := make([]float64, 60)
	for i := 0; i < 60; i++ {
		if i < 30 {
			x.Set(i, 0, 0.1*float64(i))
		} else {
			x.Set(i, 0, 7.0+0.1*float64(i-30))
			y[i] = 1
		}
		x.Set(i, 1, float64(i%7))
	}

	p := predict.New(predict.DefaultConfig(), features.NewEngineer(features.DefaultConfig()))
	_, err := p.Fit(x, y, 0.2, 10)
	require.NoError(t, err)
	return p.Booster()
}

func TestTreeExplainer(t *testing.T) {
	booster := trainedBooster(t)
	e := NewExplainer(booster, []string{"signal", "noise"})

	// one clearly negative and one clearly positive instance
	x := mat.NewDense(2, 2, []float64{
		0.5, 3,
		8.5, 3,
	})

	values, err := e.Explain(x)
	require.NoError(t, err)
	require.Len(t, values, 2)

	t.Run("signal feature drives the attributions", func(t *testing.T) {
		require.Less(t, values[0][0], 0.0)
		require.Greater(t, values[1][0], 0.0)
	})

	t.Run("importance ranks the signal first", func(t *testing.T) {
		importances, err := e.FeatureImportance()
		require.NoError(t, err)
		require.Len(t, importances, 2)
		require.Equal(t, "signal", importances[0].Feature)
		require.GreaterOrEqual(t, importances[0].Importance, importances[1].Importance)
	})

	t.Run("single instance sorts by magnitude", func(t *testing.T) {
		contributions, err := e.ExplainSingle(x, 1)
		require.NoError(t, err)
		require.Len(t, contributions, 2)
		require.Equal(t, "signal", contributions[0].Feature)
	})

	t.Run("rejects an out-of-range index", func(t *testing.T) {
		_, err := e.ExplainSingle(x, 5)
		require.Error(t, err)
	})

	t.Run("renders a readable summary", func(t *testing.T) {
		text, err := e.ExplanationText(x, 1, 2)
		require.NoError(t, err)
		require.Contains(t, text, "predicted probability")
		require.Contains(t, text, "top contributing factors")
		require.Contains(t, text, "signal")
	})

	t.Run("batch keeps the top n per instance", func(t *testing.T) {
		batch, err := e.BatchExplain(x, 1)
		require.NoError(t, err)
		require.Len(t, batch, 2)
		for i, b := range batch {
			require.Equal(t, i, b.Index)
			require.Len(t, b.Top, 1)
		}
	})
}

func TestSamplingExplainer(t *testing.T) {
	model := linearModel{weights: []float64{2, -1}, bias: 0.5}

	t.Run("requires a background sample", func(t *testing.T) {
		e := NewExplainer(model, []string{"a", "b"})
		_, err := e.Explain(mat.NewDense(1, 2, []float64{3, 4}))
		require.Error(t, err)
	})

	t.Run("recovers exact linear contributions against a zero background", func(t *testing.T) {
		e := NewExplainer(model, []string{"a", "b"}).
			WithBackground(mat.NewDense(3, 2, nil))

		values, err := e.Explain(mat.NewDense(1, 2, []float64{3, 4}))
		require.NoError(t, err)
		require.Len(t, values, 1)
		require.InDelta(t, 6.0, values[0][0], 1e-9)
		require.InDelta(t, -4.0, values[0][1], 1e-9)
	})

	t.Run("truncates oversized backgrounds", func(t *testing.T) {
		bg := mat.NewDense(250, 2, nil)
		e := NewExplainer(model, []string{"a", "b"}).WithBackground(bg)
		rows, _ := e.background.Dims()
		require.Equal(t, maxBackgroundRows, rows)
	})
}

func TestFeatureImportanceBeforeExplain(t *testing.T) {
	e := NewExplainer(linearModel{weights: []float64{1}}, []string{"a"})
	_, err := e.FeatureImportance()
	require.Error(t, err)
}
