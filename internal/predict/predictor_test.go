package predict

import (
	"path/filepath"
	"testing"

	"bankiq/internal/domain"
	"bankiq/internal/features"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newPredictor() *HighValuePredictor {
	return New(DefaultConfig(), features.NewEngineer(features.DefaultConfig()))
}

// separableData builds 60 rows where the first feature alone decides the
// label and the second is noise.
func separableData() (*mat.Dense, []float64) {
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
	return x, y
}

func TestPrepareData(t *testing.T) {
	f := domain.NewFrame(5)
	f.SetIDs([]string{"c1", "c2", "c3", "c4", "c5"})
	f.SetColumn(domain.ColTotalAssets, []float64{50000, 200000, 950000, 1100000, 400000})
	f.SetColumn(domain.ColMonthlyIncome, []float64{3000, 6000, 12000, 20000, 7000})
	f.SetColumn(domain.ColProductCount, []float64{1, 2, 3, 4, 2})
	f.SetColumn(domain.ColAppLoginCount, []float64{2, 10, 18, 25, 8})
	f.SetColumn(domain.ColFinancialRepurchaseCount, []float64{0, 1, 4, 6, 1})
	f.SetColumn(domain.ColInvestmentMonthlyCount, []float64{0, 1, 2, 3, 1})

	p := newPredictor()
	x, y, err := p.PrepareData(f)
	require.NoError(t, err)

	rows, cols := x.Dims()
	require.Equal(t, 5, rows)
	require.Equal(t, 6, cols)
	require.Equal(t, "", cmp.Diff(features.HighValueFeatures, p.FeatureNames()))

	require.Len(t, y, 5)
	for _, label := range y {
		require.Contains(t, []float64{0, 1}, label)
	}

	t.Run("reruns produce the same label", func(t *testing.T) {
		_, again, err := newPredictor().PrepareData(f)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(y, again))
	})

	t.Run("expression features join the matrix", func(t *testing.T) {
		fcfg := features.DefaultConfig()
		fcfg.ExpressionDerivations = []features.ExpressionDerivation{
			{Target: "asset_to_income", Expression: "total_assets / max(monthly_income, 1.0)"},
		}
		cfg := DefaultConfig()
		cfg.Features = append(append([]string{}, features.HighValueFeatures...), "asset_to_income")

		p := New(cfg, features.NewEngineer(fcfg))
		x, _, err := p.PrepareData(f)
		require.NoError(t, err)

		_, cols := x.Dims()
		require.Equal(t, 7, cols)
		require.Contains(t, p.FeatureNames(), "asset_to_income")
		require.InDelta(t, 50000.0/3000.0, x.At(0, 6), 1e-9)
	})
}

func TestFit(t *testing.T) {
	x, y := separableData()

	t.Run("learns a separable problem", func(t *testing.T) {
		p := newPredictor()
		metrics, err := p.Fit(x, y, 0.2, 10)
		require.NoError(t, err)
		require.Greater(t, metrics.AUC, 0.9)
		require.Greater(t, metrics.Accuracy, 0.9)
		require.True(t, p.IsFitted())
	})

	t.Run("single-class labels train without error", func(t *testing.T) {
		allZero := make([]float64, 60)
		p := newPredictor()
		metrics, err := p.Fit(x, allZero, 0.2, 10)
		require.NoError(t, err)
		require.Equal(t, 0.0, metrics.AUC)
	})

	t.Run("rejects mismatched label count", func(t *testing.T) {
		_, err := newPredictor().Fit(x, y[:10], 0.2, 10)
		require.Error(t, err)
	})
}

func TestPredict(t *testing.T) {
	x, y := separableData()
	p := newPredictor()
	_, err := p.Fit(x, y, 0.2, 10)
	require.NoError(t, err)

	t.Run("probabilities stay in range and order by the signal", func(t *testing.T) {
		proba, err := p.PredictProba(x)
		require.NoError(t, err)
		require.Len(t, proba, 60)
		for _, pr := range proba {
			require.GreaterOrEqual(t, pr, 0.0)
			require.LessOrEqual(t, pr, 1.0)
		}
		require.Greater(t, proba[59], proba[0])
	})

	t.Run("zero threshold defaults to 0.5", func(t *testing.T) {
		defaulted, err := p.Predict(x, 0)
		require.NoError(t, err)
		explicit, err := p.Predict(x, 0.5)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(explicit, defaulted))
	})

	t.Run("hard labels recover the signal", func(t *testing.T) {
		pred, err := p.Predict(x, 0.5)
		require.NoError(t, err)
		require.Equal(t, 0.0, pred[0])
		require.Equal(t, 1.0, pred[59])
	})

	t.Run("requires a fitted model", func(t *testing.T) {
		_, err := newPredictor().PredictProba(x)
		require.ErrorIs(t, err, domain.ErrNotFitted)
	})
}

func TestFeatureImportance(t *testing.T) {
	x, y := separableData()
	p := newPredictor()
	_, err := p.Fit(x, y, 0.2, 10)
	require.NoError(t, err)

	for _, kind := range []string{"gain", "split"} {
		t.Run(kind, func(t *testing.T) {
			importances, err := p.FeatureImportance(kind)
			require.NoError(t, err)
			require.Len(t, importances, 2)
			require.Equal(t, "feature_0", importances[0].Feature)
			require.GreaterOrEqual(t, importances[0].Importance, importances[1].Importance)
		})
	}

	t.Run("requires a fitted model", func(t *testing.T) {
		_, err := newPredictor().FeatureImportance("gain")
		require.ErrorIs(t, err, domain.ErrNotFitted)
	})
}

func TestSaveLoad(t *testing.T) {
	x, y := separableData()
	p := newPredictor()
	_, err := p.Fit(x, y, 0.2, 10)
	require.NoError(t, err)

	proba, err := p.PredictProba(x)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, p.Save(path))

	restored := newPredictor()
	require.NoError(t, restored.Load(path))
	require.True(t, restored.IsFitted())
	require.Equal(t, "", cmp.Diff(p.FeatureNames(), restored.FeatureNames()))
	require.Equal(t, "", cmp.Diff(p.Metrics(), restored.Metrics()))

	restoredProba, err := restored.PredictProba(x)
	require.NoError(t, err)
	require.Equal(t, "", cmp.Diff(proba, restoredProba))

	t.Run("save requires a fitted model", func(t *testing.T) {
		err := newPredictor().Save(filepath.Join(t.TempDir(), "unfitted.json"))
		require.ErrorIs(t, err, domain.ErrNotFitted)
	})
}
