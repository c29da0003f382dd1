package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bankiq/internal/association"
	"bankiq/internal/clustering"
	"bankiq/internal/domain"
	"bankiq/internal/features"
	"bankiq/internal/predict"
	"bankiq/internal/repository"
	mock_repository "bankiq/internal/repository/mocks"
	"bankiq/internal/timeseries"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gonum.org/v1/gonum/mat"
)

func newHandler(outputDir string) *AnalysisHandler {
	engineer := features.NewEngineer(features.DefaultConfig())
	return &AnalysisHandler{
		Engineer:          engineer,
		Association:       association.NewAnalyzer(association.DefaultConfig(), engineer),
		Clusterer:         clustering.New(clustering.DefaultConfig(), engineer),
		Predictor:         predict.New(predict.DefaultConfig(), engineer),
		TrendAnalyzer:     timeseries.NewAssetTrendAnalyzer(timeseries.DefaultConfig()),
		ResultsRepository: repository.NewResultsRepository(outputDir),
	}
}

// customerFrame builds a deterministic 40-customer dataset with mixed product
// holdings and asset levels on both sides of the high-value threshold.
func customerFrame() *domain.Frame {
	n := 40
	f := domain.NewFrame(n)

	ids := make([]string, n)
	age := make([]float64, n)
	deposit := make([]float64, n)
	wealth := make([]float64, n)
	fund := make([]float64, n)
	insurance := make([]float64, n)
	aum := make([]float64, n)
	txnAmount := make([]float64, n)
	txnCount := make([]float64, n)
	logins := make([]float64, n)
	repurchase := make([]float64, n)
	investment := make([]float64, n)

	for i := 0; i < n; i++ {
		ids[i] = uuid.NewSHA1(uuid.NameSpaceOID, []byte{byte(i)}).String()
		age[i] = 25 + float64(i%40)
		if i%4 != 3 {
			deposit[i] = 50_000 + 1_000*float64(i)
		}
		if i%2 == 0 {
			wealth[i] = 20_000 + 500*float64(i)
		}
		if i%3 == 0 {
			fund[i] = 10_000
		}
		if i%5 == 0 {
			insurance[i] = 5_000
		}
		aum[i] = 200_000 * float64(i%8)
		txnAmount[i] = 10_000 + 200*float64(i)
		txnCount[i] = 5 + float64(i%10)
		logins[i] = float64(i % 25)
		repurchase[i] = float64(i % 5)
		investment[i] = float64(i % 4)
	}

	f.SetIDs(ids)
	f.SetColumn(domain.ColAge, age)
	f.SetColumn(domain.ColDepositBalance, deposit)
	f.SetColumn(domain.ColWealthManagementBalance, wealth)
	f.SetColumn(domain.ColFundBalance, fund)
	f.SetColumn(domain.ColInsuranceBalance, insurance)
	f.SetColumn(domain.ColTotalAum, aum)
	f.SetColumn(domain.ColMonthlyTransactionAmount, txnAmount)
	f.SetColumn(domain.ColMonthlyTransactionCount, txnCount)
	f.SetColumn(domain.ColMobileBankLoginCount, logins)
	f.SetColumn(domain.ColFinancialRepurchaseCount, repurchase)
	f.SetColumn(domain.ColInvestmentMonthlyCount, investment)
	return f
}

func emptyAssetFrame() *domain.Frame {
	f := domain.NewFrame(0)
	f.SetTimeColumn(domain.ColSnapshotDate, nil)
	f.SetColumn(domain.ColTotalAssets, nil)
	return f
}

func TestRun(t *testing.T) {
	h := newHandler(t.TempDir())

	result, err := h.Run(context.Background(), customerFrame(), emptyAssetFrame())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, result.RunID)
	require.Same(t, result, h.Latest())

	require.NotEmpty(t, result.Itemsets)
	require.Len(t, result.ClusterProfiles, 3)
	require.GreaterOrEqual(t, result.ModelMetrics.AUC, 0.0)
	require.NotEmpty(t, result.Importances)

	// no snapshot history: twelve synthesized months plus a four-month forecast
	require.Len(t, result.Forecast, 16)
	require.NotEmpty(t, result.Trend.Direction)
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	h := newHandler(dir)

	t.Run("requires a completed run", func(t *testing.T) {
		require.Error(t, h.Export(context.Background()))
	})

	_, err := h.Run(context.Background(), customerFrame(), emptyAssetFrame())
	require.NoError(t, err)
	require.NoError(t, h.Export(context.Background()))

	for _, name := range []string{
		"frequent_itemsets.csv",
		"association_rules.csv",
		"cluster_profiles.csv",
		"asset_forecast.csv",
		"feature_importance.csv",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, "expected %s to be written", name)
	}
}

func TestScoring(t *testing.T) {
	h := newHandler(t.TempDir())
	customers := customerFrame()
	_, err := h.Run(context.Background(), customers, emptyAssetFrame())
	require.NoError(t, err)

	x, err := h.PrepareScoringData(customers)
	require.NoError(t, err)
	rows, _ := x.Dims()
	require.Equal(t, customers.NumRows(), rows)

	scores, err := h.ScoreCustomers(x)
	require.NoError(t, err)
	require.Len(t, scores, rows)
	for _, s := range scores {
		require.GreaterOrEqual(t, s, 0.0)
		require.LessOrEqual(t, s, 1.0)
	}
}

func TestExplainCustomers(t *testing.T) {
	t.Run("requires a fitted model", func(t *testing.T) {
		h := newHandler(t.TempDir())
		_, err := h.ExplainCustomers(mat.NewDense(1, 6, nil), 3)
		require.ErrorIs(t, err, domain.ErrNotFitted)
	})

	t.Run("attributes every customer to its top features", func(t *testing.T) {
		dir := t.TempDir()
		h := newHandler(dir)
		customers := customerFrame()
		_, err := h.Run(context.Background(), customers, emptyAssetFrame())
		require.NoError(t, err)

		x, err := h.PrepareScoringData(customers)
		require.NoError(t, err)

		explanations, err := h.ExplainCustomers(x, 3)
		require.NoError(t, err)
		require.Len(t, explanations, customers.NumRows())

		names := map[string]bool{}
		for _, n := range h.Predictor.FeatureNames() {
			names[n] = true
		}
		for i, e := range explanations {
			require.Equal(t, i, e.Index)
			require.LessOrEqual(t, len(e.Top), 3)
			require.NotEmpty(t, e.Top)
			for _, a := range e.Top {
				require.True(t, names[a.Feature], "unexpected feature %s", a.Feature)
			}
		}

		require.NoError(t, h.ExportAttributions(explanations))
		_, err = os.Stat(filepath.Join(dir, "model_attributions.csv"))
		require.NoError(t, err)
	})
}

func TestRecommendations(t *testing.T) {
	h := newHandler(t.TempDir())
	_, err := h.Run(context.Background(), customerFrame(), emptyAssetFrame())
	require.NoError(t, err)

	recs, err := h.Recommendations([]string{domain.ColDepositFlag})
	require.NoError(t, err)
	for _, r := range recs {
		require.NotEqual(t, "Deposits", r.Product)
	}
}

func TestAnswerQuestion(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("requires a completed run", func(t *testing.T) {
		h := newHandler(t.TempDir())
		_, err := h.AnswerQuestion(context.Background(), "what changed?")
		require.Error(t, err)
	})

	t.Run("requires a configured assistant", func(t *testing.T) {
		h := newHandler(t.TempDir())
		_, err := h.Run(context.Background(), customerFrame(), emptyAssetFrame())
		require.NoError(t, err)

		_, err = h.AnswerQuestion(context.Background(), "what changed?")
		require.Error(t, err)
	})

	t.Run("relays the question with a run summary", func(t *testing.T) {
		h := newHandler(t.TempDir())
		result, err := h.Run(context.Background(), customerFrame(), emptyAssetFrame())
		require.NoError(t, err)

		gpt := mock_repository.NewMockGptRepository(ctrl)
		gpt.EXPECT().
			AnswerAnalyticsQuestion(gomock.Any(), gomock.Any(), "which segment should we target?").
			DoAndReturn(func(_ context.Context, analysisContext, _ string) (string, error) {
				require.Contains(t, analysisContext, result.RunID.String())
				require.Contains(t, analysisContext, "customer segments:")
				return "focus on the high-value active segment", nil
			})
		h.GptRepository = gpt

		answer, err := h.AnswerQuestion(context.Background(), "which segment should we target?")
		require.NoError(t, err)
		require.Equal(t, "focus on the high-value active segment", answer)
	})
}
