package features

import (
	"testing"
	"time"

	"bankiq/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTestFrame(cols map[string][]float64) *domain.Frame {
	n := 0
	for _, vals := range cols {
		n = len(vals)
		break
	}
	f := domain.NewFrame(n)
	for name, vals := range cols {
		f.SetColumn(name, vals)
	}
	return f
}

func TestCreateProductFlags(t *testing.T) {
	t.Run("flags follow positive balances", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColDepositBalance:   {100, 0, 50},
			domain.ColFinancialBalance: {0, 200, 0},
			domain.ColFundBalance:      {0, 0, 300},
		})

		engineer := NewEngineer(DefaultConfig())
		out := engineer.CreateProductFlags(f)

		require.Equal(t, "", cmp.Diff([]float64{1, 0, 1}, out.Column(domain.ColDepositFlag)))
		require.Equal(t, "", cmp.Diff([]float64{0, 1, 0}, out.Column(domain.ColFinancialFlag)))
		require.Equal(t, "", cmp.Diff([]float64{0, 0, 1}, out.Column(domain.ColFundFlag)))
		require.False(t, out.Has(domain.ColInsuranceFlag))
	})

	t.Run("wealth management balance aliases the financial flag", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColWealthManagementBalance: {500, 0},
		})

		engineer := NewEngineer(DefaultConfig())
		out := engineer.CreateProductFlags(f)

		require.Equal(t, "", cmp.Diff([]float64{1, 0}, out.Column(domain.ColFinancialFlag)))
	})

	t.Run("primary column wins over the alias", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColFinancialBalance:        {0, 100},
			domain.ColWealthManagementBalance: {500, 0},
		})

		engineer := NewEngineer(DefaultConfig())
		out := engineer.CreateProductFlags(f)

		require.Equal(t, "", cmp.Diff([]float64{0, 1}, out.Column(domain.ColFinancialFlag)))
	})

	t.Run("reapplying yields identical flags", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColDepositBalance: {100, 0},
		})

		engineer := NewEngineer(DefaultConfig())
		once := engineer.CreateProductFlags(f)
		twice := engineer.CreateProductFlags(once)

		require.Equal(t, "", cmp.Diff(once.Column(domain.ColDepositFlag), twice.Column(domain.ColDepositFlag)))
		require.Equal(t, "", cmp.Diff(once.Columns(), twice.Columns()))
	})

	t.Run("input frame is untouched", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColDepositBalance: {100},
		})

		engineer := NewEngineer(DefaultConfig())
		engineer.CreateProductFlags(f)

		require.False(t, f.Has(domain.ColDepositFlag))
	})
}

func TestCreateProductCount(t *testing.T) {
	f := newTestFrame(map[string][]float64{
		domain.ColDepositBalance:   {100, 0},
		domain.ColFinancialBalance: {50, 0},
		domain.ColFundBalance:      {10, 200},
		domain.ColInsuranceBalance: {5, 0},
	})

	engineer := NewEngineer(DefaultConfig())
	out := engineer.CreateProductCount(f)

	require.Equal(t, "", cmp.Diff([]float64{4, 1}, out.Column(domain.ColProductCount)))
}

func TestCreateHighValueFeatures(t *testing.T) {
	t.Run("derives the classifier inputs", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColTotalAum:                 {1000, 2000},
			domain.ColMonthlyTransactionAmount: {100, 200},
			domain.ColMonthlyTransactionCount:  {10, 20},
			domain.ColMobileBankLoginCount:     {5, 6},
			domain.ColFinancialBalance:         {50, 0},
		})

		engineer := NewEngineer(DefaultConfig())
		out := engineer.CreateHighValueFeatures(f)

		require.Equal(t, "", cmp.Diff([]float64{1000, 2000}, out.Column(domain.ColTotalAssets)))
		require.Equal(t, "", cmp.Diff([]float64{30, 60}, out.Column(domain.ColMonthlyIncome)))
		require.Equal(t, "", cmp.Diff([]float64{5, 6}, out.Column(domain.ColAppLoginCount)))
		// repurchase count only accrues for wealth management holders
		require.Equal(t, "", cmp.Diff([]float64{10, 0}, out.Column(domain.ColFinancialRepurchaseCount)))
		require.Equal(t, "", cmp.Diff([]float64{10, 0}, out.Column(domain.ColInvestmentMonthlyCount)))
	})

	t.Run("never clobbers supplied columns", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColTotalAum:       {1000},
			domain.ColTotalAssets:    {9999},
			domain.ColMonthlyIncome:  {123},
			domain.ColDepositBalance: {1},
		})

		engineer := NewEngineer(DefaultConfig())
		out := engineer.CreateHighValueFeatures(f)

		require.Equal(t, "", cmp.Diff([]float64{9999}, out.Column(domain.ColTotalAssets)))
		require.Equal(t, "", cmp.Diff([]float64{123}, out.Column(domain.ColMonthlyIncome)))
	})
}

func TestCreateHighValueLabel(t *testing.T) {
	t.Run("threshold boundary is inclusive", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColTotalAssets: {999, 1000, 1001},
		})

		engineer := NewEngineer(DefaultConfig())
		out, err := engineer.CreateHighValueLabel(f, 1000, false)
		require.NoError(t, err)

		require.Equal(t, "", cmp.Diff([]float64{0, 1, 1}, out.Column(domain.ColLabel)))
		require.False(t, out.Has(domain.ColFutureTotalAssets))
	})

	t.Run("simulation is reproducible and bounded", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColTotalAssets: {100, 200, 300, 400, 500},
		})

		engineer := NewEngineer(DefaultConfig())
		first, err := engineer.CreateHighValueLabel(f, 300, true)
		require.NoError(t, err)
		second, err := engineer.CreateHighValueLabel(f, 300, true)
		require.NoError(t, err)

		require.Equal(t, "", cmp.Diff(first.Column(domain.ColLabel), second.Column(domain.ColLabel)))
		require.Equal(t, "", cmp.Diff(first.Column(domain.ColFutureTotalAssets), second.Column(domain.ColFutureTotalAssets)))

		cfg := DefaultConfig()
		for i, future := range first.Column(domain.ColFutureTotalAssets) {
			current := f.Column(domain.ColTotalAssets)[i]
			require.GreaterOrEqual(t, future, current*cfg.SimulateLow)
			require.LessOrEqual(t, future, current*cfg.SimulateHigh)
		}
	})

	t.Run("falls back to total aum", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColTotalAum: {500, 2000},
		})

		engineer := NewEngineer(DefaultConfig())
		out, err := engineer.CreateHighValueLabel(f, 1000, false)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff([]float64{0, 1}, out.Column(domain.ColLabel)))
	})

	t.Run("errors without an asset column", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColAge: {30},
		})

		engineer := NewEngineer(DefaultConfig())
		_, err := engineer.CreateHighValueLabel(f, 1000, false)
		require.Error(t, err)
	})
}

func TestFeatureMatrix(t *testing.T) {
	t.Run("resolves to available features", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColTotalAssets:   {1, 2},
			domain.ColMonthlyIncome: {3, 4},
		})

		engineer := NewEngineer(DefaultConfig())
		x, resolved, err := engineer.FeatureMatrix(f, []string{
			domain.ColTotalAssets,
			domain.ColMonthlyIncome,
			domain.ColProductCount, // absent
		})
		require.NoError(t, err)

		require.Equal(t, "", cmp.Diff([]string{domain.ColTotalAssets, domain.ColMonthlyIncome}, resolved))
		rows, cols := x.Dims()
		require.Equal(t, 2, rows)
		require.Equal(t, 2, cols)
		require.Equal(t, 3.0, x.At(0, 1))
	})

	t.Run("errors when nothing resolves", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColAge: {30},
		})

		engineer := NewEngineer(DefaultConfig())
		_, _, err := engineer.FeatureMatrix(f, []string{domain.ColTotalAssets})
		require.Error(t, err)
	})
}

func TestCreateAgeGroup(t *testing.T) {
	t.Run("buckets ages into decade bands", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColAge: {22, 29, 30, 39, 45, 55, 60, 72},
		})

		engineer := NewEngineer(DefaultConfig())
		out := engineer.CreateAgeGroup(f)

		require.Equal(t, "", cmp.Diff([]float64{0, 0, 1, 1, 2, 3, 4, 4}, out.Column(domain.ColAgeGroup)))
	})

	t.Run("never clobbers a supplied bucket column", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColAge:      {25},
			domain.ColAgeGroup: {3},
		})

		engineer := NewEngineer(DefaultConfig())
		out := engineer.CreateAgeGroup(f)

		require.Equal(t, "", cmp.Diff([]float64{3}, out.Column(domain.ColAgeGroup)))
	})

	t.Run("noop without an age column", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColTotalAssets: {1000},
		})

		engineer := NewEngineer(DefaultConfig())
		out := engineer.CreateAgeGroup(f)

		require.False(t, out.Has(domain.ColAgeGroup))
	})
}

func TestCreateAssetLevel(t *testing.T) {
	t.Run("tiers assets at the configured bounds", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColTotalAssets: {0, 49_999, 50_000, 200_000, 499_999, 500_000, 1_000_000, 5_000_000},
		})

		engineer := NewEngineer(DefaultConfig())
		out := engineer.CreateAssetLevel(f)

		require.Equal(t, "", cmp.Diff([]float64{0, 0, 1, 2, 2, 3, 4, 4}, out.Column(domain.ColAssetLevel)))
	})

	t.Run("falls back to total aum", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColTotalAum: {100_000, 600_000},
		})

		engineer := NewEngineer(DefaultConfig())
		out := engineer.CreateAssetLevel(f)

		require.Equal(t, "", cmp.Diff([]float64{1, 3}, out.Column(domain.ColAssetLevel)))
	})

	t.Run("noop without an asset column", func(t *testing.T) {
		f := newTestFrame(map[string][]float64{
			domain.ColAge: {30},
		})

		engineer := NewEngineer(DefaultConfig())
		out := engineer.CreateAssetLevel(f)

		require.False(t, out.Has(domain.ColAssetLevel))
	})
}

func TestCreateRFMFeatures(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	f := newTestFrame(map[string][]float64{
		domain.ColMobileBankLoginCount: {12, 3},
		domain.ColTotalAum:             {1000, 2000},
	})
	f.SetTimeColumn(domain.ColLastAppLoginTime, []time.Time{
		time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC),
		{},
	})

	engineer := NewEngineer(DefaultConfig())
	out := engineer.CreateRFMFeatures(f, now)

	recency := out.Column(domain.ColRecencyDays)
	require.Equal(t, 10.0, recency[0])
	require.True(t, recency[1] != recency[1]) // NaN for missing login

	require.Equal(t, "", cmp.Diff([]float64{12, 3}, out.Column(domain.ColFrequency)))
	require.Equal(t, "", cmp.Diff([]float64{1000, 2000}, out.Column(domain.ColMonetary)))
}
