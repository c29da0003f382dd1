package timeseries

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"bankiq/internal/domain"
	"bankiq/internal/util"

	"github.com/montanaflynn/stats"
)

type Config struct {
	Order           [3]int
	ForecastPeriods int
	MinPeriods      int
	Seed            int64

	// synthesis knobs for the short-history path
	DefaultMean float64
	DefaultStd  float64
	DriftRate   float64
	NoiseRate   float64
}

func DefaultConfig() Config {
	return Config{
		Order:           [3]int{1, 1, 1},
		ForecastPeriods: 4,
		MinPeriods:      12,
		Seed:            42,
		DefaultMean:     100_000,
		DefaultStd:      20_000,
		DriftRate:       0.02,
		NoiseRate:       0.1,
	}
}

// AssetTrendAnalyzer aggregates a value series by calendar month, fits an
// ARIMA model and forecasts forward, synthesizing a plausible series when the
// dataset carries too little history to fit anything.
type AssetTrendAnalyzer struct {
	cfg Config
	now func() time.Time

	series   []domain.SeriesPoint
	forecast []domain.SeriesPoint
	model    *ARIMA
}

func NewAssetTrendAnalyzer(cfg Config) *AssetTrendAnalyzer {
	if cfg.MinPeriods == 0 {
		cfg = DefaultConfig()
	}
	return &AssetTrendAnalyzer{cfg: cfg, now: time.Now}
}

// PrepareData parses the date column (zero dates excluded), aggregates the
// value column to a monthly mean and sorts chronologically. Short histories
// are replaced by a synthesized series of exactly minPeriods points ending at
// the current month; long ones are truncated to the most recent minPeriods.
func (a *AssetTrendAnalyzer) PrepareData(f *domain.Frame, dateCol, valueCol string, minPeriods int) ([]domain.SeriesPoint, error) {
	if minPeriods <= 0 {
		minPeriods = a.cfg.MinPeriods
	}
	if !f.HasTime(dateCol) {
		return nil, fmt.Errorf("dataset has no %q date column", dateCol)
	}
	if !f.Has(valueCol) {
		return nil, fmt.Errorf("dataset has no %q value column", valueCol)
	}

	dates := f.TimeColumn(dateCol)
	values := f.Column(valueCol)
	sums := map[time.Time]float64{}
	counts := map[time.Time]int{}
	for i, t := range dates {
		// missing values are excluded from the mean, not counted as zero
		if t.IsZero() || math.IsNaN(values[i]) {
			continue
		}
		month := util.MonthStart(t)
		sums[month] += values[i]
		counts[month]++
	}

	monthly := make([]domain.SeriesPoint, 0, len(sums))
	for month, sum := range sums {
		monthly = append(monthly, domain.SeriesPoint{Date: month, Value: sum / float64(counts[month])})
	}
	sort.Slice(monthly, func(i, j int) bool {
		return monthly[i].Date.Before(monthly[j].Date)
	})

	if len(monthly) < minPeriods {
		a.series = a.synthesizeSeries(monthly, minPeriods)
	} else {
		a.series = monthly[len(monthly)-minPeriods:]
	}
	a.forecast = nil
	a.model = nil
	return a.series, nil
}

// synthesizeSeries builds minPeriods months ending at the current month: a
// cumulative sum of seeded normal increments around the historical mean, with
// fixed fallbacks when no history exists at all.
func (a *AssetTrendAnalyzer) synthesizeSeries(history []domain.SeriesPoint, minPeriods int) []domain.SeriesPoint {
	mean := a.cfg.DefaultMean
	std := a.cfg.DefaultStd
	if len(history) > 0 {
		values := make([]float64, len(history))
		for i, p := range history {
			values[i] = p.Value
		}
		mean, _ = stats.Mean(values)
		if len(values) > 1 {
			std, _ = stats.StandardDeviationSample(values)
		} else {
			std = mean * 0.1
		}
	}

	rng := rand.New(rand.NewSource(a.cfg.Seed))
	end := util.MonthStart(a.now())
	out := make([]domain.SeriesPoint, minPeriods)
	cum := 0.0
	for i := 0; i < minPeriods; i++ {
		cum += rng.NormFloat64()*(std*a.cfg.NoiseRate) + mean*a.cfg.DriftRate
		out[i] = domain.SeriesPoint{
			Date:  util.AddMonths(end, i-minPeriods+1),
			Value: cum + mean,
		}
	}
	return out
}

// Fit estimates the ARIMA model on the prepared series.
func (a *AssetTrendAnalyzer) Fit(order [3]int) error {
	if a.series == nil {
		return fmt.Errorf("no series available: call PrepareData before Fit")
	}
	if order == [3]int{} {
		order = a.cfg.Order
	}

	values := make([]float64, len(a.series))
	for i, p := range a.series {
		values[i] = p.Value
	}
	model, err := FitARIMA(values, order[0], order[1], order[2])
	if err != nil {
		return fmt.Errorf("failed to fit ARIMA: %w", err)
	}
	a.model = model
	return nil
}

// Predict forecasts the given number of periods. The forecast index starts
// one calendar month after the last historical point and advances monthly.
func (a *AssetTrendAnalyzer) Predict(periods int) ([]domain.SeriesPoint, error) {
	if a.model == nil {
		return nil, fmt.Errorf("no fitted model: call Fit before Predict")
	}
	if periods <= 0 {
		periods = a.cfg.ForecastPeriods
	}

	values := a.model.Forecast(periods)
	last := a.series[len(a.series)-1].Date
	out := make([]domain.SeriesPoint, periods)
	for i, v := range values {
		out[i] = domain.SeriesPoint{Date: util.AddMonths(last, i+1), Value: v}
	}
	a.forecast = out
	return out, nil
}

// Analyze runs the full prepare/fit/forecast pipeline with configured
// defaults and summarizes the trend.
func (a *AssetTrendAnalyzer) Analyze(f *domain.Frame, dateCol, valueCol string) (domain.TrendSummary, error) {
	if _, err := a.PrepareData(f, dateCol, valueCol, a.cfg.MinPeriods); err != nil {
		return domain.TrendSummary{}, err
	}
	if err := a.Fit(a.cfg.Order); err != nil {
		return domain.TrendSummary{}, err
	}
	if _, err := a.Predict(a.cfg.ForecastPeriods); err != nil {
		return domain.TrendSummary{}, err
	}
	return a.TrendSummary(), nil
}

// TrendSummary compares history to forecast: change percentages plus a
// direction with a symmetric ±5% dead zone.
func (a *AssetTrendAnalyzer) TrendSummary() domain.TrendSummary {
	if len(a.series) == 0 || len(a.forecast) == 0 {
		return domain.TrendSummary{}
	}

	first := a.series[0].Value
	last := a.series[len(a.series)-1].Value
	forecastEnd := a.forecast[len(a.forecast)-1].Value

	summary := domain.TrendSummary{
		CurrentValue:     last,
		ForecastEndValue: forecastEnd,
	}
	if first != 0 {
		summary.HistoryChangePct = (last - first) / first * 100
	}
	if last != 0 {
		summary.ForecastChangePct = (forecastEnd - last) / last * 100
	}

	switch {
	case summary.ForecastChangePct > 5:
		summary.Direction = domain.TrendRising
	case summary.ForecastChangePct < -5:
		summary.Direction = domain.TrendFalling
	default:
		summary.Direction = domain.TrendFlat
	}
	return summary
}

// CombinedSeries concatenates history then forecast in chronological order,
// tagged by origin for reporting.
func (a *AssetTrendAnalyzer) CombinedSeries() ([]domain.CombinedPoint, error) {
	if a.series == nil || a.forecast == nil {
		return nil, fmt.Errorf("no analysis results: call Analyze (or Fit and Predict) first")
	}
	out := make([]domain.CombinedPoint, 0, len(a.series)+len(a.forecast))
	for _, p := range a.series {
		out = append(out, domain.CombinedPoint{Date: p.Date, Value: p.Value, Origin: domain.SeriesOriginHistory})
	}
	for _, p := range a.forecast {
		out = append(out, domain.CombinedPoint{Date: p.Date, Value: p.Value, Origin: domain.SeriesOriginForecast})
	}
	return out, nil
}

func (a *AssetTrendAnalyzer) Series() []domain.SeriesPoint   { return a.series }
func (a *AssetTrendAnalyzer) Forecast() []domain.SeriesPoint { return a.forecast }
