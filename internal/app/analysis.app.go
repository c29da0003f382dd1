package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bankiq/internal/association"
	"bankiq/internal/calculator"
	"bankiq/internal/clustering"
	"bankiq/internal/domain"
	"bankiq/internal/explain"
	"bankiq/internal/features"
	"bankiq/internal/logger"
	"bankiq/internal/predict"
	"bankiq/internal/repository"
	"bankiq/internal/timeseries"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// AnalysisResult is one full pipeline run over the customer dataset.
type AnalysisResult struct {
	RunID       uuid.UUID `json:"runId"`
	GeneratedAt time.Time `json:"generatedAt"`

	Itemsets        []domain.FrequentItemset         `json:"frequentItemsets"`
	Rules           []domain.AssociationRule         `json:"associationRules"`
	ClusterProfiles []domain.ClusterProfile          `json:"clusterProfiles"`
	ClusterMetrics  clustering.Metrics               `json:"clusterMetrics"`
	ModelMetrics    calculator.ClassificationMetrics `json:"modelMetrics"`
	Importances     []domain.FeatureImportance       `json:"featureImportances"`
	Trend           domain.TrendSummary              `json:"trend"`
	Forecast        []domain.CombinedPoint           `json:"forecast"`
}

type AnalysisHandler struct {
	Engineer      features.Engineer
	Association   *association.Analyzer
	Clusterer     *clustering.CustomerClustering
	Predictor     *predict.HighValuePredictor
	TrendAnalyzer *timeseries.AssetTrendAnalyzer

	ResultsRepository repository.ResultsRepository
	GptRepository     repository.GptRepository

	latest *AnalysisResult
}

// Run executes the whole pipeline: association mining, segmentation,
// high-value model training and the asset trend forecast. assetFrame may be
// empty; the trend analyzer synthesizes a series in that case.
func (h *AnalysisHandler) Run(ctx context.Context, customers, assetFrame *domain.Frame) (*AnalysisResult, error) {
	log := logger.FromContext(ctx)
	result := &AnalysisResult{
		RunID:       uuid.New(),
		GeneratedAt: time.Now().UTC(),
	}
	log.Infow("starting analysis run", "runId", result.RunID, "customers", customers.NumRows())

	itemsets, rules, err := h.Association.Analyze(customers)
	if err != nil {
		return nil, fmt.Errorf("failed to mine product associations: %w", err)
	}
	result.Itemsets = itemsets
	result.Rules = rules
	log.Infow("association mining complete", "itemsets", len(itemsets), "rules", len(rules))

	profiles, metrics, err := h.runClustering(customers)
	if err != nil {
		return nil, fmt.Errorf("failed to segment customers: %w", err)
	}
	result.ClusterProfiles = profiles
	result.ClusterMetrics = metrics
	log.Infow("clustering complete", "clusters", len(profiles), "silhouette", metrics.Silhouette)

	modelMetrics, importances, err := h.runPrediction(customers)
	if err != nil {
		return nil, fmt.Errorf("failed to train high-value model: %w", err)
	}
	result.ModelMetrics = modelMetrics
	result.Importances = importances
	log.Infow("high-value model trained", "auc", modelMetrics.AUC, "accuracy", modelMetrics.Accuracy)

	trend, forecast, err := h.runTrend(assetFrame)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze asset trend: %w", err)
	}
	result.Trend = trend
	result.Forecast = forecast
	log.Infow("trend analysis complete", "direction", trend.Direction)

	h.latest = result
	return result, nil
}

func (h *AnalysisHandler) runClustering(customers *domain.Frame) ([]domain.ClusterProfile, clustering.Metrics, error) {
	x, err := h.Clusterer.PrepareData(customers)
	if err != nil {
		return nil, clustering.Metrics{}, err
	}
	labels, err := h.Clusterer.FitPredict(x)
	if err != nil {
		return nil, clustering.Metrics{}, err
	}
	profiles, err := h.Clusterer.ClusterProfiles(customers, labels)
	if err != nil {
		return nil, clustering.Metrics{}, err
	}
	return profiles, h.Clusterer.QualityMetrics(), nil
}

func (h *AnalysisHandler) runPrediction(customers *domain.Frame) (calculator.ClassificationMetrics, []domain.FeatureImportance, error) {
	x, y, err := h.Predictor.PrepareData(customers)
	if err != nil {
		return calculator.ClassificationMetrics{}, nil, err
	}
	metrics, err := h.Predictor.Fit(x, y, 0.2, 10)
	if err != nil {
		return calculator.ClassificationMetrics{}, nil, err
	}
	importances, err := h.Predictor.FeatureImportance("gain")
	if err != nil {
		return calculator.ClassificationMetrics{}, nil, err
	}
	return metrics, importances, nil
}

func (h *AnalysisHandler) runTrend(assetFrame *domain.Frame) (domain.TrendSummary, []domain.CombinedPoint, error) {
	summary, err := h.TrendAnalyzer.Analyze(assetFrame, domain.ColSnapshotDate, domain.ColTotalAssets)
	if err != nil {
		return domain.TrendSummary{}, nil, err
	}
	combined, err := h.TrendAnalyzer.CombinedSeries()
	if err != nil {
		return domain.TrendSummary{}, nil, err
	}
	return summary, combined, nil
}

// Latest returns the most recent run, or nil if none has completed.
func (h *AnalysisHandler) Latest() *AnalysisResult { return h.latest }

// Recommendations answers the cross-sell question for a customer's current
// product holdings, expressed as flag column names.
func (h *AnalysisHandler) Recommendations(currentProducts []string) ([]domain.Recommendation, error) {
	return h.Association.ProductRecommendations(currentProducts)
}

// ScoreCustomers returns high-value probabilities for an already-engineered
// feature matrix.
func (h *AnalysisHandler) ScoreCustomers(x *mat.Dense) ([]float64, error) {
	return h.Predictor.PredictProba(x)
}

// PrepareScoringData engineers a raw customer frame into the matrix the
// fitted model scores, using the feature set resolved at training time.
func (h *AnalysisHandler) PrepareScoringData(f *domain.Frame) (*mat.Dense, error) {
	enriched := h.Engineer.CreateProductFlags(f)
	enriched = h.Engineer.CreateProductCount(enriched)
	enriched = h.Engineer.CreateHighValueFeatures(enriched)
	enriched, err := h.Engineer.CreateExpressionFeatures(enriched)
	if err != nil {
		return nil, fmt.Errorf("failed to apply expression features: %w", err)
	}

	x, _, err := h.Engineer.FeatureMatrix(enriched, h.Predictor.FeatureNames())
	if err != nil {
		return nil, fmt.Errorf("failed to build scoring matrix: %w", err)
	}
	return x, nil
}

// ExplainCustomers attributes each row's high-value score to its input
// features and returns the topN contributions per customer.
func (h *AnalysisHandler) ExplainCustomers(x *mat.Dense, topN int) ([]explain.BatchExplanation, error) {
	if !h.Predictor.IsFitted() {
		return nil, domain.ErrNotFitted
	}

	explainer := explain.NewExplainer(h.Predictor.Booster(), h.Predictor.FeatureNames())
	if err := explainer.CreateExplainer(); err != nil {
		return nil, fmt.Errorf("failed to build explainer: %w", err)
	}

	explanations, err := explainer.BatchExplain(x, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to explain predictions: %w", err)
	}
	return explanations, nil
}

// ExportAttributions flattens batch explanations into the attribution CSV.
func (h *AnalysisHandler) ExportAttributions(explanations []explain.BatchExplanation) error {
	rows := []domain.InstanceAttribution{}
	for _, ex := range explanations {
		for _, a := range ex.Top {
			rows = append(rows, domain.InstanceAttribution{
				Index:   ex.Index,
				Feature: a.Feature,
				Value:   a.Value,
			})
		}
	}
	if err := h.ResultsRepository.WriteAttributions(rows); err != nil {
		return fmt.Errorf("failed to export attributions: %w", err)
	}
	return nil
}

// Export writes the latest run's outputs through the results repository.
func (h *AnalysisHandler) Export(ctx context.Context) error {
	if h.latest == nil {
		return fmt.Errorf("no analysis run available: call Run first")
	}
	log := logger.FromContext(ctx)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"frequent itemsets", func() error { return h.ResultsRepository.WriteItemsets(h.latest.Itemsets) }},
		{"association rules", func() error { return h.ResultsRepository.WriteRules(h.latest.Rules) }},
		{"cluster profiles", func() error { return h.ResultsRepository.WriteClusterProfiles(h.latest.ClusterProfiles) }},
		{"asset forecast", func() error { return h.ResultsRepository.WriteForecast(h.latest.Forecast) }},
		{"feature importances", func() error { return h.ResultsRepository.WriteFeatureImportances(h.latest.Importances) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("failed to export %s: %w", step.name, err)
		}
		log.Debugw("exported analysis output", "output", step.name)
	}

	return nil
}

// AnswerQuestion relays a natural-language question about the latest run to
// the chat assistant, grounding it with a summary of the run's numbers.
func (h *AnalysisHandler) AnswerQuestion(ctx context.Context, question string) (string, error) {
	if h.latest == nil {
		return "", fmt.Errorf("no analysis run available: call Run first")
	}
	if h.GptRepository == nil {
		return "", fmt.Errorf("chat assistant is not configured")
	}
	return h.GptRepository.AnswerAnalyticsQuestion(ctx, h.summaryText(), question)
}

// summaryText flattens the latest result into the plain-text context the chat
// assistant is prompted with.
func (h *AnalysisHandler) summaryText() string {
	r := h.latest
	var b strings.Builder

	fmt.Fprintf(&b, "run %s generated at %s\n\n", r.RunID, r.GeneratedAt.Format(time.RFC3339))

	b.WriteString("top association rules:\n")
	for i, rule := range r.Rules {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "  %s (support %.3f, confidence %.3f, lift %.3f)\n", rule.Rule, rule.Support, rule.Confidence, rule.Lift)
	}

	b.WriteString("\ncustomer segments:\n")
	for _, p := range r.ClusterProfiles {
		fmt.Fprintf(&b, "  %s: %d customers (%.1f%%)\n", p.Label, p.Count, p.Percentage)
	}

	fmt.Fprintf(&b, "\nhigh-value model: accuracy %.3f, precision %.3f, recall %.3f, auc %.3f\n",
		r.ModelMetrics.Accuracy, r.ModelMetrics.Precision, r.ModelMetrics.Recall, r.ModelMetrics.AUC)

	b.WriteString("top predictive features:\n")
	for i, imp := range r.Importances {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "  %s: %.4f\n", imp.Feature, imp.Importance)
	}

	fmt.Fprintf(&b, "\nasset trend: %s (history %.1f%%, forecast %.1f%%, current %.0f, forecast end %.0f)\n",
		r.Trend.Direction, r.Trend.HistoryChangePct, r.Trend.ForecastChangePct, r.Trend.CurrentValue, r.Trend.ForecastEndValue)

	return b.String()
}
