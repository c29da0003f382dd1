package predict

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"bankiq/internal/calculator"
	"bankiq/internal/domain"
	"bankiq/internal/features"

	"gonum.org/v1/gonum/mat"
)

type Config struct {
	// HighValueThreshold is the asset level at which a customer labels
	// positive.
	HighValueThreshold float64
	Features           []string
	Booster            BoosterConfig
	Seed               int64
}

func DefaultConfig() Config {
	return Config{
		HighValueThreshold: 1_000_000,
		Features:           features.HighValueFeatures,
		Booster:            DefaultBoosterConfig(),
		Seed:               42,
	}
}

// HighValuePredictor trains a boosted classifier on the derived high-value
// features and scores the probability that a customer crosses the asset
// threshold.
type HighValuePredictor struct {
	cfg      Config
	engineer features.Engineer

	booster      *Booster
	featureNames []string
	metrics      calculator.ClassificationMetrics
	fitted       bool
}

func New(cfg Config, engineer features.Engineer) *HighValuePredictor {
	if cfg.HighValueThreshold == 0 {
		cfg.HighValueThreshold = 1_000_000
	}
	if len(cfg.Features) == 0 {
		cfg.Features = features.HighValueFeatures
	}
	if cfg.Booster.NumRounds == 0 {
		cfg.Booster = DefaultBoosterConfig()
	}
	return &HighValuePredictor{cfg: cfg, engineer: engineer}
}

// PrepareData derives the high-value features plus the simulated-future label
// and returns the resolved feature matrix with its label vector.
func (p *HighValuePredictor) PrepareData(f *domain.Frame) (*mat.Dense, []float64, error) {
	derived := p.engineer.CreateHighValueFeatures(f)
	derived, err := p.engineer.CreateExpressionFeatures(derived)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to apply expression features: %w", err)
	}
	labeled, err := p.engineer.CreateHighValueLabel(derived, p.cfg.HighValueThreshold, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build label: %w", err)
	}

	x, resolved, err := p.engineer.FeatureMatrix(labeled, p.cfg.Features)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build feature matrix: %w", err)
	}
	p.featureNames = resolved

	labels := labeled.Column(domain.ColLabel)
	y := make([]float64, len(labels))
	copy(y, labels)

	return x, y, nil
}

// Fit splits into train/validation with a fixed seed, trains the booster with
// early stopping on validation AUC and stores the validation metrics.
func (p *HighValuePredictor) Fit(x *mat.Dense, y []float64, testSize float64, earlyStoppingRounds int) (calculator.ClassificationMetrics, error) {
	rows, cols := x.Dims()
	if rows != len(y) {
		return calculator.ClassificationMetrics{}, fmt.Errorf("feature matrix has %d rows but %d labels given", rows, len(y))
	}
	if testSize <= 0 || testSize >= 1 {
		testSize = 0.2
	}

	rng := rand.New(rand.NewSource(p.cfg.Seed))
	perm := rng.Perm(rows)
	nVal := int(float64(rows) * testSize)
	if nVal < 1 {
		nVal = 1
	}
	valIdx, trainIdx := perm[:nVal], perm[nVal:]

	xTrain, yTrain := subset(x, y, trainIdx, cols)
	xVal, yVal := subset(x, y, valIdx, cols)

	p.booster = NewBooster(p.cfg.Booster)
	if err := p.booster.Fit(xTrain, yTrain, xVal, yVal, earlyStoppingRounds); err != nil {
		return calculator.ClassificationMetrics{}, fmt.Errorf("failed to train booster: %w", err)
	}
	p.fitted = true

	if p.featureNames == nil {
		p.featureNames = defaultNames(cols)
	}

	metrics, err := p.Evaluate(xVal, yVal)
	if err != nil {
		return calculator.ClassificationMetrics{}, err
	}
	p.metrics = metrics
	return metrics, nil
}

// PredictProba scores the probability of the positive class.
func (p *HighValuePredictor) PredictProba(x *mat.Dense) ([]float64, error) {
	if !p.fitted {
		return nil, domain.ErrNotFitted
	}
	return p.booster.PredictProba(x), nil
}

// Predict thresholds the probabilities into hard 0/1 labels.
func (p *HighValuePredictor) Predict(x *mat.Dense, threshold float64) ([]float64, error) {
	if threshold == 0 {
		threshold = 0.5
	}
	proba, err := p.PredictProba(x)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(proba))
	for i, pr := range proba {
		if pr >= threshold {
			out[i] = 1
		}
	}
	return out, nil
}

// Evaluate computes accuracy, precision, recall, F1 and AUC on the given set.
// Single-class labels report AUC 0 rather than failing.
func (p *HighValuePredictor) Evaluate(x *mat.Dense, y []float64) (calculator.ClassificationMetrics, error) {
	pred, err := p.Predict(x, 0.5)
	if err != nil {
		return calculator.ClassificationMetrics{}, err
	}
	proba, err := p.PredictProba(x)
	if err != nil {
		return calculator.ClassificationMetrics{}, err
	}
	return calculator.EvaluateBinary(y, pred, proba), nil
}

// FeatureImportance ranks features by split count ("split") or accumulated
// gain ("gain"), descending.
func (p *HighValuePredictor) FeatureImportance(kind string) ([]domain.FeatureImportance, error) {
	if !p.fitted {
		return nil, domain.ErrNotFitted
	}
	values := p.booster.SplitCounts
	if kind == "gain" {
		values = p.booster.GainTotals
	}

	out := make([]domain.FeatureImportance, len(values))
	for i, v := range values {
		out[i] = domain.FeatureImportance{Feature: p.featureNames[i], Importance: v}
	}
	sortImportance(out)
	return out, nil
}

func (p *HighValuePredictor) Booster() *Booster { return p.booster }
func (p *HighValuePredictor) FeatureNames() []string {
	return p.featureNames
}
func (p *HighValuePredictor) Metrics() calculator.ClassificationMetrics { return p.metrics }
func (p *HighValuePredictor) IsFitted() bool                           { return p.fitted }

// persistedModel is the native serialized form: the fitted ensemble plus its
// feature list and validation metrics travel as one unit.
type persistedModel struct {
	Booster      *Booster                         `json:"booster"`
	FeatureNames []string                         `json:"featureNames"`
	Metrics      calculator.ClassificationMetrics `json:"metrics"`
}

// Save writes the trained ensemble in its native JSON format.
func (p *HighValuePredictor) Save(path string) error {
	if !p.fitted {
		return domain.ErrNotFitted
	}
	payload, err := json.MarshalIndent(persistedModel{
		Booster:      p.booster,
		FeatureNames: p.featureNames,
		Metrics:      p.metrics,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}

// Load restores a saved model into this instance, ready for prediction
// without retraining.
func (p *HighValuePredictor) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model file: %w", err)
	}
	saved := persistedModel{}
	if err := json.Unmarshal(payload, &saved); err != nil {
		return fmt.Errorf("failed to decode model: %w", err)
	}
	p.booster = saved.Booster
	p.featureNames = saved.FeatureNames
	p.metrics = saved.Metrics
	p.fitted = true
	return nil
}

func subset(x *mat.Dense, y []float64, idx []int, cols int) (*mat.Dense, []float64) {
	out := mat.NewDense(len(idx), cols, nil)
	labels := make([]float64, len(idx))
	for i, src := range idx {
		for j := 0; j < cols; j++ {
			out.Set(i, j, x.At(src, j))
		}
		labels[i] = y[src]
	}
	return out, labels
}

func defaultNames(cols int) []string {
	names := make([]string, cols)
	for i := range names {
		names[i] = fmt.Sprintf("feature_%d", i)
	}
	return names
}

func sortImportance(items []domain.FeatureImportance) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Importance > items[j].Importance
	})
}
