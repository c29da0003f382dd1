package explain

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"bankiq/internal/domain"
	"bankiq/internal/predict"

	"gonum.org/v1/gonum/mat"
)

// MarginScorer is the minimal model surface the explainer needs: a raw
// log-odds score per row.
type MarginScorer interface {
	RawPredict(row []float64) float64
}

// TreeModel additionally exposes the ensemble structure, enabling the fast
// exact path attribution.
type TreeModel interface {
	MarginScorer
	Trees() []predict.Tree
}

const maxBackgroundRows = 100

// Explainer produces additive per-feature attributions for a trained
// classifier: exact tree-path contributions when the model exposes its trees,
// otherwise a sampling approximation against a background dataset.
type Explainer struct {
	model        MarginScorer
	featureNames []string
	background   *mat.Dense

	mode   string
	values [][]float64
}

func NewExplainer(model MarginScorer, featureNames []string) *Explainer {
	return &Explainer{model: model, featureNames: featureNames}
}

// WithBackground supplies the background sample required by the sampling
// fallback. Only the first 100 rows are used.
func (e *Explainer) WithBackground(x *mat.Dense) *Explainer {
	rows, cols := x.Dims()
	if rows > maxBackgroundRows {
		sub := mat.NewDense(maxBackgroundRows, cols, nil)
		for i := 0; i < maxBackgroundRows; i++ {
			for j := 0; j < cols; j++ {
				sub.Set(i, j, x.At(i, j))
			}
		}
		x = sub
	}
	e.background = x
	return e
}

// CreateExplainer picks the attribution strategy: tree-path when the model
// exposes a non-empty ensemble, else the sampling path, which fails loudly
// when no background sample was provided.
func (e *Explainer) CreateExplainer() error {
	if tm, ok := e.model.(TreeModel); ok && len(tm.Trees()) > 0 {
		e.mode = "tree"
		return nil
	}
	if e.background == nil {
		return fmt.Errorf("model does not expose a tree ensemble: a background sample is required for the sampling explainer")
	}
	e.mode = "sampling"
	return nil
}

// Explain computes per-instance, per-feature attributions in margin space for
// the positive class.
func (e *Explainer) Explain(x *mat.Dense) ([][]float64, error) {
	if e.mode == "" {
		if err := e.CreateExplainer(); err != nil {
			return nil, err
		}
	}

	rows, cols := x.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		row := make([]float64, cols)
		mat.Row(row, i, x)
		if e.mode == "tree" {
			out[i] = e.treeAttributions(row, cols)
		} else {
			out[i] = e.samplingAttributions(row, cols)
		}
	}

	e.values = out
	return out, nil
}

// treeAttributions walks each tree's decision path, crediting the split
// feature with the change in subtree expectation at every step.
func (e *Explainer) treeAttributions(row []float64, cols int) []float64 {
	contrib := make([]float64, cols)
	tm := e.model.(TreeModel)
	for _, tree := range tm.Trees() {
		path := tree.DecisionPath(row)
		for step := 0; step < len(path)-1; step++ {
			parent := tree.Nodes[path[step]]
			child := tree.Nodes[path[step+1]]
			contrib[parent.Feature] += child.Value - parent.Value
		}
	}
	return contrib
}

// samplingAttributions replaces one feature at a time with background values
// and reports the mean score shift.
func (e *Explainer) samplingAttributions(row []float64, cols int) []float64 {
	contrib := make([]float64, cols)
	bgRows, _ := e.background.Dims()
	base := e.model.RawPredict(row)

	perturbed := make([]float64, cols)
	for j := 0; j < cols; j++ {
		copy(perturbed, row)
		sum := 0.0
		for b := 0; b < bgRows; b++ {
			perturbed[j] = e.background.At(b, j)
			sum += e.model.RawPredict(perturbed)
		}
		contrib[j] = base - sum/float64(bgRows)
	}
	return contrib
}

// FeatureImportance is the mean absolute attribution per feature, descending.
func (e *Explainer) FeatureImportance() ([]domain.FeatureImportance, error) {
	if e.values == nil {
		return nil, fmt.Errorf("no attributions computed: call Explain before FeatureImportance")
	}

	cols := len(e.featureNames)
	totals := make([]float64, cols)
	for _, row := range e.values {
		for j, v := range row {
			totals[j] += math.Abs(v)
		}
	}

	out := make([]domain.FeatureImportance, cols)
	for j := range totals {
		out[j] = domain.FeatureImportance{
			Feature:    e.featureNames[j],
			Importance: totals[j] / float64(len(e.values)),
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	return out, nil
}

// ExplainSingle returns one instance's signed contributions sorted by
// absolute magnitude.
func (e *Explainer) ExplainSingle(x *mat.Dense, index int) ([]domain.Attribution, error) {
	if e.values == nil {
		if _, err := e.Explain(x); err != nil {
			return nil, err
		}
	}
	if index < 0 || index >= len(e.values) {
		return nil, fmt.Errorf("instance index %d out of range", index)
	}

	row := e.values[index]
	out := make([]domain.Attribution, len(row))
	for j, v := range row {
		out[j] = domain.Attribution{Feature: e.featureNames[j], Value: v}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Value) > math.Abs(out[j].Value)
	})
	return out, nil
}

// ExplanationText renders a readable summary: predicted probability plus the
// top contributing features and their direction.
func (e *Explainer) ExplanationText(x *mat.Dense, index, topN int) (string, error) {
	contributions, err := e.ExplainSingle(x, index)
	if err != nil {
		return "", err
	}
	if topN <= 0 || topN > len(contributions) {
		topN = len(contributions)
	}

	_, cols := x.Dims()
	row := make([]float64, cols)
	mat.Row(row, index, x)
	prob := 1 / (1 + math.Exp(-e.model.RawPredict(row)))

	var b strings.Builder
	fmt.Fprintf(&b, "predicted probability: %.2f%%\n\n", prob*100)
	b.WriteString("top contributing factors:\n")
	for i, c := range contributions[:topN] {
		direction := "positive"
		if c.Value < 0 {
			direction = "negative"
		}
		fmt.Fprintf(&b, "  %d. %s: %s (%+.4f)\n", i+1, c.Feature, direction, c.Value)
	}
	return b.String(), nil
}

// BatchExplanation is one instance's top-N attribution pairs.
type BatchExplanation struct {
	Index int                  `json:"index"`
	Top   []domain.Attribution `json:"top"`
}

// BatchExplain tabulates the top-N contributions for every instance.
func (e *Explainer) BatchExplain(x *mat.Dense, topN int) ([]BatchExplanation, error) {
	if e.values == nil {
		if _, err := e.Explain(x); err != nil {
			return nil, err
		}
	}

	out := make([]BatchExplanation, len(e.values))
	for i := range e.values {
		contributions, err := e.ExplainSingle(x, i)
		if err != nil {
			return nil, err
		}
		n := topN
		if n <= 0 || n > len(contributions) {
			n = len(contributions)
		}
		out[i] = BatchExplanation{Index: i, Top: contributions[:n]}
	}
	return out, nil
}
