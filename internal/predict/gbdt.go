package predict

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"bankiq/internal/calculator"

	"gonum.org/v1/gonum/mat"
)

// BoosterConfig mirrors the training configuration of the production model:
// binary objective, AUC monitoring, shallow trees with feature subsampling and
// a small learning rate.
type BoosterConfig struct {
	NumRounds       int     `json:"numRounds"`
	LearningRate    float64 `json:"learningRate"`
	MaxDepth        int     `json:"maxDepth"`
	MinChildSamples int     `json:"minChildSamples"`
	FeatureFraction float64 `json:"featureFraction"`
	Lambda          float64 `json:"lambda"`
	Seed            int64   `json:"seed"`
}

func DefaultBoosterConfig() BoosterConfig {
	return BoosterConfig{
		NumRounds:       100,
		LearningRate:    0.05,
		MaxDepth:        5,
		MinChildSamples: 5,
		FeatureFraction: 0.9,
		Lambda:          1.0,
		Seed:            42,
	}
}

// TreeNode is one node of a regression tree. Feature is -1 on leaves. Value
// holds the leaf output (already shrunk by the learning rate) and, on internal
// nodes, the cover-weighted expectation beneath the node, which the
// attribution path walker relies on.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Cover     float64 `json:"cover"`
	Gain      float64 `json:"gain"`
}

// Tree is a flat-array regression tree; node 0 is the root.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// Predict returns the tree's margin contribution for one row.
func (t Tree) Predict(row []float64) float64 {
	i := 0
	for t.Nodes[i].Feature >= 0 {
		if row[t.Nodes[i].Feature] <= t.Nodes[i].Threshold {
			i = t.Nodes[i].Left
		} else {
			i = t.Nodes[i].Right
		}
	}
	return t.Nodes[i].Value
}

// DecisionPath returns the node indexes visited from root to leaf.
func (t Tree) DecisionPath(row []float64) []int {
	path := []int{0}
	i := 0
	for t.Nodes[i].Feature >= 0 {
		if row[t.Nodes[i].Feature] <= t.Nodes[i].Threshold {
			i = t.Nodes[i].Left
		} else {
			i = t.Nodes[i].Right
		}
		path = append(path, i)
	}
	return path
}

// Booster is a gradient-boosted ensemble for binary classification with a
// logistic objective and Newton leaf weights.
type Booster struct {
	Config      BoosterConfig `json:"config"`
	TreeList    []Tree        `json:"trees"`
	BaseMargin  float64       `json:"baseMargin"`
	NumFeatures int           `json:"numFeatures"`

	SplitCounts []float64 `json:"splitCounts"`
	GainTotals  []float64 `json:"gainTotals"`
}

func NewBooster(cfg BoosterConfig) *Booster {
	return &Booster{Config: cfg}
}

func (b *Booster) Trees() []Tree { return b.TreeList }

// Fit trains round by round, monitoring validation AUC when a validation set
// is given and truncating the ensemble to the best round after the AUC
// plateaus for earlyStoppingRounds rounds.
func (b *Booster) Fit(x *mat.Dense, y []float64, xVal *mat.Dense, yVal []float64, earlyStoppingRounds int) error {
	rows, cols := x.Dims()
	if rows != len(y) {
		return fmt.Errorf("feature matrix has %d rows but %d labels given", rows, len(y))
	}
	b.NumFeatures = cols
	b.SplitCounts = make([]float64, cols)
	b.GainTotals = make([]float64, cols)
	b.TreeList = nil

	prior := 0.0
	for _, v := range y {
		prior += v
	}
	prior /= float64(rows)
	prior = clampProb(prior)
	b.BaseMargin = math.Log(prior / (1 - prior))

	margins := make([]float64, rows)
	for i := range margins {
		margins[i] = b.BaseMargin
	}

	rng := rand.New(rand.NewSource(b.Config.Seed))
	grad := make([]float64, rows)
	hess := make([]float64, rows)

	bestAUC := math.Inf(-1)
	bestRound := 0
	sinceBest := 0

	for round := 0; round < b.Config.NumRounds; round++ {
		for i := 0; i < rows; i++ {
			p := sigmoid(margins[i])
			grad[i] = p - y[i]
			hess[i] = p * (1 - p)
		}

		featureSet := b.sampleFeatures(cols, rng)
		tree := buildTree(x, grad, hess, featureSet, b.Config)
		if len(tree.Nodes) <= 1 {
			// no split improved the objective, nothing more to learn
			break
		}
		b.accumulateImportance(tree)
		b.TreeList = append(b.TreeList, tree)

		for i := 0; i < rows; i++ {
			margins[i] += tree.Predict(x.RawRowView(i))
		}

		if xVal != nil && earlyStoppingRounds > 0 {
			auc := calculator.AUC(yVal, b.predictMargins(xVal))
			if auc > bestAUC {
				bestAUC = auc
				bestRound = len(b.TreeList)
				sinceBest = 0
			} else {
				sinceBest++
				if sinceBest >= earlyStoppingRounds {
					b.TreeList = b.TreeList[:bestRound]
					break
				}
			}
		}
	}

	return nil
}

// RawPredict returns the margin (log-odds) for one row.
func (b *Booster) RawPredict(row []float64) float64 {
	margin := b.BaseMargin
	for _, tree := range b.TreeList {
		margin += tree.Predict(row)
	}
	return margin
}

// PredictProba scores the positive-class probability per row.
func (b *Booster) PredictProba(x *mat.Dense) []float64 {
	rows, _ := x.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = sigmoid(b.RawPredict(x.RawRowView(i)))
	}
	return out
}

func (b *Booster) predictMargins(x *mat.Dense) []float64 {
	rows, _ := x.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = b.RawPredict(x.RawRowView(i))
	}
	return out
}

func (b *Booster) sampleFeatures(cols int, rng *rand.Rand) []int {
	take := int(math.Ceil(b.Config.FeatureFraction * float64(cols)))
	if take <= 0 || take > cols {
		take = cols
	}
	perm := rng.Perm(cols)
	feats := append([]int{}, perm[:take]...)
	sort.Ints(feats)
	return feats
}

func (b *Booster) accumulateImportance(tree Tree) {
	for _, node := range tree.Nodes {
		if node.Feature >= 0 {
			b.SplitCounts[node.Feature]++
			b.GainTotals[node.Feature] += node.Gain
		}
	}
}

type splitResult struct {
	feature   int
	threshold float64
	gain      float64
	leftIdx   []int
	rightIdx  []int
}

// buildTree grows one depth-bounded regression tree on the current gradients.
func buildTree(x *mat.Dense, grad, hess []float64, featureSet []int, cfg BoosterConfig) Tree {
	rows, _ := x.Dims()
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}

	tree := Tree{}
	grow(&tree, x, grad, hess, idx, featureSet, cfg, 0)
	annotateExpectations(&tree, 0)
	return tree
}

// grow appends a node for idx and returns its index in the flat array.
func grow(tree *Tree, x *mat.Dense, grad, hess []float64, idx, featureSet []int, cfg BoosterConfig, depth int) int {
	var sumG, sumH float64
	for _, i := range idx {
		sumG += grad[i]
		sumH += hess[i]
	}

	nodeIdx := len(tree.Nodes)
	leaf := TreeNode{
		Feature: -1,
		Left:    -1,
		Right:   -1,
		Value:   -sumG / (sumH + cfg.Lambda) * cfg.LearningRate,
		Cover:   float64(len(idx)),
	}
	tree.Nodes = append(tree.Nodes, leaf)

	if depth >= cfg.MaxDepth || len(idx) < 2*cfg.MinChildSamples {
		return nodeIdx
	}

	best := findBestSplit(x, grad, hess, idx, featureSet, sumG, sumH, cfg)
	if best == nil {
		return nodeIdx
	}

	left := grow(tree, x, grad, hess, best.leftIdx, featureSet, cfg, depth+1)
	right := grow(tree, x, grad, hess, best.rightIdx, featureSet, cfg, depth+1)

	tree.Nodes[nodeIdx].Feature = best.feature
	tree.Nodes[nodeIdx].Threshold = best.threshold
	tree.Nodes[nodeIdx].Left = left
	tree.Nodes[nodeIdx].Right = right
	tree.Nodes[nodeIdx].Gain = best.gain
	return nodeIdx
}

const minSplitGain = 1e-10

func findBestSplit(x *mat.Dense, grad, hess []float64, idx, featureSet []int, sumG, sumH float64, cfg BoosterConfig) *splitResult {
	parentScore := sumG * sumG / (sumH + cfg.Lambda)
	var best *splitResult

	for _, feat := range featureSet {
		sorted := make([]int, len(idx))
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, b int) bool {
			return x.At(sorted[a], feat) < x.At(sorted[b], feat)
		})

		var leftG, leftH float64
		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			leftG += grad[i]
			leftH += hess[i]

			cur := x.At(i, feat)
			next := x.At(sorted[pos+1], feat)
			if cur == next {
				continue
			}
			if pos+1 < cfg.MinChildSamples || len(sorted)-pos-1 < cfg.MinChildSamples {
				continue
			}

			rightG := sumG - leftG
			rightH := sumH - leftH
			gain := leftG*leftG/(leftH+cfg.Lambda) +
				rightG*rightG/(rightH+cfg.Lambda) -
				parentScore
			if gain <= minSplitGain {
				continue
			}
			if best == nil || gain > best.gain {
				best = &splitResult{
					feature:   feat,
					threshold: (cur + next) / 2,
					gain:      gain,
				}
			}
		}
	}

	if best == nil {
		return nil
	}
	for _, i := range idx {
		if x.At(i, best.feature) <= best.threshold {
			best.leftIdx = append(best.leftIdx, i)
		} else {
			best.rightIdx = append(best.rightIdx, i)
		}
	}
	return best
}

// annotateExpectations fills internal node values with the cover-weighted
// expectation of their subtrees, bottom-up.
func annotateExpectations(tree *Tree, node int) float64 {
	n := &tree.Nodes[node]
	if n.Feature < 0 {
		return n.Value
	}
	leftVal := annotateExpectations(tree, n.Left)
	rightVal := annotateExpectations(tree, n.Right)
	leftCover := tree.Nodes[n.Left].Cover
	rightCover := tree.Nodes[n.Right].Cover
	n.Value = (leftVal*leftCover + rightVal*rightCover) / (leftCover + rightCover)
	return n.Value
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clampProb(p float64) float64 {
	const eps = 1e-6
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}
