package association

import (
	"fmt"
	"sort"
	"strings"

	"bankiq/internal/domain"
	"bankiq/internal/features"
)

// Basket is the deduplicated 0/1 product-holding matrix mined for patterns.
// Rows are distinct holding combinations only.
type Basket struct {
	Columns []string
	Rows    [][]int
}

type Config struct {
	MinSupport float64
	MinLift    float64
}

func DefaultConfig() Config {
	return Config{
		MinSupport: 0.05,
		MinLift:    1.0,
	}
}

// Analyzer mines frequent product combinations and association rules, and
// turns them into ranked cross-sell recommendations.
type Analyzer struct {
	cfg      Config
	engineer features.Engineer

	itemsets []domain.FrequentItemset
	supports map[string]float64
	rules    []domain.AssociationRule
}

func NewAnalyzer(cfg Config, engineer features.Engineer) *Analyzer {
	return &Analyzer{
		cfg:      cfg,
		engineer: engineer,
	}
}

// PrepareData derives product flags, narrows to the canonical flag columns
// present, fills nulls with 0 and collapses duplicate rows.
func (a *Analyzer) PrepareData(f *domain.Frame) (Basket, error) {
	flagged := a.engineer.CreateProductFlags(f)

	cols := []string{}
	for _, col := range domain.ProductFlagColumns {
		if flagged.Has(col) {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return Basket{}, fmt.Errorf("no product flag columns could be derived from the dataset")
	}

	seen := map[string]bool{}
	rows := [][]int{}
	for i := 0; i < flagged.NumRows(); i++ {
		row := make([]int, len(cols))
		key := make([]byte, len(cols))
		for j, col := range cols {
			if flagged.ValueOrZero(col, i) > 0 {
				row[j] = 1
				key[j] = '1'
			} else {
				key[j] = '0'
			}
		}
		if seen[string(key)] {
			continue
		}
		seen[string(key)] = true
		rows = append(rows, row)
	}

	return Basket{Columns: cols, Rows: rows}, nil
}

// FindFrequentItemsets runs Apriori over the basket: level-wise candidate
// generation with downward closure, keeping only itemsets whose support meets
// minSupport. Results are sorted by descending support.
func (a *Analyzer) FindFrequentItemsets(basket Basket, minSupport float64) []domain.FrequentItemset {
	if minSupport <= 0 {
		minSupport = a.cfg.MinSupport
	}

	a.supports = map[string]float64{}
	frequent := [][]string{}

	// level 1
	level := [][]string{}
	for _, col := range basket.Columns {
		set := []string{col}
		sup := basket.support(set)
		if sup >= minSupport {
			a.supports[itemsetKey(set)] = sup
			level = append(level, set)
			frequent = append(frequent, set)
		}
	}

	for len(level) > 0 {
		candidates := joinLevel(level)
		next := [][]string{}
		for _, cand := range candidates {
			if !allSubsetsFrequent(cand, a.supports) {
				continue
			}
			sup := basket.support(cand)
			if sup >= minSupport {
				a.supports[itemsetKey(cand)] = sup
				next = append(next, cand)
				frequent = append(frequent, cand)
			}
		}
		level = next
	}

	out := make([]domain.FrequentItemset, 0, len(frequent))
	for _, set := range frequent {
		out = append(out, domain.FrequentItemset{
			Items:    set,
			Products: formatItemset(set),
			Support:  a.supports[itemsetKey(set)],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Support != out[j].Support {
			return out[i].Support > out[j].Support
		}
		return len(out[i].Items) < len(out[j].Items)
	})

	a.itemsets = out
	return out
}

// GenerateRules derives every valid antecedent/consequent split of the mined
// itemsets, keeping rules that meet minThreshold on the chosen metric
// ("lift", "confidence" or "support"). Sorted by descending lift.
func (a *Analyzer) GenerateRules(metric string, minThreshold float64) ([]domain.AssociationRule, error) {
	if a.itemsets == nil {
		return nil, fmt.Errorf("no frequent itemsets: call FindFrequentItemsets before GenerateRules")
	}
	if metric == "" {
		metric = "lift"
	}
	if minThreshold == 0 && metric == "lift" {
		minThreshold = a.cfg.MinLift
	}

	rules := []domain.AssociationRule{}
	for _, itemset := range a.itemsets {
		if len(itemset.Items) < 2 {
			continue
		}
		for _, antecedent := range properSubsets(itemset.Items) {
			consequent := difference(itemset.Items, antecedent)

			supFull := itemset.Support
			supAnte := a.supports[itemsetKey(antecedent)]
			supCons := a.supports[itemsetKey(consequent)]
			if supAnte == 0 || supCons == 0 {
				continue
			}
			confidence := supFull / supAnte
			lift := confidence / supCons

			rule := domain.AssociationRule{
				Antecedents: antecedent,
				Consequents: consequent,
				Rule:        fmt.Sprintf("%s → %s", formatRuleSide(antecedent), formatRuleSide(consequent)),
				Support:     supFull,
				Confidence:  confidence,
				Lift:        lift,
			}
			if ruleMetric(rule, metric) >= minThreshold {
				rules = append(rules, rule)
			}
		}
	}

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Lift != rules[j].Lift {
			return rules[i].Lift > rules[j].Lift
		}
		return rules[i].Confidence > rules[j].Confidence
	})

	a.rules = rules
	return rules, nil
}

// TopRules returns the n best rules by the given metric column.
func (a *Analyzer) TopRules(n int, by string) ([]domain.AssociationRule, error) {
	if a.rules == nil {
		return nil, fmt.Errorf("no rules computed: call GenerateRules before TopRules")
	}
	sorted := make([]domain.AssociationRule, len(a.rules))
	copy(sorted, a.rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return ruleMetric(sorted[i], by) > ruleMetric(sorted[j], by)
	})
	if n < 0 {
		n = 0
	}
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n], nil
}

// ProductRecommendations proposes products the customer does not hold, based
// on rules whose antecedents are a subset of the held products. Duplicates by
// product name keep the highest-confidence instance; output is sorted by
// confidence descending.
func (a *Analyzer) ProductRecommendations(currentProducts []string) ([]domain.Recommendation, error) {
	if a.rules == nil {
		return nil, fmt.Errorf("no rules computed: call GenerateRules before ProductRecommendations")
	}

	held := map[string]bool{}
	for _, p := range currentProducts {
		held[p] = true
	}

	recs := []domain.Recommendation{}
	for _, rule := range a.rules {
		if !subsetOf(rule.Antecedents, held) {
			continue
		}
		for _, product := range rule.Consequents {
			if held[product] {
				continue
			}
			recs = append(recs, domain.Recommendation{
				Product:    displayName(product),
				Confidence: rule.Confidence,
				Lift:       rule.Lift,
				Reason:     fmt.Sprintf("because you hold %s", formatRuleSide(rule.Antecedents)),
			})
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Confidence > recs[j].Confidence
	})

	seen := map[string]bool{}
	unique := []domain.Recommendation{}
	for _, rec := range recs {
		if seen[rec.Product] {
			continue
		}
		seen[rec.Product] = true
		unique = append(unique, rec)
	}

	return unique, nil
}

// Analyze runs the full association pipeline with configured thresholds.
func (a *Analyzer) Analyze(f *domain.Frame) ([]domain.FrequentItemset, []domain.AssociationRule, error) {
	basket, err := a.PrepareData(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prepare basket: %w", err)
	}
	itemsets := a.FindFrequentItemsets(basket, a.cfg.MinSupport)
	rules, err := a.GenerateRules("lift", a.cfg.MinLift)
	if err != nil {
		return nil, nil, err
	}
	return itemsets, rules, nil
}

func (b Basket) support(items []string) float64 {
	if len(b.Rows) == 0 {
		return 0
	}
	idx := []int{}
	for _, item := range items {
		for j, col := range b.Columns {
			if col == item {
				idx = append(idx, j)
			}
		}
	}
	if len(idx) != len(items) {
		return 0
	}
	count := 0
	for _, row := range b.Rows {
		all := true
		for _, j := range idx {
			if row[j] == 0 {
				all = false
				break
			}
		}
		if all {
			count++
		}
	}
	return float64(count) / float64(len(b.Rows))
}

func itemsetKey(items []string) string {
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// joinLevel builds k+1 item candidates from the frequent k-itemsets.
func joinLevel(level [][]string) [][]string {
	seen := map[string]bool{}
	out := [][]string{}
	for i := 0; i < len(level); i++ {
		for j := i + 1; j < len(level); j++ {
			merged := union(level[i], level[j])
			if len(merged) != len(level[i])+1 {
				continue
			}
			key := itemsetKey(merged)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, merged)
		}
	}
	return out
}

func allSubsetsFrequent(items []string, supports map[string]float64) bool {
	for i := range items {
		subset := append(append([]string{}, items[:i]...), items[i+1:]...)
		if _, ok := supports[itemsetKey(subset)]; !ok {
			return false
		}
	}
	return true
}

func properSubsets(items []string) [][]string {
	out := [][]string{}
	n := len(items)
	for mask := 1; mask < (1<<n)-1; mask++ {
		subset := []string{}
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				subset = append(subset, items[i])
			}
		}
		out = append(out, subset)
	}
	return out
}

func union(a, b []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func difference(a, b []string) []string {
	drop := map[string]bool{}
	for _, s := range b {
		drop[s] = true
	}
	out := []string{}
	for _, s := range a {
		if !drop[s] {
			out = append(out, s)
		}
	}
	return out
}

func subsetOf(items []string, set map[string]bool) bool {
	for _, item := range items {
		if !set[item] {
			return false
		}
	}
	return true
}

func displayName(col string) string {
	if name, ok := domain.ProductDisplayNames[col]; ok {
		return name
	}
	return col
}

func formatItemset(items []string) string {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = displayName(item)
	}
	return strings.Join(names, ", ")
}

func formatRuleSide(items []string) string {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = displayName(item)
	}
	return strings.Join(names, " + ")
}

func ruleMetric(r domain.AssociationRule, metric string) float64 {
	switch metric {
	case "confidence":
		return r.Confidence
	case "support":
		return r.Support
	default:
		return r.Lift
	}
}
