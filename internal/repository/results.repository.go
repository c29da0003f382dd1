package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bankiq/internal/domain"

	"github.com/gocarina/gocsv"
)

// ResultsRepository writes analysis outputs as CSV files so they can be
// picked up by reporting jobs.
type ResultsRepository interface {
	WriteItemsets(itemsets []domain.FrequentItemset) error
	WriteRules(rules []domain.AssociationRule) error
	WriteClusterProfiles(profiles []domain.ClusterProfile) error
	WriteForecast(points []domain.CombinedPoint) error
	WriteFeatureImportances(importances []domain.FeatureImportance) error
	WriteAttributions(attributions []domain.InstanceAttribution) error
}

func NewResultsRepository(dir string) ResultsRepository {
	return resultsRepositoryHandler{Dir: dir}
}

type resultsRepositoryHandler struct {
	Dir string
}

func writeCsv[T any](dir, name string, rows []T) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	err = gocsv.MarshalFile(&rows, f)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

type itemsetCsvRow struct {
	Products string  `csv:"products"`
	Support  float64 `csv:"support"`
}

func (h resultsRepositoryHandler) WriteItemsets(itemsets []domain.FrequentItemset) error {
	rows := make([]itemsetCsvRow, len(itemsets))
	for i, s := range itemsets {
		rows[i] = itemsetCsvRow{Products: s.Products, Support: s.Support}
	}
	return writeCsv(h.Dir, "frequent_itemsets.csv", rows)
}

type ruleCsvRow struct {
	Rule       string  `csv:"rule"`
	Support    float64 `csv:"support"`
	Confidence float64 `csv:"confidence"`
	Lift       float64 `csv:"lift"`
}

func (h resultsRepositoryHandler) WriteRules(rules []domain.AssociationRule) error {
	rows := make([]ruleCsvRow, len(rules))
	for i, r := range rules {
		rows[i] = ruleCsvRow{Rule: r.Rule, Support: r.Support, Confidence: r.Confidence, Lift: r.Lift}
	}
	return writeCsv(h.Dir, "association_rules.csv", rows)
}

type clusterCsvRow struct {
	Cluster    int     `csv:"cluster"`
	Label      string  `csv:"label"`
	Count      int     `csv:"count"`
	Percentage float64 `csv:"percentage"`
}

func (h resultsRepositoryHandler) WriteClusterProfiles(profiles []domain.ClusterProfile) error {
	rows := make([]clusterCsvRow, len(profiles))
	for i, p := range profiles {
		rows[i] = clusterCsvRow{Cluster: p.Cluster, Label: p.Label, Count: p.Count, Percentage: p.Percentage}
	}
	return writeCsv(h.Dir, "cluster_profiles.csv", rows)
}

type forecastCsvRow struct {
	Date   string  `csv:"date"`
	Value  float64 `csv:"value"`
	Origin string  `csv:"origin"`
}

func (h resultsRepositoryHandler) WriteForecast(points []domain.CombinedPoint) error {
	rows := make([]forecastCsvRow, len(points))
	for i, p := range points {
		rows[i] = forecastCsvRow{
			Date:   p.Date.Format(time.DateOnly),
			Value:  p.Value,
			Origin: p.Origin,
		}
	}
	return writeCsv(h.Dir, "asset_forecast.csv", rows)
}

type importanceCsvRow struct {
	Feature    string  `csv:"feature"`
	Importance float64 `csv:"importance"`
}

func (h resultsRepositoryHandler) WriteFeatureImportances(importances []domain.FeatureImportance) error {
	rows := make([]importanceCsvRow, len(importances))
	for i, imp := range importances {
		rows[i] = importanceCsvRow{Feature: imp.Feature, Importance: imp.Importance}
	}
	return writeCsv(h.Dir, "feature_importance.csv", rows)
}

type attributionCsvRow struct {
	Index   int     `csv:"customer_index"`
	Feature string  `csv:"feature"`
	Value   float64 `csv:"contribution"`
}

func (h resultsRepositoryHandler) WriteAttributions(attributions []domain.InstanceAttribution) error {
	rows := make([]attributionCsvRow, len(attributions))
	for i, a := range attributions {
		rows[i] = attributionCsvRow{Index: a.Index, Feature: a.Feature, Value: a.Value}
	}
	return writeCsv(h.Dir, "model_attributions.csv", rows)
}
