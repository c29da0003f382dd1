package domain

import "time"

// FrequentItemset is a set of product flags with its basket support.
type FrequentItemset struct {
	Items    []string `json:"items"`
	Products string   `json:"products"`
	Support  float64  `json:"support"`
}

// AssociationRule is a directional antecedent → consequent pattern with its
// standard quality metrics.
type AssociationRule struct {
	Antecedents []string `json:"antecedents"`
	Consequents []string `json:"consequents"`
	Rule        string   `json:"rule"`
	Support     float64  `json:"support"`
	Confidence  float64  `json:"confidence"`
	Lift        float64  `json:"lift"`
}

// Recommendation is the cross-sell contract consumed verbatim by the chat and
// dashboard layers.
type Recommendation struct {
	Product    string  `json:"product"`
	Confidence float64 `json:"confidence"`
	Lift       float64 `json:"lift"`
	Reason     string  `json:"reason"`
}

// ClusterProfile summarizes one customer segment.
type ClusterProfile struct {
	Cluster      int                `json:"cluster"`
	Label        string             `json:"label"`
	Count        int                `json:"count"`
	Percentage   float64            `json:"percentage"`
	FeatureMeans map[string]float64 `json:"featureMeans"`
}

// FeatureImportance ranks one feature's contribution to a fitted model.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// SeriesPoint is one month of an asset series.
type SeriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series origins used when history and forecast are combined for reporting.
const (
	SeriesOriginHistory  = "history"
	SeriesOriginForecast = "forecast"
)

// CombinedPoint tags a series point with its origin.
type CombinedPoint struct {
	Date   time.Time `json:"date"`
	Value  float64   `json:"value"`
	Origin string    `json:"origin"`
}

// TrendSummary describes the direction of an asset series relative to its
// forecast.
type TrendSummary struct {
	HistoryChangePct  float64 `json:"historyChangePct"`
	ForecastChangePct float64 `json:"forecastChangePct"`
	Direction         string  `json:"direction"`
	CurrentValue      float64 `json:"currentValue"`
	ForecastEndValue  float64 `json:"forecastEndValue"`
}

// Trend directions. The dead zone is symmetric at ±5%.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendFlat    = "flat"
)

// Attribution is one feature's signed contribution to a single prediction.
type Attribution struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// InstanceAttribution ties an attribution to the scored row it explains.
type InstanceAttribution struct {
	Index   int     `json:"index"`
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}
