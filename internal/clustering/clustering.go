package clustering

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"

	"bankiq/internal/calculator"
	"bankiq/internal/domain"
	"bankiq/internal/features"

	"gonum.org/v1/gonum/mat"
)

type Config struct {
	NumClusters int
	Features    []string
	Seed        int64
	NumInit     int
	MaxIter     int
}

func DefaultConfig() Config {
	return Config{
		NumClusters: 3,
		Features:    features.ClusteringFeatures,
		Seed:        42,
		NumInit:     10,
		MaxIter:     100,
	}
}

// Metrics are the cluster quality measures stored at fit time.
type Metrics struct {
	Silhouette       float64 `json:"silhouette"`
	CalinskiHarabasz float64 `json:"calinskiHarabasz"`
	Inertia          float64 `json:"inertia"`
}

// semantic names for the first cluster indices; anything beyond gets a
// generic group label
var clusterLabels = map[int]string{
	0: "high-value active",
	1: "mass affluent steady",
	2: "young growth",
}

// CustomerClustering standardizes the segmentation features, partitions
// customers with seeded k-means and profiles the resulting segments.
type CustomerClustering struct {
	cfg      Config
	engineer features.Engineer

	scaler   calculator.StandardScaler
	centers  [][]float64
	labels   []int
	features []string
	metrics  Metrics
	fitted   bool
}

func New(cfg Config, engineer features.Engineer) *CustomerClustering {
	if cfg.NumClusters <= 0 {
		cfg.NumClusters = 3
	}
	if len(cfg.Features) == 0 {
		cfg.Features = features.ClusteringFeatures
	}
	if cfg.NumInit <= 0 {
		cfg.NumInit = 10
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = 100
	}
	return &CustomerClustering{cfg: cfg, engineer: engineer, features: cfg.Features}
}

// PrepareData derives the clustering features and narrows the configured list
// to what the dataset actually has. The narrowed list becomes the model's
// persistent feature list.
func (c *CustomerClustering) PrepareData(f *domain.Frame) (*mat.Dense, error) {
	derived := c.engineer.CreateClusteringFeatures(f)
	derived, err := c.engineer.CreateExpressionFeatures(derived)
	if err != nil {
		return nil, fmt.Errorf("failed to apply expression features: %w", err)
	}
	x, resolved, err := c.engineer.FeatureMatrix(derived, c.features)
	if err != nil {
		return nil, fmt.Errorf("failed to build clustering features: %w", err)
	}
	c.features = resolved
	return x, nil
}

// Fit standardizes the features, partitions with k-means and stores quality
// metrics. Identical input and configuration always reproduce the same
// assignments and metrics.
func (c *CustomerClustering) Fit(x *mat.Dense) (Metrics, error) {
	scaled := c.scaler.FitTransform(x)

	res := runKMeans(scaled, c.cfg.NumClusters, c.cfg.Seed, c.cfg.NumInit, c.cfg.MaxIter)
	c.centers = res.centers
	c.labels = res.labels
	c.fitted = true

	c.metrics = Metrics{
		Silhouette:       silhouette(scaled, res.labels, len(res.centers)),
		CalinskiHarabasz: calinskiHarabasz(scaled, res.labels, res.centers, res.inertia),
		Inertia:          res.inertia,
	}
	return c.metrics, nil
}

// Predict assigns each row to its nearest fitted center.
func (c *CustomerClustering) Predict(x *mat.Dense) ([]int, error) {
	if !c.fitted {
		return nil, domain.ErrNotFitted
	}
	scaled, err := c.scaler.Transform(x)
	if err != nil {
		return nil, err
	}
	rows, _ := scaled.Dims()
	labels := make([]int, rows)
	for i := 0; i < rows; i++ {
		labels[i], _ = nearestCenter(scaled.RawRowView(i), c.centers)
	}
	return labels, nil
}

// FitPredict is the common fit-then-assign path.
func (c *CustomerClustering) FitPredict(x *mat.Dense) ([]int, error) {
	if _, err := c.Fit(x); err != nil {
		return nil, err
	}
	return c.Predict(x)
}

func (c *CustomerClustering) Labels() []int     { return c.labels }
func (c *CustomerClustering) Features() []string { return c.features }
func (c *CustomerClustering) QualityMetrics() Metrics { return c.metrics }
func (c *CustomerClustering) IsFitted() bool    { return c.fitted }

// ClusterProfiles aggregates count, population share, a readable segment name
// and the mean of each tracked feature per cluster.
func (c *CustomerClustering) ClusterProfiles(f *domain.Frame, labels []int) ([]domain.ClusterProfile, error) {
	if !c.fitted {
		return nil, domain.ErrNotFitted
	}
	if len(labels) != f.NumRows() {
		return nil, fmt.Errorf("label count %d does not match frame rows %d", len(labels), f.NumRows())
	}

	derived := c.engineer.CreateClusteringFeatures(f)
	derived, err := c.engineer.CreateExpressionFeatures(derived)
	if err != nil {
		return nil, fmt.Errorf("failed to apply expression features: %w", err)
	}
	total := float64(len(labels))
	profiles := make([]domain.ClusterProfile, 0, c.cfg.NumClusters)

	for cluster := 0; cluster < c.cfg.NumClusters; cluster++ {
		label, ok := clusterLabels[cluster]
		if !ok {
			label = fmt.Sprintf("group %d", cluster)
		}

		profile := domain.ClusterProfile{
			Cluster:      cluster,
			Label:        label,
			FeatureMeans: map[string]float64{},
		}
		for i, l := range labels {
			if l == cluster {
				profile.Count++
				for _, feat := range c.features {
					profile.FeatureMeans[feat] += derived.ValueOrZero(feat, i)
				}
			}
		}
		if profile.Count > 0 {
			for feat := range profile.FeatureMeans {
				profile.FeatureMeans[feat] /= float64(profile.Count)
			}
			profile.Percentage = float64(profile.Count) / total * 100
		}
		profiles = append(profiles, profile)
	}

	return profiles, nil
}

// PCACoordinates projects the standardized features to two dimensions for
// scatter plots. Nothing downstream computes on these.
func (c *CustomerClustering) PCACoordinates(x *mat.Dense) ([][2]float64, error) {
	if !c.fitted {
		return nil, domain.ErrNotFitted
	}
	scaled, err := c.scaler.Transform(x)
	if err != nil {
		return nil, err
	}

	var svd mat.SVD
	if ok := svd.Factorize(scaled, mat.SVDThin); !ok {
		return nil, fmt.Errorf("failed to factorize feature matrix for projection")
	}
	var u mat.Dense
	svd.UTo(&u)
	sigma := svd.Values(nil)

	rows, cols := scaled.Dims()
	out := make([][2]float64, rows)
	for i := 0; i < rows; i++ {
		out[i][0] = u.At(i, 0) * sigma[0]
		if cols > 1 {
			out[i][1] = u.At(i, 1) * sigma[1]
		}
	}
	return out, nil
}

// FindOptimalClusters fits k = 2..maxK and reports the silhouette per k. The
// caller inspects the mapping; no k is auto-selected here.
func (c *CustomerClustering) FindOptimalClusters(x *mat.Dense, maxK int) (map[int]float64, error) {
	if maxK < 2 {
		return nil, fmt.Errorf("maxK must be at least 2, got %d", maxK)
	}
	scaled := c.scaler.FitTransform(x)
	rows, _ := scaled.Dims()

	scores := map[int]float64{}
	for k := 2; k <= maxK && k <= rows; k++ {
		res := runKMeans(scaled, k, c.cfg.Seed, c.cfg.NumInit, c.cfg.MaxIter)
		scores[k] = silhouette(scaled, res.labels, k)
	}
	return scores, nil
}

// persisted state for the generic save/load contract
type clustererState struct {
	Centers  [][]float64
	Means    []float64
	Stds     []float64
	Features []string
	Metrics  Metrics
	Clusters int
}

// Save writes the fitted centers, scaler parameters, feature list and metrics
// as one unit.
func (c *CustomerClustering) Save(path string) error {
	if !c.fitted {
		return domain.ErrNotFitted
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	defer file.Close()

	state := clustererState{
		Centers:  c.centers,
		Means:    c.scaler.Means,
		Stds:     c.scaler.Stds,
		Features: c.features,
		Metrics:  c.metrics,
		Clusters: c.cfg.NumClusters,
	}
	if err := gob.NewEncoder(file).Encode(state); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// Load restores a saved clusterer into this instance, ready for Predict
// without refitting.
func (c *CustomerClustering) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open model file: %w", err)
	}
	defer file.Close()

	state := clustererState{}
	if err := gob.NewDecoder(file).Decode(&state); err != nil {
		return fmt.Errorf("failed to decode model: %w", err)
	}

	c.centers = state.Centers
	c.scaler = calculator.StandardScaler{Means: state.Means, Stds: state.Stds, Fitted: true}
	c.features = state.Features
	c.metrics = state.Metrics
	c.cfg.NumClusters = state.Clusters
	c.fitted = true
	return nil
}

// silhouette is the mean cohesion/separation index in [-1, 1].
func silhouette(x *mat.Dense, labels []int, k int) float64 {
	rows, _ := x.Dims()
	if k < 2 || rows <= k {
		return 0
	}

	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}

	total := 0.0
	for i := 0; i < rows; i++ {
		meanDist := make([]float64, k)
		for j := 0; j < rows; j++ {
			if i == j {
				continue
			}
			meanDist[labels[j]] += math.Sqrt(sqDist(x.RawRowView(i), x.RawRowView(j)))
		}
		own := labels[i]
		if counts[own] <= 1 {
			continue
		}

		a := meanDist[own] / float64(counts[own]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || counts[c] == 0 {
				continue
			}
			if d := meanDist[c] / float64(counts[c]); d < b {
				b = d
			}
		}
		if denom := math.Max(a, b); denom > 0 {
			total += (b - a) / denom
		}
	}
	return total / float64(rows)
}

// calinskiHarabasz is the variance-ratio criterion.
func calinskiHarabasz(x *mat.Dense, labels []int, centers [][]float64, inertia float64) float64 {
	rows, cols := x.Dims()
	k := len(centers)
	if k < 2 || rows <= k || inertia == 0 {
		return 0
	}

	grand := make([]float64, cols)
	for i := 0; i < rows; i++ {
		row := x.RawRowView(i)
		for j := 0; j < cols; j++ {
			grand[j] += row[j]
		}
	}
	for j := 0; j < cols; j++ {
		grand[j] /= float64(rows)
	}

	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}

	between := 0.0
	for c := 0; c < k; c++ {
		between += float64(counts[c]) * sqDist(centers[c], grand)
	}

	return (between / float64(k-1)) / (inertia / float64(rows-k))
}
