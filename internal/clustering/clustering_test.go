package clustering

import (
	"path/filepath"
	"testing"

	"bankiq/internal/domain"
	"bankiq/internal/features"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newClusterer(k int) *CustomerClustering {
	cfg := DefaultConfig()
	cfg.NumClusters = k
	return New(cfg, features.NewEngineer(features.DefaultConfig()))
}

// three well-separated blobs of five points each, in blob order
func blobMatrix() *mat.Dense {
	centers := [][2]float64{{0, 0}, {10, 10}, {20, 0}}
	data := []float64{}
	for _, c := range centers {
		for i := 0; i < 5; i++ {
			data = append(data,
				c[0]+0.1*float64(i),
				c[1]-0.1*float64(i),
			)
		}
	}
	return mat.NewDense(15, 2, data)
}

func TestPrepareData(t *testing.T) {
	f := domain.NewFrame(4)
	f.SetColumn(domain.ColAge, []float64{25, 35, 45, 55})
	f.SetColumn(domain.ColTotalAssets, []float64{10000, 50000, 200000, 800000})
	f.SetColumn(domain.ColMonthlyIncome, []float64{3000, 5000, 9000, 15000})
	f.SetColumn(domain.ColProductCount, []float64{1, 2, 3, 4})
	f.SetColumn(domain.ColAppLoginCount, []float64{2, 8, 15, 30})

	c := newClusterer(3)
	x, err := c.PrepareData(f)
	require.NoError(t, err)

	rows, cols := x.Dims()
	require.Equal(t, 4, rows)
	require.Equal(t, 5, cols)
	require.Equal(t, "", cmp.Diff(features.ClusteringFeatures, c.Features()))
}

func TestFitPredict(t *testing.T) {
	x := blobMatrix()

	t.Run("separates the blobs", func(t *testing.T) {
		c := newClusterer(3)
		labels, err := c.FitPredict(x)
		require.NoError(t, err)
		require.Len(t, labels, 15)

		// points within a blob agree, points across blobs differ
		for blob := 0; blob < 3; blob++ {
			for i := 1; i < 5; i++ {
				require.Equal(t, labels[blob*5], labels[blob*5+i])
			}
		}
		require.NotEqual(t, labels[0], labels[5])
		require.NotEqual(t, labels[5], labels[10])
		require.NotEqual(t, labels[0], labels[10])

		metrics := c.QualityMetrics()
		require.Greater(t, metrics.Silhouette, 0.7)
		require.Greater(t, metrics.CalinskiHarabasz, 0.0)
		require.Greater(t, metrics.Inertia, 0.0)
	})

	t.Run("same seed reproduces identical assignments", func(t *testing.T) {
		first, err := newClusterer(3).FitPredict(x)
		require.NoError(t, err)
		second, err := newClusterer(3).FitPredict(x)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(first, second))
	})

	t.Run("predict requires a fitted model", func(t *testing.T) {
		_, err := newClusterer(3).Predict(x)
		require.ErrorIs(t, err, domain.ErrNotFitted)
	})
}

func TestClusterProfiles(t *testing.T) {
	f := domain.NewFrame(6)
	f.SetColumn(domain.ColAge, []float64{28, 30, 45, 47, 62, 64})
	f.SetColumn(domain.ColTotalAssets, []float64{10000, 12000, 300000, 320000, 900000, 950000})
	f.SetColumn(domain.ColMonthlyIncome, []float64{3000, 3200, 8000, 8500, 2000, 2500})
	f.SetColumn(domain.ColProductCount, []float64{1, 1, 3, 3, 2, 2})
	f.SetColumn(domain.ColAppLoginCount, []float64{25, 28, 12, 14, 2, 3})

	c := newClusterer(3)
	x, err := c.PrepareData(f)
	require.NoError(t, err)
	labels, err := c.FitPredict(x)
	require.NoError(t, err)

	profiles, err := c.ClusterProfiles(f, labels)
	require.NoError(t, err)
	require.Len(t, profiles, 3)

	totalCount := 0
	totalPct := 0.0
	for _, p := range profiles {
		totalCount += p.Count
		totalPct += p.Percentage
		require.NotEmpty(t, p.Label)
		for _, feat := range c.Features() {
			require.Contains(t, p.FeatureMeans, feat)
		}
	}
	require.Equal(t, 6, totalCount)
	require.InDelta(t, 100.0, totalPct, 1e-9)

	t.Run("rejects mismatched label count", func(t *testing.T) {
		_, err := c.ClusterProfiles(f, labels[:3])
		require.Error(t, err)
	})

	t.Run("requires a fitted model", func(t *testing.T) {
		_, err := newClusterer(3).ClusterProfiles(f, labels)
		require.ErrorIs(t, err, domain.ErrNotFitted)
	})
}

func TestPCACoordinates(t *testing.T) {
	x := blobMatrix()
	c := newClusterer(3)
	_, err := c.FitPredict(x)
	require.NoError(t, err)

	coords, err := c.PCACoordinates(x)
	require.NoError(t, err)
	require.Len(t, coords, 15)

	t.Run("requires a fitted model", func(t *testing.T) {
		_, err := newClusterer(3).PCACoordinates(x)
		require.ErrorIs(t, err, domain.ErrNotFitted)
	})
}

func TestFindOptimalClusters(t *testing.T) {
	x := blobMatrix()
	c := newClusterer(3)

	scores, err := c.FindOptimalClusters(x, 5)
	require.NoError(t, err)

	for k := 2; k <= 5; k++ {
		score, ok := scores[k]
		require.True(t, ok, "missing silhouette for k=%d", k)
		require.GreaterOrEqual(t, score, -1.0)
		require.LessOrEqual(t, score, 1.0)
	}

	// three genuine blobs: k=3 should beat k=2
	require.Greater(t, scores[3], scores[2])

	t.Run("rejects maxK below 2", func(t *testing.T) {
		_, err := c.FindOptimalClusters(x, 1)
		require.Error(t, err)
	})
}

func TestSaveLoad(t *testing.T) {
	x := blobMatrix()
	c := newClusterer(3)
	labels, err := c.FitPredict(x)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "clusterer.gob")
	require.NoError(t, c.Save(path))

	restored := newClusterer(3)
	require.NoError(t, restored.Load(path))
	require.True(t, restored.IsFitted())
	require.Equal(t, "", cmp.Diff(c.QualityMetrics(), restored.QualityMetrics()))

	predicted, err := restored.Predict(x)
	require.NoError(t, err)
	require.Equal(t, "", cmp.Diff(labels, predicted))

	t.Run("save requires a fitted model", func(t *testing.T) {
		err := newClusterer(3).Save(filepath.Join(t.TempDir(), "unfitted.gob"))
		require.ErrorIs(t, err, domain.ErrNotFitted)
	})
}
