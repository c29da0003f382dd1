package calculator

import (
	"bankiq/internal/domain"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers features to zero mean and unit variance. Parameters
// are fit once and reused so train-time and predict-time inputs share the same
// transform.
type StandardScaler struct {
	Means  []float64 `json:"means"`
	Stds   []float64 `json:"stds"`
	Fitted bool      `json:"fitted"`
}

func (s *StandardScaler) Fit(x *mat.Dense) {
	_, cols := x.Dims()
	s.Means = make([]float64, cols)
	s.Stds = make([]float64, cols)
	for j := 0; j < cols; j++ {
		col := mat.Col(nil, j, x)
		s.Means[j] = stat.Mean(col, nil)
		std := stat.PopStdDev(col, nil)
		if std == 0 {
			// constant column, leave values centered only
			std = 1
		}
		s.Stds[j] = std
	}
	s.Fitted = true
}

func (s *StandardScaler) Transform(x *mat.Dense) (*mat.Dense, error) {
	if !s.Fitted {
		return nil, domain.ErrNotFitted
	}
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, (x.At(i, j)-s.Means[j])/s.Stds[j])
		}
	}
	return out, nil
}

func (s *StandardScaler) FitTransform(x *mat.Dense) *mat.Dense {
	s.Fit(x)
	out, _ := s.Transform(x)
	return out
}
