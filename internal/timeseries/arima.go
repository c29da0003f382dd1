package timeseries

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ARIMA is an autoregressive integrated moving-average model estimated with
// the Hannan-Rissanen two-stage least-squares procedure: a long AR fit
// recovers innovation estimates, then the ARMA coefficients come from a
// second regression on lagged values and lagged innovations. A tiny ridge
// term keeps degenerate series (constant differences) solvable.
type ARIMA struct {
	P, D, Q int

	Intercept float64
	ARCoef    []float64
	MACoef    []float64

	series []float64
	diffed []float64
	resid  []float64
}

// FitARIMA estimates an ARIMA(p,d,q) model on the series.
func FitARIMA(series []float64, p, d, q int) (*ARIMA, error) {
	if p < 0 || d < 0 || q < 0 {
		return nil, fmt.Errorf("invalid ARIMA order (%d,%d,%d)", p, d, q)
	}
	if len(series) < d+p+q+2 {
		return nil, fmt.Errorf("series of length %d is too short for ARIMA(%d,%d,%d)", len(series), p, d, q)
	}

	m := &ARIMA{P: p, D: d, Q: q}
	m.series = append([]float64{}, series...)

	w := append([]float64{}, series...)
	for k := 0; k < d; k++ {
		w = difference(w)
	}
	m.diffed = w

	// stage 1: long AR fit to estimate innovations
	resid := make([]float64, len(w))
	if q > 0 {
		long := p + q + 1
		if long > len(w)/2 {
			long = len(w) / 2
		}
		if long < 1 {
			long = 1
		}
		coefs, err := ridgeOLS(lagMatrix(w, long, nil, 0))
		if err != nil {
			return nil, fmt.Errorf("failed stage-1 AR fit: %w", err)
		}
		for t := long; t < len(w); t++ {
			pred := coefs[0]
			for j := 1; j <= long; j++ {
				pred += coefs[j] * w[t-j]
			}
			resid[t] = w[t] - pred
		}
	}

	// stage 2: regress on p lags of the series and q lags of the innovations
	coefs, err := ridgeOLS(lagMatrix(w, p, resid, q))
	if err != nil {
		return nil, fmt.Errorf("failed stage-2 ARMA fit: %w", err)
	}
	m.Intercept = coefs[0]
	m.ARCoef = coefs[1 : 1+p]
	m.MACoef = coefs[1+p:]

	// refresh residuals under the final coefficients
	final := make([]float64, len(w))
	start := p
	if q > start {
		start = q
	}
	for t := start; t < len(w); t++ {
		final[t] = w[t] - m.stepForecast(w, final, t)
	}
	m.resid = final

	return m, nil
}

// Forecast extrapolates the differenced process with zero future innovations
// and integrates back d times.
func (m *ARIMA) Forecast(periods int) []float64 {
	w := append([]float64{}, m.diffed...)
	resid := append([]float64{}, m.resid...)

	wForecast := make([]float64, 0, periods)
	for step := 0; step < periods; step++ {
		t := len(w)
		next := m.stepForecast(w, resid, t)
		w = append(w, next)
		resid = append(resid, 0)
		wForecast = append(wForecast, next)
	}

	// invert the d differencing passes
	out := wForecast
	levels := differencedLevels(m.series, m.D)
	for k := m.D - 1; k >= 0; k-- {
		last := levels[k][len(levels[k])-1]
		integrated := make([]float64, len(out))
		for i, v := range out {
			last += v
			integrated[i] = last
		}
		out = integrated
	}
	return out
}

// stepForecast predicts w[t] from the model, treating out-of-range lags as
// zero.
func (m *ARIMA) stepForecast(w, resid []float64, t int) float64 {
	pred := m.Intercept
	for j, coef := range m.ARCoef {
		if idx := t - j - 1; idx >= 0 {
			pred += coef * w[idx]
		}
	}
	for j, coef := range m.MACoef {
		if idx := t - j - 1; idx >= 0 {
			pred += coef * resid[idx]
		}
	}
	return pred
}

func difference(x []float64) []float64 {
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}

// differencedLevels returns the series differenced 0..d-1 times, used when
// integrating forecasts back to the original scale.
func differencedLevels(series []float64, d int) [][]float64 {
	levels := make([][]float64, d)
	cur := append([]float64{}, series...)
	for k := 0; k < d; k++ {
		levels[k] = cur
		cur = difference(cur)
	}
	return levels
}

// lagMatrix builds the regression design: intercept, p lags of w and q lags
// of the innovation estimates, with targets w[t].
func lagMatrix(w []float64, p int, resid []float64, q int) (*mat.Dense, []float64) {
	start := p
	if q > start {
		start = q
	}
	if start < 1 {
		start = 1
	}
	rows := len(w) - start
	if rows < 1 {
		rows = 0
	}
	cols := 1 + p + q

	a := mat.NewDense(maxInt(rows, 1), cols, nil)
	b := make([]float64, 0, rows)
	for t := start; t < len(w); t++ {
		r := t - start
		a.Set(r, 0, 1)
		for j := 1; j <= p; j++ {
			a.Set(r, j, w[t-j])
		}
		for j := 1; j <= q; j++ {
			a.Set(r, p+j, resid[t-j])
		}
		b = append(b, w[t])
	}
	return a, b
}

// ridgeOLS solves the normal equations with a tiny ridge term for stability.
func ridgeOLS(a *mat.Dense, b []float64) ([]float64, error) {
	const lambda = 1e-8

	_, cols := a.Dims()
	if len(b) == 0 {
		return make([]float64, cols), nil
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)
	for i := 0; i < cols; i++ {
		ata.Set(i, i, ata.At(i, i)+lambda)
	}

	bVec := mat.NewVecDense(len(b), b)
	var atb mat.VecDense
	atb.MulVec(a.T(), bVec)

	var beta mat.VecDense
	if err := beta.SolveVec(&ata, &atb); err != nil {
		return nil, fmt.Errorf("failed to solve regression system: %w", err)
	}

	out := make([]float64, cols)
	for i := 0; i < cols; i++ {
		out[i] = beta.AtVec(i)
	}
	return out, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
