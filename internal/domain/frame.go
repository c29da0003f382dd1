package domain

import (
	"math"
	"time"
)

// Frame is a column-oriented table keyed by column name. Numeric columns hold
// float64 values with NaN marking missing entries; date columns are kept
// separately so the time-series layer can aggregate on them. All analytic
// components treat a Frame as immutable and work on copies.
type Frame struct {
	nRows     int
	order     []string
	cols      map[string][]float64
	timeOrder []string
	times     map[string][]time.Time
	ids       []string
}

func NewFrame(nRows int) *Frame {
	return &Frame{
		nRows: nRows,
		cols:  map[string][]float64{},
		times: map[string][]time.Time{},
	}
}

func (f *Frame) NumRows() int { return f.nRows }

// Columns returns numeric column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

func (f *Frame) HasTime(name string) bool {
	_, ok := f.times[name]
	return ok
}

// Column returns the backing slice for a numeric column, or nil if absent.
// Callers must not mutate it; use Clone + SetColumn to derive new frames.
func (f *Frame) Column(name string) []float64 {
	return f.cols[name]
}

func (f *Frame) TimeColumn(name string) []time.Time {
	return f.times[name]
}

func (f *Frame) SetColumn(name string, values []float64) {
	if len(values) != f.nRows {
		panic("domain: column length does not match frame row count")
	}
	if _, ok := f.cols[name]; !ok {
		f.order = append(f.order, name)
	}
	f.cols[name] = values
}

func (f *Frame) SetTimeColumn(name string, values []time.Time) {
	if len(values) != f.nRows {
		panic("domain: column length does not match frame row count")
	}
	if _, ok := f.times[name]; !ok {
		f.timeOrder = append(f.timeOrder, name)
	}
	f.times[name] = values
}

// SetIDs attaches the customer identifier column. IDs ride along so callers
// can join predictions and cluster labels back to customers.
func (f *Frame) SetIDs(ids []string) {
	if len(ids) != f.nRows {
		panic("domain: id length does not match frame row count")
	}
	f.ids = ids
}

func (f *Frame) IDs() []string { return f.ids }

// Clone deep-copies the frame so derivations never touch the input.
func (f *Frame) Clone() *Frame {
	out := NewFrame(f.nRows)
	for _, name := range f.order {
		vals := make([]float64, f.nRows)
		copy(vals, f.cols[name])
		out.SetColumn(name, vals)
	}
	for _, name := range f.timeOrder {
		vals := make([]time.Time, f.nRows)
		copy(vals, f.times[name])
		out.SetTimeColumn(name, vals)
	}
	if f.ids != nil {
		ids := make([]string, f.nRows)
		copy(ids, f.ids)
		out.SetIDs(ids)
	}
	return out
}

// ValueOrZero reads a cell treating NaN (and absent columns) as zero.
func (f *Frame) ValueOrZero(name string, row int) float64 {
	col, ok := f.cols[name]
	if !ok {
		return 0
	}
	v := col[row]
	if math.IsNaN(v) {
		return 0
	}
	return v
}
