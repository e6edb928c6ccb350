package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// normEps matches the lower bound used when L2-normalising rows.
const normEps = 1e-12

// GELU applies the exact (erf based) GELU element-wise.
func GELU(x mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 {
		return 0.5 * v * (1 + math.Erf(v/math.Sqrt2))
	}, x)
	return &out
}

// ReLU applies max(0, v) element-wise.
func ReLU(x mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}, x)
	return &out
}

// SoftmaxRows applies a numerically stable softmax to each row of x in place.
func SoftmaxRows(x *mat.Dense) {
	r, _ := x.Dims()
	for i := 0; i < r; i++ {
		row := x.RawRowView(i)
		floats.AddConst(-floats.Max(row), row)
		for j, v := range row {
			row[j] = math.Exp(v)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
}

// NormalizeRows returns a copy of m with every row scaled to unit L2 norm.
// Rows with a norm below 1e-12 are divided by 1e-12 instead.
func NormalizeRows(m mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(m)
	r, _ := out.Dims()
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		floats.Scale(1/math.Max(floats.Norm(row, 2), normEps), row)
	}
	return out
}

// Cosine returns the pairwise cosine similarity between the rows of x and
// the rows of w, shaped rows(x) x rows(w).
func Cosine(x, w mat.Matrix) *mat.Dense {
	xr, _ := x.Dims()
	wr, _ := w.Dims()
	out := mat.NewDense(xr, wr, nil)
	out.Mul(NormalizeRows(x), NormalizeRows(w).T())
	return out
}

// HConcat concatenates matrices with equal row counts left to right.
func HConcat(ms ...mat.Matrix) *mat.Dense {
	if len(ms) == 0 {
		return nil
	}
	rows, _ := ms[0].Dims()
	total := 0
	for _, m := range ms {
		r, c := m.Dims()
		if r != rows {
			panic(mat.ErrShape)
		}
		total += c
	}
	out := mat.NewDense(rows, total, nil)
	col := 0
	for _, m := range ms {
		_, c := m.Dims()
		out.Slice(0, rows, col, col+c).(*mat.Dense).Copy(m)
		col += c
	}
	return out
}

// addRowVector adds v to every row of m.
func addRowVector(m *mat.Dense, v []float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.Add(m.RawRowView(i), v)
	}
}
