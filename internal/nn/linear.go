package nn

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Linear computes x W^T + b.
type Linear struct {
	Mode
	In, Out int
	Weight  *Parameter // Out x In
	Bias    *Parameter // 1 x Out, nil without bias
}

// NewLinear returns a Linear layer initialised uniformly in ±1/sqrt(in).
func NewLinear(in, out int, bias bool, src rand.Source) *Linear {
	l := &Linear{Mode: TrainMode(), In: in, Out: out, Weight: NewParameter(out, in)}
	if bias {
		l.Bias = NewParameter(1, out)
	}
	bound := 1 / math.Sqrt(float64(in))
	fillUniform(l.Weight.Value, -bound, bound, src)
	if l.Bias != nil {
		fillUniform(l.Bias.Value, -bound, bound, src)
	}
	return l
}

// Forward maps an n x In input to n x Out.
func (l *Linear) Forward(x mat.Matrix) *mat.Dense {
	r, _ := x.Dims()
	y := mat.NewDense(r, l.Out, nil)
	y.Mul(x, l.Weight.Value.T())
	if l.Bias != nil {
		addRowVector(y, l.Bias.Value.RawRowView(0))
	}
	return y
}

func (l *Linear) NamedParameters() []NamedParameter {
	ps := []NamedParameter{{Name: "weight", Param: l.Weight}}
	if l.Bias != nil {
		ps = append(ps, NamedParameter{Name: "bias", Param: l.Bias})
	}
	return ps
}

func (l *Linear) Clone() *Linear {
	c := *l
	c.Weight = l.Weight.Clone()
	c.Bias = l.Bias.Clone()
	return &c
}

// LayerNorm normalises each row to zero mean and unit variance, then applies
// a per-feature affine transform.
type LayerNorm struct {
	Mode
	Dim    int
	Eps    float64
	Weight *Parameter // 1 x Dim, init 1
	Bias   *Parameter // 1 x Dim, init 0
}

func NewLayerNorm(dim int, eps float64) *LayerNorm {
	ln := &LayerNorm{Mode: TrainMode(), Dim: dim, Eps: eps, Weight: NewParameter(1, dim), Bias: NewParameter(1, dim)}
	fillConst(ln.Weight.Value, 1)
	return ln
}

func (ln *LayerNorm) Forward(x mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(x)
	r, _ := out.Dims()
	w := ln.Weight.Value.RawRowView(0)
	b := ln.Bias.Value.RawRowView(0)
	n := float64(ln.Dim)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		mean := floats.Sum(row) / n
		floats.AddConst(-mean, row)
		variance := floats.Dot(row, row) / n
		floats.Scale(1/math.Sqrt(variance+ln.Eps), row)
		floats.Mul(row, w)
		floats.Add(row, b)
	}
	return out
}

func (ln *LayerNorm) NamedParameters() []NamedParameter {
	return []NamedParameter{{Name: "weight", Param: ln.Weight}, {Name: "bias", Param: ln.Bias}}
}

func (ln *LayerNorm) Clone() *LayerNorm {
	c := *ln
	c.Weight = ln.Weight.Clone()
	c.Bias = ln.Bias.Clone()
	return &c
}

func fillUniform(m *mat.Dense, lo, hi float64, src rand.Source) {
	fillFrom(m, distuv.Uniform{Min: lo, Max: hi, Src: src})
}

// FillNormal fills m with draws from N(0, std^2).
func FillNormal(m *mat.Dense, std float64, src rand.Source) {
	fillFrom(m, distuv.Normal{Mu: 0, Sigma: std, Src: src})
}

func fillFrom(m *mat.Dense, d distuv.Rander) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		for j := range row {
			row[j] = d.Rand()
		}
	}
}

func fillConst(m *mat.Dense, v float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		for j := range row {
			row[j] = v
		}
	}
}
