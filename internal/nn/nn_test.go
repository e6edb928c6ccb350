package nn

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCosineLinearForward(t *testing.T) {
	c := NewCosineLinear(2, 2, rand.NewSource(1))
	c.Weight.Value = mat.NewDense(2, 2, []float64{1, 0, 0, 2})
	c.Sigma.Value.Set(0, 0, 2)
	out, err := c.Forward(mat.NewDense(1, 2, []float64{3, 4}))
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if !approx(out.At(0, 0), 1.2) || !approx(out.At(0, 1), 1.6) {
		t.Fatalf("unexpected logits: %v", mat.Formatted(out))
	}
	if _, err := c.Forward(mat.NewDense(1, 3, nil)); err == nil {
		t.Fatalf("expected width mismatch error")
	}
}

func TestCosineLinearResetToZeroKeepsSigma(t *testing.T) {
	c := NewCosineLinear(4, 3, rand.NewSource(2))
	c.Sigma.Value.Set(0, 0, 5)
	c.ResetParametersToZero()
	if mat.Sum(c.Weight.Value) != 0 || mat.Norm(c.Weight.Value, 1) != 0 {
		t.Fatalf("weights not zeroed")
	}
	if c.Scale() != 5 {
		t.Fatalf("sigma changed: %v", c.Scale())
	}
	out, err := c.Forward(mat.NewDense(2, 4, []float64{1, 2, 3, 4, 5, 6, 7, 8}))
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if mat.Norm(out, 1) != 0 {
		t.Fatalf("zero head should score zero, got %v", mat.Formatted(out))
	}
}

func TestCosineLinearInitBounds(t *testing.T) {
	c := NewCosineLinear(16, 4, rand.NewSource(3))
	bound := 1 / math.Sqrt(16)
	if mat.Max(c.Weight.Value) > bound || mat.Min(c.Weight.Value) < -bound {
		t.Fatalf("weights outside ±%v", bound)
	}
	if c.Scale() != 1 {
		t.Fatalf("sigma=%v, want 1", c.Scale())
	}
}

func TestForwardReweight(t *testing.T) {
	c := NewCosineLinear(4, 2, rand.NewSource(4))
	c.Weight.Value = mat.NewDense(2, 4, []float64{
		1, 0, 1, 0,
		0, 1, 0, 1,
	})
	x := mat.NewDense(1, 4, []float64{1, 0, 1, 0})
	out, err := c.ForwardReweight(x, ReweightOptions{CurTask: 1, Alpha: 0.5, InitCls: 1, Inc: 1, OutDim: 2})
	if err != nil {
		t.Fatalf("reweight: %v", err)
	}
	if r, cols := out.Dims(); r != 1 || cols != 2 {
		t.Fatalf("dims=%dx%d", r, cols)
	}
	if !approx(out.At(0, 0), 1.5) || !approx(out.At(0, 1), 0) {
		t.Fatalf("unexpected logits: %v", mat.Formatted(out))
	}
}

func TestForwardReweightInitPTM(t *testing.T) {
	c := NewCosineLinear(4, 1, rand.NewSource(5))
	c.Weight.Value = mat.NewDense(1, 4, []float64{1, 0, 1, 0})
	c.Sigma.Value.Set(0, 0, 2)
	x := mat.NewDense(1, 4, []float64{1, 0, 1, 0})
	out, err := c.ForwardReweight(x, ReweightOptions{CurTask: 0, Alpha: 0.1, Beta: 0.25, InitCls: 1, Inc: 1, OutDim: 2, UseInitPTM: true})
	if err != nil {
		t.Fatalf("reweight: %v", err)
	}
	if !approx(out.At(0, 0), 2*1.25) {
		t.Fatalf("logit=%v, want 2.5", out.At(0, 0))
	}
}

func TestForwardReweightErrors(t *testing.T) {
	c := NewCosineLinear(4, 2, rand.NewSource(6))
	x := mat.NewDense(1, 4, nil)
	if _, err := c.ForwardReweight(x, ReweightOptions{CurTask: 2, InitCls: 1, Inc: 1, OutDim: 2}); err == nil {
		t.Fatalf("expected out of range error")
	}
	if _, err := c.ForwardReweight(x, ReweightOptions{CurTask: 0, InitCls: 1, Inc: 1, OutDim: 3}); err == nil {
		t.Fatalf("expected block width error")
	}
	if _, err := c.ForwardReweight(mat.NewDense(1, 2, nil), ReweightOptions{InitCls: 1, Inc: 1, OutDim: 2}); err == nil {
		t.Fatalf("expected width mismatch error")
	}
}

func TestTaskClassRange(t *testing.T) {
	cases := []struct{ task, start, end int }{{0, 0, 20}, {1, 20, 30}, {3, 40, 50}}
	for _, c := range cases {
		s, e := TaskClassRange(c.task, 20, 10)
		if s != c.start || e != c.end {
			t.Fatalf("task %d: got [%d,%d) want [%d,%d)", c.task, s, e, c.start, c.end)
		}
	}
}

func TestOps(t *testing.T) {
	x := mat.NewDense(2, 3, []float64{1, 2, 3, -1, 0, 1})
	sm := mat.DenseCopyOf(x)
	SoftmaxRows(sm)
	for i := 0; i < 2; i++ {
		if !approx(floats.Sum(sm.RawRowView(i)), 1) {
			t.Fatalf("softmax row %d does not sum to 1", i)
		}
	}
	n := NormalizeRows(x)
	for i := 0; i < 2; i++ {
		if !approx(floats.Norm(n.RawRowView(i), 2), 1) {
			t.Fatalf("row %d not unit norm", i)
		}
	}
	if z := NormalizeRows(mat.NewDense(1, 2, nil)); mat.Norm(z, 1) != 0 {
		t.Fatalf("zero row should stay zero")
	}
	r := ReLU(x)
	if r.At(1, 0) != 0 || r.At(0, 2) != 3 {
		t.Fatalf("relu: %v", mat.Formatted(r))
	}
	g := GELU(mat.NewDense(1, 1, []float64{0}))
	if g.At(0, 0) != 0 {
		t.Fatalf("gelu(0)=%v", g.At(0, 0))
	}
	h := HConcat(x, mat.NewDense(2, 1, []float64{9, 8}))
	if _, c := h.Dims(); c != 4 || h.At(0, 3) != 9 || h.At(1, 0) != -1 {
		t.Fatalf("hconcat: %v", mat.Formatted(h))
	}
}

func TestLayerNorm(t *testing.T) {
	ln := NewLayerNorm(4, 1e-6)
	out := ln.Forward(mat.NewDense(1, 4, []float64{1, 2, 3, 4}))
	row := out.RawRowView(0)
	if !approx(floats.Sum(row), 0) {
		t.Fatalf("mean not zero: %v", row)
	}
	if v := floats.Dot(row, row) / 4; math.Abs(v-1) > 1e-5 {
		t.Fatalf("variance=%v", v)
	}
}

func TestLinear(t *testing.T) {
	l := NewLinear(2, 1, true, rand.NewSource(7))
	l.Weight.Value = mat.NewDense(1, 2, []float64{2, 3})
	l.Bias.Value.Set(0, 0, 1)
	y := l.Forward(mat.NewDense(2, 2, []float64{1, 1, 0, 2}))
	if y.At(0, 0) != 6 || y.At(1, 0) != 7 {
		t.Fatalf("linear: %v", mat.Formatted(y))
	}
	c := l.Clone()
	c.Weight.Value.Set(0, 0, 100)
	if l.Weight.Value.At(0, 0) != 2 {
		t.Fatalf("clone shares storage")
	}
}

func TestInitialisationIsSeeded(t *testing.T) {
	a := NewLinear(16, 32, true, rand.NewSource(11))
	b := NewLinear(16, 32, true, rand.NewSource(11))
	c := NewLinear(16, 32, true, rand.NewSource(12))
	if !mat.Equal(a.Weight.Value, b.Weight.Value) || !mat.Equal(a.Bias.Value, b.Bias.Value) {
		t.Fatalf("same seed should give the same weights")
	}
	if mat.Equal(a.Weight.Value, c.Weight.Value) {
		t.Fatalf("different seeds should give different weights")
	}
	if lo, hi := mat.Min(a.Weight.Value), mat.Max(a.Weight.Value); lo < -0.25 || hi > 0.25 || lo == hi {
		t.Fatalf("weights outside U(-0.25, 0.25): [%v, %v]", lo, hi)
	}

	m := mat.NewDense(200, 50, nil)
	FillNormal(m, 0.02, rand.NewSource(13))
	if sd := stat.StdDev(m.RawMatrix().Data, nil); math.Abs(sd-0.02) > 0.002 {
		t.Fatalf("normal std=%v", sd)
	}
}

func TestFreezeAndTrainable(t *testing.T) {
	c := NewCosineLinear(3, 2, rand.NewSource(8))
	tr := Trainable(c)
	if len(tr) != 2 || tr[0].Name != "weight" || tr[0].Numel != 6 || tr[1].Name != "sigma" || tr[1].Numel != 1 {
		t.Fatalf("trainable: %+v", tr)
	}
	Freeze(c)
	if len(Trainable(c)) != 0 {
		t.Fatalf("freeze left trainable params")
	}
	if !c.Training() {
		t.Fatalf("freeze must not change mode")
	}
	total, trainable := CountParameters(c)
	if total != 7 || trainable != 0 {
		t.Fatalf("counts total=%d trainable=%d", total, trainable)
	}
	p := Prefixed("fc", c.NamedParameters())
	if p[0].Name != "fc.weight" || p[1].Name != "fc.sigma" {
		t.Fatalf("prefixed: %+v", p)
	}
}
