package nn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// CosineLinear scores inputs by cosine similarity against per-class weight
// rows, multiplied by a learned scale.
type CosineLinear struct {
	Mode
	InFeatures  int
	OutFeatures int
	Weight      *Parameter // OutFeatures x InFeatures
	Sigma       *Parameter // 1 x 1, nil when the layer is unscaled
}

// NewCosineLinear returns a scaled cosine layer with randomly initialised
// weights and sigma = 1.
func NewCosineLinear(in, out int, src rand.Source) *CosineLinear {
	c := &CosineLinear{
		Mode:        TrainMode(),
		InFeatures:  in,
		OutFeatures: out,
		Weight:      NewParameter(out, in),
		Sigma:       NewParameter(1, 1),
	}
	c.ResetParameters(src)
	return c
}

// ResetParameters draws weights from U(-1/sqrt(in), 1/sqrt(in)) and sets sigma to 1.
func (c *CosineLinear) ResetParameters(src rand.Source) {
	stdv := 1 / math.Sqrt(float64(c.InFeatures))
	fillUniform(c.Weight.Value, -stdv, stdv, src)
	if c.Sigma != nil {
		c.Sigma.Value.Set(0, 0, 1)
	}
}

// ResetParametersToZero zeroes the weights. Sigma is untouched.
func (c *CosineLinear) ResetParametersToZero() {
	c.Weight.Value.Zero()
}

// Scale returns the current sigma, or 1 for an unscaled layer.
func (c *CosineLinear) Scale() float64 {
	if c.Sigma == nil {
		return 1
	}
	return c.Sigma.Value.At(0, 0)
}

// Forward returns sigma * cos(x_i, w_k) for every sample i and class k.
func (c *CosineLinear) Forward(x mat.Matrix) (*mat.Dense, error) {
	if _, in := x.Dims(); in != c.InFeatures {
		return nil, fmt.Errorf("cosine linear: input width %d, want %d", in, c.InFeatures)
	}
	out := Cosine(x, c.Weight.Value)
	out.Scale(c.Scale(), out)
	return out, nil
}

// ReweightOptions parameterises ForwardReweight.
type ReweightOptions struct {
	CurTask    int
	Alpha      float64
	Beta       float64
	InitCls    int
	Inc        int
	OutDim     int
	UseInitPTM bool
}

// TaskClassRange returns the [start, end) class indices introduced by task.
func TaskClassRange(task, initCls, inc int) (start, end int) {
	if task == 0 {
		return 0, initCls
	}
	start = initCls + (task-1)*inc
	return start, start + inc
}

// ForwardReweight scores x task by task. The input is split into blocks of
// OutDim features (one per adapter, plus a leading pretrained block when
// UseInitPTM is set). For the classes of task i, the block produced by task
// i's adapter counts fully, the pretrained block is weighted by Beta, and
// every other block by Alpha/CurTask. Per-task scores are concatenated and
// multiplied by sigma.
func (c *CosineLinear) ForwardReweight(x mat.Matrix, o ReweightOptions) (*mat.Dense, error) {
	n, in := x.Dims()
	if in != c.InFeatures {
		return nil, fmt.Errorf("cosine linear: input width %d, want %d", in, c.InFeatures)
	}
	if o.OutDim <= 0 || c.InFeatures%o.OutDim != 0 {
		return nil, fmt.Errorf("cosine linear: in features %d not a multiple of block width %d", c.InFeatures, o.OutDim)
	}
	if o.CurTask < 0 {
		return nil, fmt.Errorf("cosine linear: no task registered")
	}
	blocks := c.InFeatures / o.OutDim
	parts := make([]mat.Matrix, 0, o.CurTask+1)
	for i := 0; i <= o.CurTask; i++ {
		start, end := TaskClassRange(i, o.InitCls, o.Inc)
		if end > c.OutFeatures || start >= end {
			return nil, fmt.Errorf("cosine linear: task %d classes [%d,%d) outside %d outputs", i, start, end, c.OutFeatures)
		}
		own := i
		if o.UseInitPTM {
			own = i + 1
		}
		out := mat.NewDense(n, end-start, nil)
		for j := 0; j < blocks; j++ {
			s := Cosine(sliceCols(x, j*o.OutDim, (j+1)*o.OutDim), c.Weight.Value.Slice(start, end, j*o.OutDim, (j+1)*o.OutDim))
			switch {
			case o.UseInitPTM && j == 0:
				s.Scale(o.Beta, s)
			case j == own:
			default:
				w := o.Alpha
				if o.CurTask > 0 {
					w /= float64(o.CurTask)
				}
				s.Scale(w, s)
			}
			out.Add(out, s)
		}
		parts = append(parts, out)
	}
	logits := HConcat(parts...)
	logits.Scale(c.Scale(), logits)
	return logits, nil
}

func (c *CosineLinear) NamedParameters() []NamedParameter {
	ps := []NamedParameter{{Name: "weight", Param: c.Weight}}
	if c.Sigma != nil {
		ps = append(ps, NamedParameter{Name: "sigma", Param: c.Sigma})
	}
	return ps
}

func (c *CosineLinear) Clone() *CosineLinear {
	out := *c
	out.Weight = c.Weight.Clone()
	out.Sigma = c.Sigma.Clone()
	return &out
}

// sliceCols returns columns [from, to) of m as a copy-free view when possible.
func sliceCols(m mat.Matrix, from, to int) mat.Matrix {
	r, _ := m.Dims()
	if s, ok := m.(interface {
		Slice(i, k, j, l int) mat.Matrix
	}); ok {
		return s.Slice(0, r, from, to)
	}
	return mat.DenseCopyOf(m).Slice(0, r, from, to)
}
