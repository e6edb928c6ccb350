// Package nn holds the small set of layers the incremental network is built
// from. Tensors are gonum dense matrices with one row per sample.
//
// Parameters carry a RequiresGrad flag so callers can freeze and inspect
// them, but there is no autograd: nothing in this module trains weights by
// gradient descent.
package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Parameter is a learnable tensor.
type Parameter struct {
	Value        *mat.Dense
	RequiresGrad bool
}

// NewParameter allocates a zeroed rows x cols parameter with gradients enabled.
func NewParameter(rows, cols int) *Parameter {
	return &Parameter{Value: mat.NewDense(rows, cols, nil), RequiresGrad: true}
}

// Numel returns the number of elements.
func (p *Parameter) Numel() int {
	r, c := p.Value.Dims()
	return r * c
}

// Clone returns a parameter backed by a copy of p's storage.
func (p *Parameter) Clone() *Parameter {
	if p == nil {
		return nil
	}
	return &Parameter{Value: mat.DenseCopyOf(p.Value), RequiresGrad: p.RequiresGrad}
}

// NamedParameter pairs a dotted parameter path with the parameter.
type NamedParameter struct {
	Name  string
	Param *Parameter
}

// Module is implemented by every layer and network.
type Module interface {
	NamedParameters() []NamedParameter
	SetTraining(training bool)
	Training() bool
}

// Mode carries the train/eval flag. Layers embed it; composites override
// SetTraining to propagate to their children.
type Mode struct {
	training bool
}

// TrainMode returns a Mode in training state, the default for new layers.
func TrainMode() Mode { return Mode{training: true} }

func (m *Mode) SetTraining(training bool) { m.training = training }
func (m *Mode) Training() bool            { return m.training }

// Prefixed returns ps with prefix + "." prepended to each name.
func Prefixed(prefix string, ps []NamedParameter) []NamedParameter {
	out := make([]NamedParameter, len(ps))
	for i, np := range ps {
		out[i] = NamedParameter{Name: prefix + "." + np.Name, Param: np.Param}
	}
	return out
}

// SetRequiresGrad sets the gradient flag on every parameter of m.
func SetRequiresGrad(m Module, requiresGrad bool) {
	for _, np := range m.NamedParameters() {
		np.Param.RequiresGrad = requiresGrad
	}
}

// Freeze disables gradient tracking on every parameter of m. The train/eval
// mode is left alone.
func Freeze(m Module) { SetRequiresGrad(m, false) }

// ParamCount is a parameter name with its element count.
type ParamCount struct {
	Name  string `json:"name"`
	Numel int    `json:"numel"`
}

// Trainable lists the parameters of m that still require gradients, in
// declaration order.
func Trainable(m Module) []ParamCount {
	var out []ParamCount
	for _, np := range m.NamedParameters() {
		if np.Param.RequiresGrad {
			out = append(out, ParamCount{Name: np.Name, Numel: np.Param.Numel()})
		}
	}
	return out
}

// CountParameters returns the total and trainable element counts of m.
func CountParameters(m Module) (total, trainable int) {
	for _, np := range m.NamedParameters() {
		n := np.Param.Numel()
		total += n
		if np.Param.RequiresGrad {
			trainable += n
		}
	}
	return total, trainable
}
