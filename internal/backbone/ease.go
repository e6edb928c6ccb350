package backbone

import (
	"fmt"
	"strconv"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"incnet/internal/nn"
)

// EaseViT is a ViT whose blocks each carry a task-specific adapter. The
// pretrained weights stay frozen; only the current adapter set trains.
// Committed sets are kept so that evaluation can concatenate the features
// every task's adapters produce.
type EaseViT struct {
	*ViT
	tuning      TuningConfig
	src         *rand.PCGSource
	curAdapter  []*Adapter
	adapterList [][]*Adapter
}

// NewEaseViT builds an adapter ViT. The transformer's own parameters are
// frozen on return; the first adapter set is trainable.
func NewEaseViT(arch Arch, tc TuningConfig, src rand.Source) (*EaseViT, error) {
	tc.DModel = arch.EmbedDim
	if err := tc.validate(); err != nil {
		return nil, err
	}
	vit, err := NewViT(arch, src)
	if err != nil {
		return nil, err
	}
	nn.Freeze(vit)
	own := &rand.PCGSource{}
	own.Seed(src.Uint64())
	e := &EaseViT{ViT: vit, tuning: tc, src: own}
	e.curAdapter = e.newAdapterSet()
	return e, nil
}

func (e *EaseViT) Tuning() TuningConfig { return e.tuning }

func (e *EaseViT) newAdapterSet() []*Adapter {
	if !e.tuning.FFNAdapt {
		return nil
	}
	set := make([]*Adapter, len(e.blocks))
	for i := range set {
		set[i] = NewAdapter(e.tuning, e.src)
		set[i].SetTraining(e.Training())
	}
	return set
}

// Forward runs the current adapters, matching ForwardTask(x, false, false).
func (e *EaseViT) Forward(x mat.Matrix) (Output, error) {
	feats, err := e.ForwardTask(x, false, false)
	if err != nil {
		return Output{}, err
	}
	return Output{Features: feats}, nil
}

func (e *EaseViT) ForwardTask(x mat.Matrix, test, useInitPTM bool) (*mat.Dense, error) {
	if !test {
		return e.forwardEach(x, func(tokens *mat.Dense) *mat.Dense {
			return e.forwardTokens(tokens, e.curAdapter)
		})
	}
	if !useInitPTM && len(e.adapterList) == 0 {
		return nil, fmt.Errorf("ease vit: no committed adapter sets to evaluate")
	}
	return e.forwardEach(x, func(tokens *mat.Dense) *mat.Dense {
		var parts []mat.Matrix
		if useInitPTM {
			parts = append(parts, e.forwardTokens(tokens, nil))
		}
		for _, set := range e.adapterList {
			parts = append(parts, e.forwardTokens(tokens, set))
		}
		return nn.HConcat(parts...)
	})
}

func (e *EaseViT) AddAdapterToList() {
	committed := make([]*Adapter, len(e.curAdapter))
	for i, ad := range e.curAdapter {
		c := ad.Clone()
		nn.Freeze(c)
		committed[i] = c
	}
	e.adapterList = append(e.adapterList, committed)
	e.curAdapter = e.newAdapterSet()
}

func (e *EaseViT) NumAdapterSets() int { return len(e.adapterList) }

func (e *EaseViT) NamedParameters() []nn.NamedParameter {
	ps := e.ViT.NamedParameters()
	for j, ad := range e.curAdapter {
		ps = append(ps, nn.Prefixed("cur_adapter."+strconv.Itoa(j), ad.NamedParameters())...)
	}
	for i, set := range e.adapterList {
		for j, ad := range set {
			ps = append(ps, nn.Prefixed("adapter_list."+strconv.Itoa(i)+"."+strconv.Itoa(j), ad.NamedParameters())...)
		}
	}
	return ps
}

func (e *EaseViT) SetTraining(training bool) {
	e.ViT.SetTraining(training)
	for _, ad := range e.curAdapter {
		ad.SetTraining(training)
	}
	for _, set := range e.adapterList {
		for _, ad := range set {
			ad.SetTraining(training)
		}
	}
}

// Clone deep copies e. The copy resumes from e's random state; e's own
// sequence is not advanced.
func (e *EaseViT) Clone() Backbone {
	c := &EaseViT{
		ViT:    e.ViT.clone(),
		tuning: e.tuning,
	}
	src := *e.src
	c.src = &src
	for _, ad := range e.curAdapter {
		c.curAdapter = append(c.curAdapter, ad.Clone())
	}
	for _, set := range e.adapterList {
		cs := make([]*Adapter, len(set))
		for j, ad := range set {
			cs[j] = ad.Clone()
		}
		c.adapterList = append(c.adapterList, cs)
	}
	return c
}
