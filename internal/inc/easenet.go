package inc

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"incnet/internal/backbone"
	"incnet/internal/config"
	"incnet/internal/nn"
)

// EaseNet grows a cosine head by one feature block and one class range per
// task. Training scores go through a proxy head covering only the newest
// task's classes; evaluation scores use the cumulative head over the
// concatenated features of every adapter set.
type EaseNet struct {
	*BaseNet
	inc         int
	initCls     int
	curTask     int
	outDim      int
	useInitPTM  bool
	alpha       float64
	beta        float64
	moniAdam    bool
	useReweight bool
	proxyFC     *nn.CosineLinear
	src         *rand.PCGSource
}

// NewEaseNet builds the backbone named in cfg and wraps it.
func NewEaseNet(cfg config.Config, pretrained bool, opts ...backbone.Option) (*EaseNet, error) {
	base, err := NewBaseNet(cfg, pretrained, opts...)
	if err != nil {
		return nil, err
	}
	return newEaseNet(cfg, base), nil
}

// NewEaseNetWithBackbone wraps an already constructed backbone.
func NewEaseNetWithBackbone(cfg config.Config, bb backbone.Backbone) *EaseNet {
	return newEaseNet(cfg, NewBaseNetWithBackbone(cfg, bb))
}

func newEaseNet(cfg config.Config, base *BaseNet) *EaseNet {
	src := &rand.PCGSource{}
	src.Seed(uint64(cfg.Seed) + 1)
	return &EaseNet{
		BaseNet:     base,
		inc:         cfg.Increment,
		initCls:     cfg.InitCls,
		curTask:     -1,
		outDim:      base.backbone.OutDim(),
		useInitPTM:  cfg.UseInitPTM,
		alpha:       cfg.Alpha,
		beta:        cfg.Beta,
		moniAdam:    cfg.MoniAdam,
		useReweight: cfg.UseReweight,
		src:         src,
	}
}

// CurTask is the index of the newest registered task, -1 before the first.
func (n *EaseNet) CurTask() int { return n.curTask }

// OutDim is the width of one feature block.
func (n *EaseNet) OutDim() int { return n.outDim }

func (n *EaseNet) ProxyHead() *nn.CosineLinear { return n.proxyFC }

// FeatureDim is the width the cumulative head consumes: one block per task
// seen, plus the pretrained block when enabled.
func (n *EaseNet) FeatureDim() int {
	if n.useInitPTM {
		return n.outDim * (n.curTask + 2)
	}
	return n.outDim * (n.curTask + 1)
}

// UpdateHead registers the next task. nbClasses is the total number of
// classes seen so far, including the new ones.
func (n *EaseNet) UpdateHead(nbClasses int) error {
	if nbClasses <= 0 {
		return fmt.Errorf("update head: class count must be positive, got %d", nbClasses)
	}
	if n.fc != nil && nbClasses < n.fc.OutFeatures {
		return fmt.Errorf("update head: class count %d below current %d", nbClasses, n.fc.OutFeatures)
	}
	n.curTask++

	if n.curTask == 0 {
		n.proxyFC = n.GenerateHead(n.outDim, n.initCls)
	} else {
		n.proxyFC = n.GenerateHead(n.outDim, n.inc)
	}

	fc := n.GenerateHead(n.FeatureDim(), nbClasses)
	fc.ResetParametersToZero()
	if prev := n.fc; prev != nil {
		old := prev.OutFeatures
		fc.Sigma.Value = prev.Sigma.Value
		fc.Weight.Value.Slice(0, old, 0, fc.InFeatures-n.outDim).(*mat.Dense).Copy(prev.Weight.Value)
	}
	n.fc = fc

	logger.Debug().
		Int("task", n.curTask).
		Int("classes", nbClasses).
		Int("feature_dim", n.FeatureDim()).
		Int("proxy_classes", n.proxyFC.OutFeatures).
		Str("device", n.device).
		Msg("head updated")
	return nil
}

// GenerateHead returns a fresh scaled cosine head in the network's mode.
func (n *EaseNet) GenerateHead(in, out int) *nn.CosineLinear {
	fc := nn.NewCosineLinear(in, out, n.src)
	fc.SetTraining(n.Training())
	return fc
}

// ExtractVector returns the backbone's raw output for every backbone kind.
func (n *EaseNet) ExtractVector(x mat.Matrix) (*mat.Dense, error) {
	out, err := n.backbone.Forward(x)
	if err != nil {
		return nil, err
	}
	return out.Features, nil
}

// Forward scores x. With test unset the current adapters feed the proxy
// head; with test set every committed adapter set feeds the cumulative head,
// optionally through the task-reweighted scoring.
func (n *EaseNet) Forward(x mat.Matrix, test bool) (Output, error) {
	ad, ok := n.backbone.(backbone.Adaptive)
	if !ok {
		return Output{}, ErrNotAdaptive
	}
	if n.curTask < 0 {
		return Output{}, ErrNoTask
	}
	if !test {
		feats, err := ad.ForwardTask(x, false, false)
		if err != nil {
			return Output{}, err
		}
		logits, err := n.proxyFC.Forward(feats)
		if err != nil {
			return Output{}, err
		}
		return Output{Logits: logits, Features: feats}, nil
	}

	feats, err := ad.ForwardTask(x, true, n.useInitPTM)
	if err != nil {
		return Output{}, err
	}
	if _, w := feats.Dims(); w != n.fc.InFeatures {
		return Output{}, fmt.Errorf("forward: backbone gave %d features, head expects %d (adapters committed for %d of %d tasks)",
			w, n.fc.InFeatures, ad.NumAdapterSets(), n.curTask+1)
	}
	var logits *mat.Dense
	if n.moniAdam || !n.useReweight {
		logits, err = n.fc.Forward(feats)
	} else {
		logits, err = n.fc.ForwardReweight(feats, nn.ReweightOptions{
			CurTask:    n.curTask,
			Alpha:      n.alpha,
			Beta:       n.beta,
			InitCls:    n.initCls,
			Inc:        n.inc,
			OutDim:     n.outDim,
			UseInitPTM: n.useInitPTM,
		})
	}
	if err != nil {
		return Output{}, err
	}
	return Output{Logits: logits, Features: feats}, nil
}

// Freeze disables gradients on every parameter. Unlike BaseNet.Freeze the
// train/eval mode is left as it is.
func (n *EaseNet) Freeze() {
	nn.Freeze(n)
}

// ShowTrainableParams logs and returns every parameter that still requires
// gradients.
func (n *EaseNet) ShowTrainableParams() []nn.ParamCount {
	params := nn.Trainable(n)
	for _, p := range params {
		logger.Info().Str("param", p.Name).Int("numel", p.Numel).Msg("trainable")
	}
	return params
}

// Copy returns a deep copy sharing no storage with n. The copy's heads are
// drawn from a snapshot of n's random state, so copying never changes what
// n itself generates next.
func (n *EaseNet) Copy() *EaseNet {
	c := *n
	c.BaseNet = n.BaseNet.Copy()
	if n.proxyFC != nil {
		c.proxyFC = n.proxyFC.Clone()
	}
	src := *n.src
	c.src = &src
	return &c
}

func (n *EaseNet) NamedParameters() []nn.NamedParameter {
	ps := n.BaseNet.NamedParameters()
	if n.proxyFC != nil {
		ps = append(ps, nn.Prefixed("proxy_fc", n.proxyFC.NamedParameters())...)
	}
	return ps
}

func (n *EaseNet) SetTraining(training bool) {
	n.BaseNet.SetTraining(training)
	if n.proxyFC != nil {
		n.proxyFC.SetTraining(training)
	}
}
