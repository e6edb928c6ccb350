// Package inc wraps a backbone and a cosine classifier into networks whose
// classification head grows as incremental-learning tasks arrive.
package inc

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"incnet/internal/backbone"
	"incnet/internal/config"
	"incnet/internal/nn"
)

// logger is the package logger; silent until SetLogger is called.
var logger = zerolog.Nop()

// SetLogger installs a structured logger for network construction and growth.
func SetLogger(l zerolog.Logger) { logger = l }

var (
	ErrNoHead      = errors.New("classification head not initialised")
	ErrNoTask      = errors.New("no task registered")
	ErrNotAdaptive = errors.New("backbone has no task adapters")
)

// Kind is the coarse model family, derived from the backbone name.
type Kind string

const (
	KindCNN Kind = "cnn"
	KindViT Kind = "vit"
)

// Output bundles head scores with what the backbone produced.
type Output struct {
	Logits   *mat.Dense
	Features *mat.Dense
	FMaps    []*mat.Dense
}

// BaseNet owns a backbone and an optional classification head.
type BaseNet struct {
	nn.Mode
	backbone backbone.Backbone
	fc       *nn.CosineLinear
	device   string
	kind     Kind
}

// NewBaseNet selects the backbone named in cfg and wraps it.
func NewBaseNet(cfg config.Config, pretrained bool, opts ...backbone.Option) (*BaseNet, error) {
	logger.Debug().Str("backbone", cfg.BackboneType).Msg("base net initialization")
	bb, err := backbone.Get(cfg, pretrained, opts...)
	if err != nil {
		return nil, err
	}
	n := NewBaseNetWithBackbone(cfg, bb)
	logger.Debug().Str("backbone", cfg.BackboneType).Str("kind", string(n.kind)).Str("device", n.device).Msg("base net initialized")
	return n, nil
}

// NewBaseNetWithBackbone wraps an already constructed backbone.
func NewBaseNetWithBackbone(cfg config.Config, bb backbone.Backbone) *BaseNet {
	kind := KindViT
	if strings.Contains(cfg.BackboneType, "resnet") {
		kind = KindCNN
	}
	return &BaseNet{
		Mode:     nn.TrainMode(),
		backbone: bb,
		device:   cfg.PrimaryDevice(),
		kind:     kind,
	}
}

func (n *BaseNet) Backbone() backbone.Backbone { return n.backbone }
func (n *BaseNet) Head() *nn.CosineLinear      { return n.fc }
func (n *BaseNet) Device() string              { return n.device }
func (n *BaseNet) Kind() Kind                  { return n.kind }

// SetHead replaces the classification head; the network takes ownership.
func (n *BaseNet) SetHead(fc *nn.CosineLinear) { n.fc = fc }

// FeatureDim is the backbone's output width.
func (n *BaseNet) FeatureDim() int { return n.backbone.OutDim() }

// ExtractVector returns the backbone features for x.
//
// BUG(incnet): for convolutional backbones ExtractVector runs the backbone
// but discards its output and returns nil features with a nil error.
func (n *BaseNet) ExtractVector(x mat.Matrix) (*mat.Dense, error) {
	out, err := n.backbone.Forward(x)
	if err != nil {
		return nil, err
	}
	if n.kind == KindCNN {
		return nil, nil
	}
	return out.Features, nil
}

// Forward scores x with the head and merges in the backbone's outputs.
func (n *BaseNet) Forward(x mat.Matrix) (Output, error) {
	if n.fc == nil {
		return Output{}, ErrNoHead
	}
	bo, err := n.backbone.Forward(x)
	if err != nil {
		return Output{}, err
	}
	logits, err := n.fc.Forward(bo.Features)
	if err != nil {
		return Output{}, err
	}
	out := Output{Logits: logits, Features: bo.Features}
	if n.kind == KindCNN {
		out.FMaps = bo.FMaps
	}
	return out, nil
}

// UpdateHead is a no-op; networks that grow their head override it.
func (n *BaseNet) UpdateHead(nbClasses int) error { return nil }

// GenerateHead is a no-op returning nil.
func (n *BaseNet) GenerateHead(in, out int) *nn.CosineLinear { return nil }

// Freeze disables gradients on every parameter and switches to eval mode.
func (n *BaseNet) Freeze() *BaseNet {
	nn.Freeze(n)
	n.SetTraining(false)
	return n
}

// Copy returns a deep copy sharing no storage with n.
func (n *BaseNet) Copy() *BaseNet {
	c := *n
	c.backbone = n.backbone.Clone()
	if n.fc != nil {
		c.fc = n.fc.Clone()
	}
	return &c
}

func (n *BaseNet) NamedParameters() []nn.NamedParameter {
	ps := nn.Prefixed("backbone", n.backbone.NamedParameters())
	if n.fc != nil {
		ps = append(ps, nn.Prefixed("fc", n.fc.NamedParameters())...)
	}
	return ps
}

func (n *BaseNet) SetTraining(training bool) {
	n.Mode.SetTraining(training)
	n.backbone.SetTraining(training)
	if n.fc != nil {
		n.fc.SetTraining(training)
	}
}
