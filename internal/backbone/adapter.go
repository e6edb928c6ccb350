package backbone

import (
	"fmt"
	"strconv"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"incnet/internal/config"
	"incnet/internal/nn"
)

// TuningConfig is the adapter bundle an adapter backbone is built with.
type TuningConfig struct {
	FFNAdapt                  bool
	FFNOption                 string // parallel | sequential
	FFNAdapterLayerNormOption string // none | in | out
	FFNAdapterInitOption      string // lora
	FFNAdapterScalar          string // a float, or "learnable_scalar"
	FFNNum                    int
	DModel                    int
	VPTOn                     bool
	VPTNum                    int
	Device                    string
}

// NewTuningConfig derives the AdaptFormer-style adapter bundle from the
// network configuration.
func NewTuningConfig(cfg config.Config, dModel int) TuningConfig {
	return TuningConfig{
		FFNAdapt:                  true,
		FFNOption:                 "parallel",
		FFNAdapterLayerNormOption: "none",
		FFNAdapterInitOption:      "lora",
		FFNAdapterScalar:          "0.1",
		FFNNum:                    cfg.FFNNum,
		DModel:                    dModel,
		VPTOn:                     false,
		VPTNum:                    0,
		Device:                    cfg.PrimaryDevice(),
	}
}

func (tc TuningConfig) validate() error {
	if tc.VPTOn {
		return ErrUnimplemented("vpt prompt tuning")
	}
	if !tc.FFNAdapt {
		return nil
	}
	if tc.FFNNum <= 0 {
		return fmt.Errorf("tuning: ffn_num must be positive, got %d", tc.FFNNum)
	}
	switch tc.FFNOption {
	case "parallel", "sequential":
	default:
		return ErrUnimplemented("ffn_option " + tc.FFNOption)
	}
	switch tc.FFNAdapterLayerNormOption {
	case "none", "in", "out":
	default:
		return ErrUnimplemented("ffn_adapter_layernorm_option " + tc.FFNAdapterLayerNormOption)
	}
	if tc.FFNAdapterInitOption != "lora" {
		return ErrUnimplemented("ffn_adapter_init_option " + tc.FFNAdapterInitOption)
	}
	if tc.FFNAdapterScalar != "learnable_scalar" {
		if _, err := strconv.ParseFloat(tc.FFNAdapterScalar, 64); err != nil {
			return fmt.Errorf("tuning: ffn_adapter_scalar %q: %w", tc.FFNAdapterScalar, err)
		}
	}
	return nil
}

// Adapter is a bottleneck MLP (down, ReLU, up, scale) inserted beside a
// frozen transformer MLP.
type Adapter struct {
	nn.Mode
	option   string
	lnOption string
	down     *nn.Linear
	up       *nn.Linear
	ln       *nn.LayerNorm // nil when lnOption is "none"
	scale    float64
	learned  *nn.Parameter // 1 x 1, set for "learnable_scalar"
}

// NewAdapter builds an adapter with LoRA initialisation: the down projection
// is kaiming-uniform, the up projection and both biases start at zero, so a
// fresh adapter contributes nothing.
func NewAdapter(tc TuningConfig, src rand.Source) *Adapter {
	ad := &Adapter{
		Mode:     nn.TrainMode(),
		option:   tc.FFNOption,
		lnOption: tc.FFNAdapterLayerNormOption,
		down:     nn.NewLinear(tc.DModel, tc.FFNNum, true, src),
		up:       nn.NewLinear(tc.FFNNum, tc.DModel, true, src),
	}
	ad.down.Bias.Value.Zero()
	ad.up.Weight.Value.Zero()
	ad.up.Bias.Value.Zero()
	if ad.lnOption == "in" || ad.lnOption == "out" {
		ad.ln = nn.NewLayerNorm(tc.DModel, 1e-5)
	}
	if tc.FFNAdapterScalar == "learnable_scalar" {
		ad.learned = nn.NewParameter(1, 1)
		ad.learned.Value.Set(0, 0, 1)
	} else {
		ad.scale, _ = strconv.ParseFloat(tc.FFNAdapterScalar, 64)
	}
	return ad
}

func (ad *Adapter) parallel() bool { return ad.option == "parallel" }

func (ad *Adapter) Scale() float64 {
	if ad.learned != nil {
		return ad.learned.Value.At(0, 0)
	}
	return ad.scale
}

// Forward returns scale*up(relu(down(x))), plus x when addResidual is set.
func (ad *Adapter) Forward(x *mat.Dense, addResidual bool) *mat.Dense {
	in := x
	if ad.lnOption == "in" {
		in = ad.ln.Forward(x)
	}
	up := ad.up.Forward(nn.ReLU(ad.down.Forward(in)))
	up.Scale(ad.Scale(), up)
	if ad.lnOption == "out" {
		up = ad.ln.Forward(up)
	}
	if addResidual {
		up.Add(up, x)
	}
	return up
}

func (ad *Adapter) NamedParameters() []nn.NamedParameter {
	ps := nn.Prefixed("down_proj", ad.down.NamedParameters())
	ps = append(ps, nn.Prefixed("up_proj", ad.up.NamedParameters())...)
	if ad.ln != nil {
		ps = append(ps, nn.Prefixed("adapter_layer_norm_before", ad.ln.NamedParameters())...)
	}
	if ad.learned != nil {
		ps = append(ps, nn.NamedParameter{Name: "scale", Param: ad.learned})
	}
	return ps
}

func (ad *Adapter) SetTraining(training bool) {
	ad.Mode.SetTraining(training)
	ad.down.SetTraining(training)
	ad.up.SetTraining(training)
	if ad.ln != nil {
		ad.ln.SetTraining(training)
	}
}

func (ad *Adapter) Clone() *Adapter {
	c := *ad
	c.down = ad.down.Clone()
	c.up = ad.up.Clone()
	if ad.ln != nil {
		c.ln = ad.ln.Clone()
	}
	c.learned = ad.learned.Clone()
	return &c
}
