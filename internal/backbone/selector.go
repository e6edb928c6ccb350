package backbone

import (
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"incnet/internal/config"
	"incnet/internal/nn"
)

// logger is the package logger; silent until SetLogger is called.
var logger = zerolog.Nop()

// SetLogger installs a structured logger for backbone construction.
func SetLogger(l zerolog.Logger) { logger = l }

// Catalog keys for the pretrained checkpoints.
const (
	KeyViTB16      = "vit_base_patch16_224"
	KeyViTB16In21k = "vit_base_patch16_224_in21k"
)

// Names lists every backbone_type Get accepts.
func Names() []string {
	return []string{
		"pretrained_vit_b16_224",
		"vit_base_patch16_224",
		"pretrained_vit_b16_224_in21k",
		"vit_base_patch16_224_in21k",
		"vit_base_patch16_224_ease",
		"vit_base_patch16_224_in21k_ease",
	}
}

// CheckpointKey returns the catalog key holding the pretrained weights for a
// backbone name.
func CheckpointKey(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "pretrained_vit_b16_224", "vit_base_patch16_224", "vit_base_patch16_224_ease":
		return KeyViTB16, true
	case "pretrained_vit_b16_224_in21k", "vit_base_patch16_224_in21k", "vit_base_patch16_224_in21k_ease":
		return KeyViTB16In21k, true
	}
	return "", false
}

type options struct {
	arch    Arch
	catalog Catalog
	src     rand.Source
}

// Option customises Get.
type Option func(*options)

// WithArch replaces the ViT-B/16 architecture, e.g. with a shallower one.
func WithArch(a Arch) Option { return func(o *options) { o.arch = a } }

// WithCatalog sets where pretrained weights are read from.
func WithCatalog(c Catalog) Option { return func(o *options) { o.catalog = c } }

// WithSource sets the random source used for initialisation.
func WithSource(src rand.Source) Option { return func(o *options) { o.src = src } }

// Get builds the backbone named by cfg.BackboneType, in evaluation mode.
//
// With pretrained set and a catalog configured, weights are loaded from the
// catalog and a missing entry is an error. Without a catalog the backbone
// keeps its seeded random initialisation.
func Get(cfg config.Config, pretrained bool, opts ...Option) (Backbone, error) {
	o := options{arch: ViTB16()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.src == nil {
		o.src = rand.NewSource(uint64(cfg.Seed))
	}

	name := strings.ToLower(cfg.BackboneType)
	var (
		bb  Backbone
		key string
		err error
	)
	switch {
	case name == "pretrained_vit_b16_224" || name == "vit_base_patch16_224":
		key = KeyViTB16
		bb, err = newPlain(o)
	case name == "pretrained_vit_b16_224_in21k" || name == "vit_base_patch16_224_in21k":
		key = KeyViTB16In21k
		bb, err = newPlain(o)
	case strings.Contains(name, "_ease"):
		if !strings.EqualFold(cfg.ModelName, "ease") {
			return nil, ErrInconsistentModel(cfg.ModelName, cfg.BackboneType)
		}
		switch name {
		case "vit_base_patch16_224_ease":
			key = KeyViTB16
		case "vit_base_patch16_224_in21k_ease":
			key = KeyViTB16In21k
		default:
			return nil, ErrUnimplemented(cfg.BackboneType)
		}
		bb, err = NewEaseViT(o.arch, NewTuningConfig(cfg, o.arch.EmbedDim), o.src)
	default:
		return nil, ErrUnimplemented(cfg.BackboneType)
	}
	if err != nil {
		return nil, err
	}

	if pretrained {
		if err := loadPretrained(bb, key, o.catalog); err != nil {
			return nil, err
		}
	}
	bb.SetTraining(false)
	total, trainable := nn.CountParameters(bb)
	logger.Debug().
		Str("backbone", name).
		Str("checkpoint", key).
		Int("out_dim", bb.OutDim()).
		Int("params", total).
		Int("trainable", trainable).
		Msg("backbone ready")
	return bb, nil
}

func newPlain(o options) (Backbone, error) {
	v, err := NewViT(o.arch, o.src)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func loadPretrained(bb Backbone, key string, cat Catalog) error {
	if cat == nil {
		logger.Warn().Str("checkpoint", key).Msg("no weights catalog configured; using random initialisation")
		return nil
	}
	w, err := cat.Load(key)
	if err != nil {
		return err
	}
	rep, err := LoadWeights(bb, w)
	if err != nil {
		return err
	}
	var missing []string
	for _, n := range rep.Missing {
		if !isAdapterParam(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 || len(rep.Unexpected) > 0 {
		logger.Warn().
			Str("checkpoint", key).
			Strs("missing", missing).
			Strs("unexpected", rep.Unexpected).
			Msg("pretrained weights partially matched")
	}
	return nil
}

func isAdapterParam(name string) bool {
	return strings.HasPrefix(name, "cur_adapter.") || strings.HasPrefix(name, "adapter_list.")
}
