package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"incnet/internal/backbone"
	"incnet/internal/config"
	"incnet/internal/httpapi"
	"incnet/internal/inc"
	"incnet/internal/learner"
	"incnet/internal/service"
)

const defaultBackbone = "vit_base_patch16_224_ease"

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	backbone   string
	weightsDir string
	log        zerolog.Logger
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{log: zerolog.Nop()}
	cmd := &cobra.Command{
		Use:   "incnet",
		Short: "Incremental-learning network with a growing cosine head",
		Long: `incnet builds EASE-style incremental networks: a frozen ViT backbone with
per-task adapters and a cosine classifier whose feature width and class
count grow with every task.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(o.logLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			o.log = l
			installLogger(l)
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configPath, "config", envOr("INCNET_CONFIG", ""), "Config file (.yaml, .yml, .json or .toml)")
	pf.StringVar(&o.logLevel, "log-level", envOr("INCNET_LOG_LEVEL", config.DefaultLogLevel), "Log level: debug, info, warn, error, disabled")
	pf.StringVar(&o.backbone, "backbone", "", "Backbone type; overrides backbone_type from the config")
	pf.StringVar(&o.weightsDir, "weights-dir", "", "Pretrained weight catalog; overrides weights_dir from the config")

	cmd.AddCommand(
		newBackbonesCmd(o),
		newInspectCmd(o),
		newInitWeightsCmd(o),
		newServeCmd(o),
	)
	return cmd
}

func newLogger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

func installLogger(l zerolog.Logger) {
	backbone.SetLogger(l.With().Str("component", "backbone").Logger())
	inc.SetLogger(l.With().Str("component", "inc").Logger())
	learner.SetLogger(l.With().Str("component", "learner").Logger())
	service.SetLogger(l.With().Str("component", "service").Logger())
	httpapi.SetLogger(l.With().Str("component", "http").Logger())
}

// loadConfig reads the config file when one is given, applies flag
// overrides and defaults, and validates the result.
func (o *rootOptions) loadConfig() (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = c
	}
	if o.backbone != "" {
		cfg.BackboneType = o.backbone
	}
	if cfg.BackboneType == "" {
		cfg.BackboneType = defaultBackbone
	}
	if o.weightsDir != "" {
		cfg.WeightsDir = o.weightsDir
	}
	cfg = cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// archFor returns ViT-B/16 with its depth replaced when depth is not negative.
func archFor(depth int) backbone.Arch {
	a := backbone.ViTB16()
	if depth >= 0 {
		a.Depth = depth
	}
	return a
}

// splitCSV splits a comma-separated list, trimming blanks and dropping empties.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseTasks turns "10,10,10" into task sizes. Zero selects the configured size.
func parseTasks(s string) ([]int, error) {
	var out []int
	for _, p := range splitCSV(s) {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid task size %q", p)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no task sizes given")
	}
	return out, nil
}
