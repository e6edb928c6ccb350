package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"incnet/internal/backbone"
	"incnet/internal/factory"
	"incnet/internal/learner"
	"incnet/internal/service"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newBackbonesCmd(o *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "backbones",
		Short: "List selectable backbones and catalog availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			var cat *backbone.DirCatalog
			if cfg.WeightsDir != "" {
				if cat, err = backbone.NewDirCatalog(cfg.WeightsDir); err != nil {
					return err
				}
			}
			resp, err := service.ListBackbones(cat)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, resp)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tADAPTERS\tWEIGHTS")
			for _, b := range resp.Backbones {
				fmt.Fprintf(tw, "%s\t%v\t%v\n", b.Name, b.Adapters, b.WeightsAvailable)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newInspectCmd(o *rootOptions) *cobra.Command {
	var (
		tasks      string
		depth      int
		pretrained bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Run the task lifecycle and report how the network grows",
		Long: `inspect begins and ends one task per entry of --tasks and reports the
feature width, head size and trainable parameters while each task is open.
No data is loaded and nothing is trained.`,
		Example: `  incnet inspect --tasks 10,10,10
  incnet inspect --backbone vit_base_patch16_224_in21k_ease --tasks 0,0 --depth 1 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			sizes, err := parseTasks(tasks)
			if err != nil {
				return err
			}
			l, err := factory.GetModel(cfg.ModelName, cfg,
				learner.WithPretrained(pretrained),
				learner.WithBackboneOptions(backbone.WithArch(archFor(depth))))
			if err != nil {
				return err
			}
			var snaps []learner.Snapshot
			for _, n := range sizes {
				if err := l.BeginTask(n); err != nil {
					return err
				}
				snaps = append(snaps, l.Snapshot())
				if err := l.EndTask(); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, snaps)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TASK\tNEW\tKNOWN\tFEATURE_DIM\tHEAD\tPROXY\tTRAINABLE\tTOTAL")
			for _, s := range snaps {
				fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
					s.Task, s.TaskSizes[len(s.TaskSizes)-1], s.KnownClasses, s.FeatureDim,
					s.HeadClasses, s.ProxyClasses, s.TrainableParams, s.TotalParams)
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVar(&tasks, "tasks", "0,0,0", "Comma-separated new-class counts per task; 0 uses init_cls/increment")
	f.IntVar(&depth, "depth", -1, "Override the number of transformer blocks (-1 keeps 12)")
	f.BoolVar(&pretrained, "pretrained", false, "Load pretrained weights from the catalog")
	f.BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newInitWeightsCmd(o *rootOptions) *cobra.Command {
	var (
		outDir string
		depth  int
	)
	cmd := &cobra.Command{
		Use:   "init-weights",
		Short: "Write seeded random ViT-B/16 checkpoints into a weight catalog",
		Long: `init-weights stores a seeded random initialisation under both checkpoint
keys so that a catalog can be exercised without real pretrained weights.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = cfg.WeightsDir
			}
			if outDir == "" {
				return fmt.Errorf("init-weights: --out or weights_dir is required")
			}
			cat, err := backbone.NewDirCatalog(outDir)
			if err != nil {
				return err
			}
			for i, key := range []string{backbone.KeyViTB16, backbone.KeyViTB16In21k} {
				v, err := backbone.NewViT(archFor(depth), rand.NewSource(uint64(cfg.Seed)+uint64(i)))
				if err != nil {
					return err
				}
				if err := cat.Save(key, v.OutDim(), v); err != nil {
					return err
				}
				o.log.Info().Str("checkpoint", key).Str("dir", cat.Root()).Msg("weights written")
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", key)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Catalog directory (defaults to weights_dir)")
	cmd.Flags().IntVar(&depth, "depth", -1, "Override the number of transformer blocks (-1 keeps 12)")
	return cmd
}
