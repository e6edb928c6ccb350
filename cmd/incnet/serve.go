package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"incnet/internal/backbone"
	"incnet/internal/config"
	"incnet/internal/factory"
	"incnet/internal/httpapi"
	"incnet/internal/learner"
	"incnet/internal/service"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var (
		addr         string
		depth        int
		pretrained   bool
		corsEnabled  bool
		corsOrigins  string
		maxBodyBytes int64
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") || os.Getenv("INCNET_ADDR") != "" {
				cfg.Addr = addr
			}
			l, err := factory.GetModel(cfg.ModelName, cfg,
				learner.WithPretrained(pretrained),
				learner.WithBackboneOptions(backbone.WithArch(archFor(depth))))
			if err != nil {
				return err
			}
			var cat *backbone.DirCatalog
			if cfg.WeightsDir != "" {
				if cat, err = backbone.NewDirCatalog(cfg.WeightsDir); err != nil {
					return err
				}
			}
			svc, err := service.NewWithConfig(service.ServiceConfig{
				Learner:    l,
				Catalog:    cat,
				Registerer: prometheus.DefaultRegisterer,
			})
			if err != nil {
				return err
			}

			httpapi.SetMaxBodyBytes(maxBodyBytes)
			httpapi.SetCORSOptions(corsEnabled, splitCSV(corsOrigins), nil, nil)
			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           httpapi.NewMux(svc),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				o.log.Info().Str("addr", cfg.Addr).Str("backbone", cfg.BackboneType).Msg("incnet listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			// Graceful shutdown (Ctrl+C / SIGTERM)
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(stop)
			select {
			case err, ok := <-errCh:
				if ok {
					return err
				}
				return nil
			case <-stop:
			}
			svc.Drain()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				o.log.Error().Err(err).Msg("graceful shutdown error")
				return err
			}
			o.log.Info().Msg("incnet stopped")
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", envOr("INCNET_ADDR", config.DefaultAddr), "HTTP listen address, e.g. :8090")
	f.IntVar(&depth, "depth", -1, "Override the number of transformer blocks (-1 keeps 12)")
	f.BoolVar(&pretrained, "pretrained", false, "Load pretrained weights from the catalog")
	f.BoolVar(&corsEnabled, "cors-enabled", false, "Enable CORS")
	f.StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins")
	f.Int64Var(&maxBodyBytes, "max-body-bytes", 1<<20, "Maximum JSON request body size")
	return cmd
}
