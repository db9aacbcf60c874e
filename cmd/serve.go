package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shyim/hellokube/internal/accesslog"
	"github.com/shyim/hellokube/internal/greeting"
	"github.com/shyim/hellokube/internal/metrics"
	"github.com/shyim/hellokube/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the greeting (default when no command is given)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)

	if err != nil {
		return err
	}

	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Port = port
	}

	text, err := greeting.Resolve(cfg)

	if err != nil {
		return err
	}

	var opts []server.Option

	group, ctx := errgroup.WithContext(cmd.Context())

	if cfg.AccessLog.Enabled() {
		store, err := accesslog.Open(cfg.AccessLog.Database)

		if err != nil {
			return err
		}

		defer func() {
			if err := store.Close(); err != nil {
				log.Warnf("Failed to close access log: %s", err)
			}
		}()

		pruner, err := accesslog.NewPruner(store, cfg.AccessLog.RetentionDays)

		if err != nil {
			return err
		}

		group.Go(func() error {
			return pruner.Run(ctx)
		})

		opts = append(opts, server.WithRecorder(store))
	}

	if cfg.Metrics.Address != "" {
		collector := metrics.NewCollector(cfg.Name)
		opts = append(opts, server.WithMetrics(collector))

		group.Go(func() error {
			return serveAdmin(ctx, cfg.Metrics.Address, collector)
		})
	}

	srv := server.New(cfg, text, opts...)

	group.Go(func() error {
		return srv.ListenAndServe(ctx)
	})

	return group.Wait()
}

func serveAdmin(ctx context.Context, address string, collector *metrics.Collector) error {
	admin := &http.Server{
		Addr:              address,
		Handler:           collector.AdminRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := admin.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Failed to shut down admin server: %s", err)
		}
	}()

	log.Infof("Admin endpoints running on %s", address)

	if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "Port to listen on, overrides the config file")
}
