package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nasasaki/LAPIS/logger"
	"github.com/nasasaki/LAPIS/pkg/cache"
	"github.com/nasasaki/LAPIS/pkg/config"
	"github.com/nasasaki/LAPIS/pkg/handler"
	"github.com/nasasaki/LAPIS/pkg/memdb"
	"github.com/nasasaki/LAPIS/pkg/middle"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the sample API over HTTP.

The database is polled for a new data version and the in-memory snapshot
is swapped when one appears. Requests keep using the snapshot they started on.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if addr != "" {
				cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides LAPIS_ADDR)")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	ldb, err := openDB(cfg.DBPath, true)
	if err != nil {
		return err
	}
	defer ldb.Close()

	results, err := cache.New(cfg.CacheSize)
	if err != nil {
		return err
	}

	manager := memdb.NewManager(ldb)
	manager.OnPublish(func(s *memdb.Snapshot) {
		results.Invalidate(s.DataVersion)
	})
	go manager.Run(ctx, cfg.PollInterval)

	mux := handler.NewRouter(handler.NewDBContext(manager, results))
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: middle.Chain(mux,
			middle.RequestIDMiddleware(logger.L()),
			middle.LoggingMiddleware(logger.L()),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Start:", zap.String("Version", Version))
	logger.Info("Open database on", zap.String("DB_LOC", cfg.DBPath))
	logger.Info("Server starting", zap.String("addr", cfg.Addr))

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Error starting server:", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
