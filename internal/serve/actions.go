package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dtnitsch/seo-edge-proxy/internal/common"
	"github.com/dtnitsch/seo-edge-proxy/models"
	"github.com/dtnitsch/seo-edge-proxy/pkg/db"
	"github.com/dtnitsch/seo-edge-proxy/pkg/metrics"
	"github.com/dtnitsch/seo-edge-proxy/pkg/proxy"
)

const shutdownTimeout = 10 * time.Second

func ServeAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))
	slog.SetDefault(logger)

	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	var recorder proxy.Recorder
	if !c.Bool("no-db") {
		database, err := db.Open(c.String("db"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
		recorder = database
		logger.Info("Recording requests", "db", database.Path())
	}

	mx := metrics.New()
	handler, err := proxy.New(proxy.Options{
		Config:   cfg,
		Recorder: recorder,
		Metrics:  mx,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build proxy: %w", err)
	}

	servers := []*http.Server{{
		Addr:              ListenAddr(c.String("listen"), c.IsSet("listen"), os.Getenv("PORT")),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * cfg.Timeout,
		IdleTimeout:       120 * time.Second,
	}}
	if addr := c.String("admin-listen"); addr != "" {
		servers = append(servers, &http.Server{
			Addr:              addr,
			Handler:           mx.AdminMux(),
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting proxy",
		"listen", servers[0].Addr,
		"admin_listen", c.String("admin-listen"),
		"origin", cfg.Origin,
		"routes", len(cfg.Routes),
	)
	return Run(ctx, logger, servers...)
}

// Run serves until ctx is cancelled or a server fails, then shuts every
// server down gracefully.
func Run(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}

// ListenAddr applies the PORT environment override unless --listen was
// given explicitly.
func ListenAddr(listen string, explicit bool, port string) string {
	if explicit || port == "" {
		return listen
	}
	if i := strings.LastIndex(listen, ":"); i >= 0 {
		return listen[:i+1] + port
	}
	return ":" + port
}
