package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/socialgate/internal/config"
	"github.com/dropDatabas3/socialgate/internal/http/server"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/store/pg"
	"github.com/dropDatabas3/socialgate/internal/store/sqlite"
)

// version se setea con -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// .env opcional; las variables del entorno ganan
	_ = godotenv.Load()

	var configPath string

	root := &cobra.Command{
		Use:           "socialgate",
		Short:         "Login social (Google, Twitter) con sesiones server-side",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "ruta al YAML de configuración (env CONFIG_PATH)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Init(logger.Config{
			Env:         cfg.App.Env,
			Level:       cfg.Log.Level,
			ServiceName: "socialgate",
			Version:     version,
		})
		return cfg, nil
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP y el sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones SQL del storage configurado",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return migrate(cmd.Context(), cfg)
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Borra flujos y sesiones vencidas (una pasada)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			app, err := server.Build(cmd.Context(), cfg, server.Options{Version: version})
			if err != nil {
				return err
			}
			defer app.Close()
			res, err := app.Sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("flows=%d sessions=%d\n", res.Flows, res.Sessions)
			return nil
		},
	}

	root.AddCommand(serveCmd, migrateCmd, sweepCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.L()

	app, err := server.Build(ctx, cfg, server.Options{Version: version})
	if err != nil {
		return fmt.Errorf("wiring: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("cleanup error", logger.Err(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           app.Handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", logger.String("addr", cfg.Server.Addr), logger.String("base_url", cfg.Server.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return app.Sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func migrate(ctx context.Context, cfg *config.Config) error {
	log := logger.L()
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		s, err := pg.New(ctx, cfg.Storage.DSN, pg.Options{MaxConns: 2})
		if err != nil {
			return err
		}
		defer s.Close()
		n, err := s.Migrate(ctx)
		if err != nil {
			return err
		}
		log.Info("migrations applied", logger.String("driver", cfg.Storage.Driver), logger.Int("count", n))
	case config.DriverSQLite:
		// Open ya aplica las pendientes
		s, err := sqlite.Open(cfg.Storage.DSN)
		if err != nil {
			return err
		}
		defer s.Close()
		log.Info("migrations applied", logger.String("driver", cfg.Storage.Driver))
	default:
		log.Info("nothing to migrate", logger.String("driver", cfg.Storage.Driver))
	}
	return nil
}
