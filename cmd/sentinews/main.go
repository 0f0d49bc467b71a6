// SentiNews scrapes Middle-East financial news, extracts entity-level
// dual sentiment via LLM providers, and serves the results over a REST
// API with a daily scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rohitw3code/sentinews-api/internal/analysis"
	"github.com/Rohitw3code/sentinews-api/internal/config"
	"github.com/Rohitw3code/sentinews-api/internal/engine"
	"github.com/Rohitw3code/sentinews-api/internal/scheduler"
	"github.com/Rohitw3code/sentinews-api/internal/server"
	"github.com/Rohitw3code/sentinews-api/internal/sources"
	"github.com/Rohitw3code/sentinews-api/internal/store"
	"github.com/Rohitw3code/sentinews-api/pkg/llm"
	"github.com/Rohitw3code/sentinews-api/pkg/storage"
)

var version = "dev"

func main() {
	// Local development credentials live in .env; missing file is fine.
	_ = godotenv.Load()

	var configPath string

	rootCmd := &cobra.Command{
		Use:   "sentinews",
		Short: "Financial news sentiment pipeline and API",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sentinews.yaml", "config file path")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(runCmd(&configPath))
	rootCmd.AddCommand(scrapersCmd())
	rootCmd.AddCommand(hashPasswordCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server with the daily scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer app.db.Close()
			return app.serve(cmd.Context())
		},
	}
}

func runCmd(configPath *string) *cobra.Command {
	var provider, model string
	var scrapers []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer app.db.Close()
			return app.runOnce(provider, model, scrapers)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider (openai or groq)")
	cmd.Flags().StringVar(&model, "model", "", "model name")
	cmd.Flags().StringSliceVar(&scrapers, "scrapers", nil, "source names to run (default: all)")
	return cmd
}

func scrapersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrapers",
		Short: "List registered news sources",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range sources.Default().Names() {
				fmt.Println(name)
			}
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Generate a bcrypt hash for the admin password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Println(string(hash))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("sentinews", version)
		},
	}
}

// app holds the wired components shared by serve and run.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *storage.DB
	store    *store.Store
	registry *sources.Registry
	engine   *engine.Engine
}

func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	st, err := store.New(context.Background(), db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := sources.Default()

	factory := func(provider, model string) (engine.Analyzer, error) {
		clientCfg, err := cfg.ClientConfig(provider, model)
		if err != nil {
			return nil, err
		}
		client, err := llm.NewClient(clientCfg)
		if err != nil {
			return nil, err
		}
		return analysis.NewAnalyzer(client, st, logger), nil
	}

	eng := engine.New(registry, st, factory, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		store:    st,
		registry: registry,
		engine:   eng,
	}, nil
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(a.store, a.engine, a.cfg.LLM.DefaultProvider, a.cfg.LLM.DefaultModel, a.logger)
	go sched.Run(ctx)
	defer sched.Stop()

	api := server.NewServer(a.engine, sched, a.store, a.registry.Names(),
		a.cfg.Auth.PasswordHash, a.cfg.Auth.JWTSecret, a.logger)

	httpServer := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      api.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("API server listening", "addr", a.cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *app) runOnce(provider, model string, scrapers []string) error {
	if err := a.engine.Start(provider, model, scrapers); err != nil {
		return err
	}
	<-a.engine.Done()

	state := a.engine.Status()
	a.logger.Info("run finished",
		"status", state.Status,
		"progress", fmt.Sprintf("%d/%d", state.Progress, state.Total),
	)
	if state.Status == engine.StatusFailed {
		return errors.New(state.Error)
	}
	return nil
}
