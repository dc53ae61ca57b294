package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexcabrera/easel/internal/config"
	"github.com/alexcabrera/easel/internal/db"
	"github.com/alexcabrera/easel/internal/flows"
	"github.com/alexcabrera/easel/internal/log"
	"github.com/alexcabrera/easel/internal/model"
	"github.com/alexcabrera/easel/internal/paths"
)

type rootFlags struct {
	cfgPath   string
	debug     bool
	noHistory bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "easel",
		Short:         "Generate and restyle canvas images with AI flows",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&flags.cfgPath, "config", paths.ConfigFile(), "path to config file")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "log debug output to stderr")
	cmd.PersistentFlags().BoolVar(&flags.noHistory, "no-history", false, "don't record runs in history")

	cmd.AddCommand(newFlowsCmd(flags))
	cmd.AddCommand(newEditCmd(flags))
	cmd.AddCommand(newChatCmd(flags))
	cmd.AddCommand(newModelsCmd(flags))
	cmd.AddCommand(newAuthCmd())

	return cmd
}

// app holds everything a command needs to run flows.
type app struct {
	cfg      config.Config
	creds    *config.Credentials
	logger   *slog.Logger
	registry *flows.Registry
	executor *flows.Executor
	runner   flows.Runner
	history  *flows.HistoryService

	db *sql.DB
}

// loadConfig reads, validates, and applies credentials for the config at path.
func loadConfig(path string) (config.Config, *config.Credentials, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, fmt.Errorf("config %s: %w", path, err)
	}

	creds, err := config.LoadCredentials(paths.CredentialsFile())
	if err != nil {
		return cfg, nil, fmt.Errorf("load credentials: %w", err)
	}
	creds.Inject()

	return cfg, creds, nil
}

func newLogger(cfg config.Config, debug bool) *slog.Logger {
	level := log.ParseLevel(cfg.LogLevel)
	if debug {
		level = slog.LevelDebug
	}
	return log.New(os.Stderr, log.Format(cfg.LogFormat), level)
}

// newApp wires config, model backends, the executor, and (unless disabled)
// the run history recorder.
func newApp(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, creds, err := loadConfig(flags.cfgPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, flags.debug)

	registry, err := flows.NewDefaultRegistry(flows.Models{Image: cfg.ImageModel, Chat: cfg.ChatModel})
	if err != nil {
		return nil, fmt.Errorf("register flows: %w", err)
	}

	executor := flows.NewExecutor(registry, newRouter(ctx, cfg, creds, logger), flows.WithLogger(logger))

	a := &app{
		cfg:      cfg,
		creds:    creds,
		logger:   logger,
		registry: registry,
		executor: executor,
		runner:   executor,
	}

	if cfg.History.Enabled && !flags.noHistory {
		conn, queries, err := db.ConnectWithQueries(ctx, cfg.DBPath)
		if err != nil {
			// History is best effort; generation still works without it.
			logger.Warn("run history disabled", slog.String("db", cfg.DBPath), log.Error(err))
			return a, nil
		}
		a.db = conn
		a.history = flows.NewHistoryService(queries)
		a.runner = a.history.Wrap(executor, flows.RecordOptions{
			Models:        a.modelFor,
			RetentionDays: cfg.History.RetentionDays,
			MaxRuns:       cfg.History.MaxRuns,
			Logger:        logger,
		})
	}

	return a, nil
}

// newRouter registers the Gemini backend and, when the chat model points at
// the configured provider, a fantasy-backed assistant. A backend that can't
// be created is left out and requests for it fail as ModelUnavailable.
func newRouter(ctx context.Context, cfg config.Config, creds *config.Credentials, logger *slog.Logger) *model.Router {
	router := model.NewRouter()

	gemini, err := model.NewGemini(ctx, model.GeminiConfig{APIKey: cfg.GeminiKey(creds)})
	if err != nil {
		logger.Warn("gemini backend unavailable", log.Error(err))
	} else {
		router.Handle(model.GeminiBackend, gemini)
	}

	backend, _, _ := model.SplitRef(cfg.ChatModel)
	if cfg.Provider.ID != "" && backend == string(cfg.Provider.ID) && backend != model.GeminiBackend {
		assistant, err := model.NewAssistant(cfg.ChatProvider(creds))
		if err != nil {
			logger.Warn("chat backend unavailable", slog.String("provider", backend), log.Error(err))
		} else {
			router.Handle(backend, assistant)
		}
	}

	logger.Debug("model backends ready", slog.Any("backends", router.Backends()))
	return router
}

func (a *app) modelFor(flowName string) string {
	f, err := a.registry.Resolve(flowName)
	if err != nil {
		return ""
	}
	return f.Model
}

// openHistory connects to the run log without building model backends.
func openHistory(ctx context.Context, flags *rootFlags) (*flows.HistoryService, func() error, error) {
	cfg, err := config.Load(flags.cfgPath)
	if err != nil {
		return nil, nil, err
	}
	conn, queries, err := db.ConnectWithQueries(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return flows.NewHistoryService(queries), conn.Close, nil
}

func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
