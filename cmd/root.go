package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dataquality-cli/internal/ai"
	"github.com/sells-group/dataquality-cli/internal/config"
	"github.com/sells-group/dataquality-cli/internal/history"
	"github.com/sells-group/dataquality-cli/internal/hubspot"
	"github.com/sells-group/dataquality-cli/internal/kvstore"
	"github.com/sells-group/dataquality-cli/internal/mergeops"
	"github.com/sells-group/dataquality-cli/internal/model"
	"github.com/sells-group/dataquality-cli/internal/resilience"
	"github.com/sells-group/dataquality-cli/internal/rules"
	"github.com/sells-group/dataquality-cli/internal/scheduler"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dataquality-cli",
	Short: "CRM data quality toolkit",
	Long:  "Finds duplicate CRM records (exact and fuzzy), applies formatting rules, detects anomalies, and manages merges with a reviewable, undoable action log.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env bundles the wired dependencies commands share.
type env struct {
	kv    kvstore.Store
	sched *scheduler.Scheduler
	api   hubspot.Client
	log   *history.Log
	rules *rules.Store
	orch  *mergeops.Orchestrator
}

func initEnv(ctx context.Context) (*env, error) {
	kv, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(scheduler.Config{
		Baseline:    time.Duration(cfg.Scheduler.BaselineMs) * time.Millisecond,
		MinInterval: time.Duration(cfg.Scheduler.MinIntervalMs) * time.Millisecond,
		MaxInterval: time.Duration(cfg.Scheduler.MaxIntervalMs) * time.Millisecond,
		QueueSize:   cfg.Scheduler.QueueSize,
		Retry: resilience.RetryConfig{
			MaxAttempts: cfg.Scheduler.MaxAttempts,
		},
	})

	api := hubspot.NewClient(cfg.HubSpot.Token, sched,
		hubspot.WithBaseURL(cfg.HubSpot.BaseURL),
		hubspot.WithPageLimit(cfg.HubSpot.PageLimit),
	)

	log := history.NewLog(kv)

	return &env{
		kv:    kv,
		sched: sched,
		api:   api,
		log:   log,
		rules: rules.NewStore(kv),
		orch:  mergeops.New(api, log),
	}, nil
}

func (e *env) Close() {
	e.sched.Close()
	if err := e.kv.Close(); err != nil {
		zap.L().Warn("closing store", zap.Error(err))
	}
}

func openStore(ctx context.Context) (kvstore.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := kvstore.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := kvstore.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (e *env) completer() ai.Completer {
	if cfg.Anthropic.Key == "" {
		return nil
	}
	return ai.NewClient(cfg.Anthropic.Key,
		ai.WithModel(cfg.Anthropic.Model),
		ai.WithMaxTokens(cfg.Anthropic.MaxTokens),
	)
}

func parseObjectType(s string) (model.ObjectType, error) {
	switch model.ObjectType(s) {
	case model.ObjectContacts:
		return model.ObjectContacts, nil
	case model.ObjectCompanies:
		return model.ObjectCompanies, nil
	default:
		return "", eris.Errorf("unknown object type %q (want contacts or companies)", s)
	}
}
