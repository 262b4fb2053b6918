package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/eksporyuk/sejoli-migrator/internal/catalog"
	"github.com/eksporyuk/sejoli-migrator/internal/config"
	"github.com/eksporyuk/sejoli-migrator/internal/database"
	"github.com/eksporyuk/sejoli-migrator/internal/logger"
	"github.com/eksporyuk/sejoli-migrator/internal/pipeline"
	"github.com/eksporyuk/sejoli-migrator/internal/reconcile"
	"github.com/eksporyuk/sejoli-migrator/internal/source"
)

func main() {
	flags := pflag.NewFlagSet("sejoli-migrate", pflag.ExitOnError)
	flags.String("source", "", "path to the Sejoli export JSON")
	flags.String("db", "", "path to the target sqlite database")
	flags.String("catalog", "", "product catalog TOML (default: built-in table)")
	flags.Int("workers", 1, "per-stage worker count")
	flags.String("strategy", "ledger", "commission amount source of truth: ledger, flat or rate")
	flags.Float64("expected-rate", 30, "expected commission rate percent for reconciliation")
	flags.Int64("tolerance", 0, "reconciliation amount tolerance")
	flags.String("log-level", "info", "log level")
	dryRun := flags.Bool("dry-run", false, "validate the export and catalog without writing")
	reconcileOnly := flags.Bool("reconcile-only", false, "skip import stages, only reconcile")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Source.Path == "" {
		log.Error().Msg("no source export given (--source or SEJOLI_MIGRATE_SOURCE_PATH)")
		os.Exit(1)
	}

	ex, err := source.Load(cfg.Source.Path)
	if err != nil {
		log.Error().Err(err).Msg("load export")
		os.Exit(1)
	}
	log.Info().
		Int("users", len(ex.Users)).
		Int("orders", len(ex.Orders)).
		Int("affiliates", len(ex.Affiliates)).
		Int("commissions", len(ex.Commissions)).
		Msg("export loaded")

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		cat, err = catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			log.Error().Err(err).Msg("load catalog")
			os.Exit(1)
		}
	}
	log.Info().Int("products", cat.Len()).Msg("catalog ready")

	if *dryRun {
		fmt.Println(renderPreflight(pipeline.RunPreflight(ex, cat)))
		return
	}

	strategy, err := pipeline.ParseStrategy(cfg.Pipeline.CommissionStrategy)
	if err != nil {
		log.Error().Err(err).Msg("bad strategy")
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Error().Err(err).Msg("mkdir db dir")
		os.Exit(1)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Error().Err(err).Msg("open target store")
		os.Exit(1)
	}
	defer db.Close()
	if err := database.RunMigrations(db); err != nil {
		log.Error().Err(err).Msg("migrate target store")
		os.Exit(1)
	}

	repos := pipeline.NewRepos(db)

	if !*reconcileOnly {
		p := pipeline.New(repos, cat, log)
		p.Workers = cfg.Pipeline.Workers
		p.Strategy = strategy
		p.DefaultRate = cfg.Pipeline.DefaultRate

		sum, err := p.Run(ctx, ex)
		fmt.Println(renderSummary(sum))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Warn().Msg("run interrupted; committed records are kept, re-run to resume")
			} else {
				log.Error().Err(err).Msg("pipeline aborted")
			}
			os.Exit(1)
		}
		if failed := sum.TotalFailed(); failed > 0 {
			log.Warn().Int("failed", failed).Msg("run completed with per-record failures; safe to re-run after fixing data")
		}
	}

	engine := reconcile.New(repos, reconcile.Options{
		ExpectedRate: cfg.Reconcile.ExpectedRate,
		Tolerance:    cfg.Reconcile.Tolerance,
	})
	records, err := engine.Reconcile(ctx, ex)
	if err != nil {
		log.Error().Err(err).Msg("reconcile")
		os.Exit(1)
	}
	overview, err := engine.CollectOverview(ctx, repos)
	if err != nil {
		log.Error().Err(err).Msg("overview")
		os.Exit(1)
	}
	fmt.Println(renderOverview(overview))
	fmt.Println(renderReconciliation(records))
}
