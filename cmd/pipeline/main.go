// Command pipeline runs the offline derivation chain end to end: quarterly
// signals over the configured year range, the lagged feature table, and the
// leakage checks against the label file. It refuses to export anything when
// a leakage check fails.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"wdkg/internal/config"
	"wdkg/internal/util"
	"wdkg/pkg/asof"
	"wdkg/pkg/features"
	"wdkg/pkg/kg"
	"wdkg/pkg/leakage"
	"wdkg/pkg/leaselock"
	"wdkg/pkg/logger"
	"wdkg/pkg/logger/console"
	"wdkg/pkg/signals"
	pgstore "wdkg/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(util.GetEnvString("WDKG_CONFIG", "config.yaml"))
	if err != nil {
		panic(err)
	}

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: cfg.Logging.Debug,
	})
	logger.Init(consoleLogger)

	if err := pgstore.Migrate(cfg.Database.URL); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}
	pgConn, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	graphStore := pgstore.NewWithConnection(pgConn)

	// Only one derivation run at a time; a second invocation waits.
	lockClient := leaselock.New(pgConn)
	err = lockClient.WithLease(ctx, "pipeline", leaselock.Options{
		TTL:        10 * time.Minute,
		RenewEvery: 4 * time.Minute,
		Wait:       true,
	}, func(ctx context.Context) error {
		return run(ctx, cfg, graphStore)
	})
	var leak *kg.LeakageError
	if errors.As(err, &leak) {
		logger.Error("[Pipeline] Leakage check failed",
			"check", leak.Check,
			"rows", len(leak.Rows),
		)
		os.Exit(1)
	}
	if err != nil {
		logger.Fatal("Pipeline run failed", "err", err)
	}
}

func run(ctx context.Context, cfg *config.Config, graphStore *pgstore.Store) error {
	from := kg.Quarter{Year: cfg.Ingestion.StartYear, Q: 1}
	to := kg.Quarter{Year: cfg.Ingestion.EndYear, Q: 4}

	logger.Info("[Pipeline] Computing signals", "from", from.String(), "to", to.String())
	agg := signals.New(asof.New(graphStore))
	sigs, err := agg.ComputeRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to compute signals: %w", err)
	}

	logger.Info("[Pipeline] Assembling features", "signals", len(sigs))
	table, err := features.New().Build(sigs, features.DefaultLagSpec())
	if err != nil {
		// Violating rows are excluded from the table; report and continue
		// with the clean remainder.
		logger.Warn("[Pipeline] Feature rows excluded for ordering violations", "err", err)
	}

	if cfg.Modeling.LabelsPath != "" {
		labels, err := loadLabels(cfg.Modeling.LabelsPath)
		if err != nil {
			return fmt.Errorf("failed to load labels from %s: %w", cfg.Modeling.LabelsPath, err)
		}

		split := leakage.SplitSpec{
			TrainEnd:      kg.Quarter{Year: cfg.Modeling.TrainEndYear, Q: 4},
			ValidationEnd: kg.Quarter{Year: cfg.Modeling.ValidationEndYear, Q: 4},
		}

		report, err := leakage.New(graphStore).Validate(ctx, table, labels, split, sigs)
		if err != nil {
			return err
		}
		logger.Info("[Pipeline] Leakage checks passed",
			"rows_checked", report.RowsChecked,
			"signals_audited", report.SignalsAudited,
			"train_quarters", len(report.Train),
			"validation_quarters", len(report.Validation),
			"test_quarters", len(report.Test),
		)
	} else {
		logger.Warn("[Pipeline] No labels configured, skipping leakage checks")
	}

	if err := export(cfg.Pipeline.OutputDir, "signals.json", sigs); err != nil {
		return fmt.Errorf("failed to export signals: %w", err)
	}
	if err := export(cfg.Pipeline.OutputDir, "features.json", table); err != nil {
		return fmt.Errorf("failed to export features: %w", err)
	}
	logger.Info("[Pipeline] Export complete", "dir", cfg.Pipeline.OutputDir)
	return nil
}

func loadLabels(path string) ([]kg.Label, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var labels []kg.Label
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

func export(dir, name string, v any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}
