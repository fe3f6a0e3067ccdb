package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spendtrack/reconcile-backend/internal/application/reconcile"
	"github.com/spendtrack/reconcile-backend/internal/cli"
	"github.com/spendtrack/reconcile-backend/internal/infrastructure/config"
	"github.com/spendtrack/reconcile-backend/internal/infrastructure/logging"
	"github.com/spendtrack/reconcile-backend/internal/infrastructure/storage"
)

func main() {
	_ = godotenv.Load()

	flags := cli.ParseReconcileFlags()
	if flags.CSVPath == "" && !flags.Match {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -csv and/or -match")
		os.Exit(2)
	}

	cfg := config.LoadOrEnv()
	if flags.ConfigFile != "" {
		cfg = config.LoadOrEnvWithPath(flags.ConfigFile)
	}
	if flags.Limit > 0 {
		cfg.Matching.TransactionLimit = flags.Limit
	}

	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "reconcile")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Storage.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	service := reconcile.NewService(store, cfg.Matching, logger)

	cli.PrintHeader(flags.DryRun)

	if flags.CSVPath != "" {
		data, err := os.ReadFile(flags.CSVPath)
		if err != nil {
			logger.Error("failed to read export", "path", flags.CSVPath, "error", err)
			os.Exit(1)
		}

		result, err := service.ImportOrders(string(data))
		if err != nil {
			logger.Error("import failed", "error", err)
			os.Exit(1)
		}
		cli.PrintImportSummary(result)
	}

	if flags.Match {
		result, err := service.AutoMatch(flags.DryRun)
		if err != nil {
			logger.Error("matching pass failed", "error", err)
			os.Exit(1)
		}
		cli.PrintMatchSummary(result, store)
	}
}
