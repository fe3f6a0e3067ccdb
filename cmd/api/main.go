package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spendtrack/reconcile-backend/internal/cli"
	"github.com/spendtrack/reconcile-backend/internal/infrastructure/config"
)

func main() {
	// Missing .env is fine; real env vars still apply
	_ = godotenv.Load()

	flags := cli.ParseServeFlags()

	cfg := config.LoadOrEnv()
	if flags.ConfigFile != "" {
		cfg = config.LoadOrEnvWithPath(flags.ConfigFile)
	}

	if err := cli.RunServe(cfg, flags); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
