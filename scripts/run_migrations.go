package main

import (
	"context"
	"os"

	"github.com/safar/go-shop-api/internal/config"
	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		logging.Fatal().Msg("usage: go run scripts/run_migrations.go [up|down] [dir]")
	}

	direction := os.Args[1]
	if direction != database.MigrateUp && direction != database.MigrateDown {
		logging.Fatal().Str("direction", direction).Msg("direction must be up or down")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("connect to database")
	}
	defer db.Close()

	migrationDir := "migrations"
	if len(os.Args) > 2 {
		migrationDir = os.Args[2]
	}

	n, err := database.RunMigrations(context.Background(), db, migrationDir, direction)
	if err != nil {
		logging.Fatal().Err(err).Int("applied", n).Msg("run migrations")
	}

	logging.Info().Int("applied", n).Str("direction", direction).Msg("migrations complete")
}
