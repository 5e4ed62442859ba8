package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/plazos/internal/config"
	"github.com/MrJamesThe3rd/plazos/internal/database"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of migrating up")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString(), cfg.Server.Timeout)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if *down > 0 {
		err = database.Rollback(db, *down)
	} else {
		err = database.Migrate(db)
	}

	if err != nil {
		slog.Error("migration failed", "error", err)
		db.Close()
		os.Exit(1)
	}
}
