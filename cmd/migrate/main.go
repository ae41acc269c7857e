package main

import (
	"flag"
	"log"
	"log/slog"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/config"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/database"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/logger"
)

func main() {
	backfill := flag.Bool("backfill-legacy", false, "fill buyer/seller on conversations created before roles existed")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.Setup(cfg)

	slog.Info("Starting database migration...", "driver", cfg.Database.Driver)

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get database instance:", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatal("Migration failed:", err)
	}
	slog.Info("Schema migration completed")

	if *backfill {
		n, err := database.BackfillLegacyRoles(db)
		if err != nil {
			log.Fatal("Legacy backfill failed:", err)
		}
		slog.Info("Legacy conversations backfilled", "count", n)
	}

	slog.Info("Database migration completed successfully!")
}
