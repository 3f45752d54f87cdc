package main

// Run database migrations:
//   go run ./cmd/migrate            # apply pending migrations
//   go run ./cmd/migrate -cmd down  # revert the latest migration
//   go run ./cmd/migrate -cmd status

import (
	"context"
	"flag"
	"log"
	"os"

	"row-analyzer/internal/shared/config"
	"row-analyzer/internal/shared/storage/db"
)

func main() {
	command := flag.String("cmd", "up", "migration command: up, down or status")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	opts := db.PoolFor(db.RoleMigrate, 0).WithEnv()
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	switch *command {
	case "up":
		err = db.RunMigrations(ctx, sqlDB)
	case "down":
		err = db.RollbackMigration(ctx, sqlDB)
	case "status":
		err = db.MigrationStatus(ctx, sqlDB)
	default:
		log.Printf("unknown migration command %q", *command)
		sqlDB.Close()
		os.Exit(2)
	}
	if err != nil {
		log.Printf("migration %s failed: %v", *command, err)
		sqlDB.Close()
		os.Exit(1)
	}
}
