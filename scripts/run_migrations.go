package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/safar/order-management-api/internal/config"
	"github.com/safar/order-management-api/internal/database"
	"github.com/safar/order-management-api/migrations"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}

	direction := database.Direction(os.Args[1])
	if direction != database.Up && direction != database.Down {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db, migrations.FS, direction)
	if err != nil {
		log.Fatalf("Run migrations: %v", err)
	}

	for _, name := range applied {
		log.Printf("Ran migration: %s", name)
	}
	log.Printf("Successfully ran %d migration(s) %s", len(applied), direction)
}
