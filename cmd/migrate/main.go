package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/expensetrack/expensetrack/infrastructure/adapter/postgres"
)

func main() {
	mode := flag.String("mode", "up", "migration mode: up, down, status, version or reset")
	flag.Parse()

	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	command := strings.ToLower(*mode)
	if err := postgres.Migrate(ctx, db, command); err != nil {
		log.Fatalf("migration %s failed: %v", command, err)
	}
	log.Printf("migration %s completed", command)
}
