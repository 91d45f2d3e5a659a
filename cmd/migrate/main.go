// Package main - request log maintenance CLI for Open Lovable
//
// Usage:
//
//	go run ./cmd/migrate up          # Create or update the request log schema
//	go run ./cmd/migrate status      # Show dialect and row count
//	go run ./cmd/migrate prune DAYS  # Delete entries older than DAYS days
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"open-lovable/internal/config"
	"open-lovable/internal/db"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			if err := godotenv.Load("../../.env"); err != nil {
				log.Println("No .env file found, using environment variables")
			}
		}
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	database, err := db.Open(db.Config{URL: cfg.DatabaseURL, SQLitePath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	log.Printf("Database dialect: %s", database.Dialect)

	ctx := context.Background()
	requestLog := db.NewRequestLogger(database)

	switch command := os.Args[1]; command {
	case "up":
		// Open already ran AutoMigrate
		log.Println("Request log schema is up to date")
	case "status":
		n, err := requestLog.Count(ctx)
		if err != nil {
			log.Fatalf("Failed to count request log: %v", err)
		}
		fmt.Printf("dialect:  %s\nrequests: %d\n", database.Dialect, n)
	case "prune":
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate prune <days>")
		}
		days, err := strconv.Atoi(os.Args[2])
		if err != nil || days < 0 {
			log.Fatalf("Invalid number of days: %s", os.Args[2])
		}
		cutoff := time.Now().AddDate(0, 0, -days)
		removed, err := requestLog.Prune(ctx, cutoff)
		if err != nil {
			log.Fatalf("Prune failed: %v", err)
		}
		log.Printf("Removed %d entries older than %s", removed, cutoff.Format(time.RFC3339))
	default:
		log.Printf("Unknown command: %s", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Open Lovable request log CLI

Usage:
  migrate <command> [arguments]

Commands:
  up           Create or update the request log schema
  status       Show dialect and row count
  prune DAYS   Delete entries older than DAYS days

Environment:
  DATABASE_URL   PostgreSQL URL; SQLite is used when empty
  SQLITE_PATH    SQLite file (default open-lovable.db)`)
}
