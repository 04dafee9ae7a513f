package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"dicevault/internal/config"
	"dicevault/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	if command == "create" {
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate create <migration_name>")
		}
		createMigration(getEnv("MIGRATIONS_PATH", "./internal/database"), os.Args[2])
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.New(cfg.StoreBackend, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		log.Println("Running migrations...")
		if err := database.RunMigrations(db.DB(), db.Dialect()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")

	case "down":
		log.Println("Rolling back last migration...")
		if err := database.RollbackMigration(db.DB(), db.Dialect()); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Println("Rollback completed successfully")

	case "version":
		version, dirty, err := database.GetMigrationVersion(db.DB(), db.Dialect())
		if err != nil {
			log.Fatalf("Failed to get version: %v", err)
		}
		if dirty {
			log.Printf("Current version: %d (DIRTY - needs manual intervention)", version)
		} else {
			log.Printf("Current version: %d", version)
		}

	default:
		log.Printf("Unknown command: %s", command)
		printUsage()
		os.Exit(1)
	}
}

// createMigration writes an empty up/down pair for every dialect. Both
// dialects share the version sequence.
func createMigration(root, name string) {
	dialects := []database.Dialect{database.DialectPostgres, database.DialectSQLite}

	nextVersion := 1
	for _, dialect := range dialects {
		if v := latestVersion(filepath.Join(root, database.MigrationsDir(dialect))) + 1; v > nextVersion {
			nextVersion = v
		}
	}

	log.Printf("Created migration files:")
	for _, dialect := range dialects {
		dir := filepath.Join(root, database.MigrationsDir(dialect))
		upFile := filepath.Join(dir, fmt.Sprintf("%06d_%s.up.sql", nextVersion, name))
		downFile := filepath.Join(dir, fmt.Sprintf("%06d_%s.down.sql", nextVersion, name))

		upContent := fmt.Sprintf("-- Migration: %s (%s)\n-- Created: %s\n\n-- Add your SQL here\n", name, dialect, time.Now().Format(time.RFC3339))
		if err := os.WriteFile(upFile, []byte(upContent), 0644); err != nil {
			log.Fatalf("Failed to create up migration: %v", err)
		}
		downContent := fmt.Sprintf("-- Rollback: %s (%s)\n\n-- Add your rollback SQL here\n", name, dialect)
		if err := os.WriteFile(downFile, []byte(downContent), 0644); err != nil {
			log.Fatalf("Failed to create down migration: %v", err)
		}

		log.Printf("   - %s", upFile)
		log.Printf("   - %s", downFile)
	}
}

func latestVersion(dir string) int {
	files, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("Failed to read migrations directory: %v", err)
	}

	latest := 0
	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(file.Name(), "_")
		if version, err := strconv.Atoi(prefix); err == nil && version > latest {
			latest = version
		}
	}
	return latest
}

func printUsage() {
	fmt.Println("Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate up              Run all pending migrations")
	fmt.Println("  migrate down            Rollback the last migration")
	fmt.Println("  migrate version         Show current migration version")
	fmt.Println("  migrate create <name>   Create a new migration file for each dialect")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  STORE_BACKEND           postgres or sqlite (default: memory, rejected here)")
	fmt.Println("  SQLITE_PATH             SQLite database file (default: dicevault.db)")
	fmt.Println("  BLUEPRINT_DB_HOST       Database host (default: localhost)")
	fmt.Println("  BLUEPRINT_DB_PORT       Database port (default: 5432)")
	fmt.Println("  BLUEPRINT_DB_DATABASE   Database name (default: dicevault)")
	fmt.Println("  BLUEPRINT_DB_USERNAME   Database user (default: postgres)")
	fmt.Println("  BLUEPRINT_DB_PASSWORD   Database password")
	fmt.Println("  MIGRATIONS_PATH         Package holding migrations/ (default: ./internal/database)")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
