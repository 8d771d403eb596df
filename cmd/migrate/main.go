package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"pantry/internal/config"
)

const migrationsDir = "migrations"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded, relying on environment")
	}

	command := flag.String("command", "up", "Migration command: up, down, down-to, status, create")
	name := flag.String("name", "", "Migration name (required for create)")
	targetVersion := flag.Int64("version", 0, "Target version for down-to command")
	flag.Parse()

	cfg := config.Load()
	if cfg.InventoryBackend != config.InventoryBackendPostgres {
		log.Printf("INVENTORY_BACKEND is %q; migrating the postgres schema anyway", cfg.InventoryBackend)
	}

	db, err := open(cfg, *command == "up")
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to set dialect: %v", err)
	}

	if err := run(db, *command, *name, *targetVersion); err != nil {
		log.Fatal(err)
	}
}

func run(db *sql.DB, command, name string, version int64) error {
	switch command {
	case "up":
		if err := goose.Up(db, migrationsDir); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Println("Migrations applied successfully")
	case "down":
		if err := goose.Down(db, migrationsDir); err != nil {
			return fmt.Errorf("failed to rollback migrations: %w", err)
		}
		log.Println("Migrations rolled back successfully")
	case "down-to":
		if err := goose.DownTo(db, migrationsDir, version); err != nil {
			return fmt.Errorf("failed to rollback migrations to version %d: %w", version, err)
		}
		log.Printf("Migrations rolled back to version %d successfully", version)
	case "status":
		if err := goose.Status(db, migrationsDir); err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}
	case "create":
		if name == "" {
			return errors.New("migration name is required for create command")
		}
		if err := goose.Create(db, migrationsDir, name, "sql"); err != nil {
			return fmt.Errorf("failed to create migration: %w", err)
		}
		log.Printf("Created migration: %s", name)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
	return nil
}

// open connects to the configured database. With create set, a missing
// database is created first.
func open(cfg *config.Config, create bool) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err == nil {
		return db, nil
	}
	db.Close()

	var pqErr *pq.Error
	if !create || !errors.As(err, &pqErr) || pqErr.Code != "3D000" {
		return nil, err
	}

	if err := createDatabase(cfg); err != nil {
		return nil, err
	}

	db, err = sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func createDatabase(cfg *config.Config) error {
	admin := cfg.Database
	admin.Name = "postgres"

	db, err := sql.Open("postgres", admin.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(cfg.Database.Name))); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P04" {
			return nil
		}
		return fmt.Errorf("failed to create database: %w", err)
	}

	log.Printf("Database '%s' created successfully", cfg.Database.Name)
	return nil
}
