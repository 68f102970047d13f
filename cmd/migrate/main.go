package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/medsched/confirmlink/migrations"
	"github.com/medsched/confirmlink/pkg/config"
)

// Applies the embedded migrations to every configured tenant store.
// Tenants may share one physical database, so stores are deduplicated
// by connection string.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if len(cfg.Tenants.Tenants) == 0 {
		log.Fatal("no tenants configured; set TENANTS and TENANT_<ID>_DB_URL")
	}

	seen := make(map[string]bool)
	for _, tc := range cfg.Tenants.Tenants {
		if tc.DatabaseURL == "" {
			log.Fatalf("tenant %s: missing database URL", tc.ID)
		}
		if seen[tc.DatabaseURL] {
			continue
		}
		seen[tc.DatabaseURL] = true

		if err := migrateStore(tc.DatabaseURL); err != nil {
			log.Fatalf("tenant %s: %v", tc.ID, err)
		}
		fmt.Printf("migrated store for tenant %s\n", tc.ID)
	}

	fmt.Println("migrations complete")
}

func migrateStore(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("db driver: %w", err)
	}

	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
