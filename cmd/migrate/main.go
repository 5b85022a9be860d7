package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/wolfman30/medical-appointments/internal/appointment"
	appconfig "github.com/wolfman30/medical-appointments/internal/config"
	appmigrations "github.com/wolfman30/medical-appointments/migrations"
)

// Usage:
//
//	migrate                  apply pending migrations to every configured country
//	migrate force <version>  force the schema version (requires MIGRATE_COUNTRY)
func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	targets := map[appointment.Country]string{}
	if only := strings.ToUpper(strings.TrimSpace(os.Getenv("MIGRATE_COUNTRY"))); only != "" {
		targets[appointment.Country(only)] = cfg.CountryDatabaseURL(only)
	} else {
		for _, c := range appointment.Countries {
			targets[c] = cfg.CountryDatabaseURL(string(c))
		}
	}

	forceVersion := -1
	if len(os.Args) >= 3 && os.Args[1] == "force" {
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatalf("invalid version: %v", err)
		}
		if len(targets) != 1 {
			log.Fatal("force requires MIGRATE_COUNTRY")
		}
		forceVersion = version
	}

	ran := 0
	for country, url := range targets {
		if url == "" {
			log.Printf("skipping %s: no database url", country)
			continue
		}
		if err := run(url, forceVersion); err != nil {
			log.Fatalf("%s: %v", country, err)
		}
		fmt.Printf("%s: migrations complete\n", country)
		ran++
	}
	if ran == 0 {
		log.Fatal("no country database url configured (RDS_PE_DATABASE_URL / RDS_CL_DATABASE_URL)")
	}
}

func run(databaseURL string, forceVersion int) error {
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

	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		return fmt.Errorf("source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if forceVersion >= 0 {
		if err := m.Force(forceVersion); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
		fmt.Printf("forced version to %d\n", forceVersion)
		return nil
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
