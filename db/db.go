package db

import (
	"database/sql"
	"embed"
	"errors"
	"log"
	"strings"

	"github.com/coralcommerce/dispatcher/config"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var conf config.Configuration

func SetConfigurations(configuration config.Configuration) {
	conf = configuration
}

// Connect opens the GORM handle used by request-scoped reads/writes.
// Schema is owned by Migrate, not by GORM AutoMigrate (see db/migrations).
func Connect() (*gorm.DB, error) {
	database := conf.Database
	if database == "" {
		database = "sqlite3"
	}

	var (
		db  *gorm.DB
		err error
	)

	if isPostgres(database) {
		log.Println("db: connecting to postgres")
		db, err = gorm.Open("postgres", conf.DbURL)
	} else {
		log.Println("db: connecting to sqlite3")
		path := conf.DbURL
		if path == "" {
			path = "dispatcher.db"
		}
		db, err = gorm.Open("sqlite3", path)
	}

	if err != nil {
		log.Println("db: failed to connect: " + err.Error())
		return nil, err
	}

	db.LogMode(false)
	return db, nil
}

// Migrate applies every pending embedded migration to the configured
// backend. This schema needs a partial unique index and JSON columns
// that GORM's AutoMigrate cannot express, so the schema is hand-written
// SQL driven by golang-migrate instead.
func Migrate(cfg config.Configuration) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	var (
		m *migrate.Migrate
	)

	if isPostgres(cfg.Database) {
		conn, err := sql.Open("postgres", cfg.DbURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		driver, err := postgres.WithInstance(conn, &postgres.Config{})
		if err != nil {
			return err
		}
		m, err = migrate.NewWithInstance("iofs", source, "postgres", driver)
		if err != nil {
			return err
		}
	} else {
		path := cfg.DbURL
		if path == "" {
			path = "dispatcher.db"
		}
		conn, err := sql.Open("sqlite3", path)
		if err != nil {
			return err
		}
		defer conn.Close()
		driver, err := sqlite3.WithInstance(conn, &sqlite3.Config{})
		if err != nil {
			return err
		}
		m, err = migrate.NewWithInstance("iofs", source, "sqlite3", driver)
		if err != nil {
			return err
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func isPostgres(driver string) bool {
	d := strings.ToLower(driver)
	return d == "postgres" || d == "postgresql"
}
