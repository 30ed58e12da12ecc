package main

import (
	"errors"
	"flag"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-seat-hold/internal/config"
	"github.com/iliyamo/event-seat-hold/internal/database"
)

const (
	migrationUp   = "up"
	migrationDown = "down"
)

// Applies the seat table migrations to the database named by the DB_* variables.
func main() {
	var migrationsPath, migrationsTable, migrationType string
	flag.StringVar(&migrationType, "migration-type", migrationUp, "migration type (up or down)")
	flag.StringVar(&migrationsPath, "migrations-path", "migrations", "path to migrations")
	flag.StringVar(&migrationsTable, "migrations-table", "schema_migrations", "name of migrations table")
	flag.Parse()

	cfg := config.Load()
	if cfg.SeatStore != config.StoreMySQL {
		logrus.Fatalf("nothing to migrate for SEAT_STORE=%s", cfg.SeatStore)
	}

	m, err := migrate.New("file://"+migrationsPath,
		"mysql://"+database.DSN(cfg)+"&multiStatements=true&x-migrations-table="+migrationsTable)
	if err != nil {
		logrus.WithError(err).Fatal("migrator init failed")
	}
	defer m.Close()

	switch migrationType {
	case migrationUp:
		err = m.Up()
	case migrationDown:
		err = m.Down()
	default:
		logrus.Fatalf("unknown migration type %q", migrationType)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logrus.Info("no migrations to apply")
		return
	}
	if err != nil {
		logrus.WithError(err).Fatal("migration failed")
	}
	logrus.WithField("direction", migrationType).Info("migrations applied successfully")
}
