package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/iliyamo/showtime-reservation/internal/config"
	"github.com/iliyamo/showtime-reservation/internal/database"
)

const (
	migrationUp   = "up"
	migrationDown = "down"
)

func mustMigrateUp(m *migrate.Migrate) {
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}
		panic(err)
	}
	fmt.Println("migrations applied successfully")
}

func mustMigrateDown(m *migrate.Migrate) {
	if err := m.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}
		panic(err)
	}
	fmt.Println("migrations downed successfully")
}

// The database comes from the same DB_* variables the server reads.
func main() {
	var migrationsPath, migrationsTable, migrationType string
	flag.StringVar(&migrationType, "migration-type", migrationUp, "up or down")
	flag.StringVar(&migrationsPath, "migrations-path", "./migrations", "path to migrations")
	flag.StringVar(&migrationsTable, "migrations-table", "schema_migrations", "name of migrations table")
	flag.Parse()

	cfg := config.Load()
	if cfg.StoreBackend != config.StoreMySQL {
		panic("migrator requires STORE_BACKEND=mysql")
	}
	opts := database.Options{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	}

	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		opts.MigrateURL()+"&x-migrations-table="+migrationsTable,
	)
	if err != nil {
		panic(err)
	}
	defer m.Close()

	if migrationType == migrationDown {
		mustMigrateDown(m)
		return
	}
	mustMigrateUp(m)
}
