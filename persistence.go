package auth

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"path"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/migrate"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const migrationsRoot = "data/sql/migrations"

// MigrationsTable records every applied migration
const MigrationsTable = "auth_migrations"

//go:embed data/sql/migrations
var migrations embed.FS

// MigrationsFS exposes the embedded schema, one directory per dialect
// under data/sql/migrations
func MigrationsFS() fs.FS {
	return migrations
}

// OpenDB opens a bun database for driver. With debug every query is
// printed through bundebug.
func OpenDB(driver, dsn string, debug bool) (*bun.DB, error) {
	var db *bun.DB

	switch strings.ToLower(driver) {
	case DriverPostgres, "pg", "postgresql":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverSQLite, "sqlite3":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, internalError(err, "failed to open sqlite database")
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, badRequest(TextCodeInvalidConfig, "unsupported database driver %q", driver)
	}

	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	return db, nil
}

// Migrate applies the embedded migrations for the dialect of db that are
// not yet recorded in the auth_migrations table. Concurrent callers are
// serialized through auth_migration_locks.
func Migrate(ctx context.Context, db *bun.DB) error {
	dir, err := migrationsDir(db.Dialect().Name())
	if err != nil {
		return err
	}

	sub, err := fs.Sub(migrations, dir)
	if err != nil {
		return internalError(err, "failed to read migrations")
	}

	ms := migrate.NewMigrations()
	if err := ms.Discover(sub); err != nil {
		return internalError(err, "failed to discover migrations")
	}

	migrator := migrate.NewMigrator(db, ms,
		migrate.WithTableName(MigrationsTable),
		migrate.WithLocksTableName(MigrationsTable+"_locks"),
		migrate.WithMarkAppliedOnSuccess(true),
	)
	if err := migrator.Init(ctx); err != nil {
		return internalError(err, "failed to create migrations table")
	}

	if err := migrator.Lock(ctx); err != nil {
		return internalError(err, "failed to lock migrations")
	}
	defer migrator.Unlock(ctx)

	if _, err := migrator.Migrate(ctx); err != nil {
		return internalError(err, "failed to apply migrations")
	}
	return nil
}

func migrationsDir(name dialect.Name) (string, error) {
	switch name {
	case dialect.PG:
		return path.Join(migrationsRoot, DriverPostgres), nil
	case dialect.SQLite:
		return path.Join(migrationsRoot, DriverSQLite), nil
	default:
		return "", badRequest(TextCodeInvalidConfig, "no migrations for dialect %s", name)
	}
}
