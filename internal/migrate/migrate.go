// Package migrate applies embedded SQL migrations on startup.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/and161185/immob/migrations"
)

// Dialect names a goose dialect; it is also the migrations subdirectory.
type Dialect string

// Supported dialects.
const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// Up runs all pending postgres migrations for dsn.
func Up(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	return UpDB(ctx, db, Postgres)
}

// UpDB runs all pending migrations of dialect d against an open database.
func UpDB(ctx context.Context, db *sql.DB, d Dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(string(d)); err != nil {
		return fmt.Errorf("goose dialect %s: %w", d, err)
	}

	return goose.UpContext(ctx, db, string(d))
}
