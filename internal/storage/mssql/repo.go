// Package mssql implements storage.Repository on microsoft/go-mssqldb. Each
// batch is inserted in one transaction through a prepared INSERT with @pN
// parameters.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"socioprep/internal/storage"
)

// Config holds SQL Server repository configuration.
type Config struct {
	DSN   string
	Table string // optionally schema-qualified, e.g. "dbo.merged"
}

// Repository is a SQL Server-backed storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository validates the DSN, opens the pool and pings it.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, fmt.Errorf("mssql: dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return New(db, cfg), nil
}

// New wraps an open database.
func New(db *sql.DB, cfg Config) *Repository {
	return &Repository{db: db, cfg: cfg}
}

// InsertSQL is the prepared statement CopyFrom uses.
func InsertSQL(table string, columns []string) string {
	cols := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = quoteIdent(c)
		params[i] = fmt.Sprintf("@p%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteFQN(table), strings.Join(cols, ", "), strings.Join(params, ", "))
}

// CopyFrom inserts rows in one transaction.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mssql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mssql: begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	stmt, err := tx.PrepareContext(ctx, InsertSQL(r.cfg.Table, columns))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for i, row := range rows {
		if len(row) != len(columns) {
			rollback()
			return 0, fmt.Errorf("mssql: row %d: length %d != columns length %d", i, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			rollback()
			return 0, fmt.Errorf("mssql: insert row %d: %w", i, err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit: %w", err)
	}
	return inserted, nil
}

// Exec runs one statement.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("mssql: exec: %w", err)
	}
	return nil
}

// Close closes the pool.
func (r *Repository) Close() { _ = r.db.Close() }

var _ storage.Repository = (*Repository)(nil)

var newRepository = NewRepository

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
	})
	storage.RegisterDDL("mssql", BuildCreateTableSQL)
}
