package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"idea-harvest/pkg/db"
)

// SQLBackend mirrors datasets as tables with one TEXT column per header
// field. It works on any DBProvider whose driver accepts $n placeholders.
type SQLBackend struct {
	pg    db.DBProvider
	close func(context.Context) error
}

func NewSQLBackend(pg db.DBProvider, close func(context.Context) error) *SQLBackend {
	return &SQLBackend{pg: pg, close: close}
}

func (b *SQLBackend) EnsureDataset(ctx context.Context, name string, header []string) error {
	if b.pg.DB() == nil {
		return fmt.Errorf("database not connected")
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = quoteIdent(h) + " TEXT NOT NULL DEFAULT ''"
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(name), strings.Join(cols, ", "))
	if _, err := b.pg.DB().ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	return nil
}

func (b *SQLBackend) AppendRows(ctx context.Context, name string, header []string, rows [][]string) error {
	return b.inTx(ctx, func(tx *sql.Tx) error {
		return insertRows(ctx, tx, name, header, rows)
	})
}

func (b *SQLBackend) ReplaceRows(ctx context.Context, name string, header []string, rows [][]string) error {
	return b.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+quoteIdent(name)); err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
		return insertRows(ctx, tx, name, header, rows)
	})
}

func (b *SQLBackend) Close(ctx context.Context) error {
	if b.close == nil {
		return nil
	}
	return b.close(ctx)
}

func (b *SQLBackend) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	if b.pg.DB() == nil {
		return fmt.Errorf("database not connected")
	}
	tx, err := b.pg.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, name string, header []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, len(header))
	marks := make([]string, len(header))
	for i, h := range header {
		cols[i] = quoteIdent(h)
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(name), strings.Join(cols, ", "), strings.Join(marks, ", "))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(header))
	for n, row := range rows {
		if len(row) != len(header) {
			return fmt.Errorf("row %d has %d columns, want %d", n, len(row), len(header))
		}
		for i, v := range row {
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d into %s: %w", n, name, err)
		}
	}
	return nil
}

func quoteIdent(s string) string {
	return pgx.Identifier{s}.Sanitize()
}
