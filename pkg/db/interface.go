// Package db holds the connections used by the remote mirror backends.
package db

import "database/sql"

// DBProvider is implemented by clients that expose a sql.DB handle, so the
// SQL mirror can sit on plain Postgres or on Supabase's database.
type DBProvider interface {
	DB() *sql.DB
}

// poolConfig is applied to every sql.DB opened here.
type poolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

func (p poolConfig) apply(db *sql.DB) {
	if p.MaxOpenConns > 0 {
		db.SetMaxOpenConns(p.MaxOpenConns)
	}
	if p.MaxIdleConns > 0 {
		db.SetMaxIdleConns(p.MaxIdleConns)
	}
}
