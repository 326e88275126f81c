package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the catalog, account and document tables if needed.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS document_types (
	id BIGSERIAL PRIMARY KEY,
	nome TEXT NOT NULL UNIQUE,
	institucional BOOLEAN NOT NULL DEFAULT FALSE,
	colaborador BOOLEAN NOT NULL DEFAULT FALSE,
	ativo BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS students (
	id BIGINT PRIMARY KEY,
	nome TEXT NOT NULL,
	matricula TEXT NOT NULL DEFAULT '',
	cpf TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_students_nome ON students(lower(nome));
CREATE TABLE IF NOT EXISTS staff (
	id BIGINT PRIMARY KEY,
	nome TEXT NOT NULL,
	cargo TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS users (
	login TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	permissions TEXT[] NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	entity TEXT NOT NULL,
	owner_id BIGINT,
	title TEXT NOT NULL DEFAULT '',
	document_type TEXT NOT NULL,
	document_date DATE NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	file_name TEXT NOT NULL,
	object_key TEXT NOT NULL,
	size BIGINT NOT NULL,
	page_count INT NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	content TEXT,
	error_message TEXT,
	uploaded_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(entity, owner_id);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
