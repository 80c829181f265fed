package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type ConnectionInfo struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewPostgresConnection opens and verifies the audit database connection.
func NewPostgresConnection(info ConnectionInfo) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s password=%s",
		info.Host, info.Port, info.User, info.DBName, info.SSLMode, info.Password,
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the audit table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS reconciliation_audit (
			id               TEXT PRIMARY KEY,
			event_type       TEXT NOT NULL,
			proposal_ref     TEXT NOT NULL,
			payments_plan_id TEXT NOT NULL,
			schedule_id      BIGINT NOT NULL,
			instalment_id    BIGINT NOT NULL,
			outcome          TEXT NOT NULL,
			detail           TEXT NOT NULL DEFAULT '',
			created_at       TIMESTAMPTZ NOT NULL
		)`)
	return err
}
