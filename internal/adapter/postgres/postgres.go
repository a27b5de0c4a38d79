// Package postgres holds the connection setup and error mapping shared by the repositories.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"gitlab.com/autograder.net/internal/config"
	"gitlab.com/autograder.net/internal/static/errs"
)

const Schema = "public"

// Open connects to Postgres through lib/pq
func Open(cfg *config.PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.Url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Classify maps a driver error onto the error taxonomy.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		return fmt.Errorf("%s: %w: %s", op, errs.ErrInvalidRequest, pqErr.Message)
	}
	return errs.Store(op, err)
}
