// Package db implements the pipeline store on PostgreSQL.
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/hiring-pipeline/internal/pipeline"
)

// Postgres error codes the store translates into domain errors
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"

	constraintInstancePerTemplate = "stage_instances_candidate_template_key"
	constraintCVOwner             = "candidates_cv_id_key"
)

// Options tunes the connection pool
type Options struct {
	MaxConns         int32
	StatementTimeout time.Duration
	Logger           *slog.Logger
}

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ pipeline.Store = (*DB)(nil)

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string, opts Options) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.StatementTimeout > 0 {
		cfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(opts.StatementTimeout.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(pool, opts.Logger), nil
}

// New wraps an existing pool
func New(pool *pgxpool.Pool, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{pool: pool, logger: logger}
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping checks the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// InTx runs fn in a serializable read-write transaction. Serialization
// failures and deadlocks come back as *pipeline.ConflictError.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context, tx pipeline.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			db.logger.WarnContext(ctx, "Failed to roll back transaction", "error", err)
		}
	}()

	if err := fn(ctx, &txn{q: tx}); err != nil {
		return translate(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return translate(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// translate maps Postgres failures that carry domain meaning. Errors that
// are already domain errors pass through untouched.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return &pipeline.ConflictError{Entity: "transaction", ID: uuid.Nil, Cause: err}
	case codeForeignKeyViolation:
		// The engine resolves every reference before writing, so a dangling
		// one is an integrity failure that a retry would repeat.
		return &pipeline.ConstraintError{Field: pgErr.ConstraintName, Message: pgErr.Detail}
	case codeUniqueViolation:
		switch pgErr.ConstraintName {
		case constraintInstancePerTemplate:
			return &pipeline.ConflictError{Entity: "stage instance", ID: uuid.Nil, Cause: err}
		case constraintCVOwner:
			return &pipeline.ConstraintError{Field: "cv_id", Message: pgErr.Detail}
		}
		return &pipeline.ConstraintError{Field: pgErr.ConstraintName, Message: pgErr.Detail}
	}
	return err
}

// querier is the subset of pgx.Tx the repositories use
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txn struct {
	q querier
}

func (t *txn) Pipelines() pipeline.PipelineRepository           { return &pipelineRepo{q: t.q} }
func (t *txn) Templates() pipeline.TemplateRepository           { return &templateRepo{q: t.q} }
func (t *txn) Jobs() pipeline.JobRepository                     { return &jobRepo{q: t.q} }
func (t *txn) Personas() pipeline.PersonaLookup                 { return &personaRepo{q: t.q} }
func (t *txn) Candidates() pipeline.CandidateRepository         { return &candidateRepo{q: t.q} }
func (t *txn) StageInstances() pipeline.StageInstanceRepository { return &stageInstanceRepo{q: t.q} }
func (t *txn) CVs() pipeline.CVStore                            { return &cvRepo{q: t.q} }
