package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cory-johannsen/growbot/internal/storage/record"
)

// RecordRepository stores each scope as rows of player_records. Operations
// on one scope are serialized with a transaction-scoped advisory lock keyed
// by the scope id, so several bot processes may share a database.
type RecordRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewRecordRepository creates a RecordRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool with the
// player_records migration applied.
func NewRecordRepository(db *pgxpool.Pool, logger *zap.Logger) *RecordRepository {
	return &RecordRepository{db: db, logger: logger}
}

// Load returns the scope's records. An unknown scope is registered empty.
//
// Postcondition: Returns the scope or an error wrapping record.ErrIO.
func (r *RecordRepository) Load(ctx context.Context, scopeID int64) (record.Scope, error) {
	var scope record.Scope
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockScope(ctx, tx, scopeID); err != nil {
			return err
		}
		var err error
		scope, err = loadScope(ctx, tx, scopeID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: loading scope %d: %w", record.ErrIO, scopeID, err)
	}
	return scope, nil
}

// Save replaces every record of the scope with the contents of scope.
//
// Postcondition: On success the scope holds exactly scope; on failure the
// previous rows are untouched.
func (r *RecordRepository) Save(ctx context.Context, scopeID int64, scope record.Scope) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockScope(ctx, tx, scopeID); err != nil {
			return err
		}
		return replaceScope(ctx, tx, scopeID, scope)
	})
	if err != nil {
		return fmt.Errorf("%w: saving scope %d: %w", record.ErrIO, scopeID, err)
	}
	r.logger.Debug("saved scope", zap.Int64("scope", scopeID), zap.Int("players", len(scope)))
	return nil
}

// Update loads the scope, calls fn to mutate it, and saves it inside one
// transaction. If fn returns an error nothing is saved; record.ErrSkipSave
// ends the update successfully without a write.
//
// Postcondition: Returns the resulting scope or the first error encountered.
func (r *RecordRepository) Update(ctx context.Context, scopeID int64, fn func(record.Scope) error) (record.Scope, error) {
	var (
		scope   record.Scope
		fnErr   error
		skipped bool
	)
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockScope(ctx, tx, scopeID); err != nil {
			return err
		}
		var err error
		scope, err = loadScope(ctx, tx, scopeID)
		if err != nil {
			return err
		}
		if err := fn(scope); err != nil {
			if errors.Is(err, record.ErrSkipSave) {
				skipped = true
				return nil
			}
			fnErr = err
			return err
		}
		return replaceScope(ctx, tx, scopeID, scope)
	})
	if fnErr != nil {
		return nil, fnErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: updating scope %d: %w", record.ErrIO, scopeID, err)
	}
	if !skipped {
		r.logger.Debug("saved scope", zap.Int64("scope", scopeID), zap.Int("players", len(scope)))
	}
	return scope, nil
}

func lockScope(ctx context.Context, tx pgx.Tx, scopeID int64) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, scopeID); err != nil {
		return fmt.Errorf("locking scope: %w", err)
	}
	return nil
}

func loadScope(ctx context.Context, tx pgx.Tx, scopeID int64) (record.Scope, error) {
	if _, err := tx.Exec(ctx,
		`INSERT INTO scopes (scope_id) VALUES ($1) ON CONFLICT (scope_id) DO NOTHING`,
		scopeID,
	); err != nil {
		return nil, fmt.Errorf("registering scope: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT user_id, name, score, last_attempt
		 FROM player_records
		 WHERE scope_id = $1`,
		scopeID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	scope := make(record.Scope)
	for rows.Next() {
		var (
			userID int64
			rec    record.PlayerRecord
		)
		if err := rows.Scan(&userID, &rec.Name, &rec.Score, &rec.LastAttempt); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		scope[userID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return scope, nil
}

func replaceScope(ctx context.Context, tx pgx.Tx, scopeID int64, scope record.Scope) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO scopes (scope_id) VALUES ($1) ON CONFLICT (scope_id) DO NOTHING`,
		scopeID,
	); err != nil {
		return fmt.Errorf("registering scope: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM player_records WHERE scope_id = $1`, scopeID); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}
	if len(scope) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(scope))
	for userID, rec := range scope {
		rows = append(rows, []any{scopeID, userID, rec.Name, rec.Score, rec.LastAttempt})
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"player_records"},
		[]string{"scope_id", "user_id", "name", "score", "last_attempt"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("writing records: %w", err)
	}
	return nil
}
