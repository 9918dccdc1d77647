// Package attempt runs the daily attempt and leaderboard commands against a
// scope's records.
package attempt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/growbot/internal/game/cooldown"
	"github.com/cory-johannsen/growbot/internal/game/ranking"
	"github.com/cory-johannsen/growbot/internal/storage/record"
)

// Repository is the record store the engine reads and writes.
type Repository interface {
	// Load returns the scope, creating it empty when absent.
	Load(ctx context.Context, scopeID int64) (record.Scope, error)
	// Update runs fn on the scope while holding it exclusively and saves
	// the result unless fn returns an error or record.ErrSkipSave.
	Update(ctx context.Context, scopeID int64, fn func(record.Scope) error) (record.Scope, error)
}

// Roller draws a score delta.
type Roller interface {
	Roll() int
}

// Player identifies the user making an attempt.
type Player struct {
	ID   int64
	Name string
}

// Outcome is the result of one attempt.
type Outcome struct {
	// ID correlates the attempt across log lines.
	ID uuid.UUID
	// Attempted is false when the player was still on cooldown.
	Attempted bool
	// Delta is the drawn change; zero when not Attempted.
	Delta int
	// Record is the player's record after the attempt.
	Record record.PlayerRecord
	// Rank is the player's 1-based position in the scope.
	Rank int
	// Next is the wait until the following attempt.
	Next cooldown.Status
}

// Engine is safe for concurrent use when its Repository serializes updates
// per scope.
type Engine struct {
	repo   Repository
	policy cooldown.Policy
	roller Roller
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine wires an Engine.
//
// Precondition: all arguments must be non-nil.
func NewEngine(repo Repository, policy cooldown.Policy, roller Roller, logger *zap.Logger) *Engine {
	return &Engine{
		repo:   repo,
		policy: policy,
		roller: roller,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the engine's time source and returns the engine.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Attempt checks the player's cooldown and, when eligible, draws a delta,
// applies it, and persists the scope. A player on cooldown gets their
// current record, rank, and remaining wait; nothing is written.
//
// Postcondition: On success Outcome.Rank >= 1 and Outcome.Record is the
// persisted record of the player.
func (e *Engine) Attempt(ctx context.Context, scopeID int64, p Player) (Outcome, error) {
	out := Outcome{ID: uuid.New()}
	log := e.logger.With(
		zap.String("attempt_id", out.ID.String()),
		zap.Int64("scope", scopeID),
		zap.Int64("user", p.ID),
	)
	now := e.now()

	_, err := e.repo.Update(ctx, scopeID, func(s record.Scope) error {
		var current *record.PlayerRecord
		if rec, ok := s[p.ID]; ok {
			current = &rec
		}

		if st := cooldown.Check(e.policy, current, now); !st.Eligible {
			rank, err := ranking.Rank(s, p.ID)
			if err != nil {
				return err
			}
			out.Record, out.Rank, out.Next = *current, rank, st
			return record.ErrSkipSave
		}

		var base record.PlayerRecord
		if current != nil {
			base = *current
		}
		delta := e.roller.Roll()
		updated := base.Apply(p.Name, delta, now)
		s[p.ID] = updated

		rank, err := ranking.Rank(s, p.ID)
		if err != nil {
			return err
		}
		out.Attempted = true
		out.Delta = delta
		out.Record = updated
		out.Rank = rank
		out.Next = cooldown.Check(e.policy, &updated, now)
		return nil
	})
	if err != nil {
		log.Error("attempt failed", zap.Error(err))
		return Outcome{}, fmt.Errorf("attempt in scope %d: %w", scopeID, err)
	}

	if out.Attempted {
		log.Info("attempt applied",
			zap.Int("delta", out.Delta),
			zap.Int16("score", out.Record.Score),
			zap.Int("rank", out.Rank),
		)
	} else {
		log.Info("attempt on cooldown",
			zap.Duration("remaining", out.Next.Remaining),
			zap.Int("rank", out.Rank),
		)
	}
	return out, nil
}

// Top returns the first n leaderboard entries of the scope.
func (e *Engine) Top(ctx context.Context, scopeID int64, n int) ([]ranking.Entry, error) {
	s, err := e.repo.Load(ctx, scopeID)
	if err != nil {
		e.logger.Error("loading leaderboard",
			zap.Int64("scope", scopeID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("leaderboard for scope %d: %w", scopeID, err)
	}
	return ranking.Top(s, n), nil
}
