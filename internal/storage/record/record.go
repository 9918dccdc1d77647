// Package record defines the persisted per-scope player state and its
// at-rest encodings.
package record

import (
	"errors"
	"math"
	"time"
)

// Error kinds surfaced by the record stores and the migration tool.
// Callers match them with errors.Is; the underlying cause stays in the chain.
var (
	// ErrNotFound is returned when a required scope, file, or user is absent.
	ErrNotFound = errors.New("not found")
	// ErrParse is returned when bytes are not valid data in the expected encoding.
	ErrParse = errors.New("parse error")
	// ErrStorageCorrupt is returned when persisted data cannot be decoded
	// against the record schema.
	ErrStorageCorrupt = errors.New("storage corrupt")
	// ErrIO is returned when a filesystem or database operation fails.
	ErrIO = errors.New("i/o error")
)

// ErrSkipSave may be returned by an update callback to end the update
// without writing the scope. It is not reported as an error.
var ErrSkipSave = errors.New("skip save")

// PlayerRecord is the persisted game state of a single user within a scope.
type PlayerRecord struct {
	// Name is the display name captured at the user's latest attempt.
	Name string `json:"name"`
	// Score is the accumulated delta sum.
	Score int16 `json:"size"`
	// LastAttempt is the Unix time in seconds of the last successful attempt.
	LastAttempt int64 `json:"last"`
}

// LastAttemptTime returns LastAttempt as a time.Time.
func (p PlayerRecord) LastAttemptTime() time.Time {
	return time.Unix(p.LastAttempt, 0)
}

// Apply adds delta to the score and stamps the attempt time.
//
// Postcondition: Score saturates at the int16 bounds instead of wrapping.
func (p PlayerRecord) Apply(name string, delta int, now time.Time) PlayerRecord {
	return PlayerRecord{
		Name:        name,
		Score:       AddScore(p.Score, delta),
		LastAttempt: now.Unix(),
	}
}

// AddScore returns score+delta clamped to [math.MinInt16, math.MaxInt16].
func AddScore(score int16, delta int) int16 {
	sum := int(score) + delta
	switch {
	case sum > math.MaxInt16:
		return math.MaxInt16
	case sum < math.MinInt16:
		return math.MinInt16
	}
	return int16(sum)
}

// Scope maps user ids to their records within one chat.
// A Scope is loaded in full, mutated, and written back in full.
type Scope map[int64]PlayerRecord

// Clone returns an independent copy of s.
func (s Scope) Clone() Scope {
	out := make(Scope, len(s))
	for id, rec := range s {
		out[id] = rec
	}
	return out
}

// Get returns the record for userID or ErrNotFound.
func (s Scope) Get(userID int64) (PlayerRecord, error) {
	rec, ok := s[userID]
	if !ok {
		return PlayerRecord{}, ErrNotFound
	}
	return rec, nil
}
