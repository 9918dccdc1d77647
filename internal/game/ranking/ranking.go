// Package ranking orders a scope's players by score.
package ranking

import (
	"fmt"
	"sort"

	"github.com/cory-johannsen/growbot/internal/storage/record"
)

// Entry is one row of a leaderboard.
type Entry struct {
	UserID int64
	Record record.PlayerRecord
	// Position is the 1-based rank.
	Position int
}

// Order returns every player in scope sorted by score descending. Equal
// scores are ordered by ascending user id so the result is reproducible.
func Order(scope record.Scope) []Entry {
	out := make([]Entry, 0, len(scope))
	for id, rec := range scope {
		out = append(out, Entry{UserID: id, Record: rec})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Record.Score != out[j].Record.Score {
			return out[i].Record.Score > out[j].Record.Score
		}
		return out[i].UserID < out[j].UserID
	})
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

// Rank returns the 1-based position of userID in Order(scope).
//
// Postcondition: Returns a value in [1, len(scope)], or an error wrapping
// record.ErrNotFound when userID has no record.
func Rank(scope record.Scope, userID int64) (int, error) {
	rec, ok := scope[userID]
	if !ok {
		return 0, fmt.Errorf("ranking user %d: %w", userID, record.ErrNotFound)
	}
	ahead := 0
	for id, other := range scope {
		if other.Score > rec.Score || (other.Score == rec.Score && id < userID) {
			ahead++
		}
	}
	return ahead + 1, nil
}

// Top returns the first n entries of Order(scope); all of them when n <= 0
// or n exceeds the scope size.
func Top(scope record.Scope, n int) []Entry {
	all := Order(scope)
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[:n]
}
