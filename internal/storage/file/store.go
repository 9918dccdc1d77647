// Package file provides the file-backed record store: one file per scope,
// named by the content hash of the scope id, plus the text-to-binary
// migration.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cory-johannsen/growbot/internal/storage/record"
)

// Store persists each scope as root/<md5(scope id)>.<ext>.
// All methods are safe for concurrent use; operations on the same scope
// are serialized.
type Store struct {
	root   string
	format record.Format
	logger *zap.Logger
	locks  *scopeLocks
}

// NewStore creates a Store rooted at root that writes format.
//
// Precondition: root must be non-empty; logger must be non-nil.
// Postcondition: No filesystem access happens until the first operation.
func NewStore(root string, format record.Format, logger *zap.Logger) *Store {
	return &Store{
		root:   root,
		format: format,
		logger: logger,
		locks:  newScopeLocks(),
	}
}

// Root returns the storage root directory.
func (s *Store) Root() string { return s.root }

// Path returns the file the scope is written to.
func (s *Store) Path(scopeID int64) string {
	return s.pathFor(scopeID, s.format)
}

func (s *Store) pathFor(scopeID int64, f record.Format) string {
	return filepath.Join(s.root, record.ScopeName(scopeID)+f.Ext())
}

// Load returns the persisted scope. A scope with no file is created empty
// and written immediately.
//
// Postcondition: Returns the scope, or an error wrapping record.ErrIO or
// record.ErrStorageCorrupt.
func (s *Store) Load(ctx context.Context, scopeID int64) (record.Scope, error) {
	release, err := s.locks.acquire(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.load(scopeID)
}

// Save overwrites the scope's file with the full contents of scope.
//
// Postcondition: On success the file holds exactly scope; on failure the
// previous file contents are untouched.
func (s *Store) Save(ctx context.Context, scopeID int64, scope record.Scope) error {
	release, err := s.locks.acquire(ctx, scopeID)
	if err != nil {
		return err
	}
	defer release()
	return s.save(scopeID, scope)
}

// Update loads the scope, calls fn to mutate it, and saves it, holding the
// scope exclusively for the whole sequence. If fn returns an error nothing
// is saved; record.ErrSkipSave ends the update successfully without a write.
//
// Postcondition: Returns the saved scope or the first error encountered.
func (s *Store) Update(ctx context.Context, scopeID int64, fn func(record.Scope) error) (record.Scope, error) {
	release, err := s.locks.acquire(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	defer release()

	scope, err := s.load(scopeID)
	if err != nil {
		return nil, err
	}
	if err := fn(scope); err != nil {
		if errors.Is(err, record.ErrSkipSave) {
			return scope, nil
		}
		return nil, err
	}
	if err := s.save(scopeID, scope); err != nil {
		return nil, err
	}
	return scope, nil
}

func (s *Store) load(scopeID int64) (record.Scope, error) {
	for _, f := range []record.Format{s.format, s.format.Other()} {
		path := s.pathFor(scopeID, f)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", record.ErrIO, path, err)
		}
		scope, err := s.decode(scopeID, path, f, data)
		if err != nil {
			return nil, err
		}
		if f != s.format {
			s.logger.Info("loaded scope from alternate format",
				zap.Int64("scope", scopeID),
				zap.String("path", path),
				zap.Stringer("format", f),
			)
		}
		return scope, nil
	}

	scope := make(record.Scope)
	if err := s.save(scopeID, scope); err != nil {
		return nil, err
	}
	s.logger.Debug("created empty scope", zap.Int64("scope", scopeID))
	return scope, nil
}

// decode parses data read from path as f, then as f's fallback format.
//
// Postcondition: On failure the error wraps ErrStorageCorrupt and the cause
// reported by f.
func (s *Store) decode(scopeID int64, path string, f record.Format, data []byte) (record.Scope, error) {
	scope, err := f.Codec().Decode(data)
	if err == nil {
		return scope, nil
	}
	if alt, ok := f.Fallback(); ok {
		if legacy, altErr := alt.Codec().Decode(data); altErr == nil {
			s.logger.Info("loaded scope from earlier encoding",
				zap.Int64("scope", scopeID),
				zap.String("path", path),
				zap.Stringer("format", alt),
			)
			return legacy, nil
		}
	}
	return nil, fmt.Errorf("%w: decoding %s: %w", record.ErrStorageCorrupt, path, err)
}

func (s *Store) save(scopeID int64, scope record.Scope) error {
	data, err := s.format.Codec().Encode(scope)
	if err != nil {
		return fmt.Errorf("encoding scope %d: %w", scopeID, err)
	}
	path := s.Path(scopeID)
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}
	s.logger.Debug("saved scope",
		zap.Int64("scope", scopeID),
		zap.Int("players", len(scope)),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// writeFileAtomic writes data to a temporary file beside path and renames it
// into place, creating the parent directory if needed.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", record.ErrIO, dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file in %s: %w", record.ErrIO, dir, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("%w: writing %s: %w", record.ErrIO, tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: syncing %s: %w", record.ErrIO, tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", record.ErrIO, tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", record.ErrIO, tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: renaming into %s: %w", record.ErrIO, path, err)
	}
	return nil
}
