package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/growbot/internal/config"
	"github.com/cory-johannsen/growbot/internal/game/cooldown"
	"github.com/cory-johannsen/growbot/internal/game/dice"
	"github.com/cory-johannsen/growbot/internal/storage/file"
)

func TestBuildPolicyRolling(t *testing.T) {
	p, err := buildPolicy(config.GameConfig{CooldownPolicy: "rolling", CooldownWindow: 2 * time.Hour})
	require.NoError(t, err)
	last := time.Unix(1_700_000_000, 0)
	assert.Equal(t, last.Add(2*time.Hour), p.NextAttempt(last))
}

func TestBuildPolicyCalendar(t *testing.T) {
	p, err := buildPolicy(config.GameConfig{CooldownPolicy: "calendar", ResetSchedule: "0 0 * * *", Timezone: "UTC"})
	require.NoError(t, err)
	_, ok := p.(*cooldown.CalendarPolicy)
	assert.True(t, ok)

	last := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	assert.True(t, p.NextAttempt(last).Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
}

func TestBuildPolicyErrors(t *testing.T) {
	_, err := buildPolicy(config.GameConfig{CooldownPolicy: "calendar", ResetSchedule: "nope", Timezone: "UTC"})
	assert.Error(t, err)

	p, err := buildPolicy(config.GameConfig{CooldownPolicy: "weekly"})
	assert.Error(t, err)
	assert.Nil(t, p)
}

func TestBuildTable(t *testing.T) {
	tbl, err := buildTable(config.GameConfig{})
	require.NoError(t, err)
	assert.Equal(t, dice.DefaultTable(), tbl)

	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ranges:\n  - {min: 1, max: 3, weight: 1}\n"), 0o644))
	tbl, err = buildTable(config.GameConfig{WeightsFile: path})
	require.NoError(t, err)
	assert.Equal(t, dice.Table{{Min: 1, Max: 3, Weight: 1}}, tbl)
}

func TestOpenRepositoryFile(t *testing.T) {
	cfg := config.Config{Storage: config.StorageConfig{Root: t.TempDir(), Backend: "file", Format: "text"}}
	repo, closeFn, err := openRepository(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer closeFn()

	store, ok := repo.(*file.Store)
	require.True(t, ok)
	assert.Equal(t, ".json", filepath.Ext(store.Path(1)))
}

func TestOpenRepositoryUnknownBackend(t *testing.T) {
	cfg := config.Config{Storage: config.StorageConfig{Backend: "redis"}}
	_, closeFn, err := openRepository(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
	assert.NotPanics(t, closeFn)
}
