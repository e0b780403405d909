package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rocketscienceinc/tictactoe-brain/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	t.Run("Defaults fill missing fields", func(t *testing.T) {
		// Given: a config with only the log level
		path := writeConfig(t, "log-level: debug\n")

		// When: it is loaded
		conf, err := Load(path)

		// Then: every other field has its default
		require.NoError(t, err)
		assert.Equal(t, "debug", conf.LogLevel)
		assert.Equal(t, "9090", conf.HTTPPort)
		assert.Equal(t, "localhost:6379", conf.Redis.GetRedisAddr())
		assert.Equal(t, StorageMemory, conf.SessionStore)
		assert.InDelta(t, 2.0, conf.Brain.Falloff, 1e-12)
		assert.InDelta(t, 0.01, conf.Brain.Epsilon, 1e-12)
		assert.Equal(t, StorageFile, conf.Brain.Storage)
		assert.Equal(t, "brain1.json", conf.Brain.FileX)
		assert.Equal(t, "brain2.json", conf.Brain.FileO)
		assert.False(t, conf.Brain.Fresh)
		assert.InDelta(t, 1.0, conf.Rewards.Win, 1e-12)
		assert.InDelta(t, -0.33, conf.Rewards.Lose, 1e-12)
		assert.InDelta(t, 0.2, conf.Rewards.Draw, 1e-12)
		assert.InDelta(t, 0.5, conf.Rewards.Block, 1e-12)
		assert.Equal(t, 10000, conf.Training.CheckpointEvery)
		assert.Equal(t, "O", conf.Bot.Mark)
	})

	t.Run("File values win over defaults", func(t *testing.T) {
		path := writeConfig(t, `
session-store: redis
brain:
  storage: redis
  falloff: 3
  fresh: true
training:
  epochs: 50
  checkpoint-every: 10
bot:
  mark: X
  learn: true
`)

		conf, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, StorageRedis, conf.SessionStore)
		assert.Equal(t, StorageRedis, conf.Brain.Storage)
		assert.InDelta(t, 3.0, conf.Brain.Falloff, 1e-12)
		assert.True(t, conf.Brain.Fresh)
		assert.Equal(t, 50, conf.Training.Epochs)
		assert.Equal(t, 10, conf.Training.CheckpointEvery)
		assert.Equal(t, "X", conf.Bot.Mark)
		assert.True(t, conf.Bot.Learn)
	})

	t.Run("Zero values in the file are kept", func(t *testing.T) {
		// Given: every zero-meaningful setting set to 0
		path := writeConfig(t, `
brain:
  epsilon: 0
rewards:
  win: 0
  lose: 0
  draw: 0
  block: 0
training:
  checkpoint-every: 0
`)

		// When: it is loaded
		conf, err := Load(path)

		// Then: no default replaced them
		require.NoError(t, err)
		assert.Zero(t, conf.Brain.Epsilon)
		assert.Zero(t, conf.Rewards.Win)
		assert.Zero(t, conf.Rewards.Lose)
		assert.Zero(t, conf.Rewards.Draw)
		assert.Zero(t, conf.Rewards.Block)
		assert.Zero(t, conf.Training.CheckpointEvery)
	})

	t.Run("Zero values from the environment are kept", func(t *testing.T) {
		t.Setenv("REWARD_BLOCK", "0")
		t.Setenv("TRAINING_CHECKPOINT_EVERY", "0")
		path := writeConfig(t, "rewards:\n  block: 0.7\n")

		conf, err := Load(path)

		require.NoError(t, err)
		assert.Zero(t, conf.Rewards.Block)
		assert.Zero(t, conf.Training.CheckpointEvery)
	})

	t.Run("Environment overrides the file", func(t *testing.T) {
		t.Setenv("HTTP_PORT", "8181")
		path := writeConfig(t, "http-port: \"7070\"\n")

		conf, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, "8181", conf.HTTPPort)
	})

	t.Run("Error on unsupported storage", func(t *testing.T) {
		path := writeConfig(t, "brain:\n  storage: sqlite\n")

		_, err := Load(path)

		require.ErrorIs(t, err, apperror.ErrUnsupportedStorage)
	})

	t.Run("Error on negative falloff", func(t *testing.T) {
		path := writeConfig(t, "brain:\n  falloff: -1\n")

		_, err := Load(path)

		require.ErrorIs(t, err, apperror.ErrInvalidFalloff)
	})

	t.Run("Error on missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))

		require.Error(t, err)
	})
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(filepath.Join(t.TempDir(), "absent.yml"))
	})
}
