package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tari-project/tari-core/consensus/rules"
	"github.com/tari-project/tari-core/utils/unittest"
)

func TestDefaultConfig(t *testing.T) {
	config, err := Load("", nil)
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), config); diff != "" {
		t.Fatalf("loaded config differs from defaults (-want +got):\n%s", diff)
	}

	level, err := config.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, level)

	manager, err := config.Rules()
	require.NoError(t, err)
	assert.Equal(t, rules.LocalNet, manager.Network())

	timeouts, err := config.HotStuff.TimeoutConfig()
	require.NoError(t, err)
	assert.Equal(t, float64(2000), timeouts.MinReplicaTimeout)
	assert.Equal(t, float64(30000), timeouts.MaxReplicaTimeout)

	assert.Equal(t, config.Sync.BatchSize, config.Sync.ChainSyncConfig().MaxSize)
	assert.Equal(t, config.HotStuff.MaxRetries, config.HotStuff.WorkerConfig().MaxRetries)
}

func TestLoad_Precedence(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		path := filepath.Join(dir, "config.yaml")
		err := os.WriteFile(path, []byte(`
network: esmeralda
log:
  level: debug
validation:
  workers: 8
hotstuff:
  min-phase-timeout: 500ms
  max-phase-timeout: 5s
`), 0o600)
		require.NoError(t, err)

		t.Setenv("TARI_VALIDATION_WORKERS", "16")
		t.Setenv("TARI_SYNC_BATCH_SIZE", "128")

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		InitializeFlags(flags, DefaultConfig())
		require.NoError(t, flags.Parse([]string{"--hotstuff-max-phase-timeout=10s", "--in-memory"}))

		config, err := Load(path, flags)
		require.NoError(t, err)

		// file
		assert.Equal(t, "esmeralda", config.Network)
		assert.Equal(t, "debug", config.Log.Level)
		assert.Equal(t, 500*time.Millisecond, config.HotStuff.MinPhaseTimeout)
		// environment over file
		assert.Equal(t, 16, config.Validation.Workers)
		assert.Equal(t, uint64(128), config.Sync.BatchSize)
		// flags over file
		assert.Equal(t, 10*time.Second, config.HotStuff.MaxPhaseTimeout)
		assert.True(t, config.Storage.InMemory)
		// untouched defaults
		assert.Equal(t, DefaultConfig().Sync.BatchDeadline, config.Sync.BatchDeadline)
	})
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(os.TempDir(), "does-not-exist.yaml"), nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})

	t.Run("all violations are reported", func(t *testing.T) {
		config := DefaultConfig()
		config.Network = "mainnet"
		config.Validation.Workers = 0
		config.HotStuff.MaxPhaseTimeout = time.Second
		config.HotStuff.MinPhaseTimeout = 2 * time.Second
		config.HotStuff.TimeoutAdjustmentFactor = 1

		err := config.Validate()
		require.Error(t, err)
		for _, field := range []string{"Network", "Workers", "MaxPhaseTimeout", "TimeoutAdjustmentFactor"} {
			assert.Contains(t, err.Error(), field)
		}
	})

	t.Run("data directory", func(t *testing.T) {
		config := DefaultConfig()
		config.Storage.Dir = ""
		assert.Error(t, config.Validate())

		config.Storage.InMemory = true
		assert.NoError(t, config.Validate())
	})
}
