// Package config holds the node configuration. Defaults are defined in code
// and can be overridden by a config file, TARI_ prefixed environment
// variables and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tari-project/tari-core/consensus/hotstuff/pacemaker/timeout"
	"github.com/tari-project/tari-core/consensus/hotstuff/replica"
	"github.com/tari-project/tari-core/consensus/rules"
	"github.com/tari-project/tari-core/module/chainsync"
)

const envPrefix = "TARI"

// NodeConfig is the configuration of a node.
type NodeConfig struct {
	Network    string           `mapstructure:"network" validate:"oneof=localnet esmeralda"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Validation ValidationConfig `mapstructure:"validation"`
	Sync       SyncConfig       `mapstructure:"sync"`
	HotStuff   HotStuffConfig   `mapstructure:"hotstuff"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	// Console switches from JSON to human readable output.
	Console bool `mapstructure:"console"`
}

type StorageConfig struct {
	Dir      string `mapstructure:"dir" validate:"required_unless=InMemory true"`
	InMemory bool   `mapstructure:"in-memory"`
}

type ValidationConfig struct {
	// Workers is the number of goroutines validating blocks.
	Workers int `mapstructure:"workers" validate:"gt=0,lte=256"`
	// BypassRangeProofs skips range proof verification of revalidated bodies.
	BypassRangeProofs bool `mapstructure:"bypass-range-proofs"`
}

type SyncConfig struct {
	Tolerance     uint64        `mapstructure:"tolerance"`
	BatchSize     uint64        `mapstructure:"batch-size" validate:"gt=0"`
	BatchDeadline time.Duration `mapstructure:"batch-deadline" validate:"gt=0"`
	RetryInterval time.Duration `mapstructure:"retry-interval" validate:"gt=0"`
	MaxAttempts   uint64        `mapstructure:"max-attempts" validate:"gt=0"`
}

type HotStuffConfig struct {
	MinPhaseTimeout           time.Duration `mapstructure:"min-phase-timeout" validate:"gt=0"`
	MaxPhaseTimeout           time.Duration `mapstructure:"max-phase-timeout" validate:"gtefield=MinPhaseTimeout"`
	TimeoutAdjustmentFactor   float64       `mapstructure:"timeout-adjustment-factor" validate:"gt=1"`
	HappyPathMaxRoundFailures uint64        `mapstructure:"happy-path-max-round-failures"`
	MaxRetries                uint64        `mapstructure:"max-retries"`
	RetryBackoff              time.Duration `mapstructure:"retry-backoff" validate:"gt=0"`
	DeferredCapacity          int           `mapstructure:"deferred-capacity" validate:"gt=0"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *NodeConfig {
	sync := chainsync.DefaultConfig()
	worker := replica.DefaultConfig()
	return &NodeConfig{
		Network: string(rules.LocalNet),
		Log: LogConfig{
			Level: zerolog.InfoLevel.String(),
		},
		Storage: StorageConfig{
			Dir: "data",
		},
		Validation: ValidationConfig{
			Workers: 4,
		},
		Sync: SyncConfig{
			Tolerance:     sync.Tolerance,
			BatchSize:     sync.MaxSize,
			BatchDeadline: sync.BatchDeadline,
			RetryInterval: sync.RetryInterval,
			MaxAttempts:   sync.MaxAttempts,
		},
		HotStuff: HotStuffConfig{
			MinPhaseTimeout:           2 * time.Second,
			MaxPhaseTimeout:           30 * time.Second,
			TimeoutAdjustmentFactor:   1.5,
			HappyPathMaxRoundFailures: 6,
			MaxRetries:                worker.MaxRetries,
			RetryBackoff:              worker.RetryBackoff,
			DeferredCapacity:          worker.DeferredCapacity,
		},
	}
}

// flag name -> config key
var flagKeys = map[string]string{
	"network":                      "network",
	"loglevel":                     "log.level",
	"log-console":                  "log.console",
	"datadir":                      "storage.dir",
	"in-memory":                    "storage.in-memory",
	"validation-workers":           "validation.workers",
	"bypass-range-proofs":          "validation.bypass-range-proofs",
	"sync-batch-size":              "sync.batch-size",
	"sync-batch-deadline":          "sync.batch-deadline",
	"hotstuff-min-phase-timeout":   "hotstuff.min-phase-timeout",
	"hotstuff-max-phase-timeout":   "hotstuff.max-phase-timeout",
	"hotstuff-timeout-adjustment":  "hotstuff.timeout-adjustment-factor",
	"hotstuff-happy-path-failures": "hotstuff.happy-path-max-round-failures",
}

// InitializeFlags registers the command line overrides with their defaults
// taken from config.
func InitializeFlags(flags *pflag.FlagSet, config *NodeConfig) {
	flags.String("network", config.Network, "the network whose consensus rules are used (localnet, esmeralda)")
	flags.String("loglevel", config.Log.Level, "level for logging output")
	flags.Bool("log-console", config.Log.Console, "write human readable logs instead of JSON")
	flags.String("datadir", config.Storage.Dir, "directory of the badger databases")
	flags.Bool("in-memory", config.Storage.InMemory, "keep all databases in memory")
	flags.Int("validation-workers", config.Validation.Workers, "number of goroutines validating blocks")
	flags.Bool("bypass-range-proofs", config.Validation.BypassRangeProofs, "skip range proof verification when revalidating bodies")
	flags.Uint64("sync-batch-size", config.Sync.BatchSize, "number of headers validated per sync batch")
	flags.Duration("sync-batch-deadline", config.Sync.BatchDeadline, "time allowed to validate one sync batch")
	flags.Duration("hotstuff-min-phase-timeout", config.HotStuff.MinPhaseTimeout, "the lower timeout bound of a consensus phase")
	flags.Duration("hotstuff-max-phase-timeout", config.HotStuff.MaxPhaseTimeout, "the upper timeout bound of a consensus phase")
	flags.Float64("hotstuff-timeout-adjustment", config.HotStuff.TimeoutAdjustmentFactor, "the factor a phase timeout grows by after a failed view")
	flags.Uint64("hotstuff-happy-path-failures", config.HotStuff.HappyPathMaxRoundFailures, "the number of failed views before phase timeouts grow")
}

// Load reads the configuration. An empty path skips the config file. flags
// may be nil; only flags that were explicitly set override other sources.
func Load(path string, flags *pflag.FlagSet) (*NodeConfig, error) {
	conf := viper.New()
	setDefaults(conf, DefaultConfig())

	var err error
	if path != "" {
		conf.SetConfigFile(path)
		err = conf.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", path, err)
		}
	}

	conf.SetEnvPrefix(envPrefix)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	conf.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			err = conf.BindPFlag(key, flag)
			if err != nil {
				return nil, fmt.Errorf("could not bind flag %s: %w", name, err)
			}
		}
	}

	config := &NodeConfig{}
	err = conf.Unmarshal(config)
	if err != nil {
		return nil, fmt.Errorf("could not decode configuration: %w", err)
	}
	err = config.Validate()
	if err != nil {
		return nil, err
	}
	return config, nil
}

// setDefaults registers every leaf of config as a default so that
// environment variables can override keys missing from the config file.
func setDefaults(conf *viper.Viper, config *NodeConfig) {
	defaults := map[string]interface{}{}
	defaults["network"] = config.Network
	defaults["log.level"] = config.Log.Level
	defaults["log.console"] = config.Log.Console
	defaults["storage.dir"] = config.Storage.Dir
	defaults["storage.in-memory"] = config.Storage.InMemory
	defaults["validation.workers"] = config.Validation.Workers
	defaults["validation.bypass-range-proofs"] = config.Validation.BypassRangeProofs
	defaults["sync.tolerance"] = config.Sync.Tolerance
	defaults["sync.batch-size"] = config.Sync.BatchSize
	defaults["sync.batch-deadline"] = config.Sync.BatchDeadline
	defaults["sync.retry-interval"] = config.Sync.RetryInterval
	defaults["sync.max-attempts"] = config.Sync.MaxAttempts
	defaults["hotstuff.min-phase-timeout"] = config.HotStuff.MinPhaseTimeout
	defaults["hotstuff.max-phase-timeout"] = config.HotStuff.MaxPhaseTimeout
	defaults["hotstuff.timeout-adjustment-factor"] = config.HotStuff.TimeoutAdjustmentFactor
	defaults["hotstuff.happy-path-max-round-failures"] = config.HotStuff.HappyPathMaxRoundFailures
	defaults["hotstuff.max-retries"] = config.HotStuff.MaxRetries
	defaults["hotstuff.retry-backoff"] = config.HotStuff.RetryBackoff
	defaults["hotstuff.deferred-capacity"] = config.HotStuff.DeferredCapacity
	for key, value := range defaults {
		conf.SetDefault(key, value)
	}
}

var validate = validator.New()

// Validate checks every field and reports all violations together.
func (c *NodeConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("could not validate configuration: %w", err)
	}
	var result *multierror.Error
	for _, fe := range fieldErrors {
		result = multierror.Append(result, fmt.Errorf("invalid value %v for %s: failed %s", fe.Value(), fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %w", result.ErrorOrNil())
}

// LogLevel returns the parsed log level.
func (c *NodeConfig) LogLevel() (zerolog.Level, error) {
	return zerolog.ParseLevel(c.Log.Level)
}

// Rules returns the consensus rules of the configured network.
func (c *NodeConfig) Rules() (*rules.Manager, error) {
	network, err := rules.ParseNetwork(c.Network)
	if err != nil {
		return nil, err
	}
	return rules.NewManager(network)
}

// TimeoutConfig returns the phase timeout configuration of the replicas.
func (c HotStuffConfig) TimeoutConfig() (timeout.Config, error) {
	return timeout.NewConfig(c.MinPhaseTimeout, c.MaxPhaseTimeout, c.TimeoutAdjustmentFactor, c.HappyPathMaxRoundFailures)
}

// WorkerConfig returns the configuration of a consensus worker.
func (c HotStuffConfig) WorkerConfig() replica.Config {
	return replica.Config{
		MaxRetries:       c.MaxRetries,
		RetryBackoff:     c.RetryBackoff,
		DeferredCapacity: c.DeferredCapacity,
	}
}

// ChainSyncConfig returns the configuration of the horizon sync.
func (c SyncConfig) ChainSyncConfig() chainsync.Config {
	return chainsync.Config{
		Tolerance:     c.Tolerance,
		MaxSize:       c.BatchSize,
		BatchDeadline: c.BatchDeadline,
		RetryInterval: c.RetryInterval,
		MaxAttempts:   c.MaxAttempts,
	}
}
