package timeout

import (
	"time"

	"github.com/tari-project/tari-core/consensus/hotstuff/model"
)

// Config contains the configuration parameters for the phase timeout
// Controller.
type Config struct {
	// MinReplicaTimeout is the minimum phase duration [Milliseconds]
	MinReplicaTimeout float64
	// MaxReplicaTimeout is the maximum phase duration [Milliseconds]
	MaxReplicaTimeout float64
	// TimeoutAdjustmentFactor is the factor the phase duration grows by per
	// failed view, once HappyPathMaxRoundFailures is exceeded
	TimeoutAdjustmentFactor float64
	// HappyPathMaxRoundFailures is the number of failed views tolerated
	// before the phase duration grows
	HappyPathMaxRoundFailures uint64
}

// NewConfig creates a new TimoutConfig.
func NewConfig(minReplicaTimeout, maxReplicaTimeout time.Duration, timeoutAdjustmentFactor float64, happyPathMaxRoundFailures uint64) (Config, error) {
	if minReplicaTimeout <= 0 {
		return Config{}, model.NewConfigurationErrorf("minReplicaTimeout must be a positive number[milliseconds]")
	}
	if maxReplicaTimeout < minReplicaTimeout {
		return Config{}, model.NewConfigurationErrorf("maxReplicaTimeout cannot be smaller than minReplicaTimeout")
	}
	if timeoutAdjustmentFactor <= 1 {
		return Config{}, model.NewConfigurationErrorf("timeoutAdjustmentFactor must be strictly bigger than 1")
	}
	return Config{
		MinReplicaTimeout:         float64(minReplicaTimeout.Milliseconds()),
		MaxReplicaTimeout:         float64(maxReplicaTimeout.Milliseconds()),
		TimeoutAdjustmentFactor:   timeoutAdjustmentFactor,
		HappyPathMaxRoundFailures: happyPathMaxRoundFailures,
	}, nil
}
