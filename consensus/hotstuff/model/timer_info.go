package model

import (
	"time"

	"github.com/tari-project/tari-core/model/hotstuff"
)

// TimerInfo represents a phase timer started for a view.
type TimerInfo struct {
	View      hotstuff.ViewID
	StartTime time.Time
	Duration  time.Duration
}
