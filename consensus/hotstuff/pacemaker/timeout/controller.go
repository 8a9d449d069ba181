package timeout

import (
	"context"
	"math"
	"time"

	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
)

// Controller implements the following truncated exponential backoff:
//
//	duration = t_min * min(b ^ ((r-k) * θ(r-k)), t_max)
//
// For practical purpose we will transform this formula into:
//
//	duration(r) = t_min * b ^ (min((r-k) * θ(r-k)), c), where c = log_b (t_max / t_min).
//
// In described formula:
//
//	k - is number of views we expect to fail during the happy path, after failing this many views,
//	    we will start increasing timeouts.
//	b - timeout increase factor
//	r - failed views counter
//	θ - Heaviside step function
//	t_min/t_max - minimum/maximum phase duration
//
// By manipulating `r` after observing progress or lack thereof, we are achieving exponential increase/decrease
// of phase durations.
//   - on timeout: increase number of failed views, this results in exponential growing phase duration
//     on multiple subsequent timeouts, after exceeding k.
//   - on progress: decrease number of failed views, this results in exponential decrease of phase duration.
type Controller struct {
	cfg            Config
	timeoutChannel chan time.Time
	stopTicker     context.CancelFunc
	maxExponent    float64 // max exponent for exponential function, derived from maximum phase duration
	r              uint64  // failed views counter, higher value results in longer phase duration
}

// NewController creates a new Controller.
func NewController(timeoutConfig Config) *Controller {
	// the initial value for the timeout channel is a closed channel which returns immediately
	// this prevents indefinite blocking when no timeout has been started
	startChannel := make(chan time.Time)
	close(startChannel)

	// we need to calculate log_b(t_max/t_min), golang doesn't support logarithm with custom base
	// we will apply change of base logarithm transformation to get around this:
	// log_b(x) = log_e(x) / log_e(b)
	maxExponent := math.Log(timeoutConfig.MaxReplicaTimeout/timeoutConfig.MinReplicaTimeout) /
		math.Log(timeoutConfig.TimeoutAdjustmentFactor)

	tc := Controller{
		cfg:            timeoutConfig,
		timeoutChannel: startChannel,
		stopTicker:     func() {},
		maxExponent:    maxExponent,
	}
	return &tc
}

// Channel returns a channel that will receive the specific timeout.
// A new channel is created on each call of `StartTimeout`.
// Returns closed channel if no timer has been started.
func (t *Controller) Channel() <-chan time.Time {
	return t.timeoutChannel
}

// StartTimeout starts the timeout of the current phase of view and returns the timer info.
// The channel returned by Channel receives a single tick when the phase times out.
func (t *Controller) StartTimeout(ctx context.Context, view mhotstuff.ViewID) model.TimerInfo {
	t.stopTicker() // stop old timeout

	duration := t.ReplicaTimeout()
	t.timeoutChannel = make(chan time.Time, 1)

	var childContext context.Context
	childContext, t.stopTicker = context.WithCancel(ctx)
	go tickAfterTimeout(childContext, duration, t.timeoutChannel)

	return model.TimerInfo{View: view, StartTime: time.Now().UTC(), Duration: duration}
}

// Stop cancels the running timeout, if any.
func (t *Controller) Stop() {
	t.stopTicker()
}

// tickAfterTimeout waits for the timeout and sends the current time to `timeoutChannel`.
// When cancelling `ctx`, the timer stops without sending.
func tickAfterTimeout(ctx context.Context, duration time.Duration, timeoutChannel chan<- time.Time) {
	timer := time.NewTimer(duration)
	select {
	case t := <-timer.C:
		timeoutChannel <- t
	case <-ctx.Done():
		timer.Stop() // allows timer to be garbage collected (before it expires)
	}
}

// ReplicaTimeout returns the duration of the current phase before we time out.
func (t *Controller) ReplicaTimeout() time.Duration {
	return time.Duration(t.replicaTimeout() * float64(time.Millisecond))
}

// replicaTimeout returns the duration of the current phase in milliseconds before we time out
func (t *Controller) replicaTimeout() float64 {
	if t.r <= t.cfg.HappyPathMaxRoundFailures {
		return t.cfg.MinReplicaTimeout
	}
	r := float64(t.r - t.cfg.HappyPathMaxRoundFailures)
	if r >= t.maxExponent {
		return t.cfg.MaxReplicaTimeout
	}
	// compute timeout duration [in milliseconds]:
	return t.cfg.MinReplicaTimeout * math.Pow(t.cfg.TimeoutAdjustmentFactor, r)
}

// OnTimeout indicates to the Controller that a view was left because a phase timed out (unhappy path).
func (t *Controller) OnTimeout() {
	if float64(t.r) >= t.maxExponent+float64(t.cfg.HappyPathMaxRoundFailures) {
		return
	}
	t.r++
}

// OnProgressBeforeTimeout indicates to the Controller that progress was made _before_ the timeout was reached
func (t *Controller) OnProgressBeforeTimeout() {
	if t.r > 0 {
		t.r--
	}
}
