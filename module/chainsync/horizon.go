package chainsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/module"
	"github.com/tari-project/tari-core/module/validation"
	"github.com/tari-project/tari-core/storage"
	bstorage "github.com/tari-project/tari-core/storage/badger"
)

// ErrSyncAborted is returned when the peer stops serving headers or state
// before the horizon height is reached.
var ErrSyncAborted = errors.New("horizon sync aborted")

type Config struct {
	Tolerance     uint64        // the lag behind the peer tolerated before syncing
	MaxSize       uint64        // the number of headers fetched and added per batch
	BatchDeadline time.Duration // the time allowed to validate and add one batch, and to check the horizon state
	RetryInterval time.Duration // the initial interval before a failed fetch is retried, uses exponential backoff
	MaxAttempts   uint64        // the number of attempts per fetch before the sync fails
}

func DefaultConfig() Config {
	return Config{
		Tolerance:     0,
		MaxSize:       64,
		BatchDeadline: 30 * time.Second,
		RetryInterval: 500 * time.Millisecond,
		MaxAttempts:   3,
	}
}

// HorizonSource serves the headers and the horizon state of a peer's main
// chain.
type HorizonSource interface {
	ChainMetadata() (*chain.ChainMetadata, error)
	FetchHeader(height uint64) (*chain.BlockHeader, error)
	FetchHorizonState(from, to uint64) (*storage.HorizonState, error)
}

// HorizonSink is the local chain the synced headers and state are added to.
type HorizonSink interface {
	ChainMetadata() (*chain.ChainMetadata, error)
	AddHeader(header *chain.BlockHeader, peer string) error
	InsertHorizonState(state *storage.HorizonState) error
	RewindToHeight(height uint64) error
}

var _ HorizonSource = (*bstorage.BlockchainDatabase)(nil)
var _ HorizonSink = (*bstorage.BlockchainDatabase)(nil)

// HorizonSync brings the local chain up to the tip of a peer without
// downloading block bodies. Headers are validated and added in batches on
// the validation executor. The output and kernel sets at the horizon height
// are then downloaded, checked against the synced headers and the chain
// balance, and stored.
//
// If the sync fails, the headers it added are rewound. A HorizonSync runs
// one sync at a time.
type HorizonSync struct {
	log      zerolog.Logger
	config   Config
	metrics  module.SyncMetrics
	local    HorizonSink
	backend  storage.ChainBackend
	executor *validation.Executor
	balance  *validation.ChainBalanceValidator
}

func NewHorizonSync(
	log zerolog.Logger,
	config Config,
	metrics module.SyncMetrics,
	local HorizonSink,
	backend storage.ChainBackend,
	executor *validation.Executor,
	balance *validation.ChainBalanceValidator,
) (*HorizonSync, error) {
	if config.MaxSize == 0 || config.MaxAttempts == 0 {
		return nil, fmt.Errorf("batch size and attempts must be positive")
	}
	if config.BatchDeadline <= 0 || config.RetryInterval <= 0 {
		return nil, fmt.Errorf("batch deadline and retry interval must be positive")
	}
	return &HorizonSync{
		log:      log.With().Str("component", "horizon_sync").Logger(),
		config:   config,
		metrics:  metrics,
		local:    local,
		backend:  backend,
		executor: executor,
		balance:  balance,
	}, nil
}

// Sync fetches the headers between the local tip and the tip of source, then
// the horizon state at the tip, and adds both to the local chain. Progress is
// reported on events, which is closed when Sync returns. A nil events channel
// disables reporting.
//
// Expected errors during normal operations:
//   - validation errors (see module/validation) if the peer served an invalid header or state
//   - validation.ChainBalanceValidationFailedError if the horizon state does not balance
//   - validation.InfrastructureError wrapping context.DeadlineExceeded if a batch missed its deadline
//   - ErrSyncAborted if the peer failed to serve a header or the state
func (s *HorizonSync) Sync(ctx context.Context, peer string, source HorizonSource, events chan<- SyncEvent) error {
	if events != nil {
		defer close(events)
	}
	session := uuid.New()
	log := s.log.With().Str("peer_id", peer).Str("sync_id", session.String()).Logger()
	report := func(event SyncEvent) {
		event.Session = session
		event.Peer = peer
		s.emit(ctx, events, event)
	}

	err := s.sync(ctx, log, peer, source, report)
	if err != nil {
		s.metrics.SyncFinished(false)
		log.Warn().Err(err).Str("error_kind", validation.ErrorKind(err)).Msg("horizon sync failed")
		report(SyncEvent{Status: StatusFailed, Err: err})
		return err
	}
	s.metrics.SyncFinished(true)
	return nil
}

func (s *HorizonSync) sync(ctx context.Context, log zerolog.Logger, peer string, source HorizonSource, report func(SyncEvent)) error {
	local, err := s.local.ChainMetadata()
	if err != nil {
		return validation.NewInfrastructureErrorf("could not read local chain metadata: %w", err)
	}
	remote, err := source.ChainMetadata()
	if err != nil {
		return fmt.Errorf("could not read chain metadata of %s: %w: %v", peer, ErrSyncAborted, err)
	}

	start := local.HeightOfLongestChain
	target := remote.HeightOfLongestChain
	if target <= start+s.config.Tolerance {
		log.Debug().Uint64("height", start).Uint64("target", target).Msg("within tolerance, not syncing")
		report(SyncEvent{Status: StatusComplete, Height: start, Target: target})
		return nil
	}

	log.Info().Uint64("height", start).Uint64("target", target).Msg("starting horizon sync")
	report(SyncEvent{Status: StatusStarting, Height: start, Target: target})

	err = s.syncHorizon(ctx, log, peer, source, start, target, report)
	if err != nil {
		rewindErr := s.local.RewindToHeight(start)
		if rewindErr != nil {
			return multierror.Append(err, fmt.Errorf("could not rewind synced headers: %w", rewindErr))
		}
		return err
	}

	log.Info().Uint64("height", target).Msg("horizon state validated, sync complete")
	report(SyncEvent{Status: StatusComplete, Height: target, Target: target})
	return nil
}

// syncHorizon adds the headers from start+1 to target, then the horizon state
// over the same range.
func (s *HorizonSync) syncHorizon(
	ctx context.Context,
	log zerolog.Logger,
	peer string,
	source HorizonSource,
	start, target uint64,
	report func(SyncEvent),
) error {
	height := start
	for height < target {
		end := height + s.config.MaxSize
		if end > target {
			end = target
		}
		err := s.syncHeaders(ctx, peer, source, height+1, end)
		if err != nil {
			return err
		}
		height = end
		s.metrics.SyncProgress(height, target)
		log.Debug().Uint64("height", height).Uint64("target", target).Msg("synced header batch")
		report(SyncEvent{Status: StatusSyncing, Height: height, Target: target})
	}

	report(SyncEvent{Status: StatusFinalizing, Height: height, Target: target})
	state, err := s.fetchState(ctx, source, start+1, target)
	if err != nil {
		return err
	}
	log.Debug().
		Int("outputs", len(state.Outputs)).
		Int("spent", len(state.Spent)).
		Int("kernels", len(state.Kernels)).
		Msg("downloaded horizon state")
	return s.finalize(ctx, state, start+1, target)
}

// syncHeaders fetches the headers from start to end and adds them under the
// batch deadline.
func (s *HorizonSync) syncHeaders(ctx context.Context, peer string, source HorizonSource, start, end uint64) error {
	headers := make([]*chain.BlockHeader, 0, end-start+1)
	for h := start; h <= end; h++ {
		header, err := s.fetchHeader(ctx, source, h)
		if err != nil {
			return err
		}
		headers = append(headers, header)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.BatchDeadline)
	defer cancel()
	writes := &fence{}
	defer writes.close()
	return s.executor.Run(ctx, "sync_headers", func() error {
		for _, header := range headers {
			header := header
			err := writes.do(ctx, func() error {
				return s.local.AddHeader(header, peer)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// fetchHeader reads one header from source, retrying failures with a backoff.
func (s *HorizonSync) fetchHeader(ctx context.Context, source HorizonSource, height uint64) (*chain.BlockHeader, error) {
	var header *chain.BlockHeader
	err := s.retry(ctx, func() error {
		var err error
		header, err = source.FetchHeader(height)
		if err != nil {
			s.log.Debug().Err(err).Uint64("height", height).Msg("could not fetch header, retrying")
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not fetch header #%d: %w: %v", height, ErrSyncAborted, err)
	}
	if header.Height != height {
		return nil, validation.NewInvalidBlockErrorf(height, "peer served header #%d", header.Height)
	}
	return header, nil
}

// fetchState reads the horizon state from source, retrying failures with a
// backoff.
func (s *HorizonSync) fetchState(ctx context.Context, source HorizonSource, from, to uint64) (*storage.HorizonState, error) {
	var state *storage.HorizonState
	err := s.retry(ctx, func() error {
		var err error
		state, err = source.FetchHorizonState(from, to)
		if err != nil {
			s.log.Debug().Err(err).Uint64("from", from).Uint64("to", to).Msg("could not fetch horizon state, retrying")
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not fetch horizon state: %w: %v", ErrSyncAborted, err)
	}
	return state, nil
}

func (s *HorizonSync) retry(ctx context.Context, fetch func() error) error {
	backoff := retry.WithMaxRetries(s.config.MaxAttempts-1, retry.NewExponential(s.config.RetryInterval))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fetch()
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// finalize checks that every entry of the horizon state belongs to a synced
// header and that the chain balances with the state applied, then stores it.
func (s *HorizonSync) finalize(ctx context.Context, state *storage.HorizonState, from, to uint64) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.BatchDeadline)
	defer cancel()
	writes := &fence{}
	defer writes.close()
	return s.executor.Run(ctx, "horizon_state", func() error {
		err := s.checkOrigins(state, from, to)
		if err != nil {
			return err
		}
		view := newHorizonView(s.backend, state)
		utxo, kernels, err := validation.CalculateChainBalanceSums(view)
		if err != nil {
			return err
		}
		err = s.balance.Validate(to, utxo, kernels, view)
		if err != nil {
			return err
		}
		return writes.do(ctx, func() error {
			return s.local.InsertHorizonState(state)
		})
	})
}

// checkOrigins verifies that every output and kernel was mined, and every
// spent output was spent, by a header in [from, to] of the local chain.
func (s *HorizonSync) checkOrigins(state *storage.HorizonState, from, to uint64) error {
	if state.Height != to {
		return validation.NewInvalidBlockErrorf(to, "horizon state taken at height %d, expected %d", state.Height, to)
	}
	hashes := make(map[uint64]chain.Hash, to-from+1)
	check := func(height uint64, hash chain.Hash, what string) error {
		if height < from || height > to {
			return validation.NewInvalidBlockErrorf(height, "horizon %s outside of synced range [%d, %d]", what, from, to)
		}
		expected, ok := hashes[height]
		if !ok {
			header, err := s.backend.HeaderByHeight(height)
			if err != nil {
				return validation.NewInfrastructureErrorf("could not read header #%d: %w", height, err)
			}
			expected = header.Hash()
			hashes[height] = expected
		}
		if hash != expected {
			return validation.NewInvalidBlockErrorf(height, "horizon %s references unknown block %s", what, hash)
		}
		return nil
	}

	for i := range state.Outputs {
		err := check(state.Outputs[i].MinedHeight, state.Outputs[i].HeaderHash, "output")
		if err != nil {
			return err
		}
	}
	for i := range state.Spent {
		err := check(state.Spent[i].Spent.SpentHeight, state.Spent[i].Spent.HeaderHash, "spend")
		if err != nil {
			return err
		}
		record, err := s.backend.FetchOutput(state.Spent[i].OutputHash)
		if errors.Is(err, storage.ErrNotFound) {
			return validation.NewInvalidBlockErrorf(state.Spent[i].Spent.SpentHeight, "horizon spend of unknown output %s", state.Spent[i].OutputHash)
		}
		if err != nil {
			return validation.NewInfrastructureErrorf("could not read output %s: %w", state.Spent[i].OutputHash, err)
		}
		if record.Output.Commitment != state.Spent[i].Commitment {
			return validation.NewInvalidBlockErrorf(state.Spent[i].Spent.SpentHeight, "horizon spend of %s has a mismatched commitment", state.Spent[i].OutputHash)
		}
	}
	for i := range state.Kernels {
		err := check(state.Kernels[i].MinedHeight, state.Kernels[i].HeaderHash, "kernel")
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *HorizonSync) emit(ctx context.Context, events chan<- SyncEvent, event SyncEvent) {
	if events == nil {
		return
	}
	select {
	case events <- event:
	case <-ctx.Done():
	}
}
