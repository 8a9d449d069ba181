package validation

import (
	"errors"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/tari-project/tari-core/consensus/pow"
	"github.com/tari-project/tari-core/consensus/rules"
	"github.com/tari-project/tari-core/crypto"
	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/storage"
)

// HeaderOption configures a HeaderValidator.
type HeaderOption func(*HeaderValidator)

// WithClock replaces the wall clock used for the future time limit.
func WithClock(now func() time.Time) HeaderOption {
	return func(v *HeaderValidator) {
		v.now = now
	}
}

// HeaderValidator checks a header extending the current tip of the backend:
// sequence, then timestamp, then difficulty.
type HeaderValidator struct {
	rules   *rules.Manager
	backend storage.ChainBackend
	now     func() time.Time
}

var _ Validator[*chain.BlockHeader] = (*HeaderValidator)(nil)

func NewHeaderValidator(rules *rules.Manager, backend storage.ChainBackend, options ...HeaderOption) *HeaderValidator {
	v := &HeaderValidator{
		rules:   rules,
		backend: backend,
		now:     time.Now,
	}
	for _, option := range options {
		option(v)
	}
	return v
}

// Validate implements Validator.
func (v *HeaderValidator) Validate(header *chain.BlockHeader) error {
	_, err := v.ValidateHeader(header)
	return err
}

// ValidateHeader checks the header and returns its accumulated data.
//
// Expected errors during normal operations:
//   - InvalidChainingError if the header does not extend the tip
//   - InvalidTimestampError if the timestamp is below the median or beyond the future time limit
//   - InvalidProofOfWorkError if the proof of work cannot be evaluated
//   - DifficultyTooLowError if the achieved difficulty is below the target
//   - InvalidBlockError for an unsupported version or a second genesis
//   - InfrastructureError if the backend cannot be read
func (v *HeaderValidator) ValidateHeader(header *chain.BlockHeader) (*chain.BlockHeaderAccumulatedData, error) {
	constants := v.rules.ConsensusConstants(header.Height)
	if header.Version != constants.BlockchainVersion {
		return nil, NewInvalidBlockErrorf(header.Height, "header version %d, expected %d", header.Version, constants.BlockchainVersion)
	}

	prev, err := v.checkSequence(header)
	if err != nil {
		return nil, err
	}
	err = v.checkTimestamp(header, constants)
	if err != nil {
		return nil, err
	}
	target, err := v.checkDifficulty(header)
	if err != nil {
		return nil, err
	}
	return accumulate(header, prev, target)
}

// checkSequence returns the accumulated data of the tip the header extends,
// or nil for a genesis header on an empty chain.
func (v *HeaderValidator) checkSequence(header *chain.BlockHeader) (*chain.BlockHeaderAccumulatedData, error) {
	metadata, err := v.backend.ChainMetadata()
	empty := errors.Is(err, storage.ErrNotFound)
	if err != nil && !empty {
		return nil, NewInfrastructureErrorf("could not read chain tip: %w", err)
	}

	if header.IsGenesis() {
		if !header.PrevHash.IsZero() {
			return nil, InvalidChainingError{Height: 0, Expected: chain.ZeroHash, Actual: header.PrevHash}
		}
		if !empty {
			return nil, NewInvalidBlockErrorf(0, "chain already has a genesis block")
		}
		return nil, nil
	}

	if empty {
		return nil, NewInfrastructureErrorf("cannot validate header #%d on an empty chain", header.Height)
	}
	if header.Height != metadata.HeightOfLongestChain+1 || header.PrevHash != metadata.BestBlock {
		return nil, InvalidChainingError{Height: header.Height, Expected: metadata.BestBlock, Actual: header.PrevHash}
	}
	prev, err := v.backend.HeaderAccumulatedData(metadata.BestBlock)
	if err != nil {
		return nil, NewInfrastructureErrorf("could not read accumulated data of the tip: %w", err)
	}
	return prev, nil
}

// checkTimestamp requires the timestamp to be at least the median of the
// previous MedianTimestampCount timestamps and at most FutureTimeLimit ahead
// of the local clock.
func (v *HeaderValidator) checkTimestamp(header *chain.BlockHeader, constants *rules.ConsensusConstants) error {
	// compared as uint64 seconds so timestamps beyond the int64 range
	// cannot wrap into the past
	limit := uint64(constants.FutureTimeLimit / time.Second)
	if now := v.now().Unix(); now > 0 {
		limit += uint64(now)
	}
	if header.Timestamp > limit {
		return NewInvalidTimestampErrorf(header.Height, header.Timestamp, "more than %s in the future", constants.FutureTimeLimit)
	}
	if header.IsGenesis() {
		return nil
	}

	timestamps := make(stats.Float64Data, 0, constants.MedianTimestampCount)
	height := header.Height - 1
	for len(timestamps) < constants.MedianTimestampCount {
		prev, err := v.backend.HeaderByHeight(height)
		if err != nil {
			return NewInfrastructureErrorf("could not read header #%d: %w", height, err)
		}
		timestamps = append(timestamps, float64(prev.Timestamp))
		if height == 0 {
			break
		}
		height--
	}
	median, err := stats.Median(timestamps)
	if err != nil {
		return NewInfrastructureErrorf("could not compute median timestamp: %w", err)
	}
	if float64(header.Timestamp) < median {
		return NewInvalidTimestampErrorf(header.Height, header.Timestamp, "below the median %.0f of the last %d headers",
			median, len(timestamps))
	}
	return nil
}

func (v *HeaderValidator) checkDifficulty(header *chain.BlockHeader) (*pow.AchievedTargetDifficulty, error) {
	err := pow.CheckPowData(header)
	if err != nil {
		return nil, InvalidProofOfWorkError{Height: header.Height, err: err}
	}
	achieved, err := pow.AchievedDifficulty(header)
	if err != nil {
		return nil, InvalidProofOfWorkError{Height: header.Height, err: err}
	}
	target, err := v.TargetDifficulty(header.Height, header.Pow.Algo)
	if err != nil {
		return nil, err
	}
	result, ok := pow.TryConstruct(header.Pow.Algo, target, achieved)
	if !ok {
		return nil, DifficultyTooLowError{Height: header.Height, Algo: header.Pow.Algo, Target: target, Achieved: achieved}
	}
	return result, nil
}

// TargetDifficulty returns the target difficulty of a header of algo at
// height, computed from the canonical headers of the same algorithm below it.
func (v *HeaderValidator) TargetDifficulty(height uint64, algo chain.PowAlgorithm) (chain.Difficulty, error) {
	constants := v.rules.ConsensusConstants(height)
	params, ok := constants.PowAlgorithm(algo)
	if !ok {
		return 0, InvalidProofOfWorkError{Height: height, err: fmt.Errorf("%w: %s", pow.ErrUnsupportedAlgorithm, algo)}
	}
	window := pow.NewTargetDifficultyWindow(constants.DifficultyBlockWindow, params.TargetTime, params.MinDifficulty, params.MaxDifficulty)
	for h := height; h > 0 && !window.IsFull(); h-- {
		prev, err := v.backend.ChainHeaderByHeight(h - 1)
		if err != nil {
			return 0, NewInfrastructureErrorf("could not read header #%d: %w", h-1, err)
		}
		if prev.Header.Pow.Algo != algo {
			continue
		}
		window.AddFront(prev.Header.Timestamp, prev.AccumulatedData.TargetDifficulty)
	}
	return window.CalculateTarget(), nil
}

// accumulate derives the accumulated data of header from that of its
// predecessor. prev is nil for genesis.
func accumulate(
	header *chain.BlockHeader,
	prev *chain.BlockHeaderAccumulatedData,
	difficulty *pow.AchievedTargetDifficulty,
) (*chain.BlockHeaderAccumulatedData, error) {
	if prev == nil {
		prev = &chain.BlockHeaderAccumulatedData{}
	}
	offset, err := crypto.AddPrivateKeys(prev.TotalKernelOffset, header.TotalKernelOffset)
	if err != nil {
		return nil, NewMalformedInputErrorf("invalid kernel offset of header #%d: %w", header.Height, err)
	}
	data := &chain.BlockHeaderAccumulatedData{
		Hash:                          header.Hash(),
		TotalKernelOffset:             offset,
		AccumulatedSha3xDifficulty:    prev.AccumulatedSha3xDifficulty,
		AccumulatedBlake2bdDifficulty: prev.AccumulatedBlake2bdDifficulty,
		TargetDifficulty:              difficulty.Target(),
		AchievedDifficulty:            difficulty.Achieved(),
	}
	var ok bool
	switch difficulty.Algo() {
	case chain.PowAlgoSha3x:
		data.AccumulatedSha3xDifficulty, ok = prev.AccumulatedSha3xDifficulty.CheckedAdd(difficulty.Achieved())
	case chain.PowAlgoBlake2bd:
		data.AccumulatedBlake2bdDifficulty, ok = prev.AccumulatedBlake2bdDifficulty.CheckedAdd(difficulty.Achieved())
	}
	if !ok {
		return nil, NewInvalidBlockErrorf(header.Height, "accumulated %s difficulty overflows", difficulty.Algo())
	}
	return data, nil
}
