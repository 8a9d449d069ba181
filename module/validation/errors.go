package validation

import (
	"errors"
	"fmt"

	"github.com/tari-project/tari-core/model/chain"
)

// MalformedInputError indicates a structurally broken input (missing field,
// wrong length, unknown enum). It is raised before any semantic check.
type MalformedInputError struct {
	error
}

func NewMalformedInputErrorf(msg string, args ...interface{}) error {
	return MalformedInputError{
		error: fmt.Errorf(msg, args...),
	}
}

func (e MalformedInputError) Unwrap() error {
	return e.error
}

// IsMalformedInputError returns whether the given error is a MalformedInputError
func IsMalformedInputError(err error) bool {
	return errors.As(err, &MalformedInputError{})
}

// InfrastructureError wraps failures of the backing store or other
// collaborators. Unlike validation errors, the input itself may be valid and
// the check can be retried.
type InfrastructureError struct {
	error
}

func NewInfrastructureErrorf(msg string, args ...interface{}) error {
	return InfrastructureError{
		error: fmt.Errorf(msg, args...),
	}
}

func (e InfrastructureError) Unwrap() error {
	return e.error
}

// IsInfrastructureError returns whether the given error is an InfrastructureError
func IsInfrastructureError(err error) bool {
	return errors.As(err, &InfrastructureError{})
}

// TransactionErrorKind names the failing sub-check of an aggregate body.
type TransactionErrorKind string

const (
	ErrKindCommitmentBalance  TransactionErrorKind = "commitment_balance"
	ErrKindKernelSignature    TransactionErrorKind = "kernel_signature"
	ErrKindRangeProof         TransactionErrorKind = "range_proof"
	ErrKindScriptOffset       TransactionErrorKind = "script_offset"
	ErrKindDuplicateCoinbase  TransactionErrorKind = "duplicate_coinbase"
	ErrKindInvalidCoinbase    TransactionErrorKind = "invalid_coinbase"
	ErrKindUnexpectedCoinbase TransactionErrorKind = "unexpected_coinbase"
	ErrKindDuplicateInput     TransactionErrorKind = "duplicate_input"
	ErrKindDuplicateOutput    TransactionErrorKind = "duplicate_output"
	ErrKindWeightExceeded     TransactionErrorKind = "weight_exceeded"
	ErrKindVersion            TransactionErrorKind = "version"
	ErrKindOutputType         TransactionErrorKind = "output_type"
	ErrKindCovenant           TransactionErrorKind = "covenant"
	ErrKindBurn               TransactionErrorKind = "burn"
	ErrKindFeeOverflow        TransactionErrorKind = "fee_overflow"
	ErrKindUnknownInput       TransactionErrorKind = "unknown_input"
	ErrKindSpentInput         TransactionErrorKind = "spent_input"
	ErrKindOutputExists       TransactionErrorKind = "output_exists"
	ErrKindImmatureInput      TransactionErrorKind = "immature_input"
	ErrKindKernelLockHeight   TransactionErrorKind = "kernel_lock_height"
	ErrKindStaleTip           TransactionErrorKind = "stale_tip"
)

// TransactionError is a semantic failure of an aggregate body. Kind names
// the rule that failed so that callers can decide how to treat the peer.
type TransactionError struct {
	Kind TransactionErrorKind
	err  error
}

func NewTransactionErrorf(kind TransactionErrorKind, msg string, args ...interface{}) error {
	return TransactionError{
		Kind: kind,
		err:  fmt.Errorf(msg, args...),
	}
}

func (e TransactionError) Error() string {
	return fmt.Sprintf("invalid transaction body (%s): %s", e.Kind, e.err)
}

func (e TransactionError) Unwrap() error {
	return e.err
}

// IsTransactionError returns whether the given error is a TransactionError
func IsTransactionError(err error) bool {
	return errors.As(err, &TransactionError{})
}

// TransactionErrorKindOf returns the kind of a TransactionError, or false if
// err is not one.
func TransactionErrorKindOf(err error) (TransactionErrorKind, bool) {
	var e TransactionError
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// IsTransactionErrorKind returns whether err is a TransactionError of kind.
func IsTransactionErrorKind(err error, kind TransactionErrorKind) bool {
	k, ok := TransactionErrorKindOf(err)
	return ok && k == kind
}

// InvalidChainingError is returned when a header does not extend its
// predecessor: wrong height or wrong previous hash.
type InvalidChainingError struct {
	Height   uint64
	Expected chain.Hash
	Actual   chain.Hash
}

func (e InvalidChainingError) Error() string {
	return fmt.Sprintf("header #%d does not extend the chain (expected previous hash %s, got %s)", e.Height, e.Expected, e.Actual)
}

// IsInvalidChainingError returns whether the given error is an InvalidChainingError
func IsInvalidChainingError(err error) bool {
	return errors.As(err, &InvalidChainingError{})
}

// InvalidTimestampError is returned when a header timestamp is not above the
// median of its predecessors or too far in the future.
type InvalidTimestampError struct {
	Height    uint64
	Timestamp uint64
	err       error
}

func NewInvalidTimestampErrorf(height uint64, timestamp uint64, msg string, args ...interface{}) error {
	return InvalidTimestampError{
		Height:    height,
		Timestamp: timestamp,
		err:       fmt.Errorf(msg, args...),
	}
}

func (e InvalidTimestampError) Error() string {
	return fmt.Sprintf("invalid timestamp %d of header #%d: %s", e.Timestamp, e.Height, e.err)
}

func (e InvalidTimestampError) Unwrap() error {
	return e.err
}

// IsInvalidTimestampError returns whether the given error is an InvalidTimestampError
func IsInvalidTimestampError(err error) bool {
	return errors.As(err, &InvalidTimestampError{})
}

// DifficultyTooLowError is returned when a header does not achieve its target.
type DifficultyTooLowError struct {
	Height   uint64
	Algo     chain.PowAlgorithm
	Target   chain.Difficulty
	Achieved chain.Difficulty
}

func (e DifficultyTooLowError) Error() string {
	return fmt.Sprintf("header #%d achieved %s difficulty %d below target %d", e.Height, e.Algo, e.Achieved, e.Target)
}

// IsDifficultyTooLowError returns whether the given error is a DifficultyTooLowError
func IsDifficultyTooLowError(err error) bool {
	return errors.As(err, &DifficultyTooLowError{})
}

// InvalidProofOfWorkError is returned when the proof of work of a header
// cannot be evaluated, for instance because its digest is zero.
type InvalidProofOfWorkError struct {
	Height uint64
	err    error
}

func (e InvalidProofOfWorkError) Error() string {
	return fmt.Sprintf("invalid proof of work of header #%d: %s", e.Height, e.err)
}

func (e InvalidProofOfWorkError) Unwrap() error {
	return e.err
}

// IsInvalidProofOfWorkError returns whether the given error is an InvalidProofOfWorkError
func IsInvalidProofOfWorkError(err error) bool {
	return errors.As(err, &InvalidProofOfWorkError{})
}

// InvalidBlockError is returned for block-level rule violations that are not
// covered by the header or body checks: Merkle roots, MMR sizes, block
// weight, ordering and coinbase maturity.
type InvalidBlockError struct {
	Height uint64
	err    error
}

func NewInvalidBlockErrorf(height uint64, msg string, args ...interface{}) error {
	return InvalidBlockError{
		Height: height,
		err:    fmt.Errorf(msg, args...),
	}
}

func (e InvalidBlockError) Error() string {
	return fmt.Sprintf("invalid block #%d: %s", e.Height, e.err)
}

func (e InvalidBlockError) Unwrap() error {
	return e.err
}

// IsInvalidBlockError returns whether the given error is an InvalidBlockError
func IsInvalidBlockError(err error) bool {
	return errors.As(err, &InvalidBlockError{})
}

// ChainBalanceValidationFailedError is returned when the UTXO set does not
// balance against emission, kernels and offsets at Height. It is fatal for
// the sync attempt that triggered it, not for the node.
type ChainBalanceValidationFailedError struct {
	Height uint64
}

func (e ChainBalanceValidationFailedError) Error() string {
	return fmt.Sprintf("chain balance validation failed at height %d", e.Height)
}

// IsChainBalanceValidationFailedError returns whether the given error is a ChainBalanceValidationFailedError
func IsChainBalanceValidationFailedError(err error) bool {
	return errors.As(err, &ChainBalanceValidationFailedError{})
}

// IsValidationError returns true for every error that proves the validated
// item is invalid, as opposed to infrastructure failures.
func IsValidationError(err error) bool {
	return IsMalformedInputError(err) ||
		IsTransactionError(err) ||
		IsInvalidChainingError(err) ||
		IsInvalidTimestampError(err) ||
		IsDifficultyTooLowError(err) ||
		IsInvalidProofOfWorkError(err) ||
		IsInvalidBlockError(err) ||
		IsChainBalanceValidationFailedError(err)
}

// ErrorKind returns a short label for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsMalformedInputError(err):
		return "malformed_input"
	case IsTransactionError(err):
		kind, _ := TransactionErrorKindOf(err)
		return string(kind)
	case IsInvalidChainingError(err):
		return "invalid_chaining"
	case IsInvalidTimestampError(err):
		return "invalid_timestamp"
	case IsDifficultyTooLowError(err):
		return "difficulty_too_low"
	case IsInvalidProofOfWorkError(err):
		return "invalid_pow"
	case IsInvalidBlockError(err):
		return "invalid_block"
	case IsChainBalanceValidationFailedError(err):
		return "chain_balance"
	case IsInfrastructureError(err):
		return "infrastructure"
	default:
		return "unknown"
	}
}
