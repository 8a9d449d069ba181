package model

import (
	"errors"
	"fmt"

	"github.com/tari-project/tari-core/model/hotstuff"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrShutdown is returned by states that observed the worker context
	// being cancelled.
	ErrShutdown = errors.New("consensus worker shut down")
)

// NoVoteError contains the reason why the replica didn't vote for a proposal.
type NoVoteError struct {
	Msg string
}

func (e NoVoteError) Error() string { return e.Msg }

// IsNoVoteError returns whether an error is NoVoteError
func IsNoVoteError(err error) bool {
	var e NoVoteError
	return errors.As(err, &e)
}

// ConfigurationError indicates that a constructor or component was initialized with
// invalid or inconsistent parameters.
type ConfigurationError struct {
	err error
}

func NewConfigurationError(err error) error {
	return ConfigurationError{err}
}

func NewConfigurationErrorf(msg string, args ...interface{}) error {
	return ConfigurationError{fmt.Errorf(msg, args...)}
}

func (e ConfigurationError) Error() string { return e.err.Error() }
func (e ConfigurationError) Unwrap() error { return e.err }

// IsConfigurationError returns whether err is a ConfigurationError
func IsConfigurationError(err error) bool {
	var e ConfigurationError
	return errors.As(err, &e)
}

// DigitalAssetError wraps failures of the replica's collaborators: the
// outbound service, the chain database and the base node. They are
// transient from the protocol's point of view and the worker retries the
// state that produced them.
type DigitalAssetError struct {
	err error
}

func NewDigitalAssetError(err error) error {
	return DigitalAssetError{err}
}

func NewDigitalAssetErrorf(msg string, args ...interface{}) error {
	return DigitalAssetError{fmt.Errorf(msg, args...)}
}

func (e DigitalAssetError) Error() string { return e.err.Error() }
func (e DigitalAssetError) Unwrap() error { return e.err }

// IsDigitalAssetError returns whether err is a DigitalAssetError
func IsDigitalAssetError(err error) bool {
	var e DigitalAssetError
	return errors.As(err, &e)
}

// protocolViolation is implemented by every error reporting a committee
// member that broke the HotStuff protocol.
type protocolViolation interface {
	error
	protocolViolation()
}

// IsProtocolViolation returns whether err reports a protocol violation.
func IsProtocolViolation(err error) bool {
	var e protocolViolation
	return errors.As(err, &e)
}

// PreparePhaseNodeNotSafeError is returned when a proposal neither extends
// the node the replica is locked on nor carries a certificate from a later
// view.
type PreparePhaseNodeNotSafeError struct {
	View     hotstuff.ViewID
	Node     hotstuff.TreeNodeHash
	LockedQC *hotstuff.QuorumCertificate
}

func (e PreparePhaseNodeNotSafeError) Error() string {
	return fmt.Sprintf("node %s proposed at %s is not safe: locked on %s", e.Node, e.View, e.LockedQC)
}

func (PreparePhaseNodeNotSafeError) protocolViolation() {}

// IsPreparePhaseNodeNotSafeError returns whether err is a PreparePhaseNodeNotSafeError
func IsPreparePhaseNodeNotSafeError(err error) bool {
	var e PreparePhaseNodeNotSafeError
	return errors.As(err, &e)
}

// MissingQuorumCertificateError is returned for a leader message without the
// certificate its phase requires.
type MissingQuorumCertificateError struct {
	View  hotstuff.ViewID
	Phase hotstuff.HotStuffMessageType
}

func (e MissingQuorumCertificateError) Error() string {
	return fmt.Sprintf("%s message at %s carries no quorum certificate", e.Phase, e.View)
}

func (MissingQuorumCertificateError) protocolViolation() {}

// IsMissingQuorumCertificateError returns whether err is a MissingQuorumCertificateError
func IsMissingQuorumCertificateError(err error) bool {
	var e MissingQuorumCertificateError
	return errors.As(err, &e)
}

// StaleViewError is returned for a certificate or proposal from a view the
// replica has already left.
type StaleViewError struct {
	View    hotstuff.ViewID
	Current hotstuff.ViewID
}

func (e StaleViewError) Error() string {
	return fmt.Sprintf("stale %s, replica is at %s", e.View, e.Current)
}

func (StaleViewError) protocolViolation() {}

// IsStaleViewError returns whether err is a StaleViewError
func IsStaleViewError(err error) bool {
	var e StaleViewError
	return errors.As(err, &e)
}

// InvalidQuorumCertificateError is returned for a certificate that is not
// backed by a quorum of valid committee signatures.
type InvalidQuorumCertificateError struct {
	QC  *hotstuff.QuorumCertificate
	Err error
}

func NewInvalidQuorumCertificateErrorf(qc *hotstuff.QuorumCertificate, msg string, args ...interface{}) error {
	return InvalidQuorumCertificateError{
		QC:  qc,
		Err: fmt.Errorf(msg, args...),
	}
}

func (e InvalidQuorumCertificateError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.QC, e.Err.Error())
}

func (e InvalidQuorumCertificateError) Unwrap() error { return e.Err }

func (InvalidQuorumCertificateError) protocolViolation() {}

// IsInvalidQuorumCertificateError returns whether err is an InvalidQuorumCertificateError
func IsInvalidQuorumCertificateError(err error) bool {
	var e InvalidQuorumCertificateError
	return errors.As(err, &e)
}

// InvalidMessageError is returned for a message that is malformed or
// inconsistent with the committee: sent by a non-leader, proposing a node
// with a forged hash, or a payload whose state root does not match.
type InvalidMessageError struct {
	From hotstuff.ReplicaID
	View hotstuff.ViewID
	Err  error
}

func NewInvalidMessageErrorf(from hotstuff.ReplicaID, view hotstuff.ViewID, msg string, args ...interface{}) error {
	return InvalidMessageError{
		From: from,
		View: view,
		Err:  fmt.Errorf(msg, args...),
	}
}

func (e InvalidMessageError) Error() string {
	return fmt.Sprintf("invalid message from %s at %s: %s", e.From, e.View, e.Err.Error())
}

func (e InvalidMessageError) Unwrap() error { return e.Err }

func (InvalidMessageError) protocolViolation() {}

// IsInvalidMessageError returns whether err is an InvalidMessageError
func IsInvalidMessageError(err error) bool {
	var e InvalidMessageError
	return errors.As(err, &e)
}

// InvalidSignerError indicates that the signer is not authorized or unknown
type InvalidSignerError struct {
	err error
}

func NewInvalidSignerErrorf(msg string, args ...interface{}) error {
	return InvalidSignerError{fmt.Errorf(msg, args...)}
}

func (e InvalidSignerError) Error() string { return e.err.Error() }
func (e InvalidSignerError) Unwrap() error { return e.err }

// IsInvalidSignerError returns whether err is an InvalidSignerError
func IsInvalidSignerError(err error) bool {
	var e InvalidSignerError
	return errors.As(err, &e)
}
