package hotstuff

import (
	"github.com/tari-project/tari-core/model/hotstuff"
)

// Verifier is the component responsible for validating votes and quorum
// certificates against the committee.
type Verifier interface {

	// VerifyVote checks that vote carries a valid signature of a committee
	// member. Returns model.InvalidSignerError for non-members and
	// model.ErrInvalidSignature for a bad signature.
	VerifyVote(committee *hotstuff.Committee, vote *hotstuff.HotStuffMessage) error

	// VerifyQC checks that qc is signed by a quorum of distinct committee
	// members. The genesis QC needs no signatures. Returns
	// model.InvalidQuorumCertificateError otherwise.
	VerifyQC(committee *hotstuff.Committee, qc *hotstuff.QuorumCertificate) error
}
