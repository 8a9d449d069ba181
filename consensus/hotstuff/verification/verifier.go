package verification

import (
	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
)

// Verifier checks votes and quorum certificates with the signing service.
type Verifier struct {
	signer hotstuff.SigningService
}

var _ hotstuff.Verifier = (*Verifier)(nil)

func NewVerifier(signer hotstuff.SigningService) *Verifier {
	return &Verifier{signer: signer}
}

// VerifyVote checks the partial signature of a vote.
// Returns:
//   - model.InvalidSignerError if the signer is not a committee member
//   - model.ErrInvalidSignature if the signature does not verify
func (v *Verifier) VerifyVote(committee *mhotstuff.Committee, vote *mhotstuff.HotStuffMessage) error {
	if vote.PartialSig == nil {
		return model.NewInvalidSignerErrorf("%s carries no signature", vote)
	}
	signer := vote.PartialSig.Signer
	if !committee.Contains(signer) {
		return model.NewInvalidSignerErrorf("%s is not a committee member", signer)
	}
	if !v.signer.Verify(signer, vote.CreateSignatureChallenge(), vote.PartialSig.Signature) {
		return model.ErrInvalidSignature
	}
	return nil
}

// VerifyQC checks that qc is backed by a quorum of the committee. Repeated
// signatures of one member count once. The genesis QC carries no
// signatures and is always valid.
func (v *Verifier) VerifyQC(committee *mhotstuff.Committee, qc *mhotstuff.QuorumCertificate) error {
	if qc.IsGenesis() {
		if qc.ViewNumber != 0 || len(qc.Signatures) != 0 {
			return model.NewInvalidQuorumCertificateErrorf(qc, "genesis certificate must be unsigned at view 0")
		}
		return nil
	}

	challenge := qc.Challenge()
	seen := make(map[mhotstuff.ReplicaID]struct{}, len(qc.Signatures))
	for _, sig := range qc.Signatures {
		if _, ok := seen[sig.Signer]; ok {
			continue
		}
		if !committee.Contains(sig.Signer) {
			return model.NewInvalidQuorumCertificateErrorf(qc, "signer %s is not a committee member", sig.Signer)
		}
		if !v.signer.Verify(sig.Signer, challenge, sig.Signature) {
			return model.NewInvalidQuorumCertificateErrorf(qc, "signature of %s: %w", sig.Signer, model.ErrInvalidSignature)
		}
		seen[sig.Signer] = struct{}{}
	}
	if len(seen) < committee.ConsensusThreshold() {
		return model.NewInvalidQuorumCertificateErrorf(qc, "%d distinct signers, %d required", len(seen), committee.ConsensusThreshold())
	}
	return nil
}
