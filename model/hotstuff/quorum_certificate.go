package hotstuff

import (
	"fmt"

	"github.com/tari-project/tari-core/model/chain"
)

const (
	qcHashDomain        = "tari.dan.quorum_certificate"
	voteChallengeDomain = "tari.dan.vote"
)

// ValidatorSignature is a committee member's partial signature.
type ValidatorSignature struct {
	Signer    ReplicaID
	Signature chain.Signature
}

// QuorumCertificate certifies that a quorum of the committee voted for a
// node in a phase of a view.
type QuorumCertificate struct {
	MessageType HotStuffMessageType
	ViewNumber  ViewID
	NodeHash    TreeNodeHash
	Signatures  []ValidatorSignature
}

// GenesisQC returns the certificate of a genesis node. It is at view zero
// and carries no signatures.
func GenesisQC(nodeHash TreeNodeHash) *QuorumCertificate {
	return &QuorumCertificate{
		MessageType: MessageTypeGenesis,
		ViewNumber:  0,
		NodeHash:    nodeHash,
	}
}

// IsGenesis returns true for the genesis certificate. Certificates formed
// by votes in view zero are not genesis certificates.
func (qc *QuorumCertificate) IsGenesis() bool {
	return qc.MessageType == MessageTypeGenesis
}

// Challenge is the message each signature of the certificate signs.
func (qc *QuorumCertificate) Challenge() []byte {
	return VoteChallenge(qc.MessageType, qc.ViewNumber, qc.NodeHash)
}

// Hash identifies the certificate including its signatures.
func (qc *QuorumCertificate) Hash() chain.Hash {
	h := chain.NewDomainHasher(qcHashDomain).
		WriteUint8(uint8(qc.MessageType)).
		WriteUint64(uint64(qc.ViewNumber)).
		WriteFixed(qc.NodeHash[:]).
		WriteUint64(uint64(len(qc.Signatures)))
	for _, sig := range qc.Signatures {
		h.WriteBytes([]byte(sig.Signer)).
			WriteFixed(sig.Signature.PublicNonce[:]).
			WriteFixed(sig.Signature.S[:])
	}
	return h.Finalize()
}

// Signers returns the distinct signers of the certificate.
func (qc *QuorumCertificate) Signers() []ReplicaID {
	seen := make(map[ReplicaID]struct{}, len(qc.Signatures))
	signers := make([]ReplicaID, 0, len(qc.Signatures))
	for _, sig := range qc.Signatures {
		if _, ok := seen[sig.Signer]; ok {
			continue
		}
		seen[sig.Signer] = struct{}{}
		signers = append(signers, sig.Signer)
	}
	return signers
}

func (qc *QuorumCertificate) String() string {
	return fmt.Sprintf("%s QC at %s for node %s (%d signatures)", qc.MessageType, qc.ViewNumber, qc.NodeHash, len(qc.Signatures))
}

// VoteChallenge is the message a replica signs when voting for node in a
// phase of a view.
func VoteChallenge(messageType HotStuffMessageType, view ViewID, node TreeNodeHash) []byte {
	digest := chain.NewDomainHasher(voteChallengeDomain).
		WriteUint8(uint8(messageType)).
		WriteUint64(uint64(view)).
		WriteFixed(node[:]).
		Finalize()
	return digest[:]
}
