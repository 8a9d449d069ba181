package chain

import (
	"fmt"
)

const (
	outputHashDomain = "tari.transaction_output"
	kernelHashDomain = "tari.transaction_kernel"
)

// OutputType distinguishes the special-purpose outputs.
type OutputType uint8

const (
	OutputTypeStandard OutputType = iota
	OutputTypeCoinbase
	OutputTypeBurn
)

func (t OutputType) String() string {
	switch t {
	case OutputTypeStandard:
		return "Standard"
	case OutputTypeCoinbase:
		return "Coinbase"
	case OutputTypeBurn:
		return "Burn"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// OutputFeatures are the consensus-relevant flags of an output.
type OutputFeatures struct {
	Version    uint8
	OutputType OutputType
	// Maturity is the earliest height at which the output can be spent.
	Maturity uint64
}

// IsCoinbase returns true for coinbase outputs.
func (f OutputFeatures) IsCoinbase() bool {
	return f.OutputType == OutputTypeCoinbase
}

// RangeProofType selects how the value of an output is proven to be in range.
type RangeProofType uint8

const (
	// RangeProofRevealedValue discloses the value (MinimumValuePromise) and
	// proves knowledge of the blinding factor of `C - v*H`.
	RangeProofRevealedValue RangeProofType = iota
)

// RangeProof proves that the committed value fits a uint64.
type RangeProof struct {
	Type                RangeProofType
	MinimumValuePromise MicroTari
	Signature           Signature
}

// TransactionOutput is a new unspent output created by a transaction.
type TransactionOutput struct {
	Version               uint8
	Features              OutputFeatures
	Commitment            Commitment
	Proof                 RangeProof
	ScriptPublicKey       PublicKey
	SenderOffsetPublicKey PublicKey
	Covenant              []byte
}

// Hash identifies the output. The proof signature is not part of the hash.
func (o *TransactionOutput) Hash() Hash {
	return outputHash(o.Version, o.Features, o.Commitment, o.Proof.Type, o.Proof.MinimumValuePromise,
		o.ScriptPublicKey, o.SenderOffsetPublicKey, o.Covenant)
}

// IsBurned returns true for burn outputs.
func (o *TransactionOutput) IsBurned() bool {
	return o.Features.OutputType == OutputTypeBurn
}

func (o *TransactionOutput) String() string {
	return fmt.Sprintf("output %s (%s, commitment %s)", o.Hash(), o.Features.OutputType, o.Commitment)
}

// ToInput builds the input that spends this output.
func (o *TransactionOutput) ToInput() TransactionInput {
	return TransactionInput{
		Version:               o.Version,
		Features:              o.Features,
		Commitment:            o.Commitment,
		ProofType:             o.Proof.Type,
		MinimumValuePromise:   o.Proof.MinimumValuePromise,
		ScriptPublicKey:       o.ScriptPublicKey,
		SenderOffsetPublicKey: o.SenderOffsetPublicKey,
		Covenant:              o.Covenant,
	}
}

func outputHash(
	version uint8,
	features OutputFeatures,
	commitment Commitment,
	proofType RangeProofType,
	minValue MicroTari,
	scriptKey PublicKey,
	senderOffset PublicKey,
	covenant []byte,
) Hash {
	return NewDomainHasher(outputHashDomain).
		WriteUint8(version).
		WriteUint8(features.Version).
		WriteUint8(uint8(features.OutputType)).
		WriteUint64(features.Maturity).
		WriteFixed(commitment[:]).
		WriteUint8(uint8(proofType)).
		WriteUint64(uint64(minValue)).
		WriteFixed(scriptKey[:]).
		WriteFixed(senderOffset[:]).
		WriteBytes(covenant).
		Finalize()
}

// TransactionInput spends an output. It carries the hash-relevant fields of
// the spent output so that the output hash can be recomputed and matched
// against the UTXO set.
type TransactionInput struct {
	Version               uint8
	Features              OutputFeatures
	Commitment            Commitment
	ProofType             RangeProofType
	MinimumValuePromise   MicroTari
	ScriptPublicKey       PublicKey
	SenderOffsetPublicKey PublicKey
	Covenant              []byte
}

// OutputHash is the hash of the output this input spends.
func (i *TransactionInput) OutputHash() Hash {
	return outputHash(i.Version, i.Features, i.Commitment, i.ProofType, i.MinimumValuePromise,
		i.ScriptPublicKey, i.SenderOffsetPublicKey, i.Covenant)
}

// IsMatureAt returns true if the spent output may be spent at the given height.
func (i *TransactionInput) IsMatureAt(height uint64) bool {
	return i.Features.Maturity <= height
}

func (i *TransactionInput) String() string {
	return fmt.Sprintf("input spending %s (commitment %s)", i.OutputHash(), i.Commitment)
}

// KernelFeatures is a bitfield of kernel flags.
type KernelFeatures uint8

const (
	KernelFeaturePlain    KernelFeatures = 0
	KernelFeatureCoinbase KernelFeatures = 1 << 0
	KernelFeatureBurn     KernelFeatures = 1 << 1
)

// IsCoinbase returns true for coinbase kernels.
func (f KernelFeatures) IsCoinbase() bool { return f&KernelFeatureCoinbase != 0 }

// IsBurned returns true for burn kernels.
func (f KernelFeatures) IsBurned() bool { return f&KernelFeatureBurn != 0 }

// TransactionKernel proves that a transaction balances: its excess is the
// public key of the net blinding factor and ExcessSig signs with it.
type TransactionKernel struct {
	Version        uint8
	Features       KernelFeatures
	Fee            MicroTari
	LockHeight     uint64
	Excess         Commitment
	ExcessSig      Signature
	BurnCommitment *Commitment `msgpack:",omitempty" cbor:",omitempty"`
}

// Hash identifies the kernel.
func (k *TransactionKernel) Hash() Hash {
	h := NewDomainHasher(kernelHashDomain).
		WriteUint8(k.Version).
		WriteUint8(uint8(k.Features)).
		WriteUint64(uint64(k.Fee)).
		WriteUint64(k.LockHeight).
		WriteFixed(k.Excess[:]).
		WriteFixed(k.ExcessSig.PublicNonce[:]).
		WriteFixed(k.ExcessSig.S[:])
	if k.BurnCommitment != nil {
		h.WriteUint8(1).WriteFixed(k.BurnCommitment[:])
	} else {
		h.WriteUint8(0)
	}
	return h.Finalize()
}

// IsCoinbase returns true for coinbase kernels.
func (k *TransactionKernel) IsCoinbase() bool { return k.Features.IsCoinbase() }

// IsBurned returns true for burn kernels.
func (k *TransactionKernel) IsBurned() bool { return k.Features.IsBurned() }

func (k *TransactionKernel) String() string {
	return fmt.Sprintf("kernel %s (fee %d, lock height %d, excess %s)", k.Hash(), k.Fee, k.LockHeight, k.Excess)
}

const kernelSignatureDomain = "tari.transaction_kernel.signature"

// SignatureMessage is the message signed by the kernel excess.
func (k *TransactionKernel) SignatureMessage() []byte {
	h := NewDomainHasher(kernelSignatureDomain).
		WriteUint8(k.Version).
		WriteUint8(uint8(k.Features)).
		WriteUint64(uint64(k.Fee)).
		WriteUint64(k.LockHeight)
	if k.BurnCommitment != nil {
		h.WriteUint8(1).WriteFixed(k.BurnCommitment[:])
	} else {
		h.WriteUint8(0)
	}
	digest := h.Finalize()
	return digest[:]
}
