package chain

import (
	"fmt"
)

const (
	headerMiningHashDomain = "tari.header.mining_hash"
	headerHashDomain       = "tari.header.hash"
)

// BlockHeader is the header of a base-layer block. Headers are immutable once
// part of the canonical chain; a rewind deletes them instead of editing them.
type BlockHeader struct {
	Version           uint16
	Height            uint64
	PrevHash          Hash
	Timestamp         uint64 // seconds since the unix epoch
	InputMR           Hash
	OutputMR          Hash
	OutputMMRSize     uint64
	KernelMR          Hash
	KernelMMRSize     uint64
	TotalKernelOffset PrivateKey
	TotalScriptOffset PrivateKey
	Nonce             uint64
	Pow               ProofOfWork
	ValidatorNodeMR   Hash
}

// MiningHash is the hash of every header field except the nonce and the
// proof-of-work data; miners iterate the nonce over it.
func (h *BlockHeader) MiningHash() Hash {
	return NewDomainHasher(headerMiningHashDomain).
		WriteUint16(h.Version).
		WriteUint64(h.Height).
		WriteFixed(h.PrevHash[:]).
		WriteUint64(h.Timestamp).
		WriteFixed(h.InputMR[:]).
		WriteFixed(h.OutputMR[:]).
		WriteUint64(h.OutputMMRSize).
		WriteFixed(h.KernelMR[:]).
		WriteUint64(h.KernelMMRSize).
		WriteFixed(h.TotalKernelOffset[:]).
		WriteFixed(h.TotalScriptOffset[:]).
		WriteFixed(h.ValidatorNodeMR[:]).
		WriteUint8(uint8(h.Pow.Algo)).
		Finalize()
}

// Hash is the block hash that the next header references.
func (h *BlockHeader) Hash() Hash {
	mining := h.MiningHash()
	return NewDomainHasher(headerHashDomain).
		WriteFixed(mining[:]).
		WriteUint64(h.Nonce).
		WriteBytes(h.Pow.Data).
		Finalize()
}

// IsGenesis returns true for the header at height zero.
func (h *BlockHeader) IsGenesis() bool {
	return h.Height == 0
}

// PowAlgo returns the proof-of-work algorithm of the header.
func (h *BlockHeader) PowAlgo() PowAlgorithm {
	return h.Pow.Algo
}

func (h *BlockHeader) String() string {
	return fmt.Sprintf("header #%d (%s, %s)", h.Height, h.Hash(), h.Pow.Algo)
}
