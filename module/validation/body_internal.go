package validation

import (
	"github.com/tari-project/tari-core/consensus/rules"
	"github.com/tari-project/tari-core/crypto"
	"github.com/tari-project/tari-core/model/chain"
)

// BodyInternalOption configures an AggregateBodyInternalConsistencyValidator.
type BodyInternalOption func(*AggregateBodyInternalConsistencyValidator)

// WithBypassRangeProofVerification skips range proof checks. Only meant for
// revalidating bodies whose proofs were already checked.
func WithBypassRangeProofVerification(bypass bool) BodyInternalOption {
	return func(v *AggregateBodyInternalConsistencyValidator) {
		v.bypassRangeProofs = bypass
	}
}

// AggregateBodyInternalConsistencyValidator checks an aggregate body without
// consulting chain state: coinbase rules, weight, versions, uniqueness,
// kernel signatures, the commitment balance, range proofs, the script offset
// and burn pairing.
type AggregateBodyInternalConsistencyValidator struct {
	rules             *rules.Manager
	commitments       *crypto.CommitmentFactory
	rangeProofs       *crypto.RangeProofService
	bypassRangeProofs bool
}

func NewAggregateBodyInternalConsistencyValidator(
	rules *rules.Manager,
	commitments *crypto.CommitmentFactory,
	options ...BodyInternalOption,
) *AggregateBodyInternalConsistencyValidator {
	v := &AggregateBodyInternalConsistencyValidator{
		rules:       rules,
		commitments: commitments,
		rangeProofs: crypto.NewRangeProofService(commitments),
	}
	for _, option := range options {
		option(v)
	}
	return v
}

// Validate checks the body. reward is the block reward excluding fees; it is
// nil for a standalone transaction, which may not contain coinbase items.
// height selects the consensus constants in force.
//
// Expected errors during normal operations:
//   - TransactionError naming the failed rule
//   - MalformedInputError if a key or commitment does not decode
func (v *AggregateBodyInternalConsistencyValidator) Validate(
	body *chain.AggregateBody,
	offset chain.BlindingFactor,
	scriptOffset chain.PrivateKey,
	reward *chain.MicroTari,
	height uint64,
) error {
	constants := v.rules.ConsensusConstants(height)

	err := checkCoinbaseCount(body, reward)
	if err != nil {
		return err
	}
	err = checkWeight(body, constants)
	if err != nil {
		return err
	}
	err = checkVersions(body, constants)
	if err != nil {
		return err
	}
	err = checkOutputFeatures(body, constants)
	if err != nil {
		return err
	}
	err = checkDuplicates(body)
	if err != nil {
		return err
	}
	fees, err := body.TotalFees()
	if err != nil {
		return NewTransactionErrorf(ErrKindFeeOverflow, "%v", err)
	}
	err = verifyKernelSignatures(body)
	if err != nil {
		return err
	}

	var totalReward chain.MicroTari
	if reward != nil {
		var ok bool
		totalReward, ok = reward.CheckedAdd(fees)
		if !ok {
			return NewTransactionErrorf(ErrKindFeeOverflow, "block reward %s plus fees %s overflows", *reward, fees)
		}
	}
	if reward != nil {
		err = v.checkCoinbaseValue(body, totalReward)
		if err != nil {
			return err
		}
	}
	err = v.validateKernelSum(body, offset, fees, totalReward)
	if err != nil {
		return err
	}
	if !v.bypassRangeProofs {
		err = v.verifyRangeProofs(body)
		if err != nil {
			return err
		}
	}
	err = validateScriptOffset(body, scriptOffset)
	if err != nil {
		return err
	}
	return checkBurns(body)
}

func checkCoinbaseCount(body *chain.AggregateBody, reward *chain.MicroTari) error {
	outputs := body.CoinbaseOutputs()
	kernels := body.CoinbaseKernels()
	if reward == nil {
		if len(outputs) > 0 || len(kernels) > 0 {
			return NewTransactionErrorf(ErrKindUnexpectedCoinbase,
				"transaction contains %d coinbase outputs and %d coinbase kernels", len(outputs), len(kernels))
		}
		return nil
	}
	if len(outputs) > 1 {
		return NewTransactionErrorf(ErrKindDuplicateCoinbase, "body contains %d coinbase outputs", len(outputs))
	}
	if len(kernels) > 1 {
		return NewTransactionErrorf(ErrKindDuplicateCoinbase, "body contains %d coinbase kernels", len(kernels))
	}
	if len(outputs) != len(kernels) {
		return NewTransactionErrorf(ErrKindInvalidCoinbase,
			"coinbase output count %d does not match coinbase kernel count %d", len(outputs), len(kernels))
	}
	return nil
}

func checkWeight(body *chain.AggregateBody, constants *rules.ConsensusConstants) error {
	weight := body.Weight(constants.TransactionWeight)
	if weight > constants.MaxBlockTransactionWeight {
		return NewTransactionErrorf(ErrKindWeightExceeded, "body weight %d exceeds the maximum of %d",
			weight, constants.MaxBlockTransactionWeight)
	}
	return nil
}

func checkVersions(body *chain.AggregateBody, constants *rules.ConsensusConstants) error {
	for i := range body.Inputs {
		if !constants.InputVersionRange.Contains(body.Inputs[i].Version) {
			return NewTransactionErrorf(ErrKindVersion, "input version %d not accepted", body.Inputs[i].Version)
		}
	}
	for i := range body.Outputs {
		if !constants.OutputVersionRange.Contains(body.Outputs[i].Version) {
			return NewTransactionErrorf(ErrKindVersion, "output version %d not accepted", body.Outputs[i].Version)
		}
	}
	for i := range body.Kernels {
		if !constants.KernelVersionRange.Contains(body.Kernels[i].Version) {
			return NewTransactionErrorf(ErrKindVersion, "kernel version %d not accepted", body.Kernels[i].Version)
		}
	}
	return nil
}

func checkOutputFeatures(body *chain.AggregateBody, constants *rules.ConsensusConstants) error {
	for i := range body.Outputs {
		output := &body.Outputs[i]
		if !constants.IsPermittedOutputType(output.Features.OutputType) {
			return NewTransactionErrorf(ErrKindOutputType, "output type %s is not permitted", output.Features.OutputType)
		}
		if len(output.Covenant) > constants.MaxCovenantLength {
			return NewTransactionErrorf(ErrKindCovenant, "covenant of %s is %d bytes, at most %d allowed",
				output.Hash(), len(output.Covenant), constants.MaxCovenantLength)
		}
	}
	return nil
}

func checkDuplicates(body *chain.AggregateBody) error {
	if hash, ok := body.DuplicateInput(); ok {
		return NewTransactionErrorf(ErrKindDuplicateInput, "input spending %s appears twice", hash)
	}
	if hash, ok := body.DuplicateOutput(); ok {
		return NewTransactionErrorf(ErrKindDuplicateOutput, "output %s appears twice", hash)
	}
	return nil
}

func verifyKernelSignatures(body *chain.AggregateBody) error {
	for i := range body.Kernels {
		kernel := &body.Kernels[i]
		if !crypto.Verify(kernel.ExcessSig, chain.PublicKey(kernel.Excess), kernel.SignatureMessage()) {
			return NewTransactionErrorf(ErrKindKernelSignature, "signature of %s does not verify", kernel)
		}
	}
	return nil
}

// validateKernelSum checks
// `Σoutputs - Σinputs + fees·H == Σexcess + offset·G + totalReward·H`.
func (v *AggregateBodyInternalConsistencyValidator) validateKernelSum(
	body *chain.AggregateBody,
	offset chain.BlindingFactor,
	fees chain.MicroTari,
	totalReward chain.MicroTari,
) error {
	k, err := crypto.ScalarFromPrivateKey(offset)
	if err != nil {
		return NewMalformedInputErrorf("invalid kernel offset: %w", err)
	}
	sumIO, err := sumInputsOutputs(body)
	if err != nil {
		return err
	}
	excess := v.commitments.CommitValue(uint64(totalReward), k)
	for i := range body.Kernels {
		p, err := crypto.PointFromCommitment(body.Kernels[i].Excess)
		if err != nil {
			return NewMalformedInputErrorf("invalid excess of kernel %d: %w", i, err)
		}
		excess = excess.Add(p)
	}
	withFees := sumIO.Add(v.commitments.CommitValue(uint64(fees), crypto.Zero()))
	if !excess.Equal(withFees) {
		return NewTransactionErrorf(ErrKindCommitmentBalance,
			"sum of inputs and outputs does not equal sum of kernels with fees %s", fees)
	}
	return nil
}

func sumInputsOutputs(body *chain.AggregateBody) (*crypto.Point, error) {
	outputs := make([]chain.Commitment, 0, len(body.Outputs))
	for i := range body.Outputs {
		outputs = append(outputs, body.Outputs[i].Commitment)
	}
	inputs := make([]chain.Commitment, 0, len(body.Inputs))
	for i := range body.Inputs {
		inputs = append(inputs, body.Inputs[i].Commitment)
	}
	sumOutputs, err := crypto.SumCommitments(outputs...)
	if err != nil {
		return nil, NewMalformedInputErrorf("invalid output commitment: %w", err)
	}
	sumInputs, err := crypto.SumCommitments(inputs...)
	if err != nil {
		return nil, NewMalformedInputErrorf("invalid input commitment: %w", err)
	}
	return sumOutputs.Sub(sumInputs), nil
}

// checkCoinbaseValue checks that the coinbase output opens to the block
// reward plus fees with the blinding factor of the coinbase kernel excess.
func (v *AggregateBodyInternalConsistencyValidator) checkCoinbaseValue(body *chain.AggregateBody, totalReward chain.MicroTari) error {
	outputs := body.CoinbaseOutputs()
	kernels := body.CoinbaseKernels()
	if len(outputs) == 0 {
		return nil
	}
	output, kernel := outputs[0], kernels[0]
	excess, err := crypto.PointFromCommitment(kernel.Excess)
	if err != nil {
		return NewMalformedInputErrorf("invalid coinbase kernel excess: %w", err)
	}
	expected := excess.Add(v.commitments.CommitValue(uint64(totalReward), crypto.Zero()))
	if expected.Commitment() != output.Commitment {
		return NewTransactionErrorf(ErrKindInvalidCoinbase, "coinbase %s does not commit to the expected reward %s",
			output.Hash(), totalReward)
	}
	return nil
}

func (v *AggregateBodyInternalConsistencyValidator) verifyRangeProofs(body *chain.AggregateBody) error {
	for i := range body.Outputs {
		err := v.rangeProofs.Verify(&body.Outputs[i])
		if err != nil {
			return NewTransactionErrorf(ErrKindRangeProof, "range proof of %s: %w", body.Outputs[i].Hash(), err)
		}
	}
	return nil
}

// validateScriptOffset checks
// `scriptOffset·G == Σinput script keys - Σoutput sender offset keys`.
func validateScriptOffset(body *chain.AggregateBody, scriptOffset chain.PrivateKey) error {
	s, err := crypto.ScalarFromPrivateKey(scriptOffset)
	if err != nil {
		return NewMalformedInputErrorf("invalid script offset: %w", err)
	}
	scriptKeys := make([]chain.PublicKey, 0, len(body.Inputs))
	for i := range body.Inputs {
		scriptKeys = append(scriptKeys, body.Inputs[i].ScriptPublicKey)
	}
	senderKeys := make([]chain.PublicKey, 0, len(body.Outputs))
	for i := range body.Outputs {
		senderKeys = append(senderKeys, body.Outputs[i].SenderOffsetPublicKey)
	}
	inputSum, err := crypto.SumPublicKeys(scriptKeys...)
	if err != nil {
		return NewMalformedInputErrorf("invalid input script key: %w", err)
	}
	outputSum, err := crypto.SumPublicKeys(senderKeys...)
	if err != nil {
		return NewMalformedInputErrorf("invalid output sender offset key: %w", err)
	}
	if !crypto.BasePoint(s).Equal(inputSum.Sub(outputSum)) {
		return NewTransactionErrorf(ErrKindScriptOffset, "script offset does not match the input and output keys")
	}
	return nil
}

// checkBurns pairs every burn kernel with a burn output of the same
// commitment and the other way round.
func checkBurns(body *chain.AggregateBody) error {
	burned := make(map[chain.Commitment]int)
	for i := range body.Outputs {
		if body.Outputs[i].IsBurned() {
			burned[body.Outputs[i].Commitment]++
		}
	}
	for i := range body.Kernels {
		kernel := &body.Kernels[i]
		if !kernel.IsBurned() {
			continue
		}
		if kernel.BurnCommitment == nil {
			return NewTransactionErrorf(ErrKindBurn, "burn %s has no burn commitment", kernel)
		}
		if burned[*kernel.BurnCommitment] == 0 {
			return NewTransactionErrorf(ErrKindBurn, "burn %s has no matching burn output", kernel)
		}
		burned[*kernel.BurnCommitment]--
	}
	for commitment, unmatched := range burned {
		if unmatched > 0 {
			return NewTransactionErrorf(ErrKindBurn, "burn output %s has no matching kernel", commitment)
		}
	}
	return nil
}
