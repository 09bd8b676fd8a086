package discuss

import (
	"voxcrew/pkg/agent/llm"
)

// Per-tier output budgeting knobs. The allocation shrinks as the prompt
// grows, bounded below by the floor so an agent always gets a usable budget
// and above by the ceiling (and the model's own output cap).
type budgetProfile struct {
	outputCeiling int // most output tokens we ever request
	outputFloor   int // guaranteed minimum allocation
	warnThreshold int // estimated prompt tokens beyond which we warn
}

//nolint:gochecknoglobals // Static budgeting table
var budgetProfiles = map[llm.Tier]budgetProfile{
	llm.TierFast:    {outputCeiling: 1024, outputFloor: 256, warnThreshold: 2048},
	llm.TierQuality: {outputCeiling: 4096, outputFloor: 1024, warnThreshold: 8192},
}

// promptShareDivisor caps how much of the prompt size counts against the
// output ceiling: half the estimated prompt tokens are subtracted, never more
// than (ceiling - floor).
const promptShareDivisor = 2

// allocateOutput computes the output-token allocation for a prompt of the
// given estimated size, clamped to [floor, min(ceiling, modelMaxOutput)].
// The second return reports whether the prompt crossed the complexity
// warning threshold.
func allocateOutput(tier llm.Tier, promptTokens, modelMaxOutput int) (allocation int, heavy bool) {
	profile := budgetProfiles[tier]

	ceiling := profile.outputCeiling
	if modelMaxOutput > 0 && modelMaxOutput < ceiling {
		ceiling = modelMaxOutput
	}

	reduction := promptTokens / promptShareDivisor
	if maxReduction := ceiling - profile.outputFloor; reduction > maxReduction {
		reduction = maxReduction
	}

	allocation = ceiling - reduction
	if allocation < profile.outputFloor {
		allocation = profile.outputFloor
	}
	// The model's own cap wins over the floor: exceeding it fails the request.
	if modelMaxOutput > 0 && allocation > modelMaxOutput {
		allocation = modelMaxOutput
	}

	return allocation, promptTokens > profile.warnThreshold
}
