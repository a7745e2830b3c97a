package branchpred

// PredType is the verdict returned by every predict call in the core.
type PredType uint8

const (
	// CorrectPrediction means direction and (if applicable) target matched
	// the oracle outcome.
	CorrectPrediction PredType = iota
	// NoPrediction means the bandwidth budget for the current cycle was
	// exhausted before this branch could be predicted.
	NoPrediction
	// NoBTBPrediction means the direction was right but the BTB held no
	// entry for the branch, so no target was available.
	NoBTBPrediction
	// MissPrediction means the direction, or the BTB's cached target, was
	// wrong.
	MissPrediction
)

// String renders the verdict for logs and diagnostics.
func (p PredType) String() string {
	switch p {
	case CorrectPrediction:
		return "CorrectPrediction"
	case NoPrediction:
		return "NoPrediction"
	case NoBTBPrediction:
		return "NoBTBPrediction"
	case MissPrediction:
		return "MissPrediction"
	default:
		return "UnknownPrediction"
	}
}
