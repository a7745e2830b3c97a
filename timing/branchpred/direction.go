package branchpred

// DirectionPredictor is the contract shared by every taken/not-taken
// predictor variant. predict forms a direction guess, compares it to the
// oracle outcome, optionally learns, and folds in its embedded BTB's
// verdict for taken branches.
type DirectionPredictor interface {
	Predict(inst Instruction, oracleNextID InstID, update bool) PredType
	SwitchIn(pid int)
	SwitchOut(pid int)
}

// outcome derives t, the oracle's taken/not-taken verdict, from the
// fall-through comparison every variant shares.
func outcome(inst Instruction, oracleNextID InstID) bool {
	return oracleNextID != inst.FallThroughID()
}

// resolveWithBTB folds a direction guess g against the oracle outcome t and
// the embedded BTB, per §4.4: a correctly-guessed not-taken branch never
// touches the BTB; otherwise the BTB is consulted (and trained), but a
// wrong direction guess always forces the final verdict to MissPrediction
// regardless of what the BTB says.
func resolveWithBTB(btb *BTB, g, t bool, inst Instruction, oracleNextID InstID, update bool) PredType {
	if !g && !t {
		return CorrectPrediction
	}
	if g == t {
		return btb.Predict(inst, oracleNextID, update)
	}
	if update {
		btb.UpdateOnly(inst, oracleNextID)
	}
	return MissPrediction
}

// noopSwitch is embedded by variants with no per-process state to clear.
type noopSwitch struct{}

func (noopSwitch) SwitchIn(pid int)  {}
func (noopSwitch) SwitchOut(pid int) {}

// Oracle always guesses the true outcome. It is the accuracy ceiling every
// other variant is measured against.
type Oracle struct {
	noopSwitch
	btb *BTB
}

// NewOracle builds an Oracle predictor with its own embedded BTB.
func NewOracle(btb *BTB) *Oracle {
	return &Oracle{btb: btb}
}

// Predict implements DirectionPredictor.
func (o *Oracle) Predict(inst Instruction, oracleNextID InstID, update bool) PredType {
	t := outcome(inst, oracleNextID)
	return resolveWithBTB(o.btb, t, t, inst, oracleNextID, update)
}

// NotTaken always guesses not-taken and never consults its BTB, since a
// not-taken guess has no target to look up.
type NotTaken struct {
	noopSwitch
}

// NewNotTaken builds a NotTaken predictor.
func NewNotTaken() *NotTaken {
	return &NotTaken{}
}

// Predict implements DirectionPredictor.
func (n *NotTaken) Predict(inst Instruction, oracleNextID InstID, update bool) PredType {
	if oracleNextID == inst.FallThroughID() {
		return CorrectPrediction
	}
	return MissPrediction
}

// Taken always guesses taken; its embedded BTB supplies the target.
type Taken struct {
	noopSwitch
	btb *BTB
}

// NewTaken builds a Taken predictor with its own embedded BTB.
func NewTaken(btb *BTB) *Taken {
	return &Taken{btb: btb}
}

// Predict implements DirectionPredictor.
func (p *Taken) Predict(inst Instruction, oracleNextID InstID, update bool) PredType {
	t := outcome(inst, oracleNextID)
	return resolveWithBTB(p.btb, true, t, inst, oracleNextID, update)
}

// Static predicts backward branches taken and forward branches not-taken,
// using the instruction's statically-encoded target (see TargetHint) so the
// guess is available before the oracle outcome is known. Instructions that
// don't expose a target degrade Static to a not-taken guess.
type Static struct {
	noopSwitch
	btb *BTB
}

// NewStatic builds a Static predictor with its own embedded BTB.
func NewStatic(btb *BTB) *Static {
	return &Static{btb: btb}
}

// Predict implements DirectionPredictor.
func (s *Static) Predict(inst Instruction, oracleNextID InstID, update bool) PredType {
	t := outcome(inst, oracleNextID)

	g := false
	if th, ok := inst.(TargetHint); ok {
		if target, known := th.StaticTargetID(); known {
			g = target < inst.CurrentID()
		}
	}

	return resolveWithBTB(s.btb, g, t, inst, oracleNextID, update)
}
