package branchpred

import "fmt"

// twoLevelCore is the pure direction-guessing half of a PAg-style two-level
// predictor: a per-branch local-history table feeding a shared pattern
// table. It has no BTB of its own so that Hybrid can embed one core per
// sub-predictor and own a single BTB at the top.
type twoLevelCore struct {
	localHist    []History
	historyWidth uint8
	pattern      *SCTable
}

func newTwoLevelCore(l1Size, l2Size uint32, historyWidth uint8, bits uint8) (*twoLevelCore, error) {
	if l1Size == 0 || l1Size&(l1Size-1) != 0 {
		return nil, fmt.Errorf("branchpred: two-level l1size %d is not a power of two", l1Size)
	}
	pattern, err := NewSCTable(l2Size, bits)
	if err != nil {
		return nil, err
	}

	return &twoLevelCore{
		localHist:    make([]History, l1Size),
		historyWidth: historyWidth,
		pattern:      pattern,
	}, nil
}

func (c *twoLevelCore) localIndex(id InstID) uint32 {
	return uint32(hashPC(id)) & uint32(len(c.localHist)-1)
}

func (c *twoLevelCore) patternIndex(id InstID) uint32 {
	li := c.localIndex(id)
	h := c.localHist[li]
	return uint32(hashPCHistory(id, h.Value()))
}

// predict returns the direction guess without touching state.
func (c *twoLevelCore) predict(id InstID) bool {
	return c.pattern.Predict(c.patternIndex(id))
}

// update trains the pattern counter and appends the resolved outcome to
// the branch's local history.
func (c *twoLevelCore) update(id InstID, t bool) {
	li := c.localIndex(id)
	patIdx := c.patternIndex(id)
	c.pattern.Update(patIdx, t)
	if c.historyWidth == 0 {
		return
	}
	c.localHist[li] = c.localHist[li].Shift(t)
}

// TwoLevel is the PAg two-level predictor: a twoLevelCore with its own
// embedded BTB.
type TwoLevel struct {
	noopSwitch
	core *twoLevelCore
	btb  *BTB
}

// NewTwoLevel builds a PAg predictor. l1Size is the per-branch local-history
// table size, l2Size is the shared pattern table size (both powers of
// two), historyWidth is the number of bits of local history kept per
// branch, and bits is the pattern counter width.
func NewTwoLevel(l1Size, l2Size uint32, historyWidth, bits uint8, btb *BTB) (*TwoLevel, error) {
	core, err := newTwoLevelCore(l1Size, l2Size, historyWidth, bits)
	if err != nil {
		return nil, err
	}
	for i := range core.localHist {
		core.localHist[i] = NewHistory(historyWidth)
	}
	return &TwoLevel{core: core, btb: btb}, nil
}

// Predict implements DirectionPredictor.
func (p *TwoLevel) Predict(inst Instruction, oracleNextID InstID, update bool) PredType {
	id := inst.CurrentID()
	g := p.core.predict(id)
	t := outcome(inst, oracleNextID)

	if update {
		p.core.update(id, t)
	}

	return resolveWithBTB(p.btb, g, t, inst, oracleNextID, update)
}
