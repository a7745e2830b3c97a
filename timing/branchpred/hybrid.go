package branchpred

import "fmt"

// gagCore is a GAg-style global-history predictor: a single pattern table
// indexed purely by the global history register, with no PC contribution.
// It shares the same saturating-counter primitive as every other table.
type gagCore struct {
	pattern *SCTable
}

func newGAgCore(size uint32, bits uint8) (*gagCore, error) {
	pattern, err := NewSCTable(size, bits)
	if err != nil {
		return nil, err
	}
	return &gagCore{pattern: pattern}, nil
}

func (c *gagCore) predict(ghr uint64) bool {
	return c.pattern.Predict(uint32(ghr))
}

func (c *gagCore) update(ghr uint64, t bool) {
	c.pattern.Update(uint32(ghr), t)
}

// HybridStats reports how often the tournament meta-predictor chose each
// sub-predictor and how each fared on its own, for diagnostics.
type HybridStats struct {
	ChoseLocal    uint64
	ChoseGlobal   uint64
	LocalCorrect  uint64
	GlobalCorrect uint64
}

// Hybrid is a tournament predictor: a local (PAg-style) and a global (GAg)
// direction predictor, arbitrated by a meta-table indexed by global history.
// Both sub-predictors train unconditionally on every update; the meta
// counter only moves when the two sub-predictors disagreed about the
// outcome, nudging toward whichever one was right.
type Hybrid struct {
	noopSwitch
	local  *twoLevelCore
	global *gagCore
	meta   *SCTable
	ghr    History
	btb    *BTB
	stats  HybridStats
}

// NewHybrid builds a tournament predictor. l1Size/l2Size/localHistWidth
// parameterize the embedded local (PAg) predictor; globalSize parameterizes
// the GAg predictor; metaSize/historyWidth parameterize the meta-table and
// the shared global history register they both index by. bits is the
// counter width used throughout.
func NewHybrid(
	l1Size, l2Size uint32, localHistWidth uint8,
	globalSize uint32,
	metaSize uint32, historyWidth uint8,
	bits uint8,
	btb *BTB,
) (*Hybrid, error) {
	local, err := newTwoLevelCore(l1Size, l2Size, localHistWidth, bits)
	if err != nil {
		return nil, fmt.Errorf("branchpred: hybrid local predictor: %w", err)
	}
	for i := range local.localHist {
		local.localHist[i] = NewHistory(localHistWidth)
	}

	global, err := newGAgCore(globalSize, bits)
	if err != nil {
		return nil, fmt.Errorf("branchpred: hybrid global predictor: %w", err)
	}

	meta, err := NewSCTable(metaSize, bits)
	if err != nil {
		return nil, fmt.Errorf("branchpred: hybrid meta table: %w", err)
	}

	return &Hybrid{
		local:  local,
		global: global,
		meta:   meta,
		ghr:    NewHistory(historyWidth),
		btb:    btb,
	}, nil
}

// Stats returns the tournament arbitration counters accumulated so far.
func (h *Hybrid) Stats() HybridStats {
	return h.stats
}

// Predict implements DirectionPredictor.
func (h *Hybrid) Predict(inst Instruction, oracleNextID InstID, update bool) PredType {
	id := inst.CurrentID()
	ghrVal := h.ghr.Value()

	localGuess := h.local.predict(id)
	globalGuess := h.global.predict(ghrVal)

	metaIdx := uint32(ghrVal)
	preferGlobal := h.meta.Predict(metaIdx)

	g := localGuess
	if preferGlobal {
		g = globalGuess
		h.stats.ChoseGlobal++
	} else {
		h.stats.ChoseLocal++
	}

	t := outcome(inst, oracleNextID)

	if update {
		if localGuess == t {
			h.stats.LocalCorrect++
		}
		if globalGuess == t {
			h.stats.GlobalCorrect++
		}

		h.local.update(id, t)
		h.global.update(ghrVal, t)

		if localGuess != globalGuess {
			h.meta.Update(metaIdx, globalGuess == t)
		}

		h.ghr = h.ghr.Shift(t)
	}

	return resolveWithBTB(h.btb, g, t, inst, oracleNextID, update)
}
