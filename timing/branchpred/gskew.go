package branchpred

import (
	"fmt"
	"math/bits"
)

// Gskew implements 2Bc-gskew: a bimodal bank plus two gshare-like banks
// indexed by differently-skewed history folds, combined by majority vote,
// with a meta table choosing between the plain bimodal guess and the
// 3-way majority.
type Gskew struct {
	noopSwitch
	bim      *SCTable
	g0, g1   *SCTable
	meta     *SCTable
	ghr0     History
	ghr1     History
	metaHist History
	btb      *BTB
}

// GskewConfig groups the four table geometries 2Bc-gskew needs.
type GskewConfig struct {
	BIMSize, BIMBits       uint32
	G0Size, G0HistBits     uint32
	G1Size, G1HistBits     uint32
	MetaSize, MetaHistBits uint32
	Bits                   uint8
}

// NewGskew builds a 2Bc-gskew predictor from the given table geometries.
func NewGskew(cfg GskewConfig, btb *BTB) (*Gskew, error) {
	bim, err := NewSCTable(cfg.BIMSize, cfg.Bits)
	if err != nil {
		return nil, fmt.Errorf("branchpred: gskew BIM table: %w", err)
	}
	g0, err := NewSCTable(cfg.G0Size, cfg.Bits)
	if err != nil {
		return nil, fmt.Errorf("branchpred: gskew G0 table: %w", err)
	}
	g1, err := NewSCTable(cfg.G1Size, cfg.Bits)
	if err != nil {
		return nil, fmt.Errorf("branchpred: gskew G1 table: %w", err)
	}
	meta, err := NewSCTable(cfg.MetaSize, cfg.Bits)
	if err != nil {
		return nil, fmt.Errorf("branchpred: gskew meta table: %w", err)
	}

	return &Gskew{
		bim:      bim,
		g0:       g0,
		g1:       g1,
		meta:     meta,
		ghr0:     NewHistory(uint8(cfg.G0HistBits)),
		ghr1:     NewHistory(uint8(cfg.G1HistBits)),
		metaHist: NewHistory(uint8(cfg.MetaHistBits)),
		btb:      btb,
	}, nil
}

func majority3(a, b, c bool) bool {
	count := 0
	for _, v := range []bool{a, b, c} {
		if v {
			count++
		}
	}
	return count >= 2
}

// Predict implements DirectionPredictor.
func (g *Gskew) Predict(inst Instruction, oracleNextID InstID, update bool) PredType {
	id := inst.CurrentID()
	bimIdx := uint32(hashPC(id))
	g0Idx := uint32(hashPCHistory(id, bits.RotateLeft64(g.ghr0.Value(), 3)))
	g1Idx := uint32(hashPCHistory(id, bits.RotateLeft64(g.ghr1.Value(), 11)))
	metaIdx := uint32(hashPCHistory(id, g.metaHist.Value()))

	gBim := g.bim.Predict(bimIdx)
	g0v := g.g0.Predict(g0Idx)
	g1v := g.g1.Predict(g1Idx)
	majority := majority3(gBim, g0v, g1v)

	preferMajority := g.meta.Predict(metaIdx)
	guess := gBim
	if preferMajority {
		guess = majority
	}

	t := outcome(inst, oracleNextID)

	if update {
		if majority == t {
			if gBim == majority {
				g.bim.Update(bimIdx, t)
			}
			if g0v == majority {
				g.g0.Update(g0Idx, t)
			}
			if g1v == majority {
				g.g1.Update(g1Idx, t)
			}
		} else {
			g.bim.Update(bimIdx, t)
			g.g0.Update(g0Idx, t)
			g.g1.Update(g1Idx, t)
		}

		if gBim != majority {
			g.meta.Update(metaIdx, majority == t)
		}

		g.ghr0 = g.ghr0.Shift(t)
		g.ghr1 = g.ghr1.Shift(t)
		g.metaHist = g.metaHist.Shift(t)
	}

	return resolveWithBTB(g.btb, guess, t, inst, oracleNextID, update)
}
