package branchpred

// Bimodal is the classic 2-bit saturating-counter predictor: one SCTable
// indexed purely by a hash of the branch PC.
type Bimodal struct {
	noopSwitch
	sc  *SCTable
	btb *BTB
}

// NewBimodal builds a Bimodal predictor with the given table size (power of
// two) and counter width.
func NewBimodal(size uint32, bits uint8, btb *BTB) (*Bimodal, error) {
	sc, err := NewSCTable(size, bits)
	if err != nil {
		return nil, err
	}
	return &Bimodal{sc: sc, btb: btb}, nil
}

func (b *Bimodal) index(inst Instruction) uint32 {
	return uint32(hashPC(inst.CurrentID()))
}

// Predict implements DirectionPredictor.
func (b *Bimodal) Predict(inst Instruction, oracleNextID InstID, update bool) PredType {
	idx := b.index(inst)
	t := outcome(inst, oracleNextID)
	g := b.sc.Predict(idx)

	if update {
		b.sc.Update(idx, t)
	}

	return resolveWithBTB(b.btb, g, t, inst, oracleNextID, update)
}
