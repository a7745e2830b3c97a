package branchpred

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// BTB is a set-associative branch-target buffer built on the same Akita
// cache directory the data/instruction caches use (see timing/cache), keyed
// by branch InstID instead of a memory address. It stores exactly one
// piece of payload per entry: the last-seen target InstID.
type BTB struct {
	directory *akitacache.DirectoryImpl
	targets   []InstID
	assoc     int
}

// NewBTB builds a BTB with numSets sets of assoc ways each (numSets*assoc
// total entries). Both must be positive.
func NewBTB(numSets, assoc int) (*BTB, error) {
	if numSets <= 0 {
		return nil, fmt.Errorf("branchpred: BTB set count %d must be positive", numSets)
	}
	if assoc <= 0 {
		return nil, fmt.Errorf("branchpred: BTB associativity %d must be positive", assoc)
	}

	return &BTB{
		directory: akitacache.NewDirectory(numSets, assoc, 1, akitacache.NewLRUVictimFinder()),
		targets:   make([]InstID, numSets*assoc),
		assoc:     assoc,
	}, nil
}

func (b *BTB) slot(block *akitacache.Block) int {
	return block.SetID*b.assoc + block.WayID
}

// Predict looks up the branch's cached target and compares it against the
// oracle. A fall-through (not-taken) oracle outcome never touches the BTB
// at all: it is trivially correct, since there is no target to get wrong.
func (b *BTB) Predict(inst Instruction, oracleNextID InstID, update bool) PredType {
	if oracleNextID == inst.FallThroughID() {
		return CorrectPrediction
	}

	tag := uint64(inst.CurrentID())
	block := b.directory.Lookup(0, tag)

	if block != nil && block.IsValid {
		hit := b.targets[b.slot(block)] == oracleNextID
		if update {
			if hit {
				b.directory.Visit(block)
			} else {
				b.targets[b.slot(block)] = oracleNextID
				b.directory.Visit(block)
			}
		}
		if hit {
			return CorrectPrediction
		}
		return MissPrediction
	}

	if update {
		b.allocate(tag, oracleNextID)
	}
	return NoBTBPrediction
}

// UpdateOnly trains the BTB's target cache without producing a prediction
// verdict. Direction predictors call this when their own direction guess
// was wrong but still want the BTB to learn the real target for next time.
func (b *BTB) UpdateOnly(inst Instruction, oracleNextID InstID) {
	if oracleNextID == inst.FallThroughID() {
		return
	}

	tag := uint64(inst.CurrentID())
	block := b.directory.Lookup(0, tag)
	if block != nil && block.IsValid {
		b.targets[b.slot(block)] = oracleNextID
		b.directory.Visit(block)
		return
	}
	b.allocate(tag, oracleNextID)
}

func (b *BTB) allocate(tag uint64, target InstID) {
	victim := b.directory.FindVictim(tag)
	if victim == nil {
		return
	}
	victim.Tag = tag
	victim.IsValid = true
	b.targets[b.slot(victim)] = target
	b.directory.Visit(victim)
}

// Reset invalidates every entry.
func (b *BTB) Reset() {
	b.directory.Reset()
	for i := range b.targets {
		b.targets[i] = InvalidInstID
	}
}
