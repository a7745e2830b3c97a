package branchpred

import "fmt"

// tagCache is YAGS's exception cache: a small tagged table of 2-bit
// counters that overrides the bimodal baseline for branches that break
// their static bias.
type tagCache struct {
	tags     []uint32
	valid    []bool
	counters *SCTable
	tagMask  uint32
}

func newTagCache(size uint32, tagBits uint8, counterBits uint8) (*tagCache, error) {
	counters, err := NewSCTable(size, counterBits)
	if err != nil {
		return nil, err
	}
	var tagMask uint32
	if tagBits >= 32 {
		tagMask = ^uint32(0)
	} else {
		tagMask = (uint32(1) << tagBits) - 1
	}
	return &tagCache{
		tags:     make([]uint32, size),
		valid:    make([]bool, size),
		counters: counters,
		tagMask:  tagMask,
	}, nil
}

func (c *tagCache) index(key uint64) uint32 {
	return uint32(key) & uint32(len(c.valid)-1)
}

func (c *tagCache) tagOf(key uint64) uint32 {
	return uint32(key>>13) & c.tagMask
}

// lookup reports whether a valid, tag-matching entry exists at key's index.
func (c *tagCache) lookup(key uint64) (idx uint32, tag uint32, hit bool) {
	idx = c.index(key)
	tag = c.tagOf(key)
	hit = c.valid[idx] && c.tags[idx] == tag
	return idx, tag, hit
}

func (c *tagCache) predict(idx uint32) bool {
	return c.counters.Predict(idx)
}

func (c *tagCache) update(idx uint32, taken bool) {
	c.counters.Update(idx, taken)
}

// allocate installs a fresh entry, reset to weakly predict the opposite of
// the bimodal baseline it is meant to override.
func (c *tagCache) allocate(idx, tag uint32, biasOppositeOfBimodalTaken bool) {
	c.tags[idx] = tag
	c.valid[idx] = true
	c.counters.Reset(idx, biasOppositeOfBimodalTaken)
}

// YAGS (Yet Another Global Scheme) pairs a bimodal baseline with two tagged
// caches, one for branches biased taken and one for branches biased
// not-taken, each recording the exceptions that break that bias.
type YAGS struct {
	noopSwitch
	bim           *SCTable
	takenCache    *tagCache
	notTakenCache *tagCache
	ghr           History
	btb           *BTB
}

// NewYAGS builds a YAGS predictor. bimSize/bimBits parameterize the
// baseline bimodal table; cacheSize/tagBits/counterBits parameterize both
// exception caches; historyWidth is the GHR width used to index them.
func NewYAGS(bimSize uint32, bimBits uint8, cacheSize uint32, tagBits, counterBits uint8, historyWidth uint8, btb *BTB) (*YAGS, error) {
	bim, err := NewSCTable(bimSize, bimBits)
	if err != nil {
		return nil, fmt.Errorf("branchpred: yags bimodal table: %w", err)
	}
	takenCache, err := newTagCache(cacheSize, tagBits, counterBits)
	if err != nil {
		return nil, fmt.Errorf("branchpred: yags taken-cache: %w", err)
	}
	notTakenCache, err := newTagCache(cacheSize, tagBits, counterBits)
	if err != nil {
		return nil, fmt.Errorf("branchpred: yags not-taken-cache: %w", err)
	}

	return &YAGS{
		bim:           bim,
		takenCache:    takenCache,
		notTakenCache: notTakenCache,
		ghr:           NewHistory(historyWidth),
		btb:           btb,
	}, nil
}

// Predict implements DirectionPredictor.
func (y *YAGS) Predict(inst Instruction, oracleNextID InstID, update bool) PredType {
	id := inst.CurrentID()
	bimIdx := uint32(hashPC(id))
	gBim := y.bim.Predict(bimIdx)

	key := hashPCHistory(id, y.ghr.Value())
	cache := y.notTakenCache
	if gBim {
		cache = y.takenCache
	}

	idx, tag, hit := cache.lookup(key)
	g := gBim
	if hit {
		g = cache.predict(idx)
	}

	t := outcome(inst, oracleNextID)

	if update {
		y.bim.Update(bimIdx, t)
		if hit {
			cache.update(idx, t)
		} else if g != t {
			cache.allocate(idx, tag, !gBim)
		}
		y.ghr = y.ghr.Shift(t)
	}

	return resolveWithBTB(y.btb, g, t, inst, oracleNextID, update)
}
