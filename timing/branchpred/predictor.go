package branchpred

import "fmt"

// Stats holds the top-level counters the core emits for the external
// statistics registry (§6).
type Stats struct {
	NBranches     uint64
	NTaken        uint64
	NHit          uint64
	NMiss         uint64
	NNoPrediction uint64
}

// Accuracy returns the fraction of branches that resolved without a miss.
func (s Stats) Accuracy() float64 {
	if s.NBranches == 0 {
		return 0
	}
	return float64(s.NBranches-s.NMiss) / float64(s.NBranches)
}

// diagBucket is one row of the four-bucket execution-count histogram
// printed on switchOut.
type diagBucket struct {
	label      string
	correct    uint64
	mispredict uint64
}

type diagEntry struct {
	correct    uint64
	mispredict uint64
}

// maxDiagnosticEntries bounds the per-instruction tally map so a long run
// with many distinct branch PCs doesn't grow it without limit; §9 flags
// this growth as worth bounding since the map is diagnostic, not
// predictor state. Oldest entries are evicted once the cap is hit.
const maxDiagnosticEntries = 1 << 16

// Predictor is the top-level branch-prediction dispatcher: RAS, one
// direction predictor, and its embedded BTB, composed under a per-cycle
// fetch-bandwidth budget.
type Predictor struct {
	ras *RAS
	dir DirectionPredictor

	bwQuota     uint32
	bwAddrShift uint8
	bwUsed      uint32

	stats Stats

	diagEnabled bool
	diag        map[uint64]*diagEntry
	diagOrder   []uint64
}

// New builds a Predictor from cfg, constructing a fresh RAS, direction
// predictor, and BTB via the factory.
func New(cfg Config) (*Predictor, error) {
	dir, err := buildDirectionPredictor(cfg)
	if err != nil {
		return nil, err
	}
	return newPredictor(cfg, dir), nil
}

// NewSMTCopy builds a secondary Predictor that shares primary's direction
// predictor (and its embedded BTB) without duplicating them, per the
// SMTcopy model in §5. The secondary keeps its own RAS and counters.
func NewSMTCopy(primary *Predictor, cfg Config) *Predictor {
	return newPredictor(cfg, primary.dir)
}

func newPredictor(cfg Config, dir DirectionPredictor) *Predictor {
	p := &Predictor{
		ras:         NewRAS(cfg.RasSize),
		dir:         dir,
		bwQuota:     cfg.Bpred4Cycle,
		bwAddrShift: cfg.Bpred4CycleAddrShift,
		diagEnabled: cfg.EnableDiagnostics,
	}
	if p.diagEnabled {
		p.diag = make(map[uint64]*diagEntry)
	}
	return p
}

// BeginCycle resets the per-cycle fetch-bandwidth budget. The surrounding
// fetch stage calls this once per simulated cycle, before issuing that
// cycle's Predict calls.
func (p *Predictor) BeginCycle() {
	p.bwUsed = 0
}

// Predict implements the full dispatch contract: bandwidth check, RAS,
// then the configured direction predictor.
func (p *Predictor) Predict(inst Instruction, oracleNextID InstID, update bool) PredType {
	if !inst.IsBranch() {
		panic("branchpred: Predict called on a non-branch instruction")
	}

	if update {
		p.stats.NBranches++
		if oracleNextID != inst.FallThroughID() {
			p.stats.NTaken++
		}
	}

	var verdict PredType
	bandwidthExhausted := p.bwQuota != 0 && p.bwUsed >= p.bwQuota

	if bandwidthExhausted {
		verdict = NoPrediction
	} else {
		if p.bwQuota != 0 {
			p.bwUsed++
		}
		verdict = p.ras.Predict(inst, oracleNextID)
		if verdict == NoPrediction {
			verdict = p.dir.Predict(inst, oracleNextID, update)
		}
	}

	if update {
		switch verdict {
		case CorrectPrediction:
			p.stats.NHit++
		case NoPrediction:
			p.stats.NNoPrediction++
		default: // MissPrediction, NoBTBPrediction
			p.stats.NMiss++
		}
		p.recordDiagnostic(inst.CurrentID(), verdict)
	}

	return verdict
}

// diagKey folds a raw instruction id down to the diagnostic tally key: shift
// off the low bpred4CycleAddrShift bits (the ones the bandwidth quota already
// restricts per cycle) and XOR-fold the result, mirroring BPred.h's
// calcInstID.
func (p *Predictor) diagKey(id InstID) uint64 {
	cid := uint64(id) >> p.bwAddrShift
	return (cid >> 17) ^ cid
}

func (p *Predictor) recordDiagnostic(id InstID, verdict PredType) {
	if !p.diagEnabled {
		return
	}
	key := p.diagKey(id)
	entry, ok := p.diag[key]
	if !ok {
		if len(p.diag) >= maxDiagnosticEntries {
			oldest := p.diagOrder[0]
			p.diagOrder = p.diagOrder[1:]
			delete(p.diag, oldest)
		}
		entry = &diagEntry{}
		p.diag[key] = entry
		p.diagOrder = append(p.diagOrder, key)
	}
	if verdict == CorrectPrediction {
		entry.correct++
	} else {
		entry.mispredict++
	}
}

// Stats returns the top-level prediction counters accumulated so far.
func (p *Predictor) Stats() Stats {
	return p.stats
}

// RAS exposes the embedded return-address stack, mainly for tests.
func (p *Predictor) RAS() *RAS {
	return p.ras
}

// SwitchIn notifies the direction predictor of a process/context boundary.
func (p *Predictor) SwitchIn(pid int) {
	p.dir.SwitchIn(pid)
}

// SwitchOut notifies the direction predictor of a process/context boundary
// and emits the diagnostic accuracy report.
func (p *Predictor) SwitchOut(pid int) {
	p.dir.SwitchOut(pid)
	p.Dump(fmt.Sprintf("switchOut pid=%d", pid))
}

// histogram buckets instructions by execution count into the four rows the
// context-switch report prints.
func (p *Predictor) histogram() []diagBucket {
	buckets := []diagBucket{
		{label: "<10"},
		{label: "10-99"},
		{label: "100-999"},
		{label: ">=1000"},
	}
	for _, e := range p.diag {
		total := e.correct + e.mispredict
		var i int
		switch {
		case total < 10:
			i = 0
		case total < 100:
			i = 1
		case total < 1000:
			i = 2
		default:
			i = 3
		}
		buckets[i].correct += e.correct
		buckets[i].mispredict += e.mispredict
	}
	return buckets
}

// Dump prints the per-branch accuracy histogram under the given label. It
// is diagnostic output, not predictor state: disabling EnableDiagnostics
// makes it a no-op.
func (p *Predictor) Dump(label string) {
	if !p.diagEnabled {
		return
	}
	fmt.Printf("branchpred diagnostic report: %s\n", label)
	for _, b := range p.histogram() {
		total := b.correct + b.mispredict
		ratio := 0.0
		if total > 0 {
			ratio = float64(b.correct) / float64(total) * 100
		}
		fmt.Printf("  %-8s correct=%d mispredict=%d accuracy=%.2f%%\n", b.label, b.correct, b.mispredict, ratio)
	}
}
