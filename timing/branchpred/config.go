package branchpred

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the section-scoped configuration for one Predictor instance,
// covering every option in §6: predictor selection, BTB/RAS geometry, the
// per-cycle fetch-bandwidth budget, and the per-variant table parameters.
//
// Unused fields for a given Type are ignored rather than rejected, mirroring
// how the rest of the simulator's JSON configs (see timing/latency) tolerate
// a single flat struct shared across call sites.
type Config struct {
	// Type selects the direction predictor variant. One of Oracle,
	// NotTaken, Taken, Static, 2bit, 2level, Hybrid, 2BcgSkew, YAGS, OGEHL.
	Type string `json:"type"`

	// BTBSize is the total number of BTB entries. Default: 1024.
	BTBSize uint32 `json:"btb_size"`
	// BTBAssoc is the BTB's associativity (ways per set). Default: 4.
	BTBAssoc uint32 `json:"btb_assoc"`
	// RasSize is the return-address stack depth. Zero disables the RAS.
	RasSize uint32 `json:"ras_size"`

	// Bpred4Cycle caps the number of predictions issued per simulated
	// cycle. Zero means unlimited.
	Bpred4Cycle uint32 `json:"bpred4_cycle"`
	// Bpred4CycleAddrShift folds this many low bits out of an instruction's
	// id before it keys the per-instruction diagnostic tally (see
	// Predictor.diagKey and DESIGN.md); it does not affect the bandwidth
	// quota itself, which counts calls rather than grouping them by PC.
	Bpred4CycleAddrShift uint8 `json:"bpred4_cycle_addr_shift"`

	// Size/Bits parameterize the 2-bit bimodal table.
	Size uint32 `json:"size"`
	Bits uint8  `json:"bits"`

	// L1Size/L2Size/HistorySize parameterize the 2-level (PAg) predictor
	// and the local half of Hybrid.
	L1Size      uint32 `json:"l1size"`
	L2Size      uint32 `json:"l2size"`
	HistorySize uint8  `json:"history_size"`

	// GlobalSize parameterizes the GAg half of Hybrid.
	GlobalSize uint32 `json:"global_size"`
	// MetaSize/MetaHistSize parameterize Hybrid's tournament meta-table.
	MetaSize     uint32 `json:"meta_size"`
	MetaHistSize uint8  `json:"meta_hist_size"`

	// BIMSize/BIMBits, G0Size/G0HistSize, G1Size/G1HistSize,
	// GMetaSize/GMetaHistSize parameterize 2Bc-gskew.
	BIMSize    uint32 `json:"bim_size"`
	BIMBits    uint8  `json:"bim_bits"`
	G0Size     uint32 `json:"g0_size"`
	G0HistSize uint8  `json:"g0_hist_size"`
	G1Size     uint32 `json:"g1_size"`
	G1HistSize uint8  `json:"g1_hist_size"`
	GMetaSize  uint32 `json:"gmeta_size"`
	GMetaHist  uint8  `json:"gmeta_hist_size"`

	// TSize/CTSize/CTBits/CTTagSize parameterize YAGS: the bimodal
	// baseline size, the tagged cache size, its counter width, and its
	// tag width.
	TSize     uint32 `json:"tsize"`
	CTSize    uint32 `json:"ctsize"`
	CTBits    uint8  `json:"ctbits"`
	CTTagSize uint8  `json:"cttagsize"`

	// MTables/NEntry/GLength/AddWidth parameterize O-GEHL: table count,
	// entries per table, base geometric history length, and path-history
	// width.
	MTables  int    `json:"mtables"`
	NEntry   uint32 `json:"nentry"`
	GLength  int    `json:"glength"`
	AddWidth uint8  `json:"addwidth"`

	// SMTCopy, when true, shares the direction predictor and BTB with the
	// Predictor this one is spawned from instead of building its own (see
	// §5). RAS and counters always stay per-instance.
	SMTCopy bool `json:"smt_copy"`

	// EnableDiagnostics turns on the per-instruction accuracy tally
	// consumed by the context-switch report. Default: true.
	EnableDiagnostics bool `json:"enable_diagnostics"`
}

// DefaultConfig returns baseline geometry shared by every variant; Type is
// left empty since the factory requires an explicit choice.
func DefaultConfig() Config {
	return Config{
		BTBSize:              1024,
		BTBAssoc:             4,
		RasSize:              8,
		Bpred4Cycle:          0,
		Bpred4CycleAddrShift: 2,
		Size:                 4096,
		Bits:                 2,
		L1Size:               1024,
		L2Size:               4096,
		HistorySize:          10,
		GlobalSize:           4096,
		MetaSize:             4096,
		MetaHistSize:         10,
		BIMSize:              4096,
		BIMBits:              2,
		G0Size:               1024,
		G0HistSize:           8,
		G1Size:               4096,
		G1HistSize:           14,
		GMetaSize:            4096,
		GMetaHist:            10,
		TSize:                4096,
		CTSize:               1024,
		CTBits:               2,
		CTTagSize:            8,
		MTables:              8,
		NEntry:               1024,
		GLength:              3,
		AddWidth:             16,
		EnableDiagnostics:    true,
	}
}

// LoadConfig reads a Config from a JSON file, starting from DefaultConfig
// so an input file only needs to override what it cares about.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("branchpred: reading config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("branchpred: parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as indented JSON.
func SaveConfig(cfg Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("branchpred: serializing config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("branchpred: writing config %s: %w", path, err)
	}
	return nil
}
