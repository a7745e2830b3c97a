// Command bpredsim replays a dynamic branch trace through a configured
// branchpred.Predictor and reports its accuracy.
//
// Usage:
//
//	go run ./cmd/bpredsim [flags]
//
// Flags:
//
//	-config   Path to a JSON branchpred.Config file (default: built-in 2-bit bimodal)
//	-trace    Path to a JSON trace file (default: a small built-in synthetic trace)
//	-type     Override the predictor type from -config (e.g. Hybrid, OGEHL)
//
// Example:
//
//	# Run the built-in synthetic trace against the default bimodal predictor
//	go run ./cmd/bpredsim
//
//	# Compare a hybrid predictor against a recorded trace
//	go run ./cmd/bpredsim -type Hybrid -trace loop.json
//
// Trace file format: a JSON array of records
//
//	{"id": 256, "fallThrough": 260, "kind": "conditional", "target": 128, "oracleNextID": 128}
//
// "kind" is one of conditional, unconditional, call, return, indirect.
// "target" and its presence are optional (used only by the Static predictor).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/m2sim/timing/branchpred"
)

// traceRecord is the on-disk shape of one dynamic branch occurrence.
type traceRecord struct {
	ID           uint64 `json:"id"`
	FallThrough  uint64 `json:"fallThrough"`
	Kind         string `json:"kind"`
	Target       uint64 `json:"target"`
	HasTarget    bool   `json:"hasTarget"`
	OracleNextID uint64 `json:"oracleNextID"`
}

func (r traceRecord) toBranch() (branchpred.Branch, error) {
	kind, err := parseKind(r.Kind)
	if err != nil {
		return branchpred.Branch{}, err
	}
	return branchpred.Branch{
		ID:        branchpred.InstID(r.ID),
		FallThru:  branchpred.InstID(r.FallThrough),
		Sub:       kind,
		Target:    branchpred.InstID(r.Target),
		HasTarget: r.HasTarget,
	}, nil
}

func parseKind(s string) (branchpred.BranchKind, error) {
	switch s {
	case "conditional", "":
		return branchpred.KindConditional, nil
	case "unconditional":
		return branchpred.KindUnconditional, nil
	case "call":
		return branchpred.KindCall, nil
	case "return":
		return branchpred.KindReturn, nil
	case "indirect":
		return branchpred.KindIndirect, nil
	default:
		return 0, fmt.Errorf("bpredsim: unrecognized branch kind %q", s)
	}
}

// syntheticTrace is used when no -trace file is given: a loop with a
// call/return pair and a handful of conditional branches, enough to exercise
// every verdict kind without requiring external input.
func syntheticTrace() []traceRecord {
	var trace []traceRecord
	for i := 0; i < 20; i++ {
		// Backward-branch loop condition, taken on all but the last iteration.
		taken := i < 19
		next := uint64(0x080)
		if !taken {
			next = 0x104
		}
		trace = append(trace, traceRecord{
			ID: 0x100, FallThrough: 0x104, Kind: "conditional",
			Target: 0x080, HasTarget: true, OracleNextID: next,
		})
	}
	trace = append(trace,
		traceRecord{ID: 0x200, FallThrough: 0x204, Kind: "call", OracleNextID: 0x204},
		traceRecord{ID: 0x300, FallThrough: 0x304, Kind: "return", OracleNextID: 0x204},
	)
	return trace
}

func loadTrace(path string) ([]traceRecord, error) {
	if path == "" {
		return syntheticTrace(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bpredsim: reading trace %s: %w", path, err)
	}
	var records []traceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("bpredsim: parsing trace %s: %w", path, err)
	}
	return records, nil
}

func loadConfig(path, typeOverride string) (branchpred.Config, error) {
	cfg := branchpred.DefaultConfig()
	cfg.Type = "2bit"
	if path != "" {
		loaded, err := branchpred.LoadConfig(path)
		if err != nil {
			return branchpred.Config{}, err
		}
		cfg = loaded
	}
	if typeOverride != "" {
		cfg.Type = typeOverride
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "Path to a JSON branchpred.Config file")
	tracePath := flag.String("trace", "", "Path to a JSON trace file")
	typeOverride := flag.String("type", "", "Override the predictor type")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *typeOverride)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bpredsim: %v\n", err)
		os.Exit(1)
	}

	predictor, err := branchpred.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bpredsim: %v\n", err)
		os.Exit(1)
	}

	records, err := loadTrace(*tracePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bpredsim: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("bpredsim: replaying %d branches against type=%s\n", len(records), cfg.Type)

	predictor.BeginCycle()
	for _, rec := range records {
		branch, err := rec.toBranch()
		if err != nil {
			fmt.Fprintf(os.Stderr, "bpredsim: %v\n", err)
			os.Exit(1)
		}
		predictor.Predict(branch, branchpred.InstID(rec.OracleNextID), true)
	}

	stats := predictor.Stats()
	fmt.Printf("nBranches=%d nTaken=%d nHit=%d nMiss=%d nNoPrediction=%d accuracy=%.2f%%\n",
		stats.NBranches, stats.NTaken, stats.NHit, stats.NMiss, stats.NNoPrediction,
		stats.Accuracy()*100)

	predictor.SwitchOut(0)
}
