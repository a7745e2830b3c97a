package branchpred

import "fmt"

// New is documented in predictor.go; buildDirectionPredictor is the
// factory's actual variant switch, selecting and constructing one
// direction predictor (with its embedded BTB, where the variant needs
// one) from a section-scoped Config. Unknown Type values are a fatal
// configuration error, per §7.
func buildDirectionPredictor(cfg Config) (DirectionPredictor, error) {
	switch cfg.Type {
	case "Oracle":
		btb, err := newBTBFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return NewOracle(btb), nil

	case "NotTaken":
		return NewNotTaken(), nil

	case "Taken":
		btb, err := newBTBFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return NewTaken(btb), nil

	case "Static":
		btb, err := newBTBFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return NewStatic(btb), nil

	case "2bit":
		btb, err := newBTBFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return NewBimodal(cfg.Size, cfg.Bits, btb)

	case "2level":
		btb, err := newBTBFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return NewTwoLevel(cfg.L1Size, cfg.L2Size, cfg.HistorySize, cfg.Bits, btb)

	case "Hybrid":
		btb, err := newBTBFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return NewHybrid(
			cfg.L1Size, cfg.L2Size, cfg.HistorySize,
			cfg.GlobalSize,
			cfg.MetaSize, cfg.MetaHistSize,
			cfg.Bits,
			btb,
		)

	case "2BcgSkew":
		btb, err := newBTBFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return NewGskew(GskewConfig{
			BIMSize:      cfg.BIMSize,
			BIMBits:      uint32(cfg.BIMBits),
			G0Size:       cfg.G0Size,
			G0HistBits:   uint32(cfg.G0HistSize),
			G1Size:       cfg.G1Size,
			G1HistBits:   uint32(cfg.G1HistSize),
			MetaSize:     cfg.GMetaSize,
			MetaHistBits: uint32(cfg.GMetaHist),
			Bits:         cfg.BIMBits,
		}, btb)

	case "YAGS":
		btb, err := newBTBFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return NewYAGS(cfg.TSize, cfg.Bits, cfg.CTSize, cfg.CTTagSize, cfg.CTBits, cfg.HistorySize, btb)

	case "OGEHL":
		btb, err := newBTBFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return NewOGEHL(cfg.MTables, cfg.NEntry, cfg.Bits, cfg.GLength, cfg.AddWidth, btb)

	default:
		return nil, fmt.Errorf("branchpred: unknown predictor type %q", cfg.Type)
	}
}

func newBTBFromConfig(cfg Config) (*BTB, error) {
	assoc := cfg.BTBAssoc
	if assoc == 0 {
		assoc = 1
	}
	sets := cfg.BTBSize / assoc
	if sets == 0 {
		sets = 1
	}
	return NewBTB(int(sets), int(assoc))
}

// NewFromSection builds a top-level Predictor for the named configuration
// section. The section name is accepted for parity with the external
// config-file layout (one [section] per simulated core or SMT thread); the
// core itself does not look the section up, since the caller has already
// resolved cfg from it.
func NewFromSection(section string, cfg Config) (*Predictor, error) {
	p, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("branchpred: section %q: %w", section, err)
	}
	return p, nil
}
