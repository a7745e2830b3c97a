package branchpred_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/m2sim/timing/branchpred"
)

var _ = Describe("Gskew", func() {
	var (
		btb *branchpred.BTB
		g   *branchpred.Gskew
	)

	It("rejects a non-power-of-two table size in any bank", func() {
		btb, _ := branchpred.NewBTB(8, 2)
		_, err := branchpred.NewGskew(branchpred.GskewConfig{
			BIMSize: 300, BIMBits: 2,
			G0Size: 256, G0HistBits: 6,
			G1Size: 256, G1HistBits: 10,
			MetaSize: 256, MetaHistBits: 6,
			Bits: 2,
		}, btb)
		Expect(err).To(HaveOccurred())
	})

	BeforeEach(func() {
		btb, _ = branchpred.NewBTB(8, 2)
		cfg := branchpred.GskewConfig{
			BIMSize: 256, BIMBits: 2,
			G0Size: 256, G0HistBits: 6,
			G1Size: 256, G1HistBits: 10,
			MetaSize: 256, MetaHistBits: 6,
			Bits: 2,
		}
		var err error
		g, err = branchpred.NewGskew(cfg, btb)
		Expect(err).NotTo(HaveOccurred())
	})

	It("converges on a strongly-biased always-taken branch", func() {
		inst := branchpred.Branch{ID: 0x900, FallThru: 0x904, Sub: branchpred.KindConditional}
		var last branchpred.PredType
		for i := 0; i < 30; i++ {
			last = g.Predict(inst, 0xA00, true)
		}
		Expect(last).To(Equal(branchpred.CorrectPrediction))
	})

	It("converges on a strongly-biased always-not-taken branch", func() {
		inst := branchpred.Branch{ID: 0x910, FallThru: 0x914, Sub: branchpred.KindConditional}
		var last branchpred.PredType
		for i := 0; i < 30; i++ {
			last = g.Predict(inst, inst.FallThroughID(), true)
		}
		Expect(last).To(Equal(branchpred.CorrectPrediction))
	})
})
