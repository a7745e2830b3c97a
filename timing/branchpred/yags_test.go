package branchpred_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/m2sim/timing/branchpred"
)

var _ = Describe("YAGS", func() {
	var (
		btb *branchpred.BTB
		y   *branchpred.YAGS
	)

	BeforeEach(func() {
		btb, _ = branchpred.NewBTB(8, 2)
		var err error
		y, err = branchpred.NewYAGS(256, 2, 64, 8, 2, 8, btb)
		Expect(err).NotTo(HaveOccurred())
	})

	It("always updates the bimodal baseline even without a cache allocation", func() {
		inst := branchpred.Branch{ID: 0xB00, FallThru: 0xB04, Sub: branchpred.KindConditional}
		var last branchpred.PredType
		for i := 0; i < 20; i++ {
			last = y.Predict(inst, inst.FallThroughID(), true)
		}
		Expect(last).To(Equal(branchpred.CorrectPrediction))
	})

	It("allocates an exception cache entry for a branch that breaks the bimodal bias", func() {
		inst := branchpred.Branch{ID: 0xB10, FallThru: 0xB14, Sub: branchpred.KindConditional}
		// Train the bimodal baseline strongly not-taken first.
		for i := 0; i < 5; i++ {
			y.Predict(inst, inst.FallThroughID(), true)
		}
		var last branchpred.PredType
		for i := 0; i < 10; i++ {
			last = y.Predict(inst, 0xC00, true)
		}
		Expect(last).To(Equal(branchpred.CorrectPrediction))
	})
})
