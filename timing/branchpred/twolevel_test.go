package branchpred_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/m2sim/timing/branchpred"
)

var _ = Describe("TwoLevel", func() {
	var (
		btb *branchpred.BTB
		p   *branchpred.TwoLevel
	)

	BeforeEach(func() {
		btb, _ = branchpred.NewBTB(8, 2)
		var err error
		p, err = branchpred.NewTwoLevel(16, 256, 4, 2, btb)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects a non-power-of-two local-history table size", func() {
		_, err := branchpred.NewTwoLevel(3, 256, 4, 2, btb)
		Expect(err).To(HaveOccurred())
	})

	It("learns a fixed taken/not-taken pattern per branch", func() {
		inst := branchpred.Branch{ID: 0x400, FallThru: 0x404, Sub: branchpred.KindConditional}
		var last branchpred.PredType
		for i := 0; i < 20; i++ {
			last = p.Predict(inst, 0x500, true)
		}
		Expect(last).To(Equal(branchpred.CorrectPrediction))
	})

	It("does not mutate local history when update is false", func() {
		inst := branchpred.Branch{ID: 0x410, FallThru: 0x414, Sub: branchpred.KindConditional}
		first := p.Predict(inst, 0x500, false)
		second := p.Predict(inst, 0x500, false)
		Expect(first).To(Equal(second))
	})
})
