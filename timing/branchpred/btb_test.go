package branchpred_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/m2sim/timing/branchpred"
)

var _ = Describe("BTB", func() {
	var inst branchpred.Branch

	BeforeEach(func() {
		inst = branchpred.Branch{ID: 0x300, FallThru: 0x304, Sub: branchpred.KindIndirect}
	})

	It("never touches state on a fall-through outcome", func() {
		btb, err := branchpred.NewBTB(4, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(btb.Predict(inst, inst.FallThroughID(), true)).To(Equal(branchpred.CorrectPrediction))
	})

	// S5 — BTB target change: targets 0xA, 0xA, 0xB, 0xA.
	It("reports NoBTBPrediction then tracks a single changing target", func() {
		btb, err := branchpred.NewBTB(4, 2)
		Expect(err).NotTo(HaveOccurred())

		Expect(btb.Predict(inst, 0xA, true)).To(Equal(branchpred.NoBTBPrediction))
		Expect(btb.Predict(inst, 0xA, true)).To(Equal(branchpred.CorrectPrediction))
		Expect(btb.Predict(inst, 0xB, true)).To(Equal(branchpred.MissPrediction))
		Expect(btb.Predict(inst, 0xA, true)).To(Equal(branchpred.MissPrediction))
	})

	It("does not mutate state when update is false", func() {
		btb, _ := branchpred.NewBTB(4, 2)
		Expect(btb.Predict(inst, 0xA, false)).To(Equal(branchpred.NoBTBPrediction))
		Expect(btb.Predict(inst, 0xA, false)).To(Equal(branchpred.NoBTBPrediction))
	})

	It("UpdateOnly trains the target without returning a verdict", func() {
		btb, _ := branchpred.NewBTB(4, 2)
		btb.UpdateOnly(inst, 0xA)
		Expect(btb.Predict(inst, 0xA, true)).To(Equal(branchpred.CorrectPrediction))
	})

	It("Reset invalidates every entry", func() {
		btb, _ := branchpred.NewBTB(4, 2)
		btb.Predict(inst, 0xA, true)
		btb.Reset()
		Expect(btb.Predict(inst, 0xA, true)).To(Equal(branchpred.NoBTBPrediction))
	})
})
