package tomasulo_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/giusfds/tomsim/timing/tomasulo"
)

var _ = Describe("BranchPredictor", func() {
	var bp *tomasulo.BranchPredictor

	BeforeEach(func() {
		bp = tomasulo.NewBranchPredictor()
	})

	Describe("Prediction", func() {
		It("should initially predict not taken (weakly)", func() {
			Expect(bp.Predict(0)).To(BeFalse())
			Expect(bp.Counter(0)).To(Equal(uint8(1)))
		})

		It("should learn an always-taken branch", func() {
			for i := 0; i < 10; i++ {
				bp.Update(4, true)
			}
			Expect(bp.Predict(4)).To(BeTrue())
			Expect(bp.Counter(4)).To(Equal(uint8(3)))
		})

		It("should keep predicting not taken for a never-taken branch", func() {
			for i := 0; i < 10; i++ {
				bp.Update(4, false)
			}
			Expect(bp.Predict(4)).To(BeFalse())
			Expect(bp.Counter(4)).To(Equal(uint8(0)))
		})

		It("should track PCs independently", func() {
			bp.Update(0, true)
			bp.Update(0, true)
			Expect(bp.Predict(0)).To(BeTrue())
			Expect(bp.Predict(8)).To(BeFalse())
		})
	})

	Describe("Saturating counter", func() {
		It("should follow 1 -> 2 -> 3 -> 3 -> 2 for outcomes T,T,T,N", func() {
			Expect(bp.Counter(0)).To(Equal(uint8(1)))
			bp.Update(0, true)
			Expect(bp.Counter(0)).To(Equal(uint8(2)))
			bp.Update(0, true)
			Expect(bp.Counter(0)).To(Equal(uint8(3)))
			bp.Update(0, true)
			Expect(bp.Counter(0)).To(Equal(uint8(3)))
			bp.Update(0, false)
			Expect(bp.Counter(0)).To(Equal(uint8(2)))
		})

		It("should saturate at zero", func() {
			bp.Update(0, false)
			bp.Update(0, false)
			Expect(bp.Counter(0)).To(Equal(uint8(0)))
			bp.Update(0, false)
			Expect(bp.Counter(0)).To(Equal(uint8(0)))
		})
	})

	Describe("Statistics", func() {
		It("should count predictions", func() {
			bp.Predict(0)
			bp.Predict(0)
			Expect(bp.Stats().Predictions).To(Equal(uint64(2)))
		})

		It("should credit correct predictions on update", func() {
			bp.Update(0, false) // counter 1 predicts not taken: correct
			bp.Update(0, true)  // counter 0 predicts not taken: wrong
			stats := bp.Stats()
			Expect(stats.Correct).To(Equal(uint64(1)))
		})

		It("should report accuracy as a fraction", func() {
			Expect(bp.Stats().Accuracy()).To(BeZero())
			bp.Predict(0)
			bp.Predict(0)
			bp.Update(0, false)
			bp.Update(0, false)
			Expect(bp.Stats().Accuracy()).To(BeNumerically("==", 1.0))
		})
	})

	Describe("Reset", func() {
		It("should clear counters and statistics", func() {
			bp.Predict(0)
			bp.Update(0, true)
			bp.Update(0, true)
			bp.Reset()
			Expect(bp.Counter(0)).To(Equal(uint8(1)))
			Expect(bp.Stats()).To(Equal(tomasulo.BranchPredictorStats{}))
		})
	})
})
