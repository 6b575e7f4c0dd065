package qram

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Version policy", func() {
	DescribeTable("selecting the symbol version",
		func(blockSize int, resistance Resistance, expected int) {
			v, err := SymbolVersion(blockSize, resistance)
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal(expected))
		},
		Entry("tiny blocks", 1, ResistanceDefault, 14),
		Entry("10 bytes", 10, ResistanceDefault, 14),
		Entry("10 bytes, high resistance", 10, ResistanceHigh, 16),
		Entry("11 bytes", 11, ResistanceDefault, 16),
		Entry("50 bytes, high resistance", 50, ResistanceHigh, 18),
		Entry("100 bytes", 100, ResistanceDefault, 17),
		Entry("150 bytes, high resistance", 150, ResistanceHigh, 22),
		Entry("200 bytes", 200, ResistanceDefault, 19),
		Entry("300 bytes", 300, ResistanceDefault, 22),
		Entry("300 bytes, high resistance", 300, ResistanceHigh, 25),
		Entry("400 bytes", 400, ResistanceDefault, 25),
		Entry("400 bytes, high resistance", 400, ResistanceHigh, 29),
	)

	DescribeTable("rejecting block sizes without a version",
		func(blockSize int) {
			_, err := SymbolVersion(blockSize, ResistanceDefault)
			var cerr *ConfigError
			Expect(err).To(BeAssignableToTypeOf(cerr))
			Expect(err.(*ConfigError).Field).To(Equal("block size"))
		},
		Entry("zero", 0),
		Entry("negative", -1),
		Entry("too large", 401),
	)

	DescribeTable("resolving the frame rate",
		func(payloadSize, blockSize, fps, expected int) {
			rate, err := FrameRate(payloadSize, blockSize, fps)
			Expect(err).ToNot(HaveOccurred())
			Expect(rate).To(Equal(expected))
		},
		Entry("default", 1024, 400, 0, DefaultFPS),
		Entry("fixed", 1024, 400, 24, 24),
		Entry("auto, 1 KiB in 400 byte blocks", 1024, 400, FPSAuto, 3),
		Entry("auto, exact multiple", 800, 400, FPSAuto, 2),
		Entry("auto, capped", 1<<20, 100, FPSAuto, 30),
		Entry("auto, tiny payload", 1, 400, FPSAuto, 1),
	)

	It("rejects negative frame rates", func() {
		_, err := FrameRate(1024, 400, -2)
		Expect(err).To(MatchError(&ConfigError{Field: "fps", Value: -2, Reason: "must be positive or auto"}))
	})
})
