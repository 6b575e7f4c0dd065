package qram

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Canvas", func() {
	var c *Canvas

	BeforeEach(func() {
		c = NewCanvas()
	})

	It("has nothing to capture before the first paint", func() {
		_, err := c.Capture(context.Background())
		Expect(err).To(MatchError(ErrNothingPainted))
	})

	It("captures the last painted image", func() {
		first := newTextImage("first")
		second := newTextImage("second")
		c.Paint(first)
		c.Paint(second)
		img, err := c.Capture(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(img).To(BeIdenticalTo(second))
		Expect(c.Frames()).To(BeEquivalentTo(2))
	})

	It("wakes waiters on paint", func() {
		woken := make(chan error, 1)
		go func() { woken <- c.WaitRefresh(context.Background()) }()
		Consistently(woken, 50*time.Millisecond).ShouldNot(Receive())
		// the waiter may not have subscribed yet, keep painting until it wakes up
		Eventually(func() bool {
			c.Paint(newTextImage("frame"))
			select {
			case err := <-woken:
				Expect(err).ToNot(HaveOccurred())
				return true
			default:
				return false
			}
		}).Should(BeTrue())
	})

	It("stops waiting when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(c.WaitRefresh(ctx)).To(MatchError(context.Canceled))
	})
})
