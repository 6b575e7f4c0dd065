package qram

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/ddritzenhoff/qram/internal/wire"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Scanner", func() {
	var (
		codec   *textCodec
		scanner *Scanner
		refresh tickRefresh
		ctx     context.Context
		cancel  context.CancelFunc
	)

	BeforeEach(func() {
		codec = &textCodec{}
		scanner = NewScanner(codec, zerolog.Nop())
		refresh = make(tickRefresh)
		ctx, cancel = context.WithCancel(context.Background())
		DeferCleanup(cancel)
	})

	collect := func() (func([]byte), func() [][]byte) {
		var mx sync.Mutex
		var packets [][]byte
		return func(p []byte) {
				mx.Lock()
				packets = append(packets, p)
				mx.Unlock()
			}, func() [][]byte {
				mx.Lock()
				defer mx.Unlock()
				return append([][]byte(nil), packets...)
			}
	}

	It("delivers the packets of captured symbols", func() {
		canvas := NewCanvas()
		onPacket, received := collect()
		h := scanner.Run(ctx, canvas, refresh, onPacket)

		canvas.Paint(newTextImage(wire.EncodeText([]byte("foo"))))
		refresh <- struct{}{}
		Eventually(received).Should(HaveLen(1))
		canvas.Paint(newTextImage(wire.EncodeText([]byte("bar"))))
		refresh <- struct{}{}
		Eventually(received).Should(HaveLen(2))
		Expect(received()).To(Equal([][]byte{[]byte("foo"), []byte("bar")}))

		h.Cancel()
		Eventually(h.Done()).Should(BeClosed())
		Expect(h.Stats()).To(Equal(ScanStats{Attempts: 2, Packets: 2}))
	})

	It("treats every kind of failed capture as a miss", func() {
		canvas := NewCanvas()
		onPacket, received := collect()
		h := scanner.Run(ctx, canvas, refresh, onPacket)

		misses := func() uint64 { return h.Stats().Misses }
		// nothing painted yet
		refresh <- struct{}{}
		Eventually(misses).Should(BeEquivalentTo(1))
		// no symbol
		canvas.Paint(solidImage)
		refresh <- struct{}{}
		Eventually(misses).Should(BeEquivalentTo(2))
		// a symbol that doesn't carry a packet
		canvas.Paint(newTextImage("not base64url!"))
		refresh <- struct{}{}
		Eventually(misses).Should(BeEquivalentTo(3))
		canvas.Paint(newTextImage(wire.EncodeText([]byte("packet"))))
		refresh <- struct{}{}

		Eventually(received).Should(HaveLen(1))
		Eventually(h.Stats).Should(Equal(ScanStats{Attempts: 4, Misses: 3, Packets: 1}))
	})

	It("continues after capture errors", func() {
		feed := NewMockCameraFeed(mockCtrl)
		gomock.InOrder(
			feed.EXPECT().Capture(gomock.Any()).Return(nil, errors.New("device busy")),
			feed.EXPECT().Capture(gomock.Any()).Return(newTextImage(wire.EncodeText([]byte("packet"))), nil),
		)
		onPacket, received := collect()
		h := scanner.Run(ctx, feed, refresh, onPacket)
		refresh <- struct{}{}
		refresh <- struct{}{}
		Eventually(received).Should(HaveLen(1))
		Eventually(h.Stats).Should(Equal(ScanStats{Attempts: 2, Misses: 1, Packets: 1}))
	})

	It("continues when the codec fails", func() {
		codec := NewMockCodec(mockCtrl)
		scanner := NewScanner(codec, zerolog.Nop())
		canvas := NewCanvas()
		canvas.Paint(solidImage)
		gomock.InOrder(
			codec.EXPECT().Scan(gomock.Any()).Return("", false, errors.New("bad frame")),
			codec.EXPECT().Scan(gomock.Any()).Return(wire.EncodeText([]byte("packet")), true, nil),
		)
		onPacket, received := collect()
		scanner.Run(ctx, canvas, refresh, onPacket)
		refresh <- struct{}{}
		refresh <- struct{}{}
		Eventually(received).Should(HaveLen(1))
	})

	It("lets an interrupted capture finish but doesn't deliver its packet", func() {
		feed := NewMockCameraFeed(mockCtrl)
		capturing := make(chan struct{})
		release := make(chan struct{})
		captureErr := make(chan error, 1)
		feed.EXPECT().Capture(gomock.Any()).DoAndReturn(func(ctx context.Context) (image.Image, error) {
			close(capturing)
			<-release
			captureErr <- ctx.Err()
			return newTextImage(wire.EncodeText([]byte("late"))), nil
		})
		onPacket, received := collect()
		h := scanner.Run(ctx, feed, refresh, onPacket)
		refresh <- struct{}{}
		Eventually(capturing).Should(BeClosed())
		h.Cancel()
		close(release)
		Eventually(h.Done()).Should(BeClosed())
		Expect(captureErr).To(Receive(BeNil()))
		Expect(received()).To(BeEmpty())
	})

	It("stops when the context is cancelled", func() {
		onPacket, _ := collect()
		h := scanner.Run(ctx, NewCanvas(), refresh, onPacket)
		Consistently(h.Done(), 20*time.Millisecond).ShouldNot(BeClosed())
		cancel()
		Eventually(h.Done()).Should(BeClosed())
	})

	It("captures at the rate of the refresh clock", func() {
		clock := NewRefreshClock(100)
		start := time.Now()
		for i := 0; i < 11; i++ {
			Expect(clock.WaitRefresh(context.Background())).To(Succeed())
		}
		Expect(time.Since(start)).To(BeNumerically(">=", 90*time.Millisecond))
	})
})
