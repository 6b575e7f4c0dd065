package qram

import (
	"bytes"
	"context"
	"errors"
	mrand "math/rand"
	"sync"
	"time"

	"github.com/ddritzenhoff/qram/internal/wire"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

var errBrokenPayload = errors.New("broken payload")

// fatalEngine decodes nothing: every packet it is given is fatal.
type fatalEngine struct{ BlockEngine }

func (fatalEngine) NewDecoder() BlockDecoder { return &fatalDecoder{aborted: make(chan struct{})} }
func (fatalEngine) IsFatal(err error) bool   { return errors.Is(err, errBrokenPayload) }

type fatalDecoder struct {
	once    sync.Once
	aborted chan struct{}
}

func (d *fatalDecoder) Ingest([]byte) (ProgressSnapshot, error) {
	return ProgressSnapshot{ReceivedPackets: 1}, errBrokenPayload
}

func (d *fatalDecoder) Wait(ctx context.Context) (ProgressSnapshot, error) {
	select {
	case <-d.aborted:
		return ProgressSnapshot{}, errors.New("aborted")
	case <-ctx.Done():
		return ProgressSnapshot{}, ctx.Err()
	}
}

func (d *fatalDecoder) Finalize() ([]byte, error) { return nil, errors.New("not done") }
func (d *fatalDecoder) Abort()                    { d.once.Do(func() { close(d.aborted) }) }

var _ = Describe("Receive Session", func() {
	var (
		codec  *textCodec
		canvas *Canvas
		logger zerolog.Logger
	)

	BeforeEach(func() {
		codec = &textCodec{}
		canvas = NewCanvas()
		logger = zerolog.Nop()
	})

	canvasSource := func() Source {
		return Source{Name: "canvas", Images: canvas, Refresh: canvas}
	}

	present := func(data []byte, params PresentParams) {
		p := NewPresenter(codec, canvas, &Config{Logger: &logger})
		Expect(p.Start(context.Background(), data, params)).To(Succeed())
		DeferCleanup(p.Stop)
	}

	It("requires an image source", func() {
		_, err := Begin(context.Background(), Source{Name: "nothing"}, codec, nil)
		Expect(err).To(MatchError(ErrNoImageSource))
	})

	It("rejects invalid configs", func() {
		_, err := Begin(context.Background(), canvasSource(), codec, &Config{MaxBlocksPerPacket: 500})
		Expect(err).To(BeAssignableToTypeOf(&ConfigError{}))
	})

	It("receives a payload presented on the canvas", func() {
		data := randomPayload(4000)
		var mx sync.Mutex
		var snapshots []ProgressSnapshot
		s, err := Begin(context.Background(), canvasSource(), codec, &Config{
			Logger: &logger,
			OnProgress: func(p ProgressSnapshot) {
				mx.Lock()
				snapshots = append(snapshots, p)
				mx.Unlock()
			},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(s.State()).To(Equal(StateScanning))
		present(data, PresentParams{BlockSize: 100, FPS: 200})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		received, err := s.AwaitCompletion(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(received).To(Equal(data))
		Expect(s.State()).To(Equal(StateComplete))
		Expect(s.Scan().Packets).ToNot(BeZero())

		mx.Lock()
		defer mx.Unlock()
		Expect(snapshots).ToNot(BeEmpty())
		for i := 1; i < len(snapshots); i++ {
			Expect(snapshots[i].ReceivedPackets).To(BeNumerically(">=", snapshots[i-1].ReceivedPackets))
			Expect(snapshots[i].Blocks.IsSupersetOf(snapshots[i-1].Blocks)).To(BeTrue())
		}
		last := snapshots[len(snapshots)-1]
		Expect(last.Done).To(BeTrue())
		Expect(last.ReceivedBlocks).To(Equal(40))
		Expect(last.TotalBlocks).To(Equal(40))

		r, err := s.Wait(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Outcome).To(Equal(Succeeded))
		Expect(r.Progress.Done).To(BeTrue())
		Expect(r.Elapsed).To(BeNumerically(">", 0))
	})

	// Half of the presented frames are missed by the receiver, the missing blocks are recovered from repair packets.
	It("reconstructs the payload when frames are missed", func() {
		data := randomPayload(1 << 13)
		r := mrand.New(mrand.NewSource(GinkgoRandomSeed()))
		codec.drop = func() bool { return r.Intn(2) == 0 }
		s, err := Begin(context.Background(), canvasSource(), codec, &Config{Logger: &logger})
		Expect(err).ToNot(HaveOccurred())
		present(data, PresentParams{BlockSize: 200, FPS: 300})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		received, err := s.AwaitCompletion(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(received).To(Equal(data))
	})

	It("publishes the final snapshot before it completes", func() {
		data := randomPayload(1000)
		var sawDone atomic.Bool
		s, err := Begin(context.Background(), canvasSource(), codec, &Config{
			Logger: &logger,
			OnProgress: func(p ProgressSnapshot) {
				if p.Done {
					time.Sleep(200 * time.Millisecond)
					sawDone.Store(true)
				}
			},
		})
		Expect(err).ToNot(HaveOccurred())
		present(data, PresentParams{BlockSize: 100, FPS: 200})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		received, err := s.AwaitCompletion(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(received).To(Equal(data))
		Expect(sawDone.Load()).To(BeTrue())
		Expect(s.Progress().Done).To(BeTrue())
	})

	It("warns about the first ignored packet only", func() {
		buf := gbytes.NewBuffer()
		logger := zerolog.New(buf).Level(zerolog.DebugLevel)
		refresh := make(tickRefresh)
		s, err := Begin(context.Background(), Source{Name: "test", Images: canvas, Refresh: refresh}, codec, &Config{Logger: &logger})
		Expect(err).ToNot(HaveOccurred())
		defer s.Cancel()
		for i := 0; i < 3; i++ {
			canvas.Paint(newTextImage(wire.EncodeText([]byte("garbage"))))
			refresh <- struct{}{}
		}
		Eventually(func() uint64 { return s.Scan().Packets }).Should(BeEquivalentTo(3))
		Eventually(func() int { return bytes.Count(buf.Contents(), []byte(`"message":"Ignoring packet"`)) }).Should(Equal(3))
		Expect(bytes.Count(buf.Contents(), []byte(`"level":"warn"`))).To(Equal(1))
	})

	It("ignores packets of no use", func() {
		refresh := make(tickRefresh)
		s, err := Begin(context.Background(), Source{Name: "test", Images: canvas, Refresh: refresh}, codec, &Config{Logger: &logger})
		Expect(err).ToNot(HaveOccurred())
		canvas.Paint(newTextImage(wire.EncodeText([]byte("garbage"))))
		refresh <- struct{}{}
		Eventually(func() uint64 { return s.Scan().Packets }).Should(BeEquivalentTo(1))
		Consistently(s.State).Should(Equal(StateScanning))
		Expect(s.Progress().ReceivedPackets).To(BeZero())
		s.Cancel()
	})

	It("is cancelled", func() {
		s, err := Begin(context.Background(), canvasSource(), codec, &Config{Logger: &logger})
		Expect(err).ToNot(HaveOccurred())
		s.Cancel()
		s.Cancel()
		_, err = s.AwaitCompletion(context.Background())
		Expect(err).To(MatchError(ErrSessionCancelled))
		Expect(s.State()).To(Equal(StateCancelled))
		r, err := s.Wait(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Outcome).To(Equal(Cancelled))
		Expect(r.Payload).To(BeNil())
		Expect(r.Err).ToNot(HaveOccurred())
	})

	It("ends when its context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		s, err := Begin(ctx, canvasSource(), codec, &Config{Logger: &logger})
		Expect(err).ToNot(HaveOccurred())
		cancel()
		Eventually(s.Done()).Should(BeClosed())
		r, err := s.Wait(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Outcome).To(Equal(Cancelled))
		Expect(r.Err).To(MatchError(context.Canceled))
	})

	It("fails on fatal errors", func() {
		refresh := make(tickRefresh)
		s, err := Begin(context.Background(), Source{Name: "test", Images: canvas, Refresh: refresh}, codec, &Config{
			Logger:      &logger,
			BlockEngine: fatalEngine{},
		})
		Expect(err).ToNot(HaveOccurred())
		canvas.Paint(newTextImage(wire.EncodeText([]byte("packet"))))
		refresh <- struct{}{}
		_, err = s.AwaitCompletion(context.Background())
		Expect(err).To(MatchError(errBrokenPayload))
		Expect(s.State()).To(Equal(StateFailed))
		r, err := s.Wait(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Outcome).To(Equal(Failed))
		Expect(r.Progress.ReceivedPackets).To(Equal(1))
	})

	It("doesn't wait longer than its context", func() {
		s, err := Begin(context.Background(), canvasSource(), codec, &Config{Logger: &logger})
		Expect(err).ToNot(HaveOccurred())
		defer s.Cancel()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = s.Wait(ctx)
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(s.State()).To(Equal(StateScanning))
	})

	It("only allows legal state transitions", func() {
		Expect(isValidTransition(StateIdle, StateScanning)).To(BeTrue())
		Expect(isValidTransition(StateScanning, StateComplete)).To(BeTrue())
		Expect(isValidTransition(StateComplete, StateCancelled)).To(BeFalse())
		Expect(isValidTransition(StateCancelled, StateScanning)).To(BeFalse())
		Expect(isValidTransition(StateFailed, StateComplete)).To(BeFalse())
		Expect(isValidTransition(StateIdle, StateComplete)).To(BeFalse())
	})
})
