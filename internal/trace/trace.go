// Package trace writes session events as newline delimited JSON.
package trace

import (
	"io"
	"sync"
	"time"

	"github.com/francoispqt/gojay"
)

type Writer struct {
	mx    sync.Mutex
	w     io.Writer
	start time.Time
	err   error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, start: time.Now()}
}

type event struct {
	relativeTime time.Duration
	details      eventDetails
}

type eventDetails interface {
	gojay.MarshalerJSONObject
	Name() string
}

func (e event) IsNil() bool { return false }

func (e event) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Float64Key("time", float64(e.relativeTime.Nanoseconds())/1e6)
	enc.StringKey("name", e.details.Name())
	enc.ObjectKey("data", e.details)
}

func (t *Writer) record(d eventDetails) {
	t.mx.Lock()
	defer t.mx.Unlock()
	if t.err != nil {
		return
	}
	b, err := gojay.MarshalJSONObject(event{relativeTime: time.Since(t.start), details: d})
	if err != nil {
		t.err = err
		return
	}
	b = append(b, '\n')
	if _, err := t.w.Write(b); err != nil {
		t.err = err
	}
}

// Err returns the first error encountered while writing. Events after it are dropped.
func (t *Writer) Err() error {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.err
}

func (t *Writer) StartedPresenting(payloadLen, blockSize, fps, version, totalBlocks int) {
	t.record(&eventPresentingStarted{
		PayloadLen:  payloadLen,
		BlockSize:   blockSize,
		FPS:         fps,
		Version:     version,
		TotalBlocks: totalBlocks,
	})
}

func (t *Writer) StoppedPresenting(packetsSent uint64) {
	t.record(&eventPresentingStopped{PacketsSent: packetsSent})
}

func (t *Writer) StartedReceiving(source string) {
	t.record(&eventReceivingStarted{Source: source})
}

func (t *Writer) UpdatedProgress(receivedPackets, receivedBlocks, totalBlocks int) {
	t.record(&eventProgressUpdated{
		ReceivedPackets: receivedPackets,
		ReceivedBlocks:  receivedBlocks,
		TotalBlocks:     totalBlocks,
	})
}

func (t *Writer) EndedReceiving(outcome string, payloadLen int, elapsed time.Duration, err error) {
	e := &eventReceivingEnded{Outcome: outcome, PayloadLen: payloadLen, Elapsed: elapsed}
	if err != nil {
		e.Error = err.Error()
	}
	t.record(e)
}
