package trace

import (
	"time"

	"github.com/francoispqt/gojay"
)

type eventPresentingStarted struct {
	PayloadLen  int
	BlockSize   int
	FPS         int
	Version     int
	TotalBlocks int
}

func (e eventPresentingStarted) Name() string { return "presenting_started" }
func (e eventPresentingStarted) IsNil() bool  { return false }

func (e eventPresentingStarted) MarshalJSONObject(enc *gojay.Encoder) {
	enc.IntKey("payload_length", e.PayloadLen)
	enc.IntKey("block_size", e.BlockSize)
	enc.IntKey("fps", e.FPS)
	enc.IntKey("version", e.Version)
	enc.IntKey("total_blocks", e.TotalBlocks)
}

type eventPresentingStopped struct {
	PacketsSent uint64
}

func (e eventPresentingStopped) Name() string { return "presenting_stopped" }
func (e eventPresentingStopped) IsNil() bool  { return false }

func (e eventPresentingStopped) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Uint64Key("packets_sent", e.PacketsSent)
}

type eventReceivingStarted struct {
	Source string
}

func (e eventReceivingStarted) Name() string { return "receiving_started" }
func (e eventReceivingStarted) IsNil() bool  { return false }

func (e eventReceivingStarted) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("source", e.Source)
}

type eventProgressUpdated struct {
	ReceivedPackets int
	ReceivedBlocks  int
	TotalBlocks     int
}

func (e eventProgressUpdated) Name() string { return "progress_updated" }
func (e eventProgressUpdated) IsNil() bool  { return false }

func (e eventProgressUpdated) MarshalJSONObject(enc *gojay.Encoder) {
	enc.IntKey("received_packets", e.ReceivedPackets)
	enc.IntKey("received_blocks", e.ReceivedBlocks)
	enc.IntKey("total_blocks", e.TotalBlocks)
}

type eventReceivingEnded struct {
	Outcome    string
	PayloadLen int
	Elapsed    time.Duration
	Error      string
}

func (e eventReceivingEnded) Name() string { return "receiving_ended" }
func (e eventReceivingEnded) IsNil() bool  { return false }

func (e eventReceivingEnded) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("outcome", e.Outcome)
	enc.IntKey("payload_length", e.PayloadLen)
	enc.Float64Key("elapsed_ms", float64(e.Elapsed.Nanoseconds())/1e6)
	enc.StringKeyOmitEmpty("error", e.Error)
}
