package phy

import (
	"github.com/katalix/go-ethphy/dissect"
	"github.com/katalix/go-ethphy/framer"
)

// EventHandler is the interface implemented by consumers of pipeline
// events.  Events are delivered synchronously, in the order handlers were
// registered, on the goroutine driving the pipeline.  Handlers must not
// call back into the Context.
type EventHandler interface {
	HandleEvent(event interface{})
}

// FrameEvent is emitted for each frame recovered from the bitstream.
type FrameEvent struct {
	Record *dissect.Record
	Frame  *framer.Frame
}

// FrameRejectedEvent is emitted when a delimited frame fails to decode, or
// when a frame is abandoned for want of an end delimiter.
type FrameRejectedEvent struct {
	Reason framer.Outcome
	// Position is the number of bits processed when the frame ended.
	Position uint64
}

// SyncLockedEvent is emitted when the descrambler phase is recovered.
type SyncLockedEvent struct {
	// Seed is the candidate descrambler state adopted.
	Seed     int
	Position uint64
}

// SyncLostEvent is emitted when the descrambler loses lock.
type SyncLostEvent struct {
	Position uint64
	Resyncs  uint64
}
