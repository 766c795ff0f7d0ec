package phy

import (
	"context"
	"fmt"
	"io"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/katalix/go-ethphy/bitstream"
	"github.com/katalix/go-ethphy/descrambler"
	"github.com/katalix/go-ethphy/dissect"
	"github.com/katalix/go-ethphy/framer"
)

// DefaultBatchSize is the number of bits Run reads from a source at once.
const DefaultBatchSize = 8192

// Config holds the configuration of each pipeline stage.
type Config struct {
	Descrambler descrambler.Config
	Framer      framer.Config
	Dissector   dissect.Config
	// BatchSize is the number of bits read from a source per call.
	BatchSize int
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Descrambler: descrambler.DefaultConfig(),
		Framer:      framer.DefaultConfig(),
		Dissector:   dissect.DefaultConfig(),
		BatchSize:   DefaultBatchSize,
	}
}

// Stats gathers the counters of each pipeline stage.
type Stats struct {
	Sync   descrambler.Stats
	Framer framer.Stats
}

// Context is a container for a decoding pipeline: a descrambler
// synchronizer feeding a frame extractor whose output is dissected into
// records.  Pipeline events are delivered to the registered event
// handlers.
//
// Context is not safe for concurrent use.
type Context struct {
	logger    log.Logger
	metrics   *Metrics
	sync      *descrambler.Synchronizer
	extractor *framer.Extractor
	dissector *dissect.Dissector
	handlers  []EventHandler
	batch     []byte
	position  uint64
}

// NewContext creates a new pipeline.  Pass a nil logger to disable
// logging, and nil metrics to discard them.
func NewContext(cfg Config, metrics *Metrics, logger log.Logger) (*Context, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if metrics == nil {
		metrics = NewDiscardMetrics()
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size %d must be > 0", cfg.BatchSize)
	}

	sync, err := descrambler.NewSynchronizer(cfg.Descrambler, logger)
	if err != nil {
		return nil, err
	}
	extractor, err := framer.NewExtractor(cfg.Framer, logger)
	if err != nil {
		return nil, err
	}
	dissector, err := dissect.New(cfg.Dissector)
	if err != nil {
		return nil, err
	}

	return &Context{
		logger:    log.With(logger, "component", "phy"),
		metrics:   metrics,
		sync:      sync,
		extractor: extractor,
		dissector: dissector,
		batch:     make([]byte, cfg.BatchSize),
	}, nil
}

// RegisterEventHandler adds an event handler to the Context.
func (c *Context) RegisterEventHandler(handler EventHandler) {
	c.handlers = append(c.handlers, handler)
}

// UnregisterEventHandler removes a previously registered event handler.
func (c *Context) UnregisterEventHandler(handler EventHandler) {
	for i, hdlr := range c.handlers {
		if hdlr == handler {
			c.handlers = append(c.handlers[:i], c.handlers[i+1:]...)
			break
		}
	}
}

// Stats returns a snapshot of the pipeline counters.
func (c *Context) Stats() Stats {
	return Stats{
		Sync:   c.sync.Stats(),
		Framer: c.extractor.Stats(),
	}
}

// Reset returns the pipeline to its initial searching state, abandoning
// any frame in progress.  Counters and the frame sequence are preserved.
func (c *Context) Reset() {
	c.sync.Reset()
	c.extractor.Reset()
}

// Write runs each bit of bits through the pipeline, raising events as
// they occur.
func (c *Context) Write(bits []byte) {
	c.metrics.Bits.Add(float64(len(bits)))
	for _, b := range bits {
		before := c.sync.Status()
		out, after := c.sync.Process(b)
		c.position++

		if before != after {
			c.handleSyncChange(after)
		}

		frame, outcome := c.extractor.Push(out)
		switch {
		case frame != nil:
			c.handleFrame(frame)
		case outcome != framer.OutcomeNone:
			c.handleReject(outcome)
		}
	}
}

// Run reads bits from src until the end of the stream, an error, or the
// cancellation of ctx.  Reaching the end of the stream is not an error.
// ctx is checked between batches, so a caller blocked in a quiet source
// should cancel ctx and then close the source.  A read error seen after
// cancellation is reported as ctx.Err().
func (c *Context) Run(ctx context.Context, src bitstream.Source) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := src.ReadBits(c.batch)
		if n > 0 {
			c.Write(c.batch[:n])
		}
		if err == io.EOF {
			level.Info(c.logger).Log(
				"message", "end of stream",
				"bits", c.position,
				"frames", c.extractor.Stats().Frames)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read bitstream: %v", err)
		}
	}
}

func (c *Context) handleSyncChange(status descrambler.Status) {
	st := c.sync.Stats()
	switch status {
	case descrambler.StatusLocked:
		c.metrics.Locks.Add(1)
		c.fireEvent(&SyncLockedEvent{
			Seed:     st.LastLockSeed,
			Position: c.position,
		})
	case descrambler.StatusSearching:
		c.metrics.SyncLosses.Add(1)
		c.fireEvent(&SyncLostEvent{
			Position: c.position,
			Resyncs:  st.Resyncs,
		})
	}
}

func (c *Context) handleFrame(frame *framer.Frame) {
	c.metrics.Frames.Add(1)
	rec := c.dissector.Dissect(frame.Seq, frame.Octets)
	c.fireEvent(&FrameEvent{
		Record: rec,
		Frame:  frame,
	})
}

func (c *Context) handleReject(outcome framer.Outcome) {
	if outcome == framer.OutcomeStalled {
		c.metrics.Stalls.Add(1)
	} else {
		c.metrics.Rejected.Add(1)
	}
	c.fireEvent(&FrameRejectedEvent{
		Reason:   outcome,
		Position: c.position,
	})
}

func (c *Context) fireEvent(event interface{}) {
	for _, hdlr := range c.handlers {
		hdlr.HandleEvent(event)
	}
}
