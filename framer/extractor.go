package framer

import (
	"bytes"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/katalix/go-ethphy/internal/bitfifo"
)

// Outcome describes what happened to the bit passed to Extractor.Push.
type Outcome int

const (
	// OutcomeNone means no frame boundary was reached.
	OutcomeNone Outcome = iota
	// OutcomeOK means a frame was decoded.
	OutcomeOK
	// OutcomeTooShort means the decoded frame was shorter than an
	// Ethernet header.
	OutcomeTooShort
	// OutcomeBadSymbol means too few data symbols decoded.
	OutcomeBadSymbol
	// OutcomeBadHeader means the frame delimiters were missing or
	// malformed.
	OutcomeBadHeader
	// OutcomeStalled means a frame was abandoned because no end
	// delimiter arrived within the stall timeout.
	OutcomeStalled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeOK:
		return "ok"
	case OutcomeTooShort:
		return "too short"
	case OutcomeBadSymbol:
		return "bad symbol"
	case OutcomeBadHeader:
		return "bad header"
	case OutcomeStalled:
		return "stalled"
	}
	return "???"
}

// Rejected reports whether o is one of the frame rejection reasons.
func (o Outcome) Rejected() bool {
	return o == OutcomeTooShort || o == OutcomeBadSymbol || o == OutcomeBadHeader
}

// rollingLen is the capacity of the delimiter search buffer.
const rollingLen = 200

// Config holds the tunable parameters of an Extractor.
type Config struct {
	// StallTimeout is the number of bits after a start delimiter
	// without an end delimiter before the frame is abandoned.
	StallTimeout int
}

// DefaultConfig returns the default Extractor configuration.
func DefaultConfig() Config {
	return Config{
		StallTimeout: 30000,
	}
}

// Validate checks the configuration is usable.
func (cfg *Config) Validate() error {
	if cfg.StallTimeout < len(startPattern) {
		return fmt.Errorf("stall timeout %d must be at least %d", cfg.StallTimeout, len(startPattern))
	}
	return nil
}

// Frame is a decoded Ethernet frame.
type Frame struct {
	// Seq is the frame sequence number, starting at 1.
	Seq uint64
	// Octets is the frame from the destination MAC address onwards.
	Octets []byte
	// Raw holds every decoded octet including the preamble remainder and
	// start of frame delimiter.
	Raw []byte
}

// Stats holds Extractor counters.
type Stats struct {
	Bits      uint64
	Frames    uint64
	Errors    uint64
	TooShort  uint64
	BadSymbol uint64
	BadHeader uint64
	Stalls    uint64
	// SymbolsDropped counts code-groups which were neither data nor
	// control symbols.
	SymbolsDropped uint64
}

// Extractor finds delimited frames in a descrambled bitstream.
//
// Extractor is not safe for concurrent use.
type Extractor struct {
	cfg     Config
	logger  log.Logger
	rolling *bitfifo.FIFO
	scratch []byte
	inFrame bool
	acc     []byte
	// acc before this index has been searched for the end delimiter
	scanFrom int
	timeout  int
	seq      uint64
	stats    Stats
}

// NewExtractor returns an Extractor waiting for a start delimiter.
// Pass a nil logger to disable logging.
func NewExtractor(cfg Config, logger log.Logger) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid framer configuration: %v", err)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Extractor{
		cfg:     cfg,
		logger:  log.With(logger, "component", "framer"),
		rolling: bitfifo.New(rollingLen),
		scratch: make([]byte, 0, rollingLen),
	}, nil
}

// InFrame reports whether a start delimiter has been seen without its end
// delimiter.
func (e *Extractor) InFrame() bool {
	return e.inFrame
}

// Stats returns a snapshot of the Extractor counters.
func (e *Extractor) Stats() Stats {
	return e.stats
}

// Reset abandons any frame in progress and clears the search buffer.
// The sequence number and counters are preserved.
func (e *Extractor) Reset() {
	e.rolling.Clear()
	e.endFrame()
}

// Push consumes one descrambled bit.  When the bit completes a frame the
// decoded frame is returned with OutcomeOK; a completed frame which fails
// to decode returns nil and the rejection reason.
func (e *Extractor) Push(bit byte) (*Frame, Outcome) {
	bit &= 1
	e.stats.Bits++

	if !e.inFrame {
		e.rolling.Push(bit)
		e.compactIdle()
		e.findStart()
		return nil, OutcomeNone
	}

	e.acc = append(e.acc, bit)
	e.timeout++

	idx := bytes.Index(e.acc[e.scanFrom:], endDelimiter)
	if idx >= 0 {
		end := e.scanFrom + idx + len(endDelimiter)
		frame, outcome := e.decode(e.acc[:end])
		// whatever followed the end delimiter seeds the next search
		e.scratch = append(e.scratch[:0], e.acc[end:]...)
		e.endFrame()
		e.rolling.Reset(e.scratch)
		return frame, outcome
	}
	if e.scanFrom = len(e.acc) - len(endDelimiter) + 1; e.scanFrom < 0 {
		e.scanFrom = 0
	}

	if e.timeout >= e.cfg.StallTimeout {
		e.stats.Stalls++
		level.Debug(e.logger).Log(
			"message", "frame abandoned without end delimiter",
			"bits", len(e.acc))
		e.rolling.Clear()
		e.endFrame()
		return nil, OutcomeStalled
	}
	return nil, OutcomeNone
}

// Write pushes each bit of bits and returns the frames decoded.
func (e *Extractor) Write(bits []byte) []*Frame {
	var frames []*Frame
	for _, b := range bits {
		if f, _ := e.Push(b); f != nil {
			frames = append(frames, f)
		}
	}
	return frames
}

func (e *Extractor) endFrame() {
	e.inFrame = false
	e.acc = e.acc[:0]
	e.scanFrom = 0
	e.timeout = 0
}

// compactIdle replaces everything up to and including the first run of
// idle with a short idle prefix.
func (e *Extractor) compactIdle() {
	buf := e.rolling.Bytes()
	idx := bytes.Index(buf, idlePattern)
	if idx < 0 {
		return
	}
	e.scratch = append(e.scratch[:0], idlePrefix...)
	e.scratch = append(e.scratch, buf[idx+len(idlePattern):]...)
	e.rolling.Reset(e.scratch)
}

func (e *Extractor) findStart() {
	buf := e.rolling.Bytes()
	if bytes.Index(buf, startPattern) < 0 {
		return
	}
	// the frame is anchored at the first start delimiter in the buffer
	pos := bytes.Index(buf, startDelimiter)
	e.acc = append(e.acc[:0], buf[pos:]...)
	e.rolling.Reset(e.acc)
	e.inFrame = true
	e.scanFrom = 0
	e.timeout = 0
}

func (e *Extractor) decode(bits []byte) (*Frame, Outcome) {
	raw, dropped, outcome := decodeFramed(bits)
	e.stats.SymbolsDropped += uint64(dropped)

	if outcome != OutcomeOK {
		e.stats.Errors++
		switch outcome {
		case OutcomeTooShort:
			e.stats.TooShort++
		case OutcomeBadSymbol:
			e.stats.BadSymbol++
		case OutcomeBadHeader:
			e.stats.BadHeader++
		}
		level.Debug(e.logger).Log(
			"message", "frame rejected",
			"reason", outcome,
			"bits", len(bits),
			"dropped_symbols", dropped)
		return nil, outcome
	}

	e.seq++
	e.stats.Frames++
	level.Debug(e.logger).Log(
		"message", "frame decoded",
		"seq", e.seq,
		"octets", len(raw)-preambleLen,
		"dropped_symbols", dropped)
	return &Frame{
		Seq:    e.seq,
		Octets: raw[preambleLen:],
		Raw:    raw,
	}, OutcomeOK
}
