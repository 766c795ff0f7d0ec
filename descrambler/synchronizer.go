package descrambler

import (
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/katalix/go-ethphy/internal/bitfifo"
	"github.com/katalix/go-ethphy/internal/fsm"
)

// Status is the synchronisation state of a Synchronizer.
type Status int

const (
	// StatusSearching means no descrambler phase is known; input bits
	// are passed through unmodified while the blind search runs.
	StatusSearching Status = iota
	// StatusLocked means the descrambler phase has been recovered.
	StatusLocked
)

func (s Status) String() string {
	switch s {
	case StatusSearching:
		return "searching"
	case StatusLocked:
		return "locked"
	}
	return "???"
}

const (
	eventIdleFound fsm.Event = iota
	eventHealthFailed
)

// internal constants
const (
	searchMargin    = 100
	idleCheckMargin = 500
	recentBitsLen   = 50

	// frame start heuristic: the oldest frameStartIdleLen of the last
	// frameStartWindow bits are mostly idle, the rest mostly not
	frameStartWindow   = 30
	frameStartIdleLen  = 20
	frameStartMinOnes  = 18
	frameStartMinZeros = 3
)

// Config holds the tunable parameters of a Synchronizer.
type Config struct {
	// SearchWindow is the number of bits tested against each
	// candidate state during the blind search.
	SearchWindow int
	// IdleRun is the length of the run of descrambled 1s taken as the
	// idle line signature.
	IdleRun int
	// MaxIdleNoIdle is the number of bits which may pass between
	// frames without an idle run before lock is considered lost.
	MaxIdleNoIdle int
	// MaxInFrameNoIdle is the corresponding limit while a frame is in
	// progress.
	MaxInFrameNoIdle int
	// CheckInterval is how often, in processed bits, the lock health is
	// checked.
	CheckInterval int
}

// DefaultConfig returns the default Synchronizer configuration.
func DefaultConfig() Config {
	return Config{
		SearchWindow:     50,
		IdleRun:          40,
		MaxIdleNoIdle:    100,
		MaxInFrameNoIdle: 20000,
		CheckInterval:    50,
	}
}

// Validate checks the configuration is usable.
func (cfg *Config) Validate() error {
	if cfg.SearchWindow < 1 {
		return fmt.Errorf("search window %d must be > 0", cfg.SearchWindow)
	}
	if cfg.IdleRun < 1 || cfg.IdleRun > cfg.SearchWindow {
		return fmt.Errorf("idle run %d must be in the range 1 - %d", cfg.IdleRun, cfg.SearchWindow)
	}
	if cfg.CheckInterval < 1 {
		return fmt.Errorf("check interval %d must be > 0", cfg.CheckInterval)
	}
	if cfg.MaxInFrameNoIdle < 1 {
		return fmt.Errorf("max in-frame bits without idle %d must be > 0", cfg.MaxInFrameNoIdle)
	}
	if cfg.MaxIdleNoIdle < 1 || cfg.MaxIdleNoIdle > cfg.MaxInFrameNoIdle+idleCheckMargin {
		return fmt.Errorf("max bits without idle %d must be in the range 1 - %d",
			cfg.MaxIdleNoIdle, cfg.MaxInFrameNoIdle+idleCheckMargin)
	}
	return nil
}

// Stats holds Synchronizer counters.
type Stats struct {
	// BitsProcessed counts every bit passed to the Synchronizer.
	BitsProcessed uint64
	// Locks counts successful blind searches.
	Locks uint64
	// Resyncs counts lock losses, each of which restarts the search.
	Resyncs uint64
	// LastLockSeed is the candidate index adopted by the most recent
	// lock, or -1 if lock has never been achieved.
	LastLockSeed int
	// LastLockPosition is the value of BitsProcessed at the most recent
	// lock.
	LastLockPosition uint64
}

// Synchronizer recovers and tracks the phase of the 100BASE-X stream
// descrambler.
//
// Synchronizer is not safe for concurrent use.
type Synchronizer struct {
	cfg     Config
	logger  log.Logger
	fsm     *fsm.Machine
	lfsr    LFSR
	search  *bitfifo.FIFO
	idle    *bitfifo.FIFO
	recent  *bitfifo.FIFO
	inFrame bool
	// health checks passed since the frame start heuristic fired
	bitsSinceSFD int
	stats        Stats
}

// NewSynchronizer returns a Synchronizer in the searching state.
// Pass a nil logger to disable logging.
func NewSynchronizer(cfg Config, logger log.Logger) (*Synchronizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid descrambler configuration: %v", err)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Synchronizer{
		cfg:    cfg,
		logger: log.With(logger, "component", "descrambler"),
		search: bitfifo.New(cfg.SearchWindow + searchMargin),
		idle:   bitfifo.New(cfg.MaxInFrameNoIdle + idleCheckMargin),
		recent: bitfifo.New(recentBitsLen),
		stats:  Stats{LastLockSeed: -1},
	}
	s.fsm = fsm.New(fsm.State(StatusSearching), []fsm.Transition{
		{
			From:   fsm.State(StatusSearching),
			To:     fsm.State(StatusLocked),
			Events: []fsm.Event{eventIdleFound},
			Cb:     s.fsmActLock,
		},
		{
			From:   fsm.State(StatusLocked),
			To:     fsm.State(StatusSearching),
			Events: []fsm.Event{eventHealthFailed},
			Cb:     s.fsmActLoseSync,
		},
	})
	return s, nil
}

// Status returns the current synchronisation state.
func (s *Synchronizer) Status() Status {
	return Status(s.fsm.Current())
}

// InFrame reports whether the health checker believes a frame is in
// progress.
func (s *Synchronizer) InFrame() bool {
	return s.inFrame
}

// State returns the live descrambler register.
func (s *Synchronizer) State() LFSR {
	return s.lfsr
}

// Stats returns a snapshot of the Synchronizer counters.
func (s *Synchronizer) Stats() Stats {
	return s.stats
}

// Reset drops any lock and history, returning to the searching state.
// Counters are preserved.
func (s *Synchronizer) Reset() {
	s.fsm.Force(fsm.State(StatusSearching))
	s.clear()
}

// Process consumes one input bit and returns the output bit together
// with the status after the bit was handled.  While searching the output
// is the input bit unmodified.
func (s *Synchronizer) Process(bit byte) (byte, Status) {
	bit &= 1
	s.stats.BitsProcessed++

	if s.Status() == StatusSearching {
		s.search.Push(bit)
		if s.search.Len() >= s.cfg.SearchWindow {
			s.searchInitialState()
		}
		return bit, s.Status()
	}

	out := s.lfsr.Step(bit)
	s.idle.Push(out)
	s.recent.Push(out)

	if s.stats.BitsProcessed%uint64(s.cfg.CheckInterval) == 0 {
		if !s.checkHealth() {
			s.handleEvent(eventHealthFailed)
		}
	}
	return out, s.Status()
}

// Write processes each bit of in, storing the output bits in out, which
// must be at least as long as in.  It returns the status after the last
// bit.
func (s *Synchronizer) Write(in, out []byte) Status {
	for i, b := range in {
		out[i], _ = s.Process(b)
	}
	return s.Status()
}

func (s *Synchronizer) handleEvent(e fsm.Event, args ...interface{}) {
	if err := s.fsm.HandleEvent(e, args...); err != nil {
		level.Error(s.logger).Log(
			"message", "failed to handle fsm event",
			"error", err)
	}
}

func (s *Synchronizer) clear() {
	s.lfsr = 0
	s.search.Clear()
	s.idle.Clear()
	s.recent.Clear()
	s.inFrame = false
	s.bitsSinceSFD = 0
}

// searchInitialState tries every candidate state in ascending order
// against the most recent window, adopting the first which yields an idle
// run.
func (s *Synchronizer) searchInitialState() {
	window := s.search.Last(s.cfg.SearchWindow)
	for seed := 0; seed < NumStates; seed++ {
		final, ok := idleRunState(window, NewLFSR(uint16(seed)), s.cfg.IdleRun)
		if ok {
			s.handleEvent(eventIdleFound, seed, final)
			return
		}
	}
}

func (s *Synchronizer) fsmActLock(args []interface{}) {
	seed, ok := args[0].(int)
	if !ok {
		panic(fmt.Sprintf("first argument %T not int", args[0]))
	}
	final, ok := args[1].(LFSR)
	if !ok {
		panic(fmt.Sprintf("second argument %T not LFSR", args[1]))
	}

	s.clear()
	s.lfsr = final
	s.stats.Locks++
	s.stats.LastLockSeed = seed
	s.stats.LastLockPosition = s.stats.BitsProcessed

	level.Info(s.logger).Log(
		"message", "descrambler state found",
		"initial_state", seed,
		"position", s.stats.BitsProcessed,
		"resyncs", s.stats.Resyncs)
}

func (s *Synchronizer) fsmActLoseSync(args []interface{}) {
	s.clear()
	s.stats.Resyncs++

	level.Info(s.logger).Log(
		"message", "descrambler sync lost",
		"position", s.stats.BitsProcessed,
		"resyncs", s.stats.Resyncs)
}

// checkHealth inspects the recent descrambled history and reports
// whether the lock still looks good.
func (s *Synchronizer) checkHealth() bool {
	threshold := s.cfg.MaxIdleNoIdle
	if s.inFrame {
		threshold = s.cfg.MaxInFrameNoIdle
	}

	if s.idle.Len() < threshold {
		return true
	}

	if HasRunOfOnes(s.idle.Last(threshold), s.cfg.IdleRun) {
		s.inFrame = false
		s.bitsSinceSFD = 0
		return true
	}

	if !s.inFrame && s.detectFrameStart() {
		s.inFrame = true
		s.bitsSinceSFD = 0
		level.Debug(s.logger).Log(
			"message", "frame start detected",
			"position", s.stats.BitsProcessed)
		return true
	}

	if s.inFrame {
		s.bitsSinceSFD++
		if s.bitsSinceSFD > s.cfg.MaxInFrameNoIdle {
			level.Debug(s.logger).Log(
				"message", "frame too long",
				"checks", s.bitsSinceSFD)
			return false
		}
		return true
	}

	level.Debug(s.logger).Log(
		"message", "no idle seen",
		"window", threshold,
		"position", s.stats.BitsProcessed)
	return false
}

// detectFrameStart looks for the transition from idle into frame data at
// the end of the recent history.
func (s *Synchronizer) detectFrameStart() bool {
	if s.recent.Len() < frameStartWindow {
		return false
	}
	last := s.recent.Last(frameStartWindow)

	ones := 0
	for _, b := range last[:frameStartIdleLen] {
		if b == 1 {
			ones++
		}
	}
	if ones < frameStartMinOnes {
		return false
	}

	zeros := 0
	for _, b := range last[frameStartIdleLen:] {
		if b == 0 {
			zeros++
		}
	}
	return zeros >= frameStartMinZeros
}
