package framer

import (
	"bytes"
	"testing"
)

// testFrame returns n octets whose line coding cannot contain a spurious
// end delimiter.
func testFrame(n int) []byte {
	f := make([]byte, n)
	for i := range f {
		f[i] = 0x10 + byte(i%0x40)
	}
	return f
}

func lineBits(frames ...[]byte) []byte {
	bits := IdleBits(300)
	for _, f := range frames {
		bits = append(bits, EncodeFrame(f)...)
		bits = append(bits, IdleBits(120)...)
	}
	return bits
}

func newTestExtractor(t *testing.T, cfg Config) *Extractor {
	e, err := NewExtractor(cfg, nil)
	if err != nil {
		t.Fatalf("NewExtractor(%+v): %v", cfg, err)
	}
	return e
}

func TestExtractFrames(t *testing.T) {
	frames := [][]byte{testFrame(60), testFrame(64), testFrame(1500)}
	e := newTestExtractor(t, DefaultConfig())

	got := e.Write(lineBits(frames...))
	if len(got) != len(frames) {
		t.Fatalf("expected %d frames, got %d", len(frames), len(got))
	}
	for i, f := range got {
		if f.Seq != uint64(i+1) {
			t.Fatalf("frame %d: sequence %d", i, f.Seq)
		}
		if !bytes.Equal(f.Octets, frames[i]) {
			t.Fatalf("frame %d: got % x, want % x", i, f.Octets, frames[i])
		}
		if len(f.Raw) != len(frames[i])+preambleLen {
			t.Fatalf("frame %d: raw length %d", i, len(f.Raw))
		}
	}

	st := e.Stats()
	if st.Frames != 3 || st.Errors != 0 || st.Stalls != 0 || st.SymbolsDropped != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if e.InFrame() {
		t.Fatalf("extractor left in frame")
	}
}

func TestPushOutcomes(t *testing.T) {
	e := newTestExtractor(t, DefaultConfig())
	var outcomes []Outcome
	for _, b := range lineBits(testFrame(60), testFrame(5), testFrame(60)) {
		_, outcome := e.Push(b)
		if outcome != OutcomeNone {
			outcomes = append(outcomes, outcome)
		}
	}
	want := []Outcome{OutcomeOK, OutcomeTooShort, OutcomeOK}
	if len(outcomes) != len(want) {
		t.Fatalf("got outcomes %v, want %v", outcomes, want)
	}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Fatalf("got outcomes %v, want %v", outcomes, want)
		}
	}
}

func TestRejectionKeepsSequence(t *testing.T) {
	e := newTestExtractor(t, DefaultConfig())
	got := e.Write(lineBits(testFrame(10), testFrame(60), testFrame(3), testFrame(60)))
	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(got))
	}
	if got[0].Seq != 1 || got[1].Seq != 2 {
		t.Fatalf("sequence numbers %d, %d", got[0].Seq, got[1].Seq)
	}
	st := e.Stats()
	if st.Errors != 2 || st.TooShort != 2 || st.Frames != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestDroppedSymbol(t *testing.T) {
	frame := testFrame(60)
	enc := EncodeFrame(frame)
	// replace the code-group for the low nibble of frame octet 20
	group := 2 + 2*(preambleLen+20)
	copy(enc[group*symbolBits:], []byte{0, 0, 0, 0, 0})

	bits := append(IdleBits(300), enc...)
	bits = append(bits, IdleBits(120)...)

	e := newTestExtractor(t, DefaultConfig())
	got := e.Write(bits)
	if len(got) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(got))
	}
	if !bytes.Equal(got[0].Octets[:20], frame[:20]) {
		t.Fatalf("octets before the bad symbol differ")
	}
	if len(got[0].Octets) != len(frame)-1 {
		t.Fatalf("expected %d octets, got %d", len(frame)-1, len(got[0].Octets))
	}
	if st := e.Stats(); st.SymbolsDropped != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestStall(t *testing.T) {
	cfg := Config{StallTimeout: 1000}
	e := newTestExtractor(t, cfg)

	e.Write(append(IdleBits(100), startPattern[5:]...))
	if !e.InFrame() {
		t.Fatalf("start delimiter not recognised")
	}

	for i := 1; i <= cfg.StallTimeout; i++ {
		_, outcome := e.Push(0)
		if i < cfg.StallTimeout && outcome != OutcomeNone {
			t.Fatalf("bit %d: unexpected outcome %v", i, outcome)
		}
		if i == cfg.StallTimeout && outcome != OutcomeStalled {
			t.Fatalf("bit %d: expected stall, got %v", i, outcome)
		}
	}
	if e.InFrame() {
		t.Fatalf("still in frame after stall")
	}
	st := e.Stats()
	if st.Stalls != 1 || st.Errors != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}

	// the extractor recovers for the next frame
	got := e.Write(lineBits(testFrame(60)))
	if len(got) != 1 || got[0].Seq != 1 {
		t.Fatalf("no frame after stall")
	}
}

func TestReset(t *testing.T) {
	e := newTestExtractor(t, DefaultConfig())
	bits := lineBits(testFrame(60))
	e.Write(bits[:len(bits)/2])
	if !e.InFrame() {
		t.Fatalf("expected to be mid frame")
	}
	e.Reset()
	if e.InFrame() {
		t.Fatalf("Reset left the extractor in frame")
	}
	if got := e.Write(bits[len(bits)/2:]); len(got) != 0 {
		t.Fatalf("decoded a frame with no start")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{StallTimeout: 10}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate(%+v): expected error", cfg)
	}
	cfg = DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate(%+v): %v", cfg, err)
	}
}
