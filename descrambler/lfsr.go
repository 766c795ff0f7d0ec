package descrambler

// NumStates is the number of distinct LFSR states, and hence the number
// of candidates tried by the blind search.
const NumStates = 1 << lfsrBits

const (
	lfsrBits = 11
	lfsrMask = NumStates - 1
	// register positions 9 and 11 of the x^11 + x^9 + 1 polynomial
	tapA = 8
	tapB = 10
)

// LFSR is the 11 stage descrambler register.
//
// Bit i of the value holds register position i: position 0 is the most
// recently inserted bit and position 10 the oldest.
type LFSR uint16

// NewLFSR returns the register for a numeric seed in [0, NumStates).
// The most significant of the 11 seed bits occupies register position 0.
func NewLFSR(seed uint16) LFSR {
	var r LFSR
	for i := 0; i < lfsrBits; i++ {
		if (seed>>(lfsrBits-1-i))&1 != 0 {
			r |= 1 << i
		}
	}
	return r
}

// Seed returns the numeric seed which NewLFSR maps to this register.
func (r LFSR) Seed() uint16 {
	var s uint16
	for i := 0; i < lfsrBits; i++ {
		if (r>>i)&1 != 0 {
			s |= 1 << (lfsrBits - 1 - i)
		}
	}
	return s
}

// Bit returns register position i.
func (r LFSR) Bit(i int) byte {
	return byte(r>>i) & 1
}

// Step descrambles a single bit and advances the register.
func (r *LFSR) Step(in byte) byte {
	fb := byte((*r)>>tapA^(*r)>>tapB) & 1
	*r = ((*r)<<1 | LFSR(fb)) & lfsrMask
	return (in & 1) ^ fb
}

// Descramble runs bits through a copy of state and returns the
// descrambled bits together with the register value after the last bit.
func Descramble(bits []byte, state LFSR) (out []byte, final LFSR) {
	out = make([]byte, len(bits))
	for i, b := range bits {
		out[i] = state.Step(b)
	}
	return out, state
}

// Scramble is the transmit side operation.  The additive scrambler is its
// own inverse, so scrambling with a seed and descrambling with the same
// seed restores the input.
func Scramble(bits []byte, state LFSR) (out []byte, final LFSR) {
	return Descramble(bits, state)
}

// HasRunOfOnes reports whether bits holds at least n consecutive 1s.
func HasRunOfOnes(bits []byte, n int) bool {
	count := 0
	for _, b := range bits {
		if b&1 == 1 {
			count++
			if count >= n {
				return true
			}
		} else {
			count = 0
		}
	}
	return false
}

// idleRunState descrambles window from state, reporting whether a run of
// at least run ones appears and returning the register after the whole
// window.  The walk gives up as soon as the rest of the window is too
// short to hold a run.
func idleRunState(window []byte, state LFSR, run int) (LFSR, bool) {
	count := 0
	found := false
	for i, b := range window {
		if found {
			state.Step(b)
			continue
		}
		if state.Step(b) == 1 {
			count++
			found = count >= run
		} else {
			count = 0
			if len(window)-i-1 < run {
				return state, false
			}
		}
	}
	return state, found
}
