/*
Package linecode converts between line signal levels and bits.

100BASE-TX transmits the scrambled bitstream using MLT-3: the line cycles
through the levels 0, +1, 0, -1 and each 1 bit advances the cycle by one
step while a 0 bit holds the current level.  Slicer3 quantises received
samples onto the three levels and MLT3Decoder recovers bits from level
transitions.

10BASE-T uses Manchester coding, where each bit is a pair of half-bit
samples: low then high for 1, high then low for 0.
*/
package linecode

import (
	"fmt"
)

// DefaultThreshold is the default Slicer3 decision threshold.
const DefaultThreshold = 0.33

// Slicer3 quantises samples onto the levels -1, 0 and +1.
type Slicer3 struct {
	threshold float32
}

// NewSlicer3 returns a slicer which maps samples above threshold to +1,
// samples below -threshold to -1, and everything else to 0.
func NewSlicer3(threshold float32) (*Slicer3, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("slicer threshold %v must be > 0", threshold)
	}
	return &Slicer3{threshold: threshold}, nil
}

// Threshold returns the decision threshold.
func (s *Slicer3) Threshold() float32 {
	return s.threshold
}

// Slice quantises a single sample.
func (s *Slicer3) Slice(x float32) int8 {
	switch {
	case x > s.threshold:
		return 1
	case x < -s.threshold:
		return -1
	}
	return 0
}

// Write quantises in into out, which must be at least as long as in.
func (s *Slicer3) Write(in []float32, out []int8) {
	for i, x := range in {
		out[i] = s.Slice(x)
	}
}

// MLT3Decoder recovers bits from a sequence of MLT-3 levels.  The line is
// assumed to start at level 0.
type MLT3Decoder struct {
	prev int8
}

// Decode returns 1 if level differs from the previous level, else 0.
func (d *MLT3Decoder) Decode(level int8) byte {
	var bit byte
	if level != d.prev {
		bit = 1
	}
	d.prev = level
	return bit
}

// Write decodes in into out, which must be at least as long as in.
func (d *MLT3Decoder) Write(in []int8, out []byte) {
	for i, l := range in {
		out[i] = d.Decode(l)
	}
}

// mlt3Cycle is the order in which MLT-3 visits the line levels.
var mlt3Cycle = [4]int8{0, 1, 0, -1}

// MLT3Encoder produces MLT-3 levels from bits, starting at level 0.
type MLT3Encoder struct {
	pos int
}

// Encode returns the line level for bit.
func (e *MLT3Encoder) Encode(bit byte) int8 {
	if bit&1 == 1 {
		e.pos = (e.pos + 1) % len(mlt3Cycle)
	}
	return mlt3Cycle[e.pos]
}

// DecodeManchester decodes pairs of half-bit samples.  The pair (0, 1)
// is a 1 and (1, 0) is a 0; any other pair carries no bit and is skipped.
// A trailing unpaired sample is ignored.
func DecodeManchester(samples []byte) []byte {
	bits := make([]byte, 0, len(samples)/2)
	for i := 0; i+1 < len(samples); i += 2 {
		a, b := samples[i]&1, samples[i+1]&1
		switch {
		case a == 0 && b == 1:
			bits = append(bits, 1)
		case a == 1 && b == 0:
			bits = append(bits, 0)
		}
	}
	return bits
}

// EncodeManchester returns the half-bit sample pairs for bits.
func EncodeManchester(bits []byte) []byte {
	samples := make([]byte, 0, 2*len(bits))
	for _, b := range bits {
		if b&1 == 1 {
			samples = append(samples, 0, 1)
		} else {
			samples = append(samples, 1, 0)
		}
	}
	return samples
}
