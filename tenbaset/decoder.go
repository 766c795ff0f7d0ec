/*
Package tenbaset decodes frame headers from a raw 10BASE-T line capture.

10BASE-T carries octets least significant bit first using Manchester
coding, with no scrambling and no line code-groups.  The capture is a
stream of half-bit samples; an external detector locates the start of each
frame and calls Decoder.Mark before writing the frame's samples.  The
decoder gathers enough samples for the first 128 octets, decodes them and
summarises the frame with the shared dissector.
*/
package tenbaset

import (
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/katalix/go-ethphy/dissect"
	"github.com/katalix/go-ethphy/linecode"
)

const (
	// HeaderOctets is the number of octets decoded from each frame.
	HeaderOctets  = 128
	headerSamples = HeaderOctets * 8 * 2

	// an Ethernet header's worth of bits
	minHeaderBits = 14 * 8
)

type state int

const (
	stateIdle state = iota
	stateAccumulating
)

// Stats holds Decoder counters.
type Stats struct {
	Marks  uint64
	Frames uint64
	// Short counts marked frames which decoded to less than an Ethernet
	// header.
	Short uint64
}

// Decoder turns marked runs of Manchester samples into records.
//
// Decoder is not safe for concurrent use.
type Decoder struct {
	logger    log.Logger
	dissector *dissect.Dissector
	state     state
	buf       []byte
	seq       uint64
	stats     Stats
}

// NewDecoder returns a Decoder using dissector to summarise frames.
// Pass a nil dissector for the default configuration and a nil logger to
// disable logging.
func NewDecoder(dissector *dissect.Dissector, logger log.Logger) *Decoder {
	if dissector == nil {
		dissector, _ = dissect.New(dissect.DefaultConfig())
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Decoder{
		logger:    log.With(logger, "component", "tenbaset"),
		dissector: dissector,
		buf:       make([]byte, 0, headerSamples),
	}
}

// Mark signals that the next sample written is the first half-bit of a
// frame's destination MAC address.  Any partially gathered frame is
// discarded.
func (d *Decoder) Mark() {
	d.stats.Marks++
	d.state = stateAccumulating
	d.buf = d.buf[:0]
}

// Stats returns a snapshot of the Decoder counters.
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Write consumes samples, each holding 0 or 1, and returns the record for
// a frame whose header the samples complete.  Samples written while no
// frame is marked are ignored.
func (d *Decoder) Write(samples []byte) []*dissect.Record {
	if d.state != stateAccumulating {
		return nil
	}
	need := headerSamples - len(d.buf)
	if len(samples) < need {
		d.buf = append(d.buf, samples...)
		return nil
	}
	d.buf = append(d.buf, samples[:need]...)
	d.state = stateIdle

	rec, err := d.decode()
	if err != nil {
		d.stats.Short++
		level.Debug(d.logger).Log(
			"message", "frame header not decoded",
			"error", err)
		return nil
	}
	return []*dissect.Record{rec}
}

func (d *Decoder) decode() (*dissect.Record, error) {
	bits := linecode.DecodeManchester(d.buf)
	if len(bits) < minHeaderBits {
		return nil, fmt.Errorf("%d bits decoded, need %d", len(bits), minHeaderBits)
	}
	octets := packLSBFirst(bits)

	d.seq++
	d.stats.Frames++
	rec := d.dissector.Dissect(d.seq, octets)
	level.Debug(d.logger).Log(
		"message", "frame header decoded",
		"seq", d.seq,
		"info", rec.Info)
	return rec, nil
}

// packLSBFirst packs whole octets of bits, first bit least significant.
func packLSBFirst(bits []byte) []byte {
	out := make([]byte, len(bits)/8)
	for i := range out {
		var o byte
		for j := 0; j < 8; j++ {
			o |= (bits[i*8+j] & 1) << j
		}
		out[i] = o
	}
	return out
}
