/*
Package bitstream reads and writes captured line bitstreams.

Three capture formats are supported:

	unpacked	one byte per bit, the low bit holding the value
	packed		eight bits per byte, most significant bit first
	mlt3		little endian float32 line samples, one per bit, MLT-3 coded

Readers implement Source, which the decoding pipeline pulls bits from.
Writers are the transmit side counterparts used to generate captures.
*/
package bitstream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/katalix/go-ethphy/linecode"
)

// Source supplies an ordered sequence of bits.
//
// ReadBits fills p with up to len(p) bits, one bit per byte, and returns
// the number of bits read.  At the end of the stream it returns 0 and
// io.EOF.
type Source interface {
	ReadBits(p []byte) (int, error)
}

// Sink accepts an ordered sequence of bits.  Flush must be called once
// all bits have been written.
type Sink interface {
	WriteBits(bits []byte) error
	Flush() error
}

// Format identifies a capture format.
type Format int

const (
	FormatUnpacked Format = iota
	FormatPacked
	FormatMLT3
)

func (f Format) String() string {
	switch f {
	case FormatUnpacked:
		return "unpacked"
	case FormatPacked:
		return "packed"
	case FormatMLT3:
		return "mlt3"
	}
	return "???"
}

// ParseFormat returns the Format named by s.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "unpacked":
		return FormatUnpacked, nil
	case "packed":
		return FormatPacked, nil
	case "mlt3":
		return FormatMLT3, nil
	}
	return 0, fmt.Errorf("unrecognised bitstream format '%v'", s)
}

// NewReader returns a Source reading format from r.  The MLT-3 format
// uses a slicer with the default threshold.
func NewReader(format Format, r io.Reader) (Source, error) {
	switch format {
	case FormatUnpacked:
		return NewUnpackedReader(r), nil
	case FormatPacked:
		return NewPackedReader(r), nil
	case FormatMLT3:
		slicer, err := linecode.NewSlicer3(linecode.DefaultThreshold)
		if err != nil {
			return nil, err
		}
		return NewMLT3Reader(r, slicer), nil
	}
	return nil, fmt.Errorf("unsupported bitstream format %v", format)
}

// NewWriter returns a Sink writing format to w.
func NewWriter(format Format, w io.Writer) (Sink, error) {
	switch format {
	case FormatUnpacked:
		return NewUnpackedWriter(w), nil
	case FormatPacked:
		return NewPackedWriter(w), nil
	case FormatMLT3:
		return NewMLT3Writer(w), nil
	}
	return nil, fmt.Errorf("unsupported bitstream format %v", format)
}

// UnpackedReader reads one bit per byte.
type UnpackedReader struct {
	r *bufio.Reader
}

// NewUnpackedReader returns a reader for unpacked captures.
func NewUnpackedReader(r io.Reader) *UnpackedReader {
	return &UnpackedReader{r: bufio.NewReader(r)}
}

// ReadBits implements Source.
func (u *UnpackedReader) ReadBits(p []byte) (int, error) {
	n, err := u.r.Read(p)
	for i := 0; i < n; i++ {
		p[i] &= 1
	}
	if n > 0 {
		return n, nil
	}
	return 0, err
}

// PackedReader reads eight bits per byte, most significant bit first.
type PackedReader struct {
	r       *bufio.Reader
	cur     byte
	pending int
}

// NewPackedReader returns a reader for packed captures.
func NewPackedReader(r io.Reader) *PackedReader {
	return &PackedReader{r: bufio.NewReader(r)}
}

// ReadBits implements Source.
func (pr *PackedReader) ReadBits(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if pr.pending == 0 {
			b, err := pr.r.ReadByte()
			if err != nil {
				if n > 0 {
					return n, nil
				}
				return 0, err
			}
			pr.cur = b
			pr.pending = 8
		}
		pr.pending--
		p[n] = (pr.cur >> pr.pending) & 1
		n++
	}
	return n, nil
}

// MLT3Reader reads float32 line samples and recovers the bits they carry.
type MLT3Reader struct {
	r       *bufio.Reader
	slicer  *linecode.Slicer3
	decoder linecode.MLT3Decoder
	sample  [4]byte
}

// NewMLT3Reader returns a reader for MLT-3 sample captures.
func NewMLT3Reader(r io.Reader, slicer *linecode.Slicer3) *MLT3Reader {
	return &MLT3Reader{
		r:      bufio.NewReader(r),
		slicer: slicer,
	}
}

// ReadBits implements Source.  A truncated final sample is treated as the
// end of the stream.
func (m *MLT3Reader) ReadBits(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if _, err := io.ReadFull(m.r, m.sample[:]); err != nil {
			if n > 0 {
				return n, nil
			}
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			return 0, err
		}
		x := math.Float32frombits(binary.LittleEndian.Uint32(m.sample[:]))
		p[n] = m.decoder.Decode(m.slicer.Slice(x))
		n++
	}
	return n, nil
}

// UnpackedWriter writes one bit per byte.
type UnpackedWriter struct {
	w *bufio.Writer
}

// NewUnpackedWriter returns a writer for unpacked captures.
func NewUnpackedWriter(w io.Writer) *UnpackedWriter {
	return &UnpackedWriter{w: bufio.NewWriter(w)}
}

// WriteBits implements Sink.
func (u *UnpackedWriter) WriteBits(bits []byte) error {
	for _, b := range bits {
		if err := u.w.WriteByte(b & 1); err != nil {
			return err
		}
	}
	return nil
}

// Flush implements Sink.
func (u *UnpackedWriter) Flush() error {
	return u.w.Flush()
}

// PackedWriter writes eight bits per byte, most significant bit first.
type PackedWriter struct {
	w     *bufio.Writer
	cur   byte
	count int
}

// NewPackedWriter returns a writer for packed captures.
func NewPackedWriter(w io.Writer) *PackedWriter {
	return &PackedWriter{w: bufio.NewWriter(w)}
}

// WriteBits implements Sink.
func (pw *PackedWriter) WriteBits(bits []byte) error {
	for _, b := range bits {
		pw.cur = pw.cur<<1 | b&1
		pw.count++
		if pw.count == 8 {
			if err := pw.w.WriteByte(pw.cur); err != nil {
				return err
			}
			pw.cur, pw.count = 0, 0
		}
	}
	return nil
}

// Flush implements Sink.  A final partial byte is padded with zero bits.
func (pw *PackedWriter) Flush() error {
	if pw.count > 0 {
		if err := pw.w.WriteByte(pw.cur << (8 - pw.count)); err != nil {
			return err
		}
		pw.cur, pw.count = 0, 0
	}
	return pw.w.Flush()
}

// MLT3Writer writes MLT-3 coded float32 line samples.
type MLT3Writer struct {
	w       *bufio.Writer
	encoder linecode.MLT3Encoder
	sample  [4]byte
}

// NewMLT3Writer returns a writer for MLT-3 sample captures.
func NewMLT3Writer(w io.Writer) *MLT3Writer {
	return &MLT3Writer{w: bufio.NewWriter(w)}
}

// WriteBits implements Sink.
func (m *MLT3Writer) WriteBits(bits []byte) error {
	for _, b := range bits {
		x := float32(m.encoder.Encode(b))
		binary.LittleEndian.PutUint32(m.sample[:], math.Float32bits(x))
		if _, err := m.w.Write(m.sample[:]); err != nil {
			return err
		}
	}
	return nil
}

// Flush implements Sink.
func (m *MLT3Writer) Flush() error {
	return m.w.Flush()
}
