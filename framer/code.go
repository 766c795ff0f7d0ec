package framer

import (
	"bytes"
)

// symbolBits is the width of a line code-group.
const symbolBits = 5

const (
	symInvalid int8 = -1
	symJ       int8 = 0x10
	symK       int8 = 0x11
	symT       int8 = 0x12
	symR       int8 = 0x13
)

// decodeTable maps a 5-bit code-group to its 4-bit data value, a control
// symbol, or symInvalid.
var decodeTable = func() (t [32]int8) {
	for i := range t {
		t[i] = symInvalid
	}
	for nibble, code := range encodeTable {
		t[code] = int8(nibble)
	}
	t[0x18] = symJ // 11000
	t[0x11] = symK // 10001
	t[0x0d] = symT // 01101
	t[0x07] = symR // 00111
	return t
}()

// encodeTable maps each data nibble to its 5-bit code-group.
var encodeTable = [16]byte{
	0x1e, // 0: 11110
	0x09, // 1: 01001
	0x14, // 2: 10100
	0x15, // 3: 10101
	0x0a, // 4: 01010
	0x0b, // 5: 01011
	0x0e, // 6: 01110
	0x0f, // 7: 01111
	0x12, // 8: 10010
	0x13, // 9: 10011
	0x16, // A: 10110
	0x17, // B: 10111
	0x1a, // C: 11010
	0x1b, // D: 11011
	0x1c, // E: 11100
	0x1d, // F: 11101
}

// Bit patterns used for framing, one byte per bit, first received bit
// first.
var (
	// four idle code-groups
	idlePattern = bitsOf("11111111111111111111")
	// what a run of idle is compacted down to
	idlePrefix = bitsOf("1111111111")
	// the tail of an idle code-group followed by J K
	startDelimiter = bitsOf("111111100010001")
	// two 0x55 preamble octets
	firstData = bitsOf("01011010110101101011")
	// T R and an idle code-group
	endDelimiter = bitsOf("011010011111111")

	startPattern = append(append([]byte{}, startDelimiter...), firstData...)
)

// preambleLen is the number of decoded octets which precede the
// destination MAC address: the six preamble octets following J K and the
// start of frame delimiter.
const preambleLen = 7

// minFrameOctets is the shortest decoded sequence, preamble remainder
// included, which can carry an Ethernet header.
const minFrameOctets = 21

func bitsOf(s string) []byte {
	b := make([]byte, len(s))
	for i := range s {
		b[i] = s[i] - '0'
	}
	return b
}

// Decode5B4B maps each whole 5-bit group in bits to its 4-bit data value,
// appended to the output most significant bit first.  Control symbols are
// skipped.  Groups which are neither data nor control symbols are dropped
// and counted.  Trailing bits which do not fill a group are ignored.
func Decode5B4B(bits []byte) (out []byte, dropped int) {
	out = make([]byte, 0, len(bits)/symbolBits*4)
	for i := 0; i+symbolBits <= len(bits); i += symbolBits {
		var code byte
		for _, b := range bits[i : i+symbolBits] {
			code = code<<1 | b&1
		}
		sym := decodeTable[code]
		switch {
		case sym == symInvalid:
			dropped++
		case sym >= symJ:
		default:
			out = append(out,
				byte(sym>>3)&1,
				byte(sym>>2)&1,
				byte(sym>>1)&1,
				byte(sym)&1)
		}
	}
	return out, dropped
}

// SwapNibbles exchanges the two 4-bit halves of every whole 8-bit window
// of bits.  Nibbles are received least significant first, so this restores
// octet order.  A trailing partial window is discarded.
func SwapNibbles(bits []byte) []byte {
	out := make([]byte, 0, len(bits)&^7)
	for i := 0; i+8 <= len(bits); i += 8 {
		out = append(out, bits[i+4:i+8]...)
		out = append(out, bits[i:i+4]...)
	}
	return out
}

// PackOctets packs bits, most significant bit first, into octets.  A
// trailing partial octet is discarded.
func PackOctets(bits []byte) []byte {
	out := make([]byte, len(bits)/8)
	for i := range out {
		var o byte
		for _, b := range bits[i*8 : i*8+8] {
			o = o<<1 | b&1
		}
		out[i] = o
	}
	return out
}

// DecodeFramed decodes a delimited bit sequence into octets.  The content
// is taken from the bits strictly between the first start delimiter and
// the first end delimiter following it.  The returned octets still carry
// the preamble remainder and start of frame delimiter.
func DecodeFramed(bits []byte) ([]byte, Outcome) {
	octets, _, outcome := decodeFramed(bits)
	return octets, outcome
}

func decodeFramed(bits []byte) (octets []byte, dropped int, outcome Outcome) {
	start := bytes.Index(bits, startDelimiter)
	if start < 0 {
		return nil, 0, OutcomeBadHeader
	}
	end := bytes.Index(bits[start:], endDelimiter)
	if end < 0 {
		return nil, 0, OutcomeBadHeader
	}
	end += start

	content := start + len(startDelimiter)
	if end < content {
		return nil, 0, OutcomeBadHeader
	}
	nibbles, dropped := Decode5B4B(bits[content:end])
	if len(nibbles) < 8 {
		return nil, dropped, OutcomeBadSymbol
	}
	octets = PackOctets(SwapNibbles(nibbles))
	if len(octets) < minFrameOctets {
		return nil, dropped, OutcomeTooShort
	}
	return octets, dropped, OutcomeOK
}

// EncodeFrame is the transmit side inverse of the extractor.  It returns
// the 4B/5B line bits for an Ethernet frame: J K, the rest of the preamble
// and the start of frame delimiter, the frame octets low nibble first, then
// T R.  The result must be surrounded by idle for the delimiters to be
// recognised.
func EncodeFrame(frame []byte) []byte {
	octets := make([]byte, 0, preambleLen+len(frame))
	for i := 0; i < preambleLen-1; i++ {
		octets = append(octets, 0x55)
	}
	octets = append(octets, 0xd5)
	octets = append(octets, frame...)

	// J K, taken from the start delimiter without its idle lead-in
	out := make([]byte, 0, (len(octets)*2+4)*symbolBits)
	out = append(out, startDelimiter[symbolBits:]...)
	for _, o := range octets {
		out = appendCode(out, encodeTable[o&0x0f])
		out = appendCode(out, encodeTable[o>>4])
	}
	// T R, the end delimiter without its idle
	out = append(out, endDelimiter[:2*symbolBits]...)
	return out
}

func appendCode(out []byte, code byte) []byte {
	for i := symbolBits - 1; i >= 0; i-- {
		out = append(out, (code>>i)&1)
	}
	return out
}

// IdleBits returns n bits of idle line: every bit set.
func IdleBits(n int) []byte {
	return bytes.Repeat([]byte{1}, n)
}
