package framer

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestDecode5B4B(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		dropped int
	}{
		{"data", "1111001001", "00000001", 0},
		{"control skipped", "11000100010101101101", "0101", 0},
		{"invalid dropped", "0000011101", "1111", 1},
		{"partial group ignored", "11101111", "1111", 0},
		{"T R", "0110100111", "", 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, dropped := Decode5B4B(bitsOf(c.in))
			if !bytes.Equal(got, bitsOf(c.want)) {
				t.Fatalf("Decode5B4B(%v): got %v, want %v", c.in, got, c.want)
			}
			if dropped != c.dropped {
				t.Fatalf("Decode5B4B(%v): dropped %d, want %d", c.in, dropped, c.dropped)
			}
		})
	}
}

func TestCodeTablesAgree(t *testing.T) {
	for nibble, code := range encodeTable {
		if decodeTable[code] != int8(nibble) {
			t.Fatalf("code %05b decodes to %d, want %d", code, decodeTable[code], nibble)
		}
	}
	valid := 0
	for _, sym := range decodeTable {
		if sym != symInvalid {
			valid++
		}
	}
	if valid != 20 {
		t.Fatalf("expected 20 valid code-groups, got %d", valid)
	}
}

func TestSwapAndPack(t *testing.T) {
	// nibbles 5 then D, low nibble first, make the SFD
	nibbles := bitsOf("0101110101010101")
	got := PackOctets(SwapNibbles(nibbles))
	if want := []byte{0xd5, 0x55}; !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}
	// a partial octet is discarded
	if got := PackOctets(SwapNibbles(bitsOf("010111011"))); !bytes.Equal(got, []byte{0xd5}) {
		t.Fatalf("got % x", got)
	}
}

func TestEncodeFrame(t *testing.T) {
	frame := []byte{0x01, 0x23}
	got := EncodeFrame(frame)
	want := bitsOf("11000" + "10001" + // J K
		strings.Repeat("0101101011", 6) + // 6 x 0x55
		"01011" + "11011" + // 0xd5
		"01001" + "11110" + // 0x01
		"10101" + "10100" + // 0x23
		"01101" + "00111") // T R
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("EncodeFrame(% x):\n got %v\nwant %v", frame, got, want)
	}
}

func TestDecodeFramed(t *testing.T) {
	good := testFrame(60)
	encoded := append(append(IdleBits(5), EncodeFrame(good)...), IdleBits(5)...)

	cases := []struct {
		name    string
		in      []byte
		outcome Outcome
	}{
		{
			name:    "ok",
			in:      encoded,
			outcome: OutcomeOK,
		},
		{
			name:    "no start delimiter",
			in:      encoded[5:],
			outcome: OutcomeBadHeader,
		},
		{
			name:    "no end delimiter",
			in:      encoded[:len(encoded)-5],
			outcome: OutcomeBadHeader,
		},
		{
			name:    "too short",
			in:      append(append(IdleBits(5), EncodeFrame(good[:13])...), IdleBits(5)...),
			outcome: OutcomeTooShort,
		},
		{
			name: "bad symbols",
			in: append(append(append([]byte{}, startDelimiter...),
				bitsOf("0000000000000000000001001")...), endDelimiter...),
			outcome: OutcomeBadSymbol,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			octets, outcome := DecodeFramed(c.in)
			if outcome != c.outcome {
				t.Fatalf("DecodeFramed: got %v, want %v", outcome, c.outcome)
			}
			if outcome == OutcomeOK {
				if !bytes.Equal(octets[preambleLen:], good) {
					t.Fatalf("DecodeFramed: got % x, want % x", octets[preambleLen:], good)
				}
				if !bytes.Equal(octets[:preambleLen], []byte{0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0xd5}) {
					t.Fatalf("DecodeFramed: unexpected preamble % x", octets[:preambleLen])
				}
			} else if octets != nil {
				t.Fatalf("DecodeFramed: rejected frame returned octets")
			}
		})
	}
}
