package bitstream

import (
	"bytes"
	"io"
	"math/rand"
	"testing"
)

func readAll(t *testing.T, src Source, chunk int) []byte {
	var out []byte
	p := make([]byte, chunk)
	for {
		n, err := src.ReadBits(p)
		out = append(out, p[:n]...)
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("ReadBits: %v", err)
		}
	}
}

func TestPackedReader(t *testing.T) {
	src := NewPackedReader(bytes.NewReader([]byte{0xa5, 0x01}))
	got := readAll(t, src, 3)
	want := []byte{1, 0, 1, 0, 0, 1, 0, 1, 0, 0, 0, 0, 0, 0, 0, 1}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestUnpackedReaderMasks(t *testing.T) {
	src := NewUnpackedReader(bytes.NewReader([]byte{0x00, 0x01, 0xfe, 0xff}))
	if got, want := readAll(t, src, 64), []byte{0, 1, 0, 1}; !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	bits := make([]byte, 1001)
	for i := range bits {
		bits[i] = byte(rng.Intn(2))
	}

	for _, format := range []Format{FormatUnpacked, FormatPacked, FormatMLT3} {
		t.Run(format.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(format, &buf)
			if err != nil {
				t.Fatalf("NewWriter(%v): %v", format, err)
			}
			if err := w.WriteBits(bits[:500]); err != nil {
				t.Fatalf("WriteBits: %v", err)
			}
			if err := w.WriteBits(bits[500:]); err != nil {
				t.Fatalf("WriteBits: %v", err)
			}
			if err := w.Flush(); err != nil {
				t.Fatalf("Flush: %v", err)
			}

			r, err := NewReader(format, &buf)
			if err != nil {
				t.Fatalf("NewReader(%v): %v", format, err)
			}
			got := readAll(t, r, 77)
			if format == FormatPacked {
				// padded out to a whole byte
				if len(got) != 1008 {
					t.Fatalf("expected 1008 bits, got %d", len(got))
				}
				got = got[:len(bits)]
			}
			if !bytes.Equal(got, bits) {
				t.Fatalf("round trip mismatch")
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range []Format{FormatUnpacked, FormatPacked, FormatMLT3} {
		got, err := ParseFormat(f.String())
		if err != nil || got != f {
			t.Fatalf("ParseFormat(%q): got %v, %v", f.String(), got, err)
		}
	}
	if _, err := ParseFormat("wav"); err == nil {
		t.Fatalf("ParseFormat(wav): expected error")
	}
}
