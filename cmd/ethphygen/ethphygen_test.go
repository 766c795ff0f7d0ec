package main

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/katalix/go-ethphy/bitstream"
	"github.com/katalix/go-ethphy/phy"
)

type frameCollector struct {
	frames [][]byte
}

func (c *frameCollector) HandleEvent(event interface{}) {
	if ev, ok := event.(*phy.FrameEvent); ok {
		c.frames = append(c.frames, ev.Frame.Octets)
	}
}

func testFrames() [][]byte {
	var frames [][]byte
	for _, n := range []int{60, 128} {
		f := make([]byte, n)
		for i := range f {
			f[i] = 0x10 + byte(i%0x40)
		}
		frames = append(frames, f)
	}
	return frames
}

func testPcap(t *testing.T, linkType layers.LinkType, frames [][]byte) *bytes.Buffer {
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	if err := w.WriteFileHeader(65536, linkType); err != nil {
		t.Fatalf("WriteFileHeader: %v", err)
	}
	for _, f := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(0, 0),
			CaptureLength: len(f),
			Length:        len(f),
		}
		if err := w.WritePacket(ci, f); err != nil {
			t.Fatalf("WritePacket: %v", err)
		}
	}
	return &buf
}

func decode(t *testing.T, line *bytes.Buffer) [][]byte {
	cfg := phy.DefaultConfig()
	cfg.Descrambler.MaxIdleNoIdle = 20000
	ctx, err := phy.NewContext(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	c := &frameCollector{}
	ctx.RegisterEventHandler(c)

	src := bitstream.NewPackedReader(line)
	p := make([]byte, 1000)
	for {
		n, _ := src.ReadBits(p)
		if n == 0 {
			break
		}
		ctx.Write(p[:n])
	}
	return c.frames
}

func TestGenerate(t *testing.T) {
	cases := []struct {
		name string
		cfg  genConfig
	}{
		{"plain", genConfig{idleBits: 200, seed: 1}},
		{"fcs", genConfig{idleBits: 150, seed: 0x7ff, appendFCS: true}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			frames := testFrames()

			var line bytes.Buffer
			g, err := newGenerator(c.cfg, bitstream.NewPackedWriter(&line), log.NewNopLogger())
			if err != nil {
				t.Fatalf("newGenerator: %v", err)
			}
			if err := g.run(testPcap(t, layers.LinkTypeEthernet, frames)); err != nil {
				t.Fatalf("run: %v", err)
			}
			if g.nFrames != len(frames) {
				t.Fatalf("encoded %d frames, expected %d", g.nFrames, len(frames))
			}

			got := decode(t, &line)
			if len(got) != len(frames) {
				t.Fatalf("recovered %d frames, expected %d", len(got), len(frames))
			}
			for i, want := range frames {
				f := got[i]
				if c.cfg.appendFCS {
					if len(f) != len(want)+4 {
						t.Fatalf("frame %d: %d octets, expected %d", i, len(f), len(want)+4)
					}
					fcs := binary.LittleEndian.Uint32(f[len(want):])
					if fcs != crc32.ChecksumIEEE(want) {
						t.Errorf("frame %d: bad FCS %08x", i, fcs)
					}
					f = f[:len(want)]
				}
				if !bytes.Equal(f, want) {
					t.Errorf("frame %d mismatch", i)
				}
			}
		})
	}
}

func TestGenerateRejects(t *testing.T) {
	if _, err := newGenerator(genConfig{idleBits: 0}, nil, log.NewNopLogger()); err == nil {
		t.Errorf("expected error for zero idle")
	}
	if _, err := newGenerator(genConfig{idleBits: 100, seed: 2048}, nil, log.NewNopLogger()); err == nil {
		t.Errorf("expected error for out of range seed")
	}

	var line bytes.Buffer
	g, err := newGenerator(genConfig{idleBits: 100, seed: 1}, bitstream.NewUnpackedWriter(&line), log.NewNopLogger())
	if err != nil {
		t.Fatalf("newGenerator: %v", err)
	}
	if err := g.run(testPcap(t, layers.LinkTypeRaw, testFrames())); err == nil {
		t.Errorf("expected error for non-Ethernet capture")
	}
}
