/*
The ethphygen command generates a 100BASE-X line bitstream from the
Ethernet frames of a pcap capture.

Each frame is 4B/5B encoded between start and end delimiters, separated
from its neighbours by idle, and the whole stream is scrambled.  The
output may be fed to ethphyd to recover the original frames.

	ethphygen -input frames.pcap -output capture.bin -format unpacked
*/
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"hash/crc32"
	"io"
	stdlog "log"
	"os"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/katalix/go-ethphy/bitstream"
	"github.com/katalix/go-ethphy/descrambler"
	"github.com/katalix/go-ethphy/framer"
)

type genConfig struct {
	// idle bits before the first frame and between frames
	idleBits int
	// scrambler initial state
	seed uint16
	// append a frame check sequence to each frame
	appendFCS bool
}

type generator struct {
	cfg     genConfig
	logger  log.Logger
	sink    bitstream.Sink
	lfsr    descrambler.LFSR
	nFrames int
}

func newGenerator(cfg genConfig, sink bitstream.Sink, logger log.Logger) (*generator, error) {
	if cfg.idleBits < 1 {
		return nil, fmt.Errorf("idle length %d must be > 0", cfg.idleBits)
	}
	if int(cfg.seed) >= descrambler.NumStates {
		return nil, fmt.Errorf("scrambler seed %d must be < %d", cfg.seed, descrambler.NumStates)
	}
	return &generator{
		cfg:    cfg,
		logger: logger,
		sink:   sink,
		lfsr:   descrambler.NewLFSR(cfg.seed),
	}, nil
}

func (g *generator) emit(plain []byte) error {
	var bits []byte
	bits, g.lfsr = descrambler.Scramble(plain, g.lfsr)
	return g.sink.WriteBits(bits)
}

func (g *generator) writeFrame(frame []byte) error {
	if g.cfg.appendFCS {
		fcs := make([]byte, 4)
		binary.LittleEndian.PutUint32(fcs, crc32.ChecksumIEEE(frame))
		frame = append(frame[:len(frame):len(frame)], fcs...)
	}
	if err := g.emit(framer.EncodeFrame(frame)); err != nil {
		return err
	}
	g.nFrames++
	level.Debug(g.logger).Log(
		"message", "frame encoded",
		"num", g.nFrames,
		"octets", len(frame))
	return g.emit(framer.IdleBits(g.cfg.idleBits))
}

// run encodes every frame read from the pcap stream r.
func (g *generator) run(r io.Reader) error {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to read pcap header: %v", err)
	}
	if pr.LinkType() != layers.LinkTypeEthernet {
		return fmt.Errorf("unsupported link type %v", pr.LinkType())
	}

	if err := g.emit(framer.IdleBits(g.cfg.idleBits)); err != nil {
		return err
	}
	for {
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read packet: %v", err)
		}
		if ci.CaptureLength < ci.Length {
			level.Info(g.logger).Log(
				"message", "skipping truncated packet",
				"captured", ci.CaptureLength,
				"length", ci.Length)
			continue
		}
		if err := g.writeFrame(data); err != nil {
			return fmt.Errorf("failed to write frame: %v", err)
		}
	}
	return g.sink.Flush()
}

func main() {
	inputPtr := flag.String("input", "-", "pcap file to encode")
	outputPtr := flag.String("output", "-", "bitstream file to write")
	formatPtr := flag.String("format", "unpacked", "bitstream format: unpacked, packed or mlt3")
	idlePtr := flag.Int("idle", 200, "idle bits between frames")
	seedPtr := flag.Uint("seed", 1, "scrambler initial state, 0 - 2047")
	fcsPtr := flag.Bool("fcs", false, "append a frame check sequence to each frame")
	verbosePtr := flag.Bool("verbose", false, "toggle verbose log output")
	flag.Parse()

	logger := log.NewLogfmtLogger(os.Stderr)
	if *verbosePtr {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	format, err := bitstream.ParseFormat(*formatPtr)
	if err != nil {
		stdlog.Fatalf("%v", err)
	}
	if *seedPtr >= descrambler.NumStates {
		stdlog.Fatalf("scrambler seed %d out of range", *seedPtr)
	}

	in := os.Stdin
	if *inputPtr != "-" {
		in, err = os.Open(*inputPtr)
		if err != nil {
			stdlog.Fatalf("failed to open input: %v", err)
		}
		defer in.Close()
	}

	out := os.Stdout
	if *outputPtr != "-" {
		out, err = os.Create(*outputPtr)
		if err != nil {
			stdlog.Fatalf("failed to create output: %v", err)
		}
		defer out.Close()
	}

	sink, err := bitstream.NewWriter(format, out)
	if err != nil {
		stdlog.Fatalf("%v", err)
	}

	g, err := newGenerator(genConfig{
		idleBits:  *idlePtr,
		seed:      uint16(*seedPtr),
		appendFCS: *fcsPtr,
	}, sink, logger)
	if err != nil {
		stdlog.Fatalf("%v", err)
	}

	if err := g.run(in); err != nil {
		level.Error(logger).Log("message", "generation failed", "error", err)
		os.Exit(1)
	}
	level.Info(logger).Log("message", "done", "frames", g.nFrames)
}
