package phy

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// LogSink logs a summary line for each pipeline event.
type LogSink struct {
	logger log.Logger
}

// NewLogSink returns a LogSink writing to logger.
func NewLogSink(logger log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// HandleEvent implements EventHandler.
func (s *LogSink) HandleEvent(event interface{}) {
	switch ev := event.(type) {
	case *FrameEvent:
		r := ev.Record
		kv := []interface{}{
			"message", "frame",
			"num", r.FrameNum,
			"octets", r.FrameLength,
			"dst", r.MACDst,
			"src", r.MACSrc,
			"ethertype", r.EtherTypeName,
		}
		if r.HasVLAN {
			kv = append(kv, "vlan", r.VLANID)
		}
		if r.IPVersion > 0 {
			kv = append(kv, "ttl", r.IPTTL)
		}
		kv = append(kv, "info", r.Info)
		level.Info(s.logger).Log(kv...)
	case *FrameRejectedEvent:
		level.Info(s.logger).Log(
			"message", "frame rejected",
			"reason", ev.Reason,
			"position", ev.Position)
	case *SyncLockedEvent:
		level.Info(s.logger).Log(
			"message", "descrambler locked",
			"initial_state", ev.Seed,
			"position", ev.Position)
	case *SyncLostEvent:
		level.Info(s.logger).Log(
			"message", "descrambler sync lost",
			"position", ev.Position,
			"resyncs", ev.Resyncs)
	}
}

// JSONSink writes each frame record as a line of JSON.
type JSONSink struct {
	enc    *json.Encoder
	logger log.Logger
}

// NewJSONSink returns a JSONSink writing to w.  Write failures are logged
// to logger.
func NewJSONSink(w io.Writer, logger log.Logger) *JSONSink {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &JSONSink{
		enc:    json.NewEncoder(w),
		logger: log.With(logger, "component", "json sink"),
	}
}

// HandleEvent implements EventHandler.
func (s *JSONSink) HandleEvent(event interface{}) {
	if ev, ok := event.(*FrameEvent); ok {
		if err := s.enc.Encode(ev.Record); err != nil {
			level.Error(s.logger).Log(
				"message", "failed to write record",
				"frame", ev.Record.FrameNum,
				"error", err)
		}
	}
}

// PcapSnapLen is the snapshot length recorded in pcap file headers.
const PcapSnapLen = 65536

// PcapSink writes recovered frames to a pcap capture.
type PcapSink struct {
	w      *pcapgo.Writer
	logger log.Logger
	// Now timestamps captured frames.  It defaults to time.Now.
	Now func() time.Time
}

// NewPcapSink writes a pcap file header to w and returns a PcapSink
// appending frames to it.  Write failures are logged to logger.
func NewPcapSink(w io.Writer, logger log.Logger) (*PcapSink, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(PcapSnapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %v", err)
	}
	return &PcapSink{
		w:      pw,
		logger: log.With(logger, "component", "pcap sink"),
		Now:    time.Now,
	}, nil
}

// HandleEvent implements EventHandler.
func (s *PcapSink) HandleEvent(event interface{}) {
	ev, ok := event.(*FrameEvent)
	if !ok {
		return
	}
	octets := ev.Frame.Octets
	if len(octets) > PcapSnapLen {
		octets = octets[:PcapSnapLen]
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     s.Now(),
		CaptureLength: len(octets),
		Length:        len(ev.Frame.Octets),
	}
	if err := s.w.WritePacket(ci, octets); err != nil {
		level.Error(s.logger).Log(
			"message", "failed to write frame",
			"frame", ev.Frame.Seq,
			"error", err)
	}
}
