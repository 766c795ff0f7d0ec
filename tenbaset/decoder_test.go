package tenbaset

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/katalix/go-ethphy/linecode"
)

func testFrame(t *testing.T) []byte {
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true},
		&layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x0a},
			DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x0b},
			EthernetType: layers.EthernetTypeIPv4,
		},
		&layers.IPv4{
			Version:  4,
			TTL:      128,
			SrcIP:    net.IPv4(192, 168, 1, 10),
			DstIP:    net.IPv4(192, 168, 1, 11),
			Protocol: layers.IPProtocolUDP,
		},
		&layers.UDP{SrcPort: 67, DstPort: 68},
		gopacket.Payload(make([]byte, 200)))
	if err != nil {
		t.Fatalf("SerializeLayers: %v", err)
	}
	return buf.Bytes()
}

// lineSamples returns the Manchester samples for octets sent least
// significant bit first.
func lineSamples(octets []byte) []byte {
	bits := make([]byte, 0, len(octets)*8)
	for _, o := range octets {
		for j := 0; j < 8; j++ {
			bits = append(bits, (o>>j)&1)
		}
	}
	return linecode.EncodeManchester(bits)
}

func TestDecodeHeader(t *testing.T) {
	d := NewDecoder(nil, nil)
	samples := lineSamples(testFrame(t))

	d.Mark()
	if recs := d.Write(samples[:1000]); len(recs) != 0 {
		t.Fatalf("record emitted before the header was gathered")
	}
	recs := d.Write(samples[1000:])
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}

	r := recs[0]
	if r.FrameNum != 1 || r.FrameLength != HeaderOctets {
		t.Fatalf("unexpected frame number %d or length %d", r.FrameNum, r.FrameLength)
	}
	if r.MACDst != "02:00:00:00:00:0b" || r.MACSrc != "02:00:00:00:00:0a" {
		t.Fatalf("unexpected MACs %s %s", r.MACDst, r.MACSrc)
	}
	if r.IPSrc != "192.168.1.10" || r.IPDst != "192.168.1.11" || r.IPTTL != 128 {
		t.Fatalf("unexpected IP fields %+v", r)
	}
	if r.SrcPort != 67 || r.DstPort != 68 || r.L4Name != "UDP" {
		t.Fatalf("unexpected transport fields %+v", r)
	}

	// the decoder idles until the next mark
	if recs := d.Write(samples); len(recs) != 0 {
		t.Fatalf("record emitted without a mark")
	}
	d.Mark()
	if recs := d.Write(samples); len(recs) != 1 || recs[0].FrameNum != 2 {
		t.Fatalf("expected frame 2 after a second mark")
	}
}

func TestMarkRestarts(t *testing.T) {
	d := NewDecoder(nil, nil)
	samples := lineSamples(testFrame(t))

	d.Mark()
	d.Write([]byte{1, 1, 1})
	d.Mark()
	recs := d.Write(samples)
	if len(recs) != 1 || recs[0].MACDst != "02:00:00:00:00:0b" {
		t.Fatalf("partial samples were not discarded on Mark")
	}
	if st := d.Stats(); st.Marks != 2 || st.Frames != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestShortHeader(t *testing.T) {
	d := NewDecoder(nil, nil)
	samples := append(lineSamples(testFrame(t)[:10]), make([]byte, headerSamples)...)

	d.Mark()
	if recs := d.Write(samples); len(recs) != 0 {
		t.Fatalf("record emitted for a short header")
	}
	if st := d.Stats(); st.Short != 1 || st.Frames != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}
