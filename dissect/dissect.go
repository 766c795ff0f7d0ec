package dissect

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"

	"github.com/google/gopacket/layers"
)

// DefaultPreviewBytes is the default number of payload octets rendered in
// Record.PayloadPreview.
const DefaultPreviewBytes = 64

const (
	ethHeaderLen  = 14
	vlanTagLen    = 4
	ipv4MinHdrLen = 20
	ipv6HdrLen    = 40
	udpHdrLen     = 8
	tcpMinHdrLen  = 20
	tcpFlagsOff   = 13
	icmpHdrLen    = 2

	// EtherType values below this are IEEE 802.3 length fields
	etherTypeMin = 0x0600
)

// TCP flag bits, in the order they are rendered.
var tcpFlagNames = []struct {
	bit  byte
	name string
}{
	{0x02, "SYN"},
	{0x10, "ACK"},
	{0x01, "FIN"},
	{0x04, "RST"},
	{0x08, "PSH"},
	{0x20, "URG"},
}

// Config holds Dissector options.
type Config struct {
	// PreviewBytes caps the payload preview.
	PreviewBytes int
}

// DefaultConfig returns the default Dissector configuration.
func DefaultConfig() Config {
	return Config{PreviewBytes: DefaultPreviewBytes}
}

// Validate checks the configuration is usable.
func (cfg *Config) Validate() error {
	if cfg.PreviewBytes < 0 {
		return fmt.Errorf("payload preview length %d must not be negative", cfg.PreviewBytes)
	}
	return nil
}

// Dissector turns Ethernet frames into Records.
type Dissector struct {
	previewBytes int
}

// New returns a Dissector using cfg.
func New(cfg Config) (*Dissector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dissector configuration: %v", err)
	}
	return &Dissector{previewBytes: cfg.PreviewBytes}, nil
}

var defaultDissector = &Dissector{previewBytes: DefaultPreviewBytes}

// Dissect summarises frame using the default configuration.
func Dissect(seq uint64, frame []byte) *Record {
	return defaultDissector.Dissect(seq, frame)
}

// Dissect summarises frame, which starts at the destination MAC address.
// Each layer is decoded on a best effort basis: a truncated header leaves
// that layer's fields unset without affecting the layers already decoded.
func (d *Dissector) Dissect(seq uint64, frame []byte) *Record {
	r := newRecord(seq, len(frame))
	if len(frame) < ethHeaderLen {
		return r
	}

	r.MACDst = net.HardwareAddr(frame[0:6]).String()
	r.MACSrc = net.HardwareAddr(frame[6:12]).String()
	etype := layers.EthernetType(binary.BigEndian.Uint16(frame[12:14]))
	r.EtherTypeOuter = int(etype)
	r.EtherTypeOuterName = EtherTypeName(etype)

	off := ethHeaderLen
	if etype == layers.EthernetTypeDot1Q && len(frame) >= off+vlanTagLen {
		tci := binary.BigEndian.Uint16(frame[off : off+2])
		r.HasVLAN = true
		r.VLANPCP = int(tci >> 13)
		r.VLANDEI = int(tci>>12) & 1
		r.VLANID = int(tci & 0x0fff)
		etype = layers.EthernetType(binary.BigEndian.Uint16(frame[off+2 : off+4]))
		off += vlanTagLen
	}
	r.EtherType = int(etype)
	r.EtherTypeName = EtherTypeName(etype)

	switch etype {
	case layers.EthernetTypeIPv4:
		d.dissectIPv4(r, frame[off:])
	case layers.EthernetTypeIPv6:
		d.dissectIPv6(r, frame[off:])
	case layers.EthernetTypeARP:
		r.IsARP = true
		r.Info = "ARP"
	}
	return r
}

func (d *Dissector) dissectIPv4(r *Record, pkt []byte) {
	if len(pkt) < ipv4MinHdrLen {
		return
	}
	r.IPVersion = int(pkt[0] >> 4)
	r.IPTTL = int(pkt[8])
	proto := layers.IPProtocol(pkt[9])
	r.L4Proto = int(proto)
	r.L4Name = L4Name(proto)
	r.IPSrc = net.IP(pkt[12:16]).String()
	r.IPDst = net.IP(pkt[16:20]).String()

	hdrLen := int(pkt[0]&0x0f) * 4
	if hdrLen < ipv4MinHdrLen || hdrLen > len(pkt) {
		r.Info = fmt.Sprintf("IPv4 %s %s -> %s", r.L4Name, r.IPSrc, r.IPDst)
		return
	}

	// The total length only bounds the preview.  Offloaded segments carry
	// a short total but still have their transport header captured.
	end := len(pkt)
	if total := int(binary.BigEndian.Uint16(pkt[2:4])); total >= hdrLen && total <= len(pkt) {
		end = total
	}
	d.dissectL4(r, "IPv4", proto, pkt[hdrLen:], end-hdrLen)
}

func (d *Dissector) dissectIPv6(r *Record, pkt []byte) {
	if len(pkt) < ipv6HdrLen {
		return
	}
	r.IPVersion = int(pkt[0] >> 4)
	proto := layers.IPProtocol(pkt[6])
	r.IPTTL = int(pkt[7])
	r.L4Proto = int(proto)
	r.L4Name = L4Name(proto)
	r.IPSrc = formatIPv6(pkt[8:24])
	r.IPDst = formatIPv6(pkt[24:40])

	// a zero payload length is a jumbogram or an offloaded segment
	payload := pkt[ipv6HdrLen:]
	end := len(payload)
	if plen := int(binary.BigEndian.Uint16(pkt[4:6])); plen > 0 && plen <= len(payload) {
		end = plen
	}
	d.dissectL4(r, "IPv6", proto, payload, end)
}

// dissectL4 decodes the transport header at the start of seg.  Only
// seg[:end] is covered by the IP length field and eligible for the preview.
func (d *Dissector) dissectL4(r *Record, ipName string, proto layers.IPProtocol, seg []byte, end int) {
	switch proto {
	case layers.IPProtocolTCP, layers.IPProtocolUDP:
		if len(seg) < 4 {
			break
		}
		r.SrcPort = int(binary.BigEndian.Uint16(seg[0:2]))
		r.DstPort = int(binary.BigEndian.Uint16(seg[2:4]))
		r.Info = fmt.Sprintf("%s:%d -> %s:%d (%s)", r.IPSrc, r.SrcPort, r.IPDst, r.DstPort, r.L4Name)

		hdrLen := udpHdrLen
		if proto == layers.IPProtocolTCP {
			if len(seg) <= tcpFlagsOff {
				return
			}
			r.TCPFlags = TCPFlags(seg[tcpFlagsOff])
			hdrLen = int(seg[12]>>4) * 4
			if hdrLen < tcpMinHdrLen {
				return
			}
		}
		if hdrLen < end {
			r.PayloadPreview = PayloadPreview(seg[hdrLen:end], d.previewBytes)
		}
		return

	case layers.IPProtocolICMPv4, layers.IPProtocolICMPv6:
		if len(seg) < icmpHdrLen {
			break
		}
		r.ICMPType = int(seg[0])
		r.ICMPCode = int(seg[1])
		r.Info = fmt.Sprintf("%s type %d, code %d %s -> %s", r.L4Name, r.ICMPType, r.ICMPCode, r.IPSrc, r.IPDst)
		return
	}
	r.Info = fmt.Sprintf("%s %s %s -> %s", ipName, r.L4Name, r.IPSrc, r.IPDst)
}

// formatIPv6 renders all eight 16-bit groups, zero padded.
func formatIPv6(b []byte) string {
	groups := make([]string, 0, 8)
	for i := 0; i+1 < len(b); i += 2 {
		groups = append(groups, fmt.Sprintf("%04x", binary.BigEndian.Uint16(b[i:i+2])))
	}
	return strings.Join(groups, ":")
}

// EtherTypeName returns a display name for an EtherType field value.
func EtherTypeName(t layers.EthernetType) string {
	if t < etherTypeMin {
		return fmt.Sprintf("Length (%d)", int(t))
	}
	switch t {
	case layers.EthernetTypeIPv4:
		return "IPv4"
	case layers.EthernetTypeARP:
		return "ARP"
	case layers.EthernetTypeIPv6:
		return "IPv6"
	case layers.EthernetTypeDot1Q:
		return "802.1Q VLAN"
	case layers.EthernetTypeMPLSUnicast:
		return "MPLS unicast"
	case layers.EthernetTypeMPLSMulticast:
		return "MPLS multicast"
	}
	return fmt.Sprintf("0x%04x", uint16(t))
}

// L4Name returns a display name for an IP protocol number.
func L4Name(p layers.IPProtocol) string {
	switch p {
	case layers.IPProtocolTCP:
		return "TCP"
	case layers.IPProtocolUDP:
		return "UDP"
	case layers.IPProtocolICMPv4:
		return "ICMP"
	case layers.IPProtocolICMPv6:
		return "ICMPv6"
	}
	return fmt.Sprintf("Proto %d", int(p))
}

// TCPFlags renders the flags byte of a TCP header as space separated flag
// names.
func TCPFlags(flags byte) string {
	var names []string
	for _, f := range tcpFlagNames {
		if flags&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, " ")
}

// PayloadPreview renders up to limit octets of payload as space separated
// hex pairs.  If the payload is longer the total length is appended.
func PayloadPreview(payload []byte, limit int) string {
	if len(payload) == 0 || limit <= 0 {
		return ""
	}
	n := len(payload)
	if n > limit {
		n = limit
	}
	var sb strings.Builder
	for i, b := range payload[:n] {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", b)
	}
	if len(payload) > limit {
		fmt.Fprintf(&sb, " ... (%d octets total)", len(payload))
	}
	return sb.String()
}
