package dissect

// Record is the protocol summary of a single Ethernet frame.
//
// Numeric fields which could not be determined are -1, textual fields
// are empty and flags are false.
type Record struct {
	FrameNum           uint64 `json:"frame_num"`
	FrameLength        int    `json:"frame_length"`
	MACDst             string `json:"mac_dst"`
	MACSrc             string `json:"mac_src"`
	EtherTypeOuter     int    `json:"ethertype_outer"`
	EtherTypeOuterName string `json:"ethertype_outer_name"`
	// EtherType is the type of the payload, which differs from
	// EtherTypeOuter when a VLAN tag is present.
	EtherType          int    `json:"ethertype"`
	EtherTypeName      string `json:"ethertype_name"`
	HasVLAN            bool   `json:"has_vlan"`
	VLANID             int    `json:"vlan_id"`
	VLANPCP            int    `json:"vlan_pcp"`
	VLANDEI            int    `json:"vlan_dei"`
	IPVersion          int    `json:"ip_version"`
	IPSrc              string `json:"ip_src"`
	IPDst              string `json:"ip_dst"`
	// IPTTL holds the IPv4 TTL or the IPv6 hop limit.
	IPTTL              int    `json:"ip_ttl"`
	L4Proto            int    `json:"l4_proto"`
	L4Name             string `json:"l4_name"`
	SrcPort            int    `json:"src_port"`
	DstPort            int    `json:"dst_port"`
	TCPFlags           string `json:"tcp_flags"`
	ICMPType           int    `json:"icmp_type"`
	ICMPCode           int    `json:"icmp_code"`
	IsARP              bool   `json:"is_arp"`
	PayloadPreview     string `json:"payload_preview"`
	Info               string `json:"info"`
}

func newRecord(seq uint64, length int) *Record {
	return &Record{
		FrameNum:       seq,
		FrameLength:    length,
		EtherTypeOuter: -1,
		EtherType:      -1,
		VLANID:         -1,
		VLANPCP:        -1,
		VLANDEI:        -1,
		IPVersion:      -1,
		IPTTL:          -1,
		L4Proto:        -1,
		SrcPort:        -1,
		DstPort:        -1,
		ICMPType:       -1,
		ICMPCode:       -1,
	}
}

// Map returns the record as a field name to value mapping, using the
// same names as the record's JSON encoding.
func (r *Record) Map() map[string]interface{} {
	return map[string]interface{}{
		"frame_num":            r.FrameNum,
		"frame_length":         r.FrameLength,
		"mac_dst":              r.MACDst,
		"mac_src":              r.MACSrc,
		"ethertype_outer":      r.EtherTypeOuter,
		"ethertype_outer_name": r.EtherTypeOuterName,
		"ethertype":            r.EtherType,
		"ethertype_name":       r.EtherTypeName,
		"has_vlan":             r.HasVLAN,
		"vlan_id":              r.VLANID,
		"vlan_pcp":             r.VLANPCP,
		"vlan_dei":             r.VLANDEI,
		"ip_version":           r.IPVersion,
		"ip_src":               r.IPSrc,
		"ip_dst":               r.IPDst,
		"ip_ttl":               r.IPTTL,
		"l4_proto":             r.L4Proto,
		"l4_name":              r.L4Name,
		"src_port":             r.SrcPort,
		"dst_port":             r.DstPort,
		"tcp_flags":            r.TCPFlags,
		"icmp_type":            r.ICMPType,
		"icmp_code":            r.ICMPCode,
		"is_arp":               r.IsARP,
		"payload_preview":      r.PayloadPreview,
		"info":                 r.Info,
	}
}
