// Package dissect summarises Ethernet frames into flat records.
//
// Dissect decodes the Ethernet header, an optional 802.1Q tag, IPv4 or IPv6
// and the common transport headers (TCP, UDP, ICMP and ICMPv6).  ARP frames
// are recognised but not decoded.  Decoding never fails: fields which a
// frame is too short to carry keep their sentinel values.
package dissect
