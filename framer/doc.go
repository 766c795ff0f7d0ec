/*
Package framer extracts Ethernet frames from a descrambled 100BASE-X
bitstream.

The line carries 4B/5B code-groups.  Between frames the line idles with
the I code-group (11111); a frame starts with the J K pair, carries the
rest of the preamble, the start of frame delimiter and the frame itself as
data code-groups, least significant nibble first, and ends with T R before
the line returns to idle.

The Extractor keeps a short rolling history of bits in which long idle runs
are compacted.  Seeing J K followed by preamble code-groups starts a frame;
the frame ends with the first T R I sequence, at which point the content is
decoded and the resulting octets handed back to the caller.  Frames without
an end delimiter are abandoned after a configurable number of bits.

# Usage

	# Note we're ignoring errors for brevity

	ext, _ := framer.NewExtractor(framer.DefaultConfig(), nil)
	for _, bit := range descrambled {
		frame, outcome := ext.Push(bit)
		if outcome == framer.OutcomeOK {
			fmt.Printf("frame %d: % x\n", frame.Seq, frame.Octets)
		}
	}

EncodeFrame and IdleBits provide the transmit side of the line code, which
is useful for generating test streams.
*/
package framer
