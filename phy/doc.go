/*
Package phy assembles the 100BASE-X receive pipeline.

A Context chains a descrambler.Synchronizer, a framer.Extractor and a
dissect.Dissector.  Bits are fed in with Write, or pulled from a
bitstream.Source by Run, and each stage runs to completion on every bit
before the next is considered.

Consumers observe the pipeline through event handlers.  The events are:

	*FrameEvent          a frame was recovered and dissected
	*FrameRejectedEvent  a delimited frame failed to decode or stalled
	*SyncLockedEvent     the descrambler phase was recovered
	*SyncLostEvent       the descrambler lost lock

The package provides handlers which log frame summaries, write JSON
records, write a pcap capture and replay frames onto a network interface.

Usage:

	import (
		"context"
		"os"

		"github.com/go-kit/kit/log"
		"github.com/katalix/go-ethphy/bitstream"
		"github.com/katalix/go-ethphy/phy"
	)

	logger := log.NewLogfmtLogger(os.Stderr)

	ctx, err := phy.NewContext(phy.DefaultConfig(), nil, logger)
	if err != nil {
		panic(err)
	}
	ctx.RegisterEventHandler(phy.NewLogSink(logger))

	f, _ := os.Open("capture.bin")
	err = ctx.Run(context.Background(), bitstream.NewUnpackedReader(f))
*/
package phy
