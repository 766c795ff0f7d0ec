/*
Package descrambler recovers the 100BASE-X stream cipher phase from a
captured line bitstream.

100BASE-TX scrambles the 4B/5B coded stream with an 11 stage additive
scrambler (polynomial x^11 + x^9 + 1).  No phase marker is transmitted: a
receiver discovers the scrambler state statistically, relying on the fact
that an idle line carries long runs of 1s before scrambling.

The Synchronizer in this package implements that receiver.  In the
searching state it tests a sliding window of recent bits against all 2048
possible register states, locking onto the lowest numbered state which
descrambles the window into an idle run.  Once locked it descrambles every
bit and periodically checks the recent output for idle runs, using a frame
start heuristic to tell a long frame apart from a lost lock.  A failed
check drops back into the searching state.

# Usage

	# Note we're ignoring errors for brevity

	sync, _ := descrambler.NewSynchronizer(descrambler.DefaultConfig(), nil)
	for _, bit := range captured {
		out, status := sync.Process(bit)
		if status == descrambler.StatusLocked {
			// hand out to the frame extractor
		}
	}

# Logging

Lock acquisition and loss are logged at level.Info on the supplied go-kit
logger.  Health check diagnostics are logged at level.Debug.
*/
package descrambler
