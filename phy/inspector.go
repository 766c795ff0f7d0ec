package phy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/katalix/go-ethphy/dissect"
	"github.com/katalix/go-ethphy/internal/syncutil"
)

// DefaultInspectorSize is the number of frames an Inspector retains by
// default.
const DefaultInspectorSize = 500

// InspectorEntry is a frame record as retained by an Inspector.
type InspectorEntry struct {
	// Time is when the frame was recovered.
	Time time.Time `json:"time"`
	dissect.Record
}

// Inspector keeps the records of the most recently recovered frames for
// live inspection over HTTP.
//
// Frames are added from the pipeline's event delivery while the records
// are read from HTTP handlers, so all methods are safe for concurrent use.
type Inspector struct {
	// Now timestamps retained frames.  It defaults to time.Now.
	Now func() time.Time

	mu      syncutil.Mutex
	entries []InspectorEntry
	// next is the slot written by the next frame
	next   int
	count  int
	logger log.Logger
}

// NewInspector returns an Inspector retaining up to size frames.
func NewInspector(size int, logger log.Logger) (*Inspector, error) {
	if size < 1 {
		return nil, fmt.Errorf("inspector size %d must be > 0", size)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Inspector{
		Now:     time.Now,
		entries: make([]InspectorEntry, size),
		logger:  log.With(logger, "component", "inspector"),
	}, nil
}

// HandleEvent implements EventHandler.
func (in *Inspector) HandleEvent(event interface{}) {
	ev, ok := event.(*FrameEvent)
	if !ok {
		return
	}
	now := in.Now()

	in.mu.Lock()
	defer in.mu.Unlock()
	in.entries[in.next] = InspectorEntry{Time: now, Record: *ev.Record}
	in.next = (in.next + 1) % len(in.entries)
	if in.count < len(in.entries) {
		in.count++
	}
}

// Records returns a copy of the retained records, newest first.
func (in *Inspector) Records() []InspectorEntry {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]InspectorEntry, 0, in.count)
	for i := 1; i <= in.count; i++ {
		out = append(out, in.entries[(in.next-i+len(in.entries))%len(in.entries)])
	}
	return out
}

// Clear discards the retained records.
func (in *Inspector) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()
	for i := range in.entries {
		in.entries[i] = InspectorEntry{}
	}
	in.next = 0
	in.count = 0
}

// Register adds the inspector's handlers to mux:
//
//	GET  /frames  the retained records as a JSON array, newest first
//	POST /clear   discard the retained records
func (in *Inspector) Register(mux *http.ServeMux) {
	mux.HandleFunc("/frames", in.serveFrames)
	mux.HandleFunc("/clear", in.serveClear)
}

func (in *Inspector) serveFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	in.writeJSON(w, in.Records())
}

func (in *Inspector) serveClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	in.Clear()
	level.Debug(in.logger).Log("message", "records cleared", "remote", r.RemoteAddr)
	in.writeJSON(w, map[string]bool{"success": true})
}

func (in *Inspector) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		level.Error(in.logger).Log("message", "failed to write response", "error", err)
	}
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
