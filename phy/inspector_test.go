package phy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func frameNums(entries []InspectorEntry) []uint64 {
	var nums []uint64
	for _, e := range entries {
		nums = append(nums, e.FrameNum)
	}
	return nums
}

func TestInspectorRing(t *testing.T) {
	in, err := NewInspector(3, nil)
	if err != nil {
		t.Fatalf("NewInspector: %v", err)
	}
	if got := in.Records(); len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}

	for seq := uint64(1); seq <= 5; seq++ {
		in.HandleEvent(frameEvent(t, seq))
		in.HandleEvent(&SyncLostEvent{Position: seq})
		in.HandleEvent(&FrameRejectedEvent{Position: seq})

		got := frameNums(in.Records())
		if got[0] != seq {
			t.Fatalf("newest record is frame %d, expected %d", got[0], seq)
		}
		if want := min3(seq); len(got) != want {
			t.Fatalf("after frame %d: %d records, expected %d", seq, len(got), want)
		}
	}
	got := frameNums(in.Records())
	if len(got) != 3 || got[0] != 5 || got[1] != 4 || got[2] != 3 {
		t.Fatalf("unexpected records %v", got)
	}

	in.Clear()
	if got := in.Records(); len(got) != 0 {
		t.Fatalf("expected no records after clear, got %d", len(got))
	}
	in.HandleEvent(frameEvent(t, 6))
	if got := frameNums(in.Records()); len(got) != 1 || got[0] != 6 {
		t.Fatalf("unexpected records after clear %v", got)
	}
}

func min3(n uint64) int {
	if n > 3 {
		return 3
	}
	return int(n)
}

func TestInspectorSize(t *testing.T) {
	if _, err := NewInspector(0, nil); err == nil {
		t.Fatalf("expected error for zero size")
	}
}

func TestInspectorHTTP(t *testing.T) {
	in, err := NewInspector(DefaultInspectorSize, nil)
	if err != nil {
		t.Fatalf("NewInspector: %v", err)
	}
	stamp := time.Unix(1700000000, 0).UTC()
	in.Now = func() time.Time { return stamp }

	mux := http.NewServeMux()
	in.Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	in.HandleEvent(frameEvent(t, 1))
	in.HandleEvent(frameEvent(t, 2))

	getFrames := func() []InspectorEntry {
		rsp, err := http.Get(srv.URL + "/frames")
		if err != nil {
			t.Fatalf("GET /frames: %v", err)
		}
		defer rsp.Body.Close()
		if rsp.StatusCode != http.StatusOK {
			t.Fatalf("GET /frames: status %v", rsp.Status)
		}
		if ct := rsp.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("GET /frames: content type %q", ct)
		}
		var entries []InspectorEntry
		if err := json.NewDecoder(rsp.Body).Decode(&entries); err != nil {
			t.Fatalf("decode /frames: %v", err)
		}
		return entries
	}

	entries := getFrames()
	if got := frameNums(entries); len(got) != 2 || got[0] != 2 || got[1] != 1 {
		t.Fatalf("unexpected frames %v", got)
	}
	e := entries[0]
	if !e.Time.Equal(stamp) || e.SrcPort != 1234 || e.L4Name != "UDP" {
		t.Fatalf("unexpected entry %+v", e)
	}

	rsp, err := http.Post(srv.URL+"/clear", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /clear: %v", err)
	}
	var result map[string]bool
	err = json.NewDecoder(rsp.Body).Decode(&result)
	rsp.Body.Close()
	if err != nil || !result["success"] {
		t.Fatalf("POST /clear: %v %v", result, err)
	}

	if entries := getFrames(); entries == nil || len(entries) != 0 {
		t.Fatalf("expected an empty array after clear, got %v", entries)
	}
}

func TestInspectorMethods(t *testing.T) {
	in, err := NewInspector(1, nil)
	if err != nil {
		t.Fatalf("NewInspector: %v", err)
	}
	mux := http.NewServeMux()
	in.Register(mux)

	cases := []struct {
		method, path, allow string
	}{
		{http.MethodGet, "/clear", http.MethodPost},
		{http.MethodPost, "/frames", http.MethodGet},
		{http.MethodDelete, "/frames", http.MethodGet},
	}
	for _, c := range cases {
		t.Run(c.method+c.path, func(t *testing.T) {
			in.HandleEvent(frameEvent(t, 1))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(c.method, c.path, strings.NewReader("")))
			if w.Code != http.StatusMethodNotAllowed {
				t.Fatalf("status %d, expected %d", w.Code, http.StatusMethodNotAllowed)
			}
			if got := w.Header().Get("Allow"); got != c.allow {
				t.Fatalf("Allow %q, expected %q", got, c.allow)
			}
			if len(in.Records()) != 1 {
				t.Fatalf("records changed by a rejected request")
			}
		})
	}
}
