package bitfifo

import (
	"bytes"
	"testing"
)

func TestPushDiscardsOldest(t *testing.T) {
	f := New(4)
	for _, b := range []byte{1, 0, 1, 1, 0, 0} {
		f.Push(b)
	}
	if f.Len() != 4 {
		t.Fatalf("Len(): got %d, want 4", f.Len())
	}
	want := []byte{1, 1, 0, 0}
	if got := f.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("Bytes(): got %v, want %v", got, want)
	}
}

func TestLongRunStaysBounded(t *testing.T) {
	f := New(10)
	for i := 0; i < 1000; i++ {
		f.Push(byte(i % 3 & 1))
		if f.Len() > 10 {
			t.Fatalf("Len() %d exceeds capacity after %d pushes", f.Len(), i+1)
		}
		if cap(f.buf) != 20 {
			t.Fatalf("backing store reallocated to %d", cap(f.buf))
		}
	}
	// last pushed value was i=999: 999%3 = 0
	if got := f.Last(1); !bytes.Equal(got, []byte{0}) {
		t.Fatalf("Last(1): got %v", got)
	}
}

func TestLast(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		n    int
		want []byte
	}{
		{"fewer held", []byte{1, 0}, 5, []byte{1, 0}},
		{"exact", []byte{1, 0, 1}, 3, []byte{1, 0, 1}},
		{"tail", []byte{1, 0, 1, 1, 1}, 2, []byte{1, 1}},
		{"none", nil, 2, []byte{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := New(8)
			for _, b := range c.in {
				f.Push(b)
			}
			if got := f.Last(c.n); !bytes.Equal(got, c.want) {
				t.Fatalf("Last(%d): got %v, want %v", c.n, got, c.want)
			}
		})
	}
}

func TestResetAliased(t *testing.T) {
	f := New(6)
	for _, b := range []byte{0, 0, 1, 0, 1, 1} {
		f.Push(b)
	}
	f.Reset(f.Bytes()[2:])
	want := []byte{1, 0, 1, 1}
	if got := f.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("Reset(): got %v, want %v", got, want)
	}
	f.Reset([]byte{1, 1, 1, 1, 1, 1, 1, 0})
	want = []byte{1, 1, 1, 1, 1, 0}
	if got := f.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("Reset(long): got %v, want %v", got, want)
	}
	f.Clear()
	if f.Len() != 0 {
		t.Fatalf("Clear(): Len() %d", f.Len())
	}
}
