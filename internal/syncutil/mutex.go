//go:build !deadlock

// Package syncutil provides the mutex used for state shared between the
// decoding goroutine and its readers.
//
// Building with -tags=deadlock swaps in github.com/sasha-s/go-deadlock,
// which reports lock ordering faults and locks held for too long.
package syncutil

import "sync"

// Mutex is a sync.Mutex unless built with the deadlock tag.
type Mutex struct {
	sync.Mutex
}
