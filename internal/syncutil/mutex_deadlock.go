//go:build deadlock

package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex is a deadlock.Mutex, which reports lock ordering faults.
type Mutex struct {
	deadlock.Mutex
}
