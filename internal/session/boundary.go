// Package session decides when a turn opens a new conversation.
package session

import (
	"time"

	"github.com/rcliao/response-guard/internal/lexicon"
	"github.com/rcliao/response-guard/internal/memory"
)

const (
	DefaultIdleTimeout        = 30 * time.Minute
	DefaultGreetingMinRecords = 3
)

// Reason explains why a boundary was detected.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonEmpty    Reason = "empty_store"
	ReasonIdle     Reason = "idle_timeout"
	ReasonGreeting Reason = "greeting"
)

// Detector is the session boundary detector.
type Detector struct {
	IdleTimeout time.Duration
	// GreetingMinRecords is the number of records a store must exceed before
	// a greeting is treated as a fresh start.
	GreetingMinRecords int
	Now                func() time.Time
}

// NewDetector returns a detector with the default thresholds.
func NewDetector() *Detector {
	return &Detector{
		IdleTimeout:        DefaultIdleTimeout,
		GreetingMinRecords: DefaultGreetingMinRecords,
		Now:                time.Now,
	}
}

// IsNewSession reports whether input starts a new conversation against the
// state held in store.
func (d *Detector) IsNewSession(store *memory.Store, input string) (bool, Reason) {
	n := store.Len()
	if n == 0 {
		return true, ReasonEmpty
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	idle := d.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if last := store.LastUpdated(); !last.IsZero() && now().Sub(last) > idle {
		return true, ReasonIdle
	}
	if lexicon.IsGreeting(input) && n > d.GreetingMinRecords {
		return true, ReasonGreeting
	}
	return false, ReasonNone
}
