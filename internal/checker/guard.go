package checker

import "sync/atomic"

// Guard is the isChecking flag. It admits one holder and never queues.
// The zero value is an idle guard.
type Guard struct {
	checking atomic.Bool
}

// TryBegin claims the guard, reporting false if a check already holds it.
func (g *Guard) TryBegin() bool { return g.checking.CompareAndSwap(false, true) }

// End releases the guard.
func (g *Guard) End() { g.checking.Store(false) }

// Checking reports whether a check currently holds the guard.
func (g *Guard) Checking() bool { return g.checking.Load() }
