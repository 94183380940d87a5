// Package gate serializes mutating operations: at most one holds the gate.
package gate

import (
	"sync/atomic"
)

type Gate struct {
	busy atomic.Bool
}

func New() *Gate {
	return &Gate{}
}

// TryAcquire reports whether the caller now holds the gate. It never blocks.
func (g *Gate) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

func (g *Gate) Release() {
	g.busy.Store(false)
}

func (g *Gate) Busy() bool {
	return g.busy.Load()
}

// Run executes fn while holding the gate. ran is false when the gate was
// already held, in which case fn is not called. The gate is released on
// every exit path of fn, panics included.
func (g *Gate) Run(fn func() error) (ran bool, err error) {
	if !g.TryAcquire() {
		return false, nil
	}
	defer g.Release()
	return true, fn()
}
