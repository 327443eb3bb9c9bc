package workflow

import (
	"sync/atomic"

	"github.com/spherical/snap2pdf/internal/domain"
)

// Guard rejects a trigger while a prior invocation of the same workflow is
// still in flight.
type Guard struct {
	name domain.WorkflowName
	busy atomic.Bool
}

// NewGuard creates an idle guard for one workflow.
func NewGuard(name domain.WorkflowName) *Guard {
	return &Guard{name: name}
}

// Enter marks the workflow busy. The returned release must be called exactly
// once when the invocation ends.
func (g *Guard) Enter() (release func(), err error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, domain.BusyError(g.name)
	}
	var done atomic.Bool
	return func() {
		if done.CompareAndSwap(false, true) {
			g.busy.Store(false)
		}
	}, nil
}

// Busy reports whether an invocation is in flight.
func (g *Guard) Busy() bool {
	return g.busy.Load()
}
