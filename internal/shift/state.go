package shift

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
)

// Per-shift transition states. "ending" is the short-lived guard state
// held while the end-of-shift sequence runs.
const (
	stateActive    = "active"
	stateEnding    = "ending"
	stateCompleted = "completed"
)

const (
	eventBeginEnd = "begin_end"
	eventComplete = "complete"
	eventAbort    = "abort"
)

func newShiftFSM() *fsm.FSM {
	return fsm.NewFSM(
		stateActive,
		fsm.Events{
			{Name: eventBeginEnd, Src: []string{stateActive}, Dst: stateEnding},
			{Name: eventComplete, Src: []string{stateEnding}, Dst: stateCompleted},
			{Name: eventAbort, Src: []string{stateEnding}, Dst: stateActive},
		},
		fsm.Callbacks{},
	)
}

// transitionGuards is the in-process half of the transition gate: it
// short-circuits concurrent triggers before they reach the database.
// The durable half is the conditional update in CompleteShift.
type transitionGuards struct {
	mu     sync.Mutex
	shifts map[uuid.UUID]*fsm.FSM
}

func newTransitionGuards() *transitionGuards {
	return &transitionGuards{
		shifts: make(map[uuid.UUID]*fsm.FSM),
	}
}

// Begin attempts active -> ending for a shift id. It reports false when
// another trigger already holds or finished the transition.
func (g *transitionGuards) Begin(ctx context.Context, id uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	machine, ok := g.shifts[id]
	if !ok {
		machine = newShiftFSM()
		g.shifts[id] = machine
	}

	return machine.Event(ctx, eventBeginEnd) == nil
}

// Abort returns ending -> active after a fatal failure, so the next
// trigger may retry the transition.
func (g *transitionGuards) Abort(ctx context.Context, id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if machine, ok := g.shifts[id]; ok {
		_ = machine.Event(ctx, eventAbort)
	}
}

// Complete finishes ending -> completed and drops the guard. Stray
// late triggers then run against the durable gate, which no-ops them.
func (g *transitionGuards) Complete(ctx context.Context, id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if machine, ok := g.shifts[id]; ok {
		_ = machine.Event(ctx, eventComplete)
		delete(g.shifts, id)
	}
}
