// Package machine is a minimal finite-state-machine interpreter. A machine is
// a {state tag, context} pair driven by a pure transition function; effects
// returned by transitions run asynchronously and feed their results back in as
// events. There is no shared mutable state between machines: parents and
// children communicate only through events.
package machine

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Event is a named message delivered to a machine.
type Event interface {
	EventName() string
}

// Effect performs async work on behalf of a transition. It must respect ctx:
// when the machine supersedes the effect, ctx is cancelled and any event the
// effect emits afterwards is discarded.
type Effect func(ctx context.Context, emit func(Event))

// Result is the outcome of one transition step.
type Result[S comparable, C any] struct {
	State   S
	Context C
	Effects []Effect
	// AbortInFlight cancels every effect started before this transition and
	// discards their pending results. This is the abort-before-restart
	// discipline: a newer event supersedes stale async work, it never races it.
	AbortInFlight bool
}

// Transition computes the next state for an event. It must be pure: all side
// effects are returned, never performed inline.
type Transition[S comparable, C any] func(state S, c C, ev Event) Result[S, C]

// Machine interprets a transition function over a mailbox of events.
type Machine[S comparable, C any] struct {
	mu         sync.Mutex
	state      S
	mctx       C
	transition Transition[S, C]
	mailbox    chan envelope
	log        *zap.Logger

	effectCtx    context.Context
	cancelEffect context.CancelFunc
	generation   uint64
}

type envelope struct {
	ev  Event
	gen uint64
}

// New creates a machine in the given initial state.
func New[S comparable, C any](initial S, c C, fn Transition[S, C], log *zap.Logger) *Machine[S, C] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine[S, C]{
		state:      initial,
		mctx:       c,
		transition: fn,
		mailbox:    make(chan envelope, 64),
		log:        log,
	}
}

// Send delivers an event to the machine's mailbox.
func (m *Machine[S, C]) Send(ev Event) {
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()
	m.mailbox <- envelope{ev: ev, gen: gen}
}

// State returns the current state tag.
func (m *Machine[S, C]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Context returns the current machine context.
func (m *Machine[S, C]) Context() C {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mctx
}

// Run processes events until ctx is cancelled. It owns all state mutation;
// no other goroutine writes into the machine.
func (m *Machine[S, C]) Run(ctx context.Context) {
	m.mu.Lock()
	m.effectCtx, m.cancelEffect = context.WithCancel(ctx)
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.cancelEffect()
			m.mu.Unlock()
			return
		case env := <-m.mailbox:
			m.step(ctx, env)
		}
	}
}

func (m *Machine[S, C]) step(ctx context.Context, env envelope) {
	m.mu.Lock()
	if env.gen < m.generation {
		// Result of an effect that was aborted after it emitted; drop it.
		m.mu.Unlock()
		m.log.Debug("discarding superseded event", zap.String("event", env.ev.EventName()))
		return
	}
	res := m.transition(m.state, m.mctx, env.ev)
	m.state = res.State
	m.mctx = res.Context

	if res.AbortInFlight {
		m.cancelEffect()
		m.generation++
		m.effectCtx, m.cancelEffect = context.WithCancel(ctx)
	}
	effectCtx := m.effectCtx
	gen := m.generation
	m.mu.Unlock()

	for _, effect := range res.Effects {
		go effect(effectCtx, func(ev Event) {
			select {
			case m.mailbox <- envelope{ev: ev, gen: gen}:
			case <-ctx.Done():
			}
		})
	}
}
