// Package bridge runs blocking operations on their own goroutine and reports
// progress and a single terminal outcome back to the caller over a channel.
//
// Each invocation gets a private context derived from the bridge's context,
// created when the goroutine starts and cancelled when it returns, so network
// calls made by one invocation never share per-call state with another.
package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"docrag/internal/logger"
)

// eventBuffer is the capacity of an invocation's event channel. One slot is
// always held back for the terminal event.
const eventBuffer = 32

type Kind int

const (
	Progress Kind = iota
	Completed
	Failed
)

func (k Kind) String() string {
	switch k {
	case Progress:
		return "progress"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// State is the lifecycle of an invocation: Idle until its goroutine starts,
// then Running until it settles as Succeeded or Errored.
type State int

const (
	Idle State = iota
	Running
	Succeeded
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Succeeded:
		return "completed"
	case Errored:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is a progress notification or the terminal outcome of an invocation.
// Value is set only on Completed and Err only on Failed.
type Event[T any] struct {
	Kind    Kind
	Message string
	Value   T
	Err     error
}

// Reporter publishes a progress message. Calls after the invocation has
// finished are ignored. When the caller is slow to drain events, progress
// messages may be dropped; the terminal event never is.
type Reporter func(message string)

// Work is one unit of blocking work.
type Work[T any] func(ctx context.Context, report Reporter) (T, error)

// Bridge owns the goroutines started through Go.
type Bridge struct {
	ctx context.Context
	wg  conc.WaitGroup
}

func New(ctx context.Context) *Bridge {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Bridge{ctx: ctx}
}

// Wait blocks until every invocation started on b has finished.
func (b *Bridge) Wait() { b.wg.Wait() }

// Invocation tracks a single dispatched unit of work.
type Invocation[T any] struct {
	name   string
	events chan Event[T]
	done   chan struct{}

	mu    sync.Mutex
	state State
	value T
	err   error
}

func newInvocation[T any](name string) *Invocation[T] {
	return &Invocation[T]{
		name:   name,
		events: make(chan Event[T], eventBuffer),
		done:   make(chan struct{}),
		state:  Idle,
	}
}

// Go starts work on a new goroutine and returns immediately.
func Go[T any](b *Bridge, name string, work Work[T]) *Invocation[T] {
	inv := newInvocation[T](name)
	b.wg.Go(func() {
		ctx, cancel := context.WithCancel(b.ctx)
		defer cancel()
		inv.run(ctx, work)
	})
	return inv
}

func (inv *Invocation[T]) run(ctx context.Context, work Work[T]) {
	inv.mu.Lock()
	inv.state = Running
	inv.mu.Unlock()
	logger.Debug("bridge: %s started", inv.name)

	var (
		value T
		err   error
		pc    panics.Catcher
	)
	pc.Try(func() {
		value, err = work(ctx, inv.report)
	})
	if r := pc.Recovered(); r != nil {
		err = fmt.Errorf("%s panicked: %w", inv.name, r.AsError())
		logger.Error("bridge: %v\n%s", err, r.Stack)
	}
	inv.finish(value, err)
}

func (inv *Invocation[T]) report(message string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.state != Running {
		return
	}
	if len(inv.events) >= cap(inv.events)-1 {
		return
	}
	inv.events <- Event[T]{Kind: Progress, Message: message}
}

func (inv *Invocation[T]) finish(value T, err error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	ev := Event[T]{Kind: Completed, Message: inv.name + " finished", Value: value}
	inv.state = Succeeded
	inv.value = value
	if err != nil {
		var zero T
		ev = Event[T]{Kind: Failed, Message: err.Error(), Err: err}
		inv.state = Errored
		inv.value = zero
		inv.err = err
		logger.Error("bridge: %s failed: %v", inv.name, err)
	} else {
		logger.Debug("bridge: %s completed", inv.name)
	}
	inv.events <- ev
	close(inv.events)
	close(inv.done)
}

func (inv *Invocation[T]) Name() string { return inv.name }

// Events yields zero or more Progress events followed by exactly one
// Completed or Failed event, after which the channel is closed.
func (inv *Invocation[T]) Events() <-chan Event[T] { return inv.events }

func (inv *Invocation[T]) State() State {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.state
}

// Done is closed once the terminal outcome is known.
func (inv *Invocation[T]) Done() <-chan struct{} { return inv.done }

// Wait blocks until the invocation finishes and returns its outcome.
func (inv *Invocation[T]) Wait() (T, error) {
	<-inv.done
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.value, inv.err
}
