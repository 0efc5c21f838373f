// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package coro provides cooperative execution contexts.
//
// A context is an independent control flow that can be switched to and from
// synchronously. Exactly one context runs at any time: switching to another
// context suspends the caller until some context switches back to it.
//
// The Runtime implementation backs every context with a goroutine parked on
// its own channel. Switching hands the baton over that channel and parks the
// caller, so no two contexts ever run concurrently and every memory write done
// by a context happens before the next context resumes.
//
package coro

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/pkg/errors"
)

// Handle identifies an execution context. The zero Handle is never assigned.
//
type Handle uint64

// Cothreads is the capability used to create and switch cooperative contexts.
//
type Cothreads interface {
	// Active returns the handle of the running context.
	Active() Handle
	// Create allocates a new context with the given stack size. The context
	// starts running entry on its first activation.
	Create(size uint, entry func()) (Handle, error)
	// Derive reuses the slot of an existing context with a new entry. If h is
	// the active context, Derive does not return.
	Derive(h Handle, entry func()) error
	// Switch suspends the active context and resumes the given one.
	Switch(to Handle)
	// Delete releases a context. h must not be the active context.
	Delete(h Handle)
}

// Errors returned by Runtime.
//
var (
	ErrExhausted = errors.New("coro: context limit reached")
	ErrUnknown   = errors.New("coro: unknown context")
	ErrReturned  = errors.New("coro: context entry returned")
)

// Panic wraps a panic raised inside a context. It is re-raised in the host
// context, which is the only context guaranteed to be parked in a Switch.
//
type Panic struct {
	Handle Handle
	Value  interface{}
	Stack  []byte
}

func (p *Panic) Error() string {
	return fmt.Sprintf("coro: context %d panicked: %v", p.Handle, p.Value)
}

// Cause returns the panic value if it is an error.
//
func (p *Panic) Cause() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

type context struct {
	h       Handle
	size    uint
	entry   func()
	resume  chan bool // true: run, false: unwind
	done    chan struct{}
	started bool
	dead    bool
	reborn  bool
}

// Runtime is a goroutine based Cothreads implementation.
//
// The goroutine that first uses a Runtime becomes its host context (handle
// 1). All further calls must come from the running context.
//
type Runtime struct {
	// MaxContexts limits the number of live contexts, the host excluded.
	// Zero means no limit.
	MaxContexts int

	contexts map[Handle]*context
	host     *context
	active   *context
	next     Handle
	fault    *Panic
}

// HostHandle is the handle of the host context.
//
const HostHandle Handle = 1

// New returns a new Runtime.
//
func New() *Runtime {
	host := &context{h: HostHandle, resume: make(chan bool), started: true}
	return &Runtime{
		contexts: map[Handle]*context{HostHandle: host},
		host:     host,
		active:   host,
		next:     HostHandle + 1,
	}
}

// Active implements Cothreads.
//
func (r *Runtime) Active() Handle {
	return r.active.h
}

// Live returns the number of live contexts, the host excluded.
//
func (r *Runtime) Live() int {
	return len(r.contexts) - 1
}

// Create implements Cothreads. The stack size is recorded but not enforced:
// goroutine stacks grow on demand.
//
func (r *Runtime) Create(size uint, entry func()) (Handle, error) {
	if entry == nil {
		return 0, errors.New("coro: nil entry")
	}
	if r.MaxContexts > 0 && r.Live() >= r.MaxContexts {
		return 0, ErrExhausted
	}
	c := &context{
		h:      r.next,
		size:   size,
		entry:  entry,
		resume: make(chan bool),
		done:   make(chan struct{}),
	}
	r.next++
	r.contexts[c.h] = c
	return c.h, nil
}

// Derive implements Cothreads.
//
func (r *Runtime) Derive(h Handle, entry func()) error {
	c := r.contexts[h]
	if c == nil || c == r.host {
		return errors.Wrapf(ErrUnknown, "derive %d", h)
	}
	if entry == nil {
		return errors.New("coro: nil entry")
	}
	if c == r.active {
		// unwind this goroutine; run() starts a fresh one on the same slot.
		c.entry = entry
		c.reborn = true
		runtime.Goexit()
	}
	r.unwind(c)
	c.entry = entry
	c.started = false
	c.dead = false
	c.done = make(chan struct{})
	return nil
}

// Switch implements Cothreads.
//
func (r *Runtime) Switch(h Handle) {
	to := r.contexts[h]
	if to == nil {
		panic(errors.Wrapf(ErrUnknown, "switch to %d", h))
	}
	if to.dead {
		panic(errors.Errorf("coro: switch to dead context %d", h))
	}
	from := r.active
	if to == from {
		return
	}
	r.active = to
	if !to.started {
		to.started = true
		go r.run(to)
	} else {
		to.resume <- true
	}
	r.park(from)
}

// Delete implements Cothreads.
//
func (r *Runtime) Delete(h Handle) {
	c := r.contexts[h]
	if c == nil {
		return
	}
	if c == r.host {
		panic("coro: cannot delete the host context")
	}
	if c == r.active {
		panic(errors.Errorf("coro: cannot delete active context %d", h))
	}
	delete(r.contexts, h)
	r.unwind(c)
}

// unwind terminates the goroutine of a parked context and waits for it.
//
func (r *Runtime) unwind(c *context) {
	if !c.started || c.dead {
		return
	}
	c.resume <- false
	<-c.done
	c.dead = true
}

func (r *Runtime) park(c *context) {
	if !<-c.resume {
		runtime.Goexit()
	}
	if c == r.host && r.fault != nil {
		f := r.fault
		r.fault = nil
		panic(f)
	}
}

func (r *Runtime) run(c *context) {
	returned := false
	defer func() {
		p := recover()
		if p == nil && returned {
			p = ErrReturned
		}
		if p != nil {
			c.dead = true
			r.fault = &Panic{Handle: c.h, Value: p, Stack: debug.Stack()}
			close(c.done)
			r.active = r.host
			r.host.resume <- true
			return
		}
		close(c.done)
		if c.reborn {
			c.reborn = false
			c.done = make(chan struct{})
			go r.run(c)
		}
	}()
	c.entry()
	returned = true
}
