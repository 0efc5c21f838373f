// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package schedtest provides utility functions for testing systems built on
// hwsched.
//
package schedtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/db47h/hwsched"
	"github.com/db47h/hwsched/coro"
	"github.com/pkg/errors"
	"github.com/tevino/abool"
)

// ErrBudget is the panic value of an exhausted Budget.
//
var ErrBudget = errors.New("schedtest: step budget exhausted")

// A Budget bounds the number of iterations of a loop that is expected to never
// terminate, like two threads waiting on each other.
//
type Budget struct {
	n, max int
}

// NewBudget returns a budget of n ticks.
//
func NewBudget(n int) *Budget {
	return &Budget{max: n}
}

// Tick consumes one tick and panics with ErrBudget once the budget is
// exhausted.
//
func (b *Budget) Tick() {
	b.n++
	if b.n > b.max {
		panic(ErrBudget)
	}
}

// Used returns the number of ticks consumed.
//
func (b *Budget) Used() int { return b.n }

// IsBudget returns true if p, a recovered panic value, comes from an exhausted
// Budget, possibly raised in a thread and forwarded to the host.
//
func IsBudget(p interface{}) bool {
	switch v := p.(type) {
	case *coro.Panic:
		return IsBudget(v.Value)
	case error:
		return errors.Cause(v) == ErrBudget
	}
	return false
}

// ExpectHang runs f in a new goroutine and fails the test if f returns within
// timeout. f is considered hung if it panics with an exhausted Budget or is
// still running when the timeout expires. In the latter case its goroutine is
// leaked.
//
// f must own the schedulers it uses: the goroutine running f becomes their
// host.
//
func ExpectHang(t testing.TB, timeout time.Duration, f func()) {
	t.Helper()
	done := abool.New()
	result := make(chan interface{}, 1)
	go func() {
		defer func() { result <- recover() }()
		f()
		done.Set()
	}()
	select {
	case p := <-result:
		if done.IsSet() {
			t.Fatal("expected a hang, function returned")
		}
		if !IsBudget(p) {
			t.Fatalf("expected a hang, got panic: %v", p)
		}
	case <-time.After(timeout):
		if done.IsSet() {
			t.Fatal("expected a hang, function returned")
		}
		t.Logf("no completion after %v", timeout)
	}
}

// Destroy destroys every thread of s when the test ends. It must be called
// from the host goroutine of s.
//
func Destroy(t testing.TB, s *hwsched.Scheduler) {
	t.Cleanup(func() {
		for _, th := range s.Threads() {
			th.Destroy()
		}
	})
}

// A Trace records events from threads.
//
type Trace struct {
	Events []Event
}

// An Event is one Trace entry.
//
type Event struct {
	Thread string
	Clock  uint64
	Note   string
}

func (e Event) String() string {
	return fmt.Sprintf("%s@%d: %s", e.Thread, e.Clock, e.Note)
}

// Record appends an event for thread th.
//
func (tr *Trace) Record(th *hwsched.Thread, note string) {
	tr.Events = append(tr.Events, Event{th.Name(), th.Clock(), note})
}

// Len returns the number of recorded events.
//
func (tr *Trace) Len() int { return len(tr.Events) }

// Diff returns the index of the first event that differs between tr and o, or
// -1 if they are identical.
//
func (tr *Trace) Diff(o *Trace) int {
	n := len(tr.Events)
	if len(o.Events) < n {
		n = len(o.Events)
	}
	for i := 0; i < n; i++ {
		if tr.Events[i] != o.Events[i] {
			return i
		}
	}
	if len(tr.Events) != len(o.Events) {
		return n
	}
	return -1
}

func (tr *Trace) String() string {
	var b strings.Builder
	for _, e := range tr.Events {
		b.WriteString(e.String())
		b.WriteRune('\n')
	}
	return b.String()
}

// Since returns a trace of the events recorded after the first n.
//
func (tr *Trace) Since(n int) *Trace {
	return &Trace{Events: append([]Event(nil), tr.Events[n:]...)}
}

// Ordered checks that every event of th's in tr happens at a clock not lower
// than the previous one.
//
func (tr *Trace) Ordered(th string) error {
	var last uint64
	for i, e := range tr.Events {
		if e.Thread != th {
			continue
		}
		if e.Clock < last {
			return errors.Errorf("event %d (%v): clock went backwards from %d", i, e, last)
		}
		last = e.Clock
	}
	return nil
}
