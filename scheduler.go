// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwsched

import (
	"io"
	"log/slog"
	"math"
	"math/bits"

	"github.com/db47h/hwsched/coro"
	"github.com/pkg/errors"
)

const (
	// Second is the largest representable clock value. It is the common
	// denominator of all thread frequencies (see Frequency.Scalar).
	Second = math.MaxUint64 >> 1

	// Size is the stack size requested for every execution context.
	Size = 16 * 1024 * bits.UintSize / 8
)

// An Event tells why a thread returned control to the host.
//
type Event int

// Scheduler events. Client code may define its own events starting at
// EventUser.
//
const (
	// EventStep is used internally to keep Run going. It is never returned by Run.
	EventStep Event = iota
	// EventIdle is returned by Run when no thread is attached.
	EventIdle
	// EventFrame is sent by video chips at the end of a frame.
	EventFrame
	// EventUser is the first client defined event.
	EventUser
)

// An EntryPoint pairs an execution context with its resumable callable.
//
type EntryPoint struct {
	Handle coro.Handle
	Entry  func()

	thread   *Thread
	consumed bool
}

// Scheduler runs a set of threads cooperatively on a single control flow.
//
// The goroutine that calls Run, Resume or Quiesce is the host. Threads return
// control to it through Exit or Synchronize with no arguments.
//
// A Scheduler is not safe for concurrent use: exactly one of its execution
// contexts runs at any time and only that context may call its methods.
//
type Scheduler struct {
	co      coro.Cothreads
	host    coro.Handle
	entries []EntryPoint
	threads []*Thread
	event   Event

	quiescing bool

	log     *slog.Logger
	metrics *schedMetrics
}

// An Option configures a Scheduler.
//
type Option func(s *Scheduler)

// WithCothreads sets the execution context implementation. The calling
// context must be the host context of co. The default is a new coro.Runtime.
//
func WithCothreads(co coro.Cothreads) Option {
	return func(s *Scheduler) { s.co = co }
}

// WithLogger sets the logger used for thread lifecycle events. The default is
// slog.Default().
//
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithMetricsPrefix sets the prefix of metric names. The default is "hwsched".
//
func WithMetricsPrefix(prefix string) Option {
	return func(s *Scheduler) { s.metrics = newSchedMetrics(prefix) }
}

// NewScheduler returns a new Scheduler. The calling goroutine becomes the host.
//
func NewScheduler(opts ...Option) *Scheduler {
	s := new(Scheduler)
	for _, o := range opts {
		o(s)
	}
	if s.co == nil {
		s.co = coro.New()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = newSchedMetrics("hwsched")
	}
	s.host = s.co.Active()
	return s
}

// NewThread returns a new inert thread bound to s. The name is only used for
// logging.
//
func (s *Scheduler) NewThread(name string) *Thread {
	return &Thread{s: s, name: name}
}

// EntryPoints returns a copy of the entry point registry. Entries are never
// removed: the index of an entry is the uniqueID of the thread it was
// registered for.
//
func (s *Scheduler) EntryPoints() []EntryPoint {
	eps := make([]EntryPoint, len(s.entries))
	copy(eps, s.entries)
	return eps
}

// Threads returns the threads that have a live context, in creation order.
//
func (s *Scheduler) Threads() []*Thread {
	ts := make([]*Thread, len(s.threads))
	copy(ts, s.threads)
	return ts
}

// Enter is the entry trampoline of every context created by s. It resolves the
// active context to its most recent entry point, marks it consumed and calls it
// forever. Between two calls, the thread is at a checkpoint where Quiesce can
// stop it.
//
// Enter must only run as the first activation of a context created by a
// Thread of s.
//
func (s *Scheduler) Enter() {
	h := s.co.Active()
	for i := len(s.entries) - 1; i >= 0; i-- {
		ep := &s.entries[i]
		if ep.Handle != h {
			continue
		}
		if ep.consumed {
			break
		}
		entry, t := ep.Entry, ep.thread
		ep.consumed = true
		for {
			s.checkpoint(t)
			t.inEntry = true
			entry()
			t.inEntry = false
		}
	}
	panic(errors.Errorf("hwsched: no entry point for context %d", h))
}

func (s *Scheduler) checkpoint(t *Thread) {
	for s.quiescing {
		t.parked = true
		s.co.Switch(s.host)
		t.parked = false
	}
}

// register appends an entry point for t and returns its index.
//
func (s *Scheduler) register(t *Thread, entry func()) uint32 {
	if len(s.entries) >= math.MaxUint32 {
		panic("hwsched: entry point registry full")
	}
	s.entries = append(s.entries, EntryPoint{Handle: t.handle, Entry: entry, thread: t})
	return uint32(len(s.entries) - 1)
}

func (s *Scheduler) attach(t *Thread) {
	for _, th := range s.threads {
		if th == t {
			return
		}
	}
	s.threads = append(s.threads, t)
}

func (s *Scheduler) detach(t *Thread) {
	for i, th := range s.threads {
		if th == t {
			s.threads = append(s.threads[:i], s.threads[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) mustBeHost(op string) {
	if s.co.Active() != s.host {
		panic(errors.Errorf("hwsched: %s called outside of the host context", op))
	}
}

func (s *Scheduler) switchTo(h coro.Handle) {
	s.metrics.switches.Inc()
	s.co.Switch(h)
}

// Run resumes the thread with the lowest clock until a thread calls Exit, and
// returns the event it was given. Ties go to the thread created first.
//
// Returns EventIdle if no thread is attached.
//
func (s *Scheduler) Run() Event {
	s.mustBeHost("Run")
	for {
		t := s.next()
		if t == nil {
			return EventIdle
		}
		s.event = EventStep
		s.switchTo(t.handle)
		if ev := s.event; ev != EventStep {
			s.event = EventStep
			return ev
		}
	}
}

func (s *Scheduler) next() *Thread {
	var min *Thread
	for _, t := range s.threads {
		if min == nil || t.clock < min.clock {
			min = t
		}
	}
	return min
}

// Resume runs t until control returns to the host and returns the event it
// returned with, EventStep if it just yielded.
//
// Resuming an inert thread is a no-op and returns EventIdle.
//
func (s *Scheduler) Resume(t *Thread) Event {
	s.mustBeHost("Resume")
	if !t.Active() {
		return EventIdle
	}
	s.event = EventStep
	s.switchTo(t.handle)
	ev := s.event
	s.event = EventStep
	return ev
}

// Exit returns control from the running thread to the host, which returns ev
// from Run or Resume. Exit returns when the host resumes the thread.
//
func (s *Scheduler) Exit(ev Event) {
	if s.co.Active() == s.host {
		panic("hwsched: Exit called from the host context")
	}
	s.metrics.events.Inc()
	s.event = ev
	s.switchTo(s.host)
}

func (s *Scheduler) yield() {
	s.event = EventStep
	s.switchTo(s.host)
}

// Quiesce drives every attached thread to the boundary between two calls of
// its entry point. Once it returns, no thread is suspended in the middle of
// its entry and the system can be serialized.
//
// While quiescing, Synchronize does not switch to lagging targets, so that
// every thread can reach its boundary. Events sent with Exit while quiescing
// are discarded. Clock ordering between threads is
// therefore relaxed during Quiesce.
//
func (s *Scheduler) Quiesce() {
	s.mustBeHost("Quiesce")
	s.quiescing = true
	defer func() { s.quiescing = false }()
	for _, t := range s.Threads() {
		for t.Active() && !t.parked {
			s.event = EventStep
			s.switchTo(t.handle)
			if s.event != EventStep {
				s.log.Debug("event dropped while quiescing", "thread", t.name, "event", int(s.event))
			}
		}
	}
	s.event = EventStep
	s.log.Debug("scheduler quiesced", "threads", len(s.threads))
}

// Rebase subtracts the lowest clock of all attached threads from every one of
// them. Relative clock order is preserved. Use it periodically when threads
// run with Second based scalars to keep clocks from overflowing.
//
func (s *Scheduler) Rebase() {
	s.mustBeHost("Rebase")
	t := s.next()
	if t == nil || t.clock == 0 {
		return
	}
	min := t.clock
	for _, t := range s.threads {
		t.clock -= min
	}
	s.log.Debug("scheduler rebased", "offset", min)
}

// Serialize reads or writes the state of every attached thread, in creation
// order, preceded by the thread count. It returns ErrBusy if a thread is in
// the middle of its entry point (see Quiesce) and ErrMismatch if the thread
// count read does not match.
//
func (s *Scheduler) Serialize(ser *Serializer) error {
	for _, t := range s.threads {
		if t.inEntry {
			return errors.Wrapf(ErrBusy, "thread %q", t.name)
		}
	}
	n := uint32(len(s.threads))
	ser.Uint32(&n)
	if err := ser.Err(); err != nil {
		return err
	}
	if int(n) != len(s.threads) {
		return errors.Wrapf(ErrMismatch, "snapshot has %d threads, scheduler has %d", n, len(s.threads))
	}
	for _, t := range s.threads {
		if err := t.Serialize(ser); err != nil {
			return errors.Wrapf(err, "thread %q", t.name)
		}
	}
	return nil
}

// WriteMetrics writes the scheduler metrics in Prometheus text format.
//
func (s *Scheduler) WriteMetrics(w io.Writer) {
	s.metrics.set.WritePrometheus(w)
}
