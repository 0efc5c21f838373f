// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwsched

import (
	"github.com/db47h/hwsched/coro"
	"github.com/pkg/errors"
)

// A Thread is the execution context of one emulated chip together with its
// virtual clock.
//
// A thread is inert until Create gives it a context and an entry point. The
// entry point is called repeatedly: each call should perform a small unit of
// work (typically one instruction), calling Step to account for the clock
// cycles it takes and Synchronize to wait for the chips it depends on.
//
// The clock of a thread only moves forward, by clocks*scalar on every Step.
//
type Thread struct {
	s         *Scheduler
	name      string
	handle    coro.Handle
	uniqueID  uint32
	frequency Frequency
	scalar    uint64
	clock     uint64

	inEntry bool // between two checkpoints
	parked  bool // stopped at a checkpoint by Quiesce
}

// Name returns the thread name.
//
func (t *Thread) Name() string { return t.name }

// Scheduler returns the scheduler t is bound to.
//
func (t *Thread) Scheduler() *Scheduler { return t.s }

// Active returns true if t has a live execution context.
//
func (t *Thread) Active() bool { return t.handle != 0 }

// Running returns true if t is the running execution context.
//
func (t *Thread) Running() bool { return t.handle != 0 && t.s.co.Active() == t.handle }

// Handle returns the handle of the execution context of t, 0 if t is inert.
//
func (t *Thread) Handle() coro.Handle { return t.handle }

// UniqueID returns the index in the scheduler's entry point registry of the
// last entry point registered for t. It changes on every Create or Restart.
//
func (t *Thread) UniqueID() uint32 { return t.uniqueID }

// Frequency returns the nominal clock rate of t.
//
func (t *Thread) Frequency() Frequency { return t.frequency }

// Scalar returns the clock multiplier applied by Step.
//
func (t *Thread) Scalar() uint64 { return t.scalar }

// Clock returns the virtual clock of t.
//
func (t *Thread) Clock() uint64 { return t.clock }

// Create allocates an execution context for t that runs entry, sets its
// frequency and resets its scalar to 1 and its clock to 0.
//
// If t already has a context, its slot is reused. Failure to allocate a context
// is fatal and Create panics.
//
func (t *Thread) Create(frequency float64, entry func()) {
	if entry == nil {
		panic("hwsched: Create with a nil entry point")
	}
	s := t.s
	f := mustFrequency(frequency)
	derive := t.handle != 0
	if !derive {
		h, err := s.co.Create(Size, s.Enter)
		if err != nil {
			err = errors.Wrapf(err, "hwsched: create thread %q", t.name)
			s.log.Error("context allocation failed", "thread", t.name, "err", err)
			panic(err)
		}
		t.handle = h
	}
	t.uniqueID = s.register(t, entry)
	t.frequency = f
	t.scalar = 1
	t.clock = 0
	t.inEntry = false
	t.parked = false
	s.attach(t)
	s.metrics.created.Inc()
	s.log.Debug("thread created", "thread", t.name, "id", t.uniqueID, "frequency", f)
	if derive {
		t.derive()
	}
}

// Restart reuses the context of t with a new entry point and resets its scalar
// to 1 and its clock to 0. The frequency is kept.
//
// If t is the running thread, Restart does not return: the new entry point
// starts immediately from a fresh context. Otherwise it starts the next time t
// is switched to.
//
func (t *Thread) Restart(entry func()) {
	if entry == nil {
		panic("hwsched: Restart with a nil entry point")
	}
	if t.handle == 0 {
		panic(errors.Errorf("hwsched: Restart of inert thread %q", t.name))
	}
	t.uniqueID = t.s.register(t, entry)
	t.scalar = 1
	t.clock = 0
	t.inEntry = false
	t.parked = false
	t.s.log.Debug("thread restarted", "thread", t.name, "id", t.uniqueID)
	t.derive()
}

func (t *Thread) derive() {
	if err := t.s.co.Derive(t.handle, t.s.Enter); err != nil {
		panic(errors.Wrapf(err, "hwsched: restart thread %q", t.name))
	}
}

// Destroy releases the execution context of t. t becomes inert until created
// again. Destroying an inert thread is a no-op. A thread cannot destroy itself.
//
func (t *Thread) Destroy() {
	if t.handle == 0 {
		return
	}
	if t.Running() {
		panic(errors.Errorf("hwsched: thread %q cannot destroy itself", t.name))
	}
	s := t.s
	s.detach(t)
	s.co.Delete(t.handle)
	t.handle = 0
	t.inEntry = false
	t.parked = false
	s.metrics.destroyed.Inc()
	s.log.Debug("thread destroyed", "thread", t.name, "id", t.uniqueID)
}

// Step advances the clock of t by clocks*scalar. It must be called from t's own
// context and never suspends.
//
func (t *Thread) Step(clocks uint64) {
	t.mustRun("Step")
	t.clock += clocks * t.scalar
}

// SetFrequency sets the nominal frequency of t in Hz. It does not rescale the
// accumulated clock.
//
func (t *Thread) SetFrequency(frequency float64) {
	t.frequency = mustFrequency(frequency)
}

// SetScalar sets the clock multiplier used by subsequent Step calls.
//
func (t *Thread) SetScalar(scalar uint64) {
	t.scalar = scalar
}

// SetClock sets the virtual clock of t.
//
func (t *Thread) SetClock(clock uint64) {
	t.clock = clock
}

// Serialize reads or writes the uniqueID, frequency, scalar and clock of t, in
// that order. The execution context is not part of the state: restoring a
// thread requires it to have been created with the same parameters and to be
// at the matching point of its entry point.
//
func (t *Thread) Serialize(s *Serializer) error {
	f := uint64(t.frequency)
	s.Uint32(&t.uniqueID)
	s.Uint64(&f)
	s.Uint64(&t.scalar)
	s.Uint64(&t.clock)
	if err := s.Err(); err != nil {
		return err
	}
	t.frequency = Frequency(f)
	return nil
}

func (t *Thread) mustRun(op string) {
	if !t.Running() {
		panic(errors.Errorf("hwsched: %s called outside of thread %q", op, t.name))
	}
}

func mustFrequency(frequency float64) Frequency {
	f := Hz(frequency)
	if f == 0 {
		panic(errors.Errorf("hwsched: invalid frequency %v", frequency))
	}
	return f
}
