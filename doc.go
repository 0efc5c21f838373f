/*
Package hwsched provides the clock synchronization core of a cycle accurate
emulator.

Every emulated chip runs in its own Thread: a cooperative execution context
with a nominal frequency, a clock scalar and a virtual clock. Threads run one
at a time on a single control flow. A thread advances its own clock with Step
and calls Synchronize to wait until the chips it depends on have caught up
with it, at which point control is handed over synchronously. Since ordering
only depends on clock values and on the sequence of Synchronize calls, a
simulation is fully deterministic given the same entry points.

A typical chip model looks like:

	type APU struct {
		*hwsched.Thread
		cpu *hwsched.Thread
	}

	func (a *APU) Power() {
		a.Create(4_000_000, a.main)
	}

	func (a *APU) main() {
		// execute one instruction
		a.Step(4)
		a.Synchronize(a.cpu)
	}

The host drives the system with Scheduler.Run, which resumes the thread with
the lowest clock until a thread calls Scheduler.Exit, usually at the end of a
video frame. At that point Scheduler.Quiesce and Scheduler.Serialize can be
used to save or restore the state of all threads.

Execution contexts are provided by package coro.
*/
package hwsched
