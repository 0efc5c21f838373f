// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package schedtest

import (
	"bytes"
	"testing"
	"time"

	"github.com/db47h/hwsched"
)

// State is the client state of a system, saved along with its threads.
//
type State interface {
	Serialize(s *hwsched.Serializer) error
}

// A BuildFn builds and powers a system on scheduler s, recording events in tr.
// It may return nil if the system has no state besides its threads.
//
type BuildFn func(s *hwsched.Scheduler, tr *Trace) State

type system struct {
	s     *hwsched.Scheduler
	tr    *Trace
	state State
}

func build(t *testing.T, fn BuildFn) *system {
	sys := &system{s: hwsched.NewScheduler(), tr: new(Trace)}
	sys.state = fn(sys.s, sys.tr)
	Destroy(t, sys.s)
	return sys
}

func (sys *system) run(t *testing.T, frames int) {
	t.Helper()
	for i := 0; i < frames; i++ {
		if ev := sys.s.Run(); ev == hwsched.EventIdle {
			t.Fatalf("frame %d: no thread left to run", i)
		}
	}
}

func (sys *system) serialize(ser *hwsched.Serializer) error {
	if err := sys.s.Serialize(ser); err != nil {
		return err
	}
	if sys.state != nil {
		return sys.state.Serialize(ser)
	}
	return nil
}

func compareTraces(t *testing.T, tr1, tr2 *Trace) {
	t.Helper()
	if i := tr1.Diff(tr2); i >= 0 {
		var e1, e2 interface{} = "<none>", "<none>"
		if i < tr1.Len() {
			e1 = tr1.Events[i]
		}
		if i < tr2.Len() {
			e2 = tr2.Events[i]
		}
		t.Fatalf("traces differ at event %d:\nExpected %v\nGot %v", i, e1, e2)
	}
}

func compareClocks(t *testing.T, s1, s2 *hwsched.Scheduler) {
	t.Helper()
	th1, th2 := s1.Threads(), s2.Threads()
	if len(th1) != len(th2) {
		t.Fatalf("thread count %d != %d", len(th1), len(th2))
	}
	for i := range th1 {
		if th1[i].Clock() != th2[i].Clock() {
			t.Fatalf("thread %q: clock %d != %d", th1[i].Name(), th1[i].Clock(), th2[i].Clock())
		}
	}
}

// CompareRuns builds two independent systems with fn, runs both for the given
// number of frames and checks that they produced identical traces and clocks.
//
func CompareRuns(t *testing.T, frames int, fn BuildFn) {
	t.Helper()

	start := time.Now()
	sys1, sys2 := build(t, fn), build(t, fn)
	sys1.run(t, frames)
	sys2.run(t, frames)
	compareTraces(t, sys1.tr, sys2.tr)
	compareClocks(t, sys1.s, sys2.s)

	elapsed := time.Since(start)
	t.Logf("%d events, %d switches in %v", sys1.tr.Len(), sys1.s.Switches()+sys2.s.Switches(), elapsed)
}

// CompareSnapshot runs a system built by fn for frames frames, quiesces and
// saves it, then runs it for after more frames. A second system is built,
// restored from the snapshot and run for after frames. Both must produce
// identical traces and clocks after the snapshot.
//
func CompareSnapshot(t *testing.T, frames, after int, fn BuildFn) {
	t.Helper()

	sys1 := build(t, fn)
	sys1.run(t, frames)
	sys1.s.Quiesce()
	var buf bytes.Buffer
	if err := sys1.serialize(hwsched.NewWriter(&buf)); err != nil {
		t.Fatal(err)
	}
	mark := sys1.tr.Len()
	sys1.run(t, after)

	sys2 := build(t, fn)
	sys2.s.Quiesce()
	if err := sys2.serialize(hwsched.NewReader(&buf)); err != nil {
		t.Fatal(err)
	}
	mark2 := sys2.tr.Len()
	sys2.run(t, after)

	compareTraces(t, sys1.tr.Since(mark), sys2.tr.Since(mark2))
	compareClocks(t, sys1.s, sys2.s)
}
