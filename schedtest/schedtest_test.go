package schedtest_test

import (
	"testing"
	"time"

	"github.com/db47h/hwsched"
	"github.com/db47h/hwsched/coro"
	"github.com/db47h/hwsched/schedtest"
	"github.com/pkg/errors"
)

func TestBudget(t *testing.T) {
	b := schedtest.NewBudget(3)
	var p interface{}
	func() {
		defer func() { p = recover() }()
		for {
			b.Tick()
		}
	}()
	if b.Used() != 4 {
		t.Errorf("used = %d, expected 4", b.Used())
	}
	data := []struct {
		name string
		p    interface{}
		exp  bool
	}{
		{"direct", p, true},
		{"wrapped", errors.Wrap(schedtest.ErrBudget, "loop"), true},
		{"forwarded", &coro.Panic{Handle: 2, Value: p}, true},
		{"other", errors.New("boom"), false},
		{"nil", nil, false},
		{"string", "budget", false},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			if schedtest.IsBudget(d.p) != d.exp {
				t.Fatalf("IsBudget(%v) = %v", d.p, !d.exp)
			}
		})
	}
}

// twins builds two threads stepping at different rates and synchronizing on
// each other.
func twins(s *hwsched.Scheduler, tr *schedtest.Trace) schedtest.State {
	a, b := s.NewThread("a"), s.NewThread("b")
	n := 0
	a.Create(3e6, func() {
		a.Step(3)
		tr.Record(a, "step")
		a.Synchronize(b)
	})
	b.Create(5e6, func() {
		b.Step(5)
		tr.Record(b, "step")
		n++
		if n%4 == 0 {
			s.Exit(hwsched.EventFrame)
		}
		b.Synchronize(a)
	})
	return nil
}

func TestCompareRuns(t *testing.T) {
	schedtest.CompareRuns(t, 20, twins)
}

func TestCompareSnapshot(t *testing.T) {
	schedtest.CompareSnapshot(t, 5, 10, twins)
}

func TestExpectHang(t *testing.T) {
	schedtest.ExpectHang(t, 5*time.Second, func() {
		s := hwsched.NewScheduler()
		a, b := s.NewThread("a"), s.NewThread("b")
		budget := schedtest.NewBudget(1000)
		a.Create(1e6, func() {
			budget.Tick()
			a.Synchronize(b)
		})
		b.Create(1e6, func() {
			budget.Tick()
			b.Step(1)
			b.Synchronize(a)
			b.Synchronize()
		})
		// a never steps and never catches up with b.
		s.Resume(b)
	})
}

func TestTrace(t *testing.T) {
	s := hwsched.NewScheduler()
	schedtest.Destroy(t, s)
	th := s.NewThread("unit")
	var tr1, tr2 schedtest.Trace
	th.Create(1e6, func() {
		tr1.Record(th, "x")
		tr2.Record(th, "x")
		th.Step(2)
		th.Synchronize()
	})
	for i := 0; i < 3; i++ {
		s.Resume(th)
	}
	if i := tr1.Diff(&tr2); i != -1 {
		t.Fatalf("identical traces differ at %d", i)
	}
	if err := tr1.Ordered("unit"); err != nil {
		t.Fatal(err)
	}
	tail := tr1.Since(1)
	if tail.Len() != 2 || tail.String() != "unit@2: x\nunit@4: x\n" {
		t.Fatalf("tail = %q", tail)
	}
	if i := tr1.Diff(tail); i != 0 {
		t.Errorf("diff = %d, expected 0", i)
	}
	tr2.Events = tr2.Events[:2]
	if i := tr1.Diff(&tr2); i != 2 {
		t.Errorf("diff = %d, expected 2", i)
	}
	tr1.Events = append(tr1.Events, schedtest.Event{Thread: "unit", Clock: 1, Note: "late"})
	if err := tr1.Ordered("unit"); err == nil {
		t.Error("clock going backwards not detected")
	}
}
