package coro_test

import (
	"testing"

	"github.com/db47h/hwsched/coro"
	"github.com/pkg/errors"
)

func TestRuntime_switch(t *testing.T) {
	r := coro.New()
	var trace []string

	var a, b coro.Handle
	var err error
	a, err = r.Create(1024, func() {
		trace = append(trace, "a0")
		r.Switch(b)
		trace = append(trace, "a1")
		r.Switch(coro.HostHandle)
		for {
			r.Switch(coro.HostHandle)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err = r.Create(1024, func() {
		trace = append(trace, "b0")
		r.Switch(a)
		for {
			r.Switch(coro.HostHandle)
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	if r.Active() != coro.HostHandle {
		t.Fatalf("active = %d, expected host", r.Active())
	}
	r.Switch(a)
	if r.Active() != coro.HostHandle {
		t.Fatalf("active = %d after switch back, expected host", r.Active())
	}
	exp := []string{"a0", "b0", "a1"}
	if len(trace) != len(exp) {
		t.Fatalf("trace = %v, expected %v", trace, exp)
	}
	for i := range exp {
		if trace[i] != exp[i] {
			t.Fatalf("trace = %v, expected %v", trace, exp)
		}
	}
	r.Delete(a)
	r.Delete(b)
	if r.Live() != 0 {
		t.Errorf("live = %d after delete, expected 0", r.Live())
	}
}

func TestRuntime_exhausted(t *testing.T) {
	r := coro.New()
	r.MaxContexts = 2
	idle := func() {
		for {
			r.Switch(coro.HostHandle)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := r.Create(0, idle); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.Create(0, idle); errors.Cause(err) != coro.ErrExhausted {
		t.Fatalf("got error %v, expected %v", err, coro.ErrExhausted)
	}
}

func TestRuntime_derive(t *testing.T) {
	r := coro.New()
	var gen []int
	var h coro.Handle
	var err error

	second := func() {
		gen = append(gen, 2)
		for {
			r.Switch(coro.HostHandle)
		}
	}
	h, err = r.Create(0, func() {
		gen = append(gen, 1)
		// restart from within: never returns.
		if err := r.Derive(h, second); err != nil {
			panic(err)
		}
		gen = append(gen, -1)
	})
	if err != nil {
		t.Fatal(err)
	}
	r.Switch(h)
	if len(gen) != 2 || gen[0] != 1 || gen[1] != 2 {
		t.Fatalf("gen = %v, expected [1 2]", gen)
	}

	// restart while parked.
	if err = r.Derive(h, func() {
		gen = append(gen, 3)
		for {
			r.Switch(coro.HostHandle)
		}
	}); err != nil {
		t.Fatal(err)
	}
	r.Switch(h)
	if len(gen) != 3 || gen[2] != 3 {
		t.Fatalf("gen = %v, expected [1 2 3]", gen)
	}
	r.Delete(h)
}

func TestRuntime_panic(t *testing.T) {
	r := coro.New()
	boom := errors.New("boom")
	h, err := r.Create(0, func() { panic(boom) })
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		p, ok := recover().(*coro.Panic)
		if !ok {
			t.Fatalf("expected a *coro.Panic")
		}
		if p.Handle != h || p.Cause() != boom {
			t.Errorf("got panic %v from %d, expected %v from %d", p.Value, p.Handle, boom, h)
		}
		if r.Active() != coro.HostHandle {
			t.Errorf("active = %d, expected host", r.Active())
		}
	}()
	r.Switch(h)
	t.Fatal("switch returned normally")
}

func TestRuntime_returned(t *testing.T) {
	r := coro.New()
	h, err := r.Create(0, func() {})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		p, ok := recover().(*coro.Panic)
		if !ok || p.Cause() != coro.ErrReturned {
			t.Fatalf("got %v, expected %v", p, coro.ErrReturned)
		}
	}()
	r.Switch(h)
}

func TestRuntime_deleteUnwinds(t *testing.T) {
	r := coro.New()
	unwound := false
	h, err := r.Create(0, func() {
		defer func() { unwound = true }()
		for {
			r.Switch(coro.HostHandle)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	r.Switch(h)
	r.Delete(h)
	if !unwound {
		t.Error("deferred calls of deleted context did not run")
	}
	// deleting twice is harmless.
	r.Delete(h)
}
