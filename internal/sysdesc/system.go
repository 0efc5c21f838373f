// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sysdesc

import (
	"github.com/db47h/hwsched"
	"github.com/db47h/hwsched/chips"
	"github.com/pkg/errors"
)

type part struct {
	name      string
	kind      string
	frequency hwsched.Frequency
	thread    *hwsched.Thread
	state     interface{ Serialize(*hwsched.Serializer) error }
	power     func()
}

// A System is a set of chips built from a Description.
//
type System struct {
	desc   *Description
	sched  *hwsched.Scheduler
	parts  []*part
	lines  []*chips.Line
	frames uint64
}

// Status is a snapshot of the public state of one unit.
//
type Status struct {
	Name      string
	Kind      string
	Frequency hwsched.Frequency
	Clock     uint64
	Scalar    uint64
}

// Build validates d and builds its units on a new scheduler configured with
// opts. The calling goroutine becomes the host of the scheduler. Units are
// inert until Power is called.
//
func Build(d *Description, opts ...hwsched.Option) (*System, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	sys := &System{desc: d, sched: hwsched.NewScheduler(opts...)}
	byName := make(map[string]*part, len(d.Units))
	videos := make(map[string]*chips.Video)
	cpus := make(map[*chips.CPU]Unit)
	syncs := make(map[*part]*[]*hwsched.Thread)

	for _, u := range d.Units {
		f, err := hwsched.ParseFrequency(u.Frequency)
		if err != nil {
			return nil, errors.Wrapf(err, "unit %q", u.Name)
		}
		p := &part{name: u.Name, kind: u.Kind, frequency: f}
		switch u.Kind {
		case KindCPU:
			c := chips.NewCPU(sys.sched, u.Name, program(u))
			if d.Normalize {
				c.Base = f.Scalar() / 2
			}
			double := u.DoubleSpeed
			p.thread, p.state, p.power = c.Thread, c, func() {
				c.Power(f.Hz())
				c.SetDoubleSpeed(double)
			}
			cpus[c] = u
			syncs[p] = &c.Sync
		case KindOscillator:
			o := chips.NewOscillator(sys.sched, u.Name, u.Cycle)
			p.thread, p.state, p.power = o.Thread, o, func() { o.Power(f.Hz()) }
			syncs[p] = &o.Sync
		case KindVideo:
			v := chips.NewVideo(sys.sched, u.Name, u.Cycle, u.Lines)
			v.VBlank = new(chips.Line)
			v.OnFrame = func(*chips.Video) { sys.frames++ }
			sys.lines = append(sys.lines, v.VBlank)
			p.thread, p.state, p.power = v.Thread, v, func() { v.Power(f.Hz()) }
			syncs[p] = &v.Sync
			videos[u.Name] = v
		}
		if d.Normalize && u.Kind != KindCPU {
			pow := p.power
			p.power = func() {
				pow()
				p.thread.SetScalar(f.Scalar())
			}
		}
		byName[u.Name] = p
		sys.parts = append(sys.parts, p)
	}

	for i, p := range sys.parts {
		for _, name := range d.Units[i].Sync {
			*syncs[p] = append(*syncs[p], byName[name].thread)
		}
	}
	for c, u := range cpus {
		if u.IRQ != "" {
			c.IRQ = videos[u.IRQ].VBlank
		}
	}
	return sys, nil
}

func program(u Unit) []chips.Op {
	if len(u.Program) == 0 {
		return []chips.Op{{Name: "op", Cycles: u.Cycle}}
	}
	ops := make([]chips.Op, len(u.Program))
	for i, c := range u.Program {
		ops[i] = chips.Op{Name: "op", Cycles: c}
	}
	return ops
}

// Scheduler returns the scheduler of sys.
//
func (sys *System) Scheduler() *hwsched.Scheduler { return sys.sched }

// Description returns the description sys was built from.
//
func (sys *System) Description() *Description { return sys.desc }

// Power powers on every unit in description order and resets the frame
// counter.
//
func (sys *System) Power() {
	sys.frames = 0
	for _, l := range sys.lines {
		*l = chips.Line{}
	}
	for _, p := range sys.parts {
		p.power()
	}
}

// RunFrame runs the system until the end of the next video frame.
//
func (sys *System) RunFrame() error {
	ev := sys.sched.Run()
	if ev != hwsched.EventFrame {
		return errors.Errorf("unexpected scheduler event %d", ev)
	}
	if sys.desc.Normalize {
		sys.sched.Rebase()
	}
	return nil
}

// Frames returns the number of frames completed since power on.
//
func (sys *System) Frames() uint64 { return sys.frames }

// Serialize reads or writes the state of the whole system: threads, chip
// registers and signal lines. The scheduler must have been quiesced.
//
func (sys *System) Serialize(s *hwsched.Serializer) error {
	if err := sys.sched.Serialize(s); err != nil {
		return err
	}
	for _, p := range sys.parts {
		if err := p.state.Serialize(s); err != nil {
			return errors.Wrapf(err, "unit %q", p.name)
		}
	}
	for _, l := range sys.lines {
		if err := l.Serialize(s); err != nil {
			return err
		}
	}
	s.Uint64(&sys.frames)
	return s.Err()
}

// Status returns the state of every unit, in description order.
//
func (sys *System) Status() []Status {
	st := make([]Status, len(sys.parts))
	for i, p := range sys.parts {
		st[i] = Status{
			Name:      p.name,
			Kind:      p.kind,
			Frequency: p.frequency,
			Clock:     p.thread.Clock(),
			Scalar:    p.thread.Scalar(),
		}
	}
	return st
}

// Shutdown destroys every unit thread.
//
func (sys *System) Shutdown() {
	for _, p := range sys.parts {
		p.thread.Destroy()
	}
}
