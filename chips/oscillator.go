// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package chips

import (
	"github.com/db47h/hwsched"
)

// An Oscillator is a free running chip: every call to its entry point steps
// Cycle clocks, counts a tick, calls OnTick then synchronizes with Sync. With
// no Sync peers it yields to the host after every tick.
//
type Oscillator struct {
	*hwsched.Thread
	Cycle  uint64
	Sync   []*hwsched.Thread
	OnTick func(o *Oscillator)

	ticks uint64
}

// NewOscillator returns a new oscillator stepping cycle clocks per tick.
//
func NewOscillator(s *hwsched.Scheduler, name string, cycle uint64) *Oscillator {
	return &Oscillator{Thread: s.NewThread(name), Cycle: cycle}
}

// Power creates the oscillator thread at the given frequency in Hz and resets
// its tick count.
//
func (o *Oscillator) Power(frequency float64) {
	o.ticks = 0
	o.Create(frequency, o.main)
}

func (o *Oscillator) main() {
	o.Step(o.Cycle)
	o.ticks++
	if o.OnTick != nil {
		o.OnTick(o)
	}
	o.Synchronize(o.Sync...)
}

// Ticks returns the number of ticks since power on.
//
func (o *Oscillator) Ticks() uint64 { return o.ticks }

// Serialize reads or writes the thread state followed by the tick count.
//
func (o *Oscillator) Serialize(s *hwsched.Serializer) error {
	if err := o.Thread.Serialize(s); err != nil {
		return err
	}
	s.Uint64(&o.ticks)
	return s.Err()
}
