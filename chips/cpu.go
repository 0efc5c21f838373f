// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package chips

import (
	"github.com/db47h/hwsched"
)

// An Op is one instruction of a CPU program.
//
type Op struct {
	Name   string
	Cycles uint64
	Exec   func(c *CPU)
}

// A CPU executes a looping Program, one Op per call of its entry point.
//
// Every Op steps its cycles, then synchronizes with Sync before executing, so
// that the side effects of Exec (bus writes, line changes) are only seen by
// peers once they have caught up with the CPU.
//
// The CPU models a runtime speed switch with its scalar: in normal speed one
// CPU cycle lasts 2*Base clock ticks, in double speed Base ticks.
//
type CPU struct {
	*hwsched.Thread
	Program []Op
	Sync    []*hwsched.Thread
	// IRQ, if not nil, is sampled before every instruction. On every rising
	// edge, OnIRQ is called instead of the next Op.
	IRQ   *Line
	OnIRQ func(c *CPU)
	// Base is the scalar in double speed mode. Zero means 1.
	Base uint64

	pc      uint32
	double  bool
	retired uint64
	irqs    uint64
	seen    uint64 // IRQ changes already sampled
}

// NewCPU returns a new CPU running program.
//
func NewCPU(s *hwsched.Scheduler, name string, program []Op) *CPU {
	return &CPU{Thread: s.NewThread(name), Program: program}
}

// Power creates the CPU thread at the given frequency in Hz, in normal speed,
// with the program counter reset.
//
func (c *CPU) Power(frequency float64) {
	c.pc = 0
	c.retired = 0
	c.irqs = 0
	c.seen = 0
	if c.IRQ != nil {
		c.seen = c.IRQ.Changes()
	}
	c.Create(frequency, c.main)
	c.SetDoubleSpeed(false)
}

func (c *CPU) base() uint64 {
	if c.Base == 0 {
		return 1
	}
	return c.Base
}

// SetDoubleSpeed switches between normal and double speed. The change applies
// to subsequent Step calls only.
//
func (c *CPU) SetDoubleSpeed(on bool) {
	c.double = on
	if on {
		c.SetScalar(c.base())
	} else {
		c.SetScalar(2 * c.base())
	}
}

// DoubleSpeed returns true in double speed mode.
//
func (c *CPU) DoubleSpeed() bool { return c.double }

// PC returns the index of the next Op.
//
func (c *CPU) PC() int { return int(c.pc) }

// Retired returns the number of Ops executed since power on.
//
func (c *CPU) Retired() uint64 { return c.retired }

// IRQs returns the number of serviced interrupts.
//
func (c *CPU) IRQs() uint64 { return c.irqs }

func (c *CPU) main() {
	if c.IRQ != nil {
		c.Synchronize(c.Sync...)
		edge := c.IRQ.Changes() != c.seen && c.IRQ.Level()
		c.seen = c.IRQ.Changes()
		if edge {
			c.Step(1)
			c.irqs++
			if c.OnIRQ != nil {
				c.OnIRQ(c)
			}
			return
		}
	}
	if len(c.Program) == 0 {
		// halted
		c.Step(1)
		c.Synchronize(c.Sync...)
		return
	}
	op := &c.Program[c.pc]
	c.pc++
	if int(c.pc) >= len(c.Program) {
		c.pc = 0
	}
	c.Step(op.Cycles)
	c.Synchronize(c.Sync...)
	if op.Exec != nil {
		op.Exec(c)
	}
	c.retired++
}

// Serialize reads or writes the thread state followed by the CPU registers.
//
func (c *CPU) Serialize(s *hwsched.Serializer) error {
	if err := c.Thread.Serialize(s); err != nil {
		return err
	}
	s.Uint32(&c.pc)
	s.Bool(&c.double)
	s.Uint64(&c.retired)
	s.Uint64(&c.irqs)
	s.Uint64(&c.seen)
	return s.Err()
}
