// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package chips provides a library of simple chip models for hwsched.
//
// The chips are not emulations of real hardware. They exercise the scheduler
// the way real chip models do: stepping their own clock, synchronizing with
// the chips they depend on and sharing signals through Lines.
//
// Copyright 2018 Denis Bernard <db047h@gmail.com>
//
// This package is licensed under the MIT license. See license text in the LICENSE file.
//
package chips

import "github.com/db47h/hwsched"

// A Line is a signal shared between chips, like an interrupt request line.
//
// A line is driven by one thread and sampled by others. A reader must
// synchronize with the driver before sampling the line so that it observes
// every change made up to its own clock.
//
type Line struct {
	level   bool
	at      uint64
	changes uint64
}

// Set drives the line to level. clock is the driver's clock at the time of the
// change.
//
func (l *Line) Set(level bool, clock uint64) {
	if l.level == level {
		return
	}
	l.level = level
	l.at = clock
	l.changes++
}

// Assert drives the line high from thread t.
//
func (l *Line) Assert(t *hwsched.Thread) { l.Set(true, t.Clock()) }

// Deassert drives the line low from thread t.
//
func (l *Line) Deassert(t *hwsched.Thread) { l.Set(false, t.Clock()) }

// Level returns the line level.
//
func (l *Line) Level() bool { return l.level }

// Changed returns the driver clock of the last level change.
//
func (l *Line) Changed() uint64 { return l.at }

// Changes returns the number of level changes.
//
func (l *Line) Changes() uint64 { return l.changes }

// Serialize reads or writes the line state.
//
func (l *Line) Serialize(s *hwsched.Serializer) error {
	s.Bool(&l.level)
	s.Uint64(&l.at)
	s.Uint64(&l.changes)
	return s.Err()
}
