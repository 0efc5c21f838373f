// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package chips

import (
	"github.com/db47h/hwsched"
)

// A Video chip draws one scanline per call of its entry point and ends a frame
// every Lines scanlines by returning hwsched.EventFrame to the host.
//
// VBlank, if not nil, is asserted at the end of every frame and deasserted
// after the first scanline of the next one.
//
type Video struct {
	*hwsched.Thread
	LineClocks uint64
	Lines      uint64
	Sync       []*hwsched.Thread
	VBlank     *Line
	OnFrame    func(v *Video)

	line  uint64
	frame uint64
}

// NewVideo returns a new video chip with lines scanlines of lineClocks clocks
// per frame.
//
func NewVideo(s *hwsched.Scheduler, name string, lineClocks, lines uint64) *Video {
	return &Video{Thread: s.NewThread(name), LineClocks: lineClocks, Lines: lines}
}

// Power creates the video thread at the given frequency in Hz, starting at the
// top of frame 0.
//
func (v *Video) Power(frequency float64) {
	v.line = 0
	v.frame = 0
	v.Create(frequency, v.main)
}

func (v *Video) main() {
	v.Step(v.LineClocks)
	v.Synchronize(v.Sync...)
	v.line++
	if v.line == 1 && v.VBlank != nil {
		v.VBlank.Deassert(v.Thread)
	}
	if v.line < v.Lines {
		return
	}
	v.line = 0
	v.frame++
	if v.VBlank != nil {
		v.VBlank.Assert(v.Thread)
	}
	if v.OnFrame != nil {
		v.OnFrame(v)
	}
	v.Scheduler().Exit(hwsched.EventFrame)
}

// Line returns the current scanline.
//
func (v *Video) Line() uint64 { return v.line }

// Frame returns the number of completed frames.
//
func (v *Video) Frame() uint64 { return v.frame }

// Serialize reads or writes the thread state followed by the beam position.
//
func (v *Video) Serialize(s *hwsched.Serializer) error {
	if err := v.Thread.Serialize(s); err != nil {
		return err
	}
	s.Uint64(&v.line)
	s.Uint64(&v.frame)
	return s.Err()
}
