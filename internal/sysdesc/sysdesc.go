// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package sysdesc loads system descriptions: the list of units of an emulated
// system, their frequencies and the units each one synchronizes with.
//
// A description is written in YAML:
//
//	name: console
//	frames: 60
//	normalize: true
//	units:
//	  - name: cpu
//	    kind: cpu
//	    frequency: 4MHz
//	    cycle: 4
//	    irq: ppu
//	    sync: [ppu, apu]
//	  - name: ppu
//	    kind: video
//	    frequency: 8MHz
//	    cycle: 456
//	    lines: 154
//	    sync: [cpu]
//	  - name: apu
//	    kind: oscillator
//	    frequency: 32.768kHz
//	    cycle: 1
//	    sync: [cpu]
//
package sysdesc

import (
	"bytes"
	"math/bits"
	"os"

	"github.com/db47h/hwsched"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Unit kinds.
//
const (
	KindCPU        = "cpu"
	KindOscillator = "oscillator"
	KindVideo      = "video"
)

// Description is a system description.
//
type Description struct {
	Name string `yaml:"name"`
	// Frames is the default number of frames to run.
	Frames int `yaml:"frames"`
	// Normalize puts every unit on the hwsched.Second time base and rebases
	// clocks after every frame.
	Normalize bool   `yaml:"normalize"`
	Units     []Unit `yaml:"units"`
}

// Unit describes one unit.
//
type Unit struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Frequency string `yaml:"frequency"`
	// Cycle is the number of clocks per call of the unit's entry point: per
	// tick for oscillators, per scanline for video units and per instruction
	// for CPUs without a program.
	Cycle uint64 `yaml:"cycle"`
	// Lines is the number of scanlines per frame of video units.
	Lines uint64 `yaml:"lines"`
	// Program lists the cycles of each instruction of a CPU program.
	Program []uint64 `yaml:"program"`
	// IRQ names the video unit whose VBlank line interrupts a CPU.
	IRQ         string   `yaml:"irq"`
	DoubleSpeed bool     `yaml:"double_speed"`
	Sync        []string `yaml:"sync"`
}

// Parse decodes and validates a description. Unknown fields are errors.
//
func Parse(data []byte) (*Description, error) {
	d := new(Description)
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(d); err != nil {
		return nil, errors.Wrap(err, "decode system description")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Load reads and parses the description in the named file.
//
func Load(name string) (*Description, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "load system description")
	}
	d, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	return d, nil
}

// Validate checks d for consistency and returns all problems found as a
// *multierror.Error.
//
func (d *Description) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...interface{}) {
		result = multierror.Append(result, errors.Errorf(format, args...))
	}

	if d.Frames < 0 {
		add("negative frame count %d", d.Frames)
	}
	if len(d.Units) == 0 {
		add("no units")
	}
	kinds := make(map[string]string, len(d.Units))
	video := false
	for i, u := range d.Units {
		switch {
		case u.Name == "":
			add("unit %d: missing name", i)
		case kinds[u.Name] != "":
			add("unit %q: duplicate name", u.Name)
		}
		switch u.Kind {
		case KindCPU, KindOscillator:
		case KindVideo:
			video = true
			if u.Lines == 0 {
				add("unit %q: video unit without lines", u.Name)
			}
		default:
			add("unit %q: unknown kind %q", u.Name, u.Kind)
		}
		if u.Name != "" && kinds[u.Name] == "" {
			kinds[u.Name] = u.Kind
		}
		f, err := hwsched.ParseFrequency(u.Frequency)
		if err != nil {
			add("unit %q: %v", u.Name, err)
		} else if d.Normalize {
			if err = u.checkSpans(f); err != nil {
				result = multierror.Append(result, errors.Wrapf(err, "unit %q", u.Name))
			}
		}
		if u.Cycle == 0 && (u.Kind != KindCPU || len(u.Program) == 0) {
			add("unit %q: zero cycle", u.Name)
		}
	}
	if !video && len(d.Units) > 0 {
		add("no video unit: frames would never end")
	}
	for _, u := range d.Units {
		for _, s := range u.Sync {
			switch {
			case s == u.Name:
				add("unit %q: synchronizes with itself", u.Name)
			case kinds[s] == "":
				add("unit %q: sync with unknown unit %q", u.Name, s)
			}
		}
		if u.IRQ != "" {
			if u.Kind != KindCPU {
				add("unit %q: irq on a %s unit", u.Name, u.Kind)
			} else if kinds[u.IRQ] != KindVideo {
				add("unit %q: irq source %q is not a video unit", u.Name, u.IRQ)
			}
		}
		if u.DoubleSpeed && u.Kind != KindCPU {
			add("unit %q: double_speed on a %s unit", u.Name, u.Kind)
		}
	}
	return result.ErrorOrNil()
}

// Bounds of normalized units, in Second based ticks. Rebase leaves lagging
// units at most a few steps ahead of zero, so a frame plus these steps stays
// below 2^64.
//
const (
	maxStep  = hwsched.Second / 4
	maxFrame = hwsched.Second / 2
)

// checkSpans checks that the steps and frames of u, at frequency f on the
// Second time base, neither overflow nor exceed maxStep and maxFrame.
//
func (u *Unit) checkSpans(f hwsched.Frequency) error {
	sc := f.Scalar()
	if sc == 0 {
		return errors.Errorf("frequency %v too low for normalized clocks", f)
	}
	// interrupts step 1 cycle
	cycles := u.Cycle
	for _, c := range u.Program {
		if c > cycles {
			cycles = c
		}
	}
	if cycles == 0 {
		cycles = 1
	}
	if n, ok := mul(cycles, sc); !ok || n > maxStep {
		return errors.Errorf("a step of %d cycles at %v exceeds %d normalized ticks", cycles, f, uint64(maxStep))
	}
	if u.Kind == KindVideo {
		n, ok := mul(u.Cycle, u.Lines)
		if ok {
			n, ok = mul(n, sc)
		}
		if !ok || n > maxFrame {
			return errors.Errorf("a frame of %d lines at %v exceeds %d normalized ticks", u.Lines, f, uint64(maxFrame))
		}
	}
	return nil
}

func mul(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}
