// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwsched

import (
	"math"
	"math/bits"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// FrequencyShift is the number of fractional bits of a Frequency.
//
const FrequencyShift = 16

// A Frequency is a clock rate in Hz, stored as an unsigned fixed-point value
// with FrequencyShift fractional bits.
//
// Frequencies are converted from floating point once, when a thread is created
// or its frequency changed, so that no floating point drift can accumulate
// during a session.
//
type Frequency uint64

// Hz converts a frequency in Hz to a Frequency, rounding to the nearest
// representable value. Negative and NaN values yield 0.
//
func Hz(hz float64) Frequency {
	if !(hz > 0) {
		return 0
	}
	v := math.Round(hz * (1 << FrequencyShift))
	if v >= math.MaxUint64 {
		return math.MaxUint64
	}
	return Frequency(v)
}

// Hz returns f in Hz.
//
func (f Frequency) Hz() float64 {
	return float64(f) / (1 << FrequencyShift)
}

// Int returns f rounded to the nearest integer Hz.
//
func (f Frequency) Int() uint64 {
	return (uint64(f) + 1<<(FrequencyShift-1)) >> FrequencyShift
}

// Scalar returns the scalar that puts a thread running at frequency f on the
// common Second time base: one second of emulated time then amounts to Second
// clock ticks for every thread, regardless of its frequency.
//
// The scalar is computed from the fixed-point value, so fractional
// frequencies are honored. Returns 0 if the scalar does not fit in 64 bits,
// that is for frequencies below 0.5 Hz.
//
func (f Frequency) Scalar() uint64 {
	if f == 0 {
		return 0
	}
	sec := uint64(Second)
	hi, lo := sec>>(64-FrequencyShift), sec<<FrequencyShift
	if hi >= uint64(f) {
		return 0
	}
	q, _ := bits.Div64(hi, lo, uint64(f))
	return q
}

// Clocks returns the number of whole clock cycles of frequency f that fit in d.
//
func (f Frequency) Clocks(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	const div = uint64(time.Second) << FrequencyShift
	hi, lo := bits.Mul64(uint64(f), uint64(d))
	if hi >= div {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, div)
	return q
}

var units = []struct {
	suffix, name string
	scale        float64
}{
	{"ghz", "GHz", 1e9},
	{"mhz", "MHz", 1e6},
	{"khz", "kHz", 1e3},
	{"hz", "Hz", 1},
}

// String returns f formatted with the largest unit that keeps its integer
// part non-zero, like "3.579545MHz".
//
func (f Frequency) String() string {
	hz := f.Hz()
	for _, u := range units {
		if hz >= u.scale || u.scale == 1 {
			return strconv.FormatFloat(hz/u.scale, 'f', -1, 64) + u.name
		}
	}
	panic("unreachable")
}

// ParseFrequency parses a frequency like "4000000", "3.579545MHz", "32.768 kHz"
// or "1GHz". Unit suffixes are case insensitive.
//
func ParseFrequency(s string) (Frequency, error) {
	in := strings.TrimSpace(s)
	num, scale := in, 1.0
	lower := strings.ToLower(in)
	for _, u := range units {
		if strings.HasSuffix(lower, u.suffix) {
			num = strings.TrimSpace(in[:len(in)-len(u.suffix)])
			scale = u.scale
			break
		}
	}
	if num == "" {
		return 0, parseError(s, 0, "missing value")
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, parseError(s, 0, "invalid number "+strconv.Quote(num))
	}
	f := Hz(v * scale)
	if f == 0 {
		return 0, parseError(s, 0, "frequency must be positive")
	}
	return f, nil
}

func parseError(in string, pos int, msg string) error {
	return errors.Errorf("in %q at pos %d: %s", in, pos+1, msg)
}
