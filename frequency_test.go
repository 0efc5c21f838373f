package hwsched_test

import (
	"math/big"
	"strings"
	"testing"
	"time"

	hs "github.com/db47h/hwsched"
)

func TestParseFrequency(t *testing.T) {
	data := []struct {
		in  string
		hz  uint64
		err string
	}{
		{"4000000", 4000000, ""},
		{"3.579545MHz", 3579545, ""},
		{"3.579545 MHz", 3579545, ""},
		{" 32.768khz ", 32768, ""},
		{"1GHz", 1000000000, ""},
		{"60Hz", 60, ""},
		{"", 0, "missing value"},
		{"MHz", 0, "missing value"},
		{"fast", 0, "invalid number"},
		{"1.2.3kHz", 0, "invalid number"},
		{"-1MHz", 0, "must be positive"},
		{"0", 0, "must be positive"},
	}
	for _, d := range data {
		t.Run(d.in, func(t *testing.T) {
			f, err := hs.ParseFrequency(d.in)
			if err != nil {
				if d.err == "" {
					t.Fatalf("unexpected error %v", err)
				}
				if !strings.Contains(err.Error(), d.err) {
					t.Fatalf("got error %q, expected %q", err, d.err)
				}
				return
			}
			if d.err != "" {
				t.Fatalf("expected error %q, got %v", d.err, f)
			}
			if f.Int() != d.hz {
				t.Fatalf("got %d Hz, expected %d", f.Int(), d.hz)
			}
		})
	}
}

func TestFrequency_String(t *testing.T) {
	data := []struct {
		hz  float64
		exp string
	}{
		{3579545, "3.579545MHz"},
		{32768, "32.768kHz"},
		{4e9, "4GHz"},
		{1, "1Hz"},
		{0.5, "0.5Hz"},
	}
	for _, d := range data {
		if s := hs.Hz(d.hz).String(); s != d.exp {
			t.Errorf("Hz(%v) = %q, expected %q", d.hz, s, d.exp)
		}
	}
}

func TestFrequency_convert(t *testing.T) {
	if hs.Hz(-1) != 0 || hs.Hz(0) != 0 {
		t.Error("non positive frequency not mapped to 0")
	}
	if f := hs.Hz(1.5); f.Int() != 2 || f.Hz() != 1.5 {
		t.Errorf("Hz(1.5): Int() = %d, Hz() = %v", f.Int(), f.Hz())
	}
	if s := hs.Hz(1).Scalar(); s != hs.Second {
		t.Errorf("1Hz scalar = %d, expected Second", s)
	}
	if s := hs.Hz(0.25).Scalar(); s != 0 {
		t.Errorf("0.25Hz scalar = %d, expected 0", s)
	}
	f := hs.Hz(3579545)
	if n := f.Clocks(time.Second); n != 3579545 {
		t.Errorf("clocks in 1s = %d, expected 3579545", n)
	}
	if n := f.Clocks(time.Millisecond); n != 3579 {
		t.Errorf("clocks in 1ms = %d, expected 3579", n)
	}
	if n := f.Clocks(-time.Second); n != 0 {
		t.Errorf("clocks in -1s = %d, expected 0", n)
	}
}

func TestFrequency_Scalar(t *testing.T) {
	data := []float64{0.5, 0.75, 1, 1.5, 60.0988, 32768, 3579545, 4e6, 1e9}
	for _, hz := range data {
		f := hs.Hz(hz)
		// (Second << FrequencyShift) / f
		exp := new(big.Int).Lsh(new(big.Int).SetUint64(hs.Second), hs.FrequencyShift)
		exp.Quo(exp, new(big.Int).SetUint64(uint64(f)))
		if s := f.Scalar(); s != exp.Uint64() || s == 0 {
			t.Errorf("Hz(%v).Scalar() = %d, expected %d", hz, s, exp)
		}
	}
	if s := hs.Hz(0.5).Scalar(); s != 2*hs.Second {
		t.Errorf("0.5Hz scalar = %d, expected %d", s, uint64(2*hs.Second))
	}
	// below 0.5Hz the scalar does not fit in 64 bits.
	for _, hz := range []float64{0.4, 0.1, 1e-6} {
		if s := hs.Hz(hz).Scalar(); s != 0 {
			t.Errorf("Hz(%v).Scalar() = %d, expected 0", hz, s)
		}
	}
}
