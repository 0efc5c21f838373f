// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwsched

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Serialization errors.
//
var (
	ErrBusy     = errors.New("hwsched: thread is inside its entry point")
	ErrMismatch = errors.New("hwsched: snapshot does not match the system")
)

// A Serializer reads or writes binary state. The same sequence of calls is
// used in both directions: a writer stores the pointed-to values, a reader
// overwrites them.
//
// Values are encoded little-endian with a fixed width. The first error is
// sticky: subsequent calls do nothing and Err returns it.
//
type Serializer struct {
	r   io.Reader
	w   io.Writer
	buf [8]byte
	n   int64
	err error
}

// NewWriter returns a Serializer that writes to w.
//
func NewWriter(w io.Writer) *Serializer {
	return &Serializer{w: w}
}

// NewReader returns a Serializer that reads from r.
//
func NewReader(r io.Reader) *Serializer {
	return &Serializer{r: r}
}

// Reading returns true if s reads state.
//
func (s *Serializer) Reading() bool { return s.r != nil }

// Err returns the first error encountered.
//
func (s *Serializer) Err() error { return s.err }

// Len returns the number of bytes read or written so far.
//
func (s *Serializer) Len() int64 { return s.n }

// Uint32 reads or writes *v.
//
func (s *Serializer) Uint32(v *uint32) {
	b := s.buf[:4]
	if s.Reading() {
		if s.read(b) {
			*v = binary.LittleEndian.Uint32(b)
		}
		return
	}
	binary.LittleEndian.PutUint32(b, *v)
	s.write(b)
}

// Uint64 reads or writes *v.
//
func (s *Serializer) Uint64(v *uint64) {
	b := s.buf[:8]
	if s.Reading() {
		if s.read(b) {
			*v = binary.LittleEndian.Uint64(b)
		}
		return
	}
	binary.LittleEndian.PutUint64(b, *v)
	s.write(b)
}

// Bool reads or writes *v as a single byte.
//
func (s *Serializer) Bool(v *bool) {
	b := s.buf[:1]
	if s.Reading() {
		if s.read(b) {
			*v = b[0] != 0
		}
		return
	}
	b[0] = 0
	if *v {
		b[0] = 1
	}
	s.write(b)
}

func (s *Serializer) read(b []byte) bool {
	if s.err != nil {
		return false
	}
	n, err := io.ReadFull(s.r, b)
	s.n += int64(n)
	if err != nil {
		s.err = errors.Wrapf(err, "read at offset %d", s.n-int64(n))
		return false
	}
	return true
}

func (s *Serializer) write(b []byte) {
	if s.err != nil {
		return
	}
	n, err := s.w.Write(b)
	s.n += int64(n)
	if err != nil {
		s.err = errors.Wrapf(err, "write at offset %d", s.n-int64(n))
	}
}
