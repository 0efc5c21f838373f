// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package main

import (
	"bufio"
	"bytes"
	"os"

	"github.com/db47h/hwsched"
	"github.com/db47h/hwsched/internal/sysdesc"
	"github.com/pkg/errors"
)

const (
	snapshotMagic   = 'H' | 'W'<<8 | 'S'<<16 | 'S'<<24
	snapshotVersion = 1
)

var (
	errNotSnapshot = errors.New("not a snapshot file")
	errVersion     = errors.New("unsupported snapshot version")
)

// serializeSnapshot reads or writes a snapshot file header followed by the
// state of sys, which must be quiesced.
//
func serializeSnapshot(s *hwsched.Serializer, sys *sysdesc.System) error {
	magic, version := uint32(snapshotMagic), uint32(snapshotVersion)
	s.Uint32(&magic)
	s.Uint32(&version)
	if err := s.Err(); err != nil {
		return err
	}
	if magic != snapshotMagic {
		return errNotSnapshot
	}
	if version != snapshotVersion {
		return errors.Wrapf(errVersion, "version %d", version)
	}
	return sys.Serialize(s)
}

func saveSnapshot(name string, sys *sysdesc.System) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	sys.Scheduler().Quiesce()
	if err = serializeSnapshot(hwsched.NewWriter(w), sys); err != nil {
		return errors.Wrapf(err, "save %s", name)
	}
	return w.Flush()
}

// loadSnapshot restores sys from the named file. If the file cannot be read
// completely, sys is rolled back to its state before the call.
//
func loadSnapshot(name string, sys *sysdesc.System) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	sys.Scheduler().Quiesce()
	var backup bytes.Buffer
	if err = sys.Serialize(hwsched.NewWriter(&backup)); err != nil {
		return errors.Wrap(err, "backup system state")
	}
	if err = serializeSnapshot(hwsched.NewReader(bufio.NewReader(f)), sys); err != nil {
		if rerr := sys.Serialize(hwsched.NewReader(&backup)); rerr != nil {
			return errors.Wrapf(rerr, "roll back after failed load of %s", name)
		}
		return errors.Wrapf(err, "load %s", name)
	}
	return nil
}
