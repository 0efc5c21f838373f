// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwsched

import "github.com/pkg/errors"

// Synchronize suspends t until the clock of every target has caught up with
// the clock of t.
//
// Targets are processed in argument order: for each one that is behind, t
// switches to it and is resumed when some thread switches back, typically the
// target itself once its clock has passed t's and it synchronizes on t. t
// synchronizing on itself, on nil or on an inert thread is a no-op.
//
// Called with no targets, Synchronize yields to the host: Run then resumes
// the thread with the lowest clock, and Resume returns.
//
// Synchronize must be called from t's own context. Two threads waiting on each
// other without stepping will never return.
//
func (t *Thread) Synchronize(targets ...*Thread) {
	t.mustRun("Synchronize")
	s := t.s
	s.metrics.synchronize.Inc()
	if len(targets) == 0 {
		s.yield()
		return
	}
	for _, o := range targets {
		if o == nil || o == t {
			continue
		}
		if o.s != s {
			panic(errors.Errorf("hwsched: thread %q synchronizing on thread %q of another scheduler", t.name, o.name))
		}
		for o.handle != 0 && o.clock < t.clock {
			if s.quiescing {
				break
			}
			s.switchTo(o.handle)
		}
	}
}
