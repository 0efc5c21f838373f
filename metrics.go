// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwsched

import (
	"github.com/VictoriaMetrics/metrics"
)

// schedMetrics are counters only: they are updated by the running context and
// may be read concurrently by WriteMetrics.
//
type schedMetrics struct {
	set         *metrics.Set
	switches    *metrics.Counter
	synchronize *metrics.Counter
	created     *metrics.Counter
	destroyed   *metrics.Counter
	events      *metrics.Counter
}

func newSchedMetrics(prefix string) *schedMetrics {
	set := metrics.NewSet()
	return &schedMetrics{
		set:         set,
		switches:    set.NewCounter(prefix + "_switches_total"),
		synchronize: set.NewCounter(prefix + "_synchronize_total"),
		created:     set.NewCounter(prefix + "_threads_created_total"),
		destroyed:   set.NewCounter(prefix + "_threads_destroyed_total"),
		events:      set.NewCounter(prefix + "_events_total"),
	}
}

// Switches returns the number of context switches performed so far.
//
func (s *Scheduler) Switches() uint64 {
	return s.metrics.switches.Get()
}
