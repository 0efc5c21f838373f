// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/db47h/hwsched"
	"github.com/db47h/hwsched/internal/sysdesc"
	"github.com/spf13/cobra"
)

type runOptions struct {
	*options
	frames  int
	save    string
	load    string
	metrics bool
}

func newRunCmd(opts *options) *cobra.Command {
	ro := &runOptions{options: opts}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a system for a number of frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), ro)
		},
	}
	cmd.Flags().IntVarP(&ro.frames, "frames", "n", 0, "number of frames to run (default from the description)")
	cmd.Flags().StringVar(&ro.save, "save", "", "save a snapshot to `file` after running")
	cmd.Flags().StringVar(&ro.load, "load", "", "restore a snapshot from `file` before running")
	cmd.Flags().BoolVar(&ro.metrics, "metrics", false, "print scheduler metrics")
	return cmd
}

func run(out io.Writer, ro *runOptions) error {
	d, err := sysdesc.Load(ro.config)
	if err != nil {
		return err
	}
	frames := ro.frames
	if frames <= 0 {
		frames = d.Frames
	}
	if frames <= 0 {
		frames = 1
	}

	sys, err := sysdesc.Build(d, hwsched.WithLogger(ro.log))
	if err != nil {
		return err
	}
	defer sys.Shutdown()
	sys.Power()
	if ro.load != "" {
		if err = loadSnapshot(ro.load, sys); err != nil {
			return err
		}
		ro.log.Info("snapshot loaded", "file", ro.load, "frame", sys.Frames())
	}

	start := time.Now()
	for i := 0; i < frames; i++ {
		if err = sys.RunFrame(); err != nil {
			return err
		}
		ro.log.Debug("frame done", "frame", sys.Frames())
	}
	ro.log.Info("run complete", "system", d.Name, "frames", frames, "elapsed", time.Since(start))

	if ro.save != "" {
		if err = saveSnapshot(ro.save, sys); err != nil {
			return err
		}
		ro.log.Info("snapshot saved", "file", ro.save)
	}

	printStatus(out, sys)
	if ro.metrics {
		sys.Scheduler().WriteMetrics(out)
	}
	return nil
}

func printStatus(out io.Writer, sys *sysdesc.System) {
	fmt.Fprintf(out, "frame %d\n", sys.Frames())
	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "UNIT\tKIND\tFREQUENCY\tSCALAR\tCLOCK")
	for _, st := range sys.Status() {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%d\t%d\n", st.Name, st.Kind, st.Frequency, st.Scalar, st.Clock)
	}
	tw.Flush()
}
