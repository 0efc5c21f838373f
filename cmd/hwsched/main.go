// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Command hwsched builds an emulated system from a description file and runs it
// for a number of video frames.
//
package main

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type options struct {
	config   string
	logLevel string
	log      *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := new(options)
	cmd := &cobra.Command{
		Use:   "hwsched",
		Short: "Run cycle accurate system descriptions",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
				return errors.Wrap(err, "invalid log level")
			}
			opts.log = newLogger(cmd.ErrOrStderr(), level)
			return nil
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.config, "config", "c", "", "system description file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	_ = cmd.MarkPersistentFlagRequired("config")

	cmd.AddCommand(newRunCmd(opts), newValidateCmd(opts))
	return cmd
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	f, ok := w.(*os.File)
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !ok || f != os.Stderr,
	}))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
