package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/dirconv/pkg/dirconv"
	"github.com/arthur-debert/dirconv/pkg/dirconv/mixconv"
)

type options struct {
	charset  string
	output   string
	debug    int
	logLevel string
	selfTest bool
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:   "mixconv [flags] [file ...]",
		Short: "Convert text that mixes a legacy charset and UTF-8 to UTF-8",
		Long: `mixconv reads text in which every line is either UTF-8 or in a legacy
8-bit charset and writes it out as UTF-8. A line is converted when it holds a
non-ASCII byte with ASCII on both sides, which UTF-8 never produces. Lines
whose non-ASCII characters all come in runs are passed through unchanged.

Input is read from the named files, or from standard input if there are none.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := dirconv.LevelFromVerbosity(o.debug)
			if o.logLevel != "" {
				var err error
				if level, err = dirconv.LogLevelFromString(o.logLevel); err != nil {
					return err
				}
			}
			logger := dirconv.NewLogger(cmd.ErrOrStderr(), level)
			dirconv.SetLogger(logger)

			convOpts := []mixconv.Option{mixconv.WithLogger(dirconv.Logger())}
			if o.debug > 0 {
				convOpts = append(convOpts, mixconv.WithDebug(cmd.ErrOrStderr()))
			}
			conv, err := mixconv.New(o.charset, convOpts...)
			if err != nil {
				return err
			}

			if o.selfTest {
				if o.output != "" || len(args) > 0 {
					return errors.New("--self-test takes no files")
				}
				return conv.SelfTest()
			}
			return run(conv, o.output, args, stdin, cmd.OutOrStdout())
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fl := cmd.Flags()
	fl.CountVarP(&o.debug, "debug", "d", "echo converted lines to stderr; repeat for more logging")
	fl.StringVarP(&o.charset, "charset", "f", dirconv.DefaultCharset, "legacy charset of the non-UTF-8 lines")
	fl.StringVarP(&o.output, "output", "o", "", "write to this file instead of stdout")
	fl.StringVar(&o.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	fl.BoolVar(&o.selfTest, "self-test", false, "convert the built-in sample and compare")
	_ = fl.MarkHidden("self-test")

	return cmd
}

func run(conv *mixconv.Converter, output string, inputs []string, stdin io.Reader, stdout io.Writer) (err error) {
	outName := "stdout"
	var dst io.Writer = stdout
	if output != "" {
		f, createErr := os.Create(output)
		if createErr != nil {
			return createErr
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		outName, dst = output, f
	}

	bw := bufio.NewWriter(dst)
	if len(inputs) == 0 {
		if err := conv.Convert(bw, stdin, "standard input", outName); err != nil {
			return err
		}
	}
	for _, name := range inputs {
		if err := convertFile(conv, bw, name, outName); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return &mixconv.Error{Op: "write", Name: outName, Err: err}
	}
	return nil
}

func convertFile(conv *mixconv.Converter, w io.Writer, name, outName string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return conv.Convert(w, f, name, outName)
}

// Execute runs the root command and returns the exit status.
func Execute() int {
	cmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mixconv: %v\n", err)
		return 1
	}
	return 0
}
