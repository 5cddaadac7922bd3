package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arthur-debert/dirconv/pkg/dirconv"
	"github.com/arthur-debert/dirconv/pkg/dirconv/classify"
	"github.com/arthur-debert/dirconv/pkg/dirconv/config"
)

// errFailures is returned when the run completed but counted errors. They
// have been logged already.
var errFailures = errors.New("errors occurred")

type flags struct {
	configFile string
	applyFile  string
	selfTest   bool
}

// classFlags maps the class selection flags to their classes.
var classFlags = []struct {
	name      string
	shorthand string
	class     classify.Class
	usage     string
}{
	{"ascii", "7", classify.ASCII, "select 7-bit ASCII names"},
	{"legacy", "8", classify.Legacy8Bit, "select legacy 8-bit names (default)"},
	{"utf8", "u", classify.UTF8, "select UTF-8 names"},
	{"wtf8", "w", classify.WTF8, "select double-encoded UTF-8 names"},
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f flags
	v := config.New()

	cmd := &cobra.Command{
		Use:   "dirconv [flags] path ...",
		Short: "Find and repair file names that are not UTF-8",
		Long: `dirconv walks directory trees and classifies every entry name as ASCII,
UTF-8, double-encoded UTF-8 or legacy 8-bit. Selected names are printed and,
with -r, renamed to UTF-8 from the legacy charset given with -f.

Symbolic links are never followed. An existing entry with the converted name
is never overwritten unless -F is given.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.selfTest {
				return runSelfTest(cmd.OutOrStdout())
			}
			if err := applyFlags(cmd, v); err != nil {
				return err
			}
			if f.applyFile == "" && len(args) == 0 {
				return errors.New("no paths given")
			}
			if f.applyFile != "" && len(args) > 0 {
				return errors.New("paths cannot be combined with --apply")
			}
			return run(cmd.Context(), v, f, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fl := cmd.Flags()
	fl.SortFlags = false
	fl.BoolP("null", "0", false, "terminate printed paths with NUL instead of newline")
	for _, cf := range classFlags {
		fl.BoolP(cf.name, cf.shorthand, false, cf.usage)
	}
	fl.CountP("debug", "d", "increase log verbosity (repeatable)")
	fl.BoolP("force", "F", false, "rename even if the converted name exists")
	fl.StringP("charset", "f", dirconv.DefaultCharset, "legacy charset of non-UTF-8 names")
	fl.BoolP("dry-run", "n", false, "show renames without performing them")
	fl.BoolP("print", "p", false, "print the paths of selected entries (default)")
	fl.BoolP("rename", "r", false, "rename selected entries to UTF-8")
	fl.StringArrayP("exclude", "x", nil, "skip entries whose name matches this extended regex (repeatable)")
	fl.StringVar(&f.configFile, "config", "", "config file (default: dirconv.* in $HOME/.config/dirconv or .)")
	fl.String("log-level", "", "log level (trace, debug, info, warn, error); overrides -d")
	fl.String("plan", "", "write the renames to this YAML plan file")
	fl.StringVar(&f.applyFile, "apply", "", "perform the renames recorded in this plan file instead of walking")
	fl.Bool("summary", false, "print counts to stderr when done")
	fl.BoolVar(&f.selfTest, "self-test", false, "run the classifier self-test")
	_ = fl.MarkHidden("self-test")

	for key, name := range map[string]string{
		config.KeyNull:     "null",
		config.KeyDebug:    "debug",
		config.KeyForce:    "force",
		config.KeyCharset:  "charset",
		config.KeyDryRun:   "dry-run",
		config.KeyPrint:    "print",
		config.KeyRename:   "rename",
		config.KeyLogLevel: "log-level",
		config.KeyPlan:     "plan",
		config.KeySummary:  "summary",
	} {
		_ = v.BindPFlag(key, fl.Lookup(name))
	}

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if f.selfTest {
			return nil
		}
		used, err := config.ReadFile(v, f.configFile)
		if err != nil {
			return err
		}
		if used != "" {
			dirconv.Logger().Info().Str("file", used).Msg("using config file")
		}
		return nil
	}

	return cmd
}

// applyFlags copies the list-valued flags into v. They are not bound with
// BindPFlag since a pattern may itself contain commas.
func applyFlags(cmd *cobra.Command, v *viper.Viper) error {
	fl := cmd.Flags()
	if fl.Changed("exclude") {
		patterns, err := fl.GetStringArray("exclude")
		if err != nil {
			return err
		}
		v.Set(config.KeyExclude, patterns)
	}

	var classes []string
	for _, cf := range classFlags {
		on, err := fl.GetBool(cf.name)
		if err != nil {
			return err
		}
		if on {
			classes = append(classes, cf.class.String())
		}
	}
	if len(classes) > 0 {
		v.Set(config.KeyClasses, classes)
	}
	return nil
}

func run(ctx context.Context, v *viper.Viper, f flags, roots []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	dirconv.SetLogger(dirconv.NewLogger(stderr, cfg.Level()))
	log := dirconv.Logger()

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	if f.applyFile != "" {
		opts.Rename = true
	}

	out := bufio.NewWriter(stdout)
	defer func() {
		if err := out.Flush(); err != nil {
			log.Error().Err(err).Msg("failed to flush output")
		}
	}()

	walkerOpts := []dirconv.WalkerOption{dirconv.WithOutput(out), dirconv.WithLogger(log)}
	var plan *dirconv.Plan
	if cfg.PlanFile != "" {
		plan = dirconv.NewPlan(opts.Charset)
		walkerOpts = append(walkerOpts, dirconv.WithRenameHook(plan.Record))
	}

	w, err := dirconv.NewWalker(opts, walkerOpts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	if f.applyFile != "" {
		var recorded *dirconv.Plan
		recorded, runErr = dirconv.LoadPlan(f.applyFile)
		if runErr == nil {
			if recorded.Charset != "" && recorded.Charset != opts.Charset {
				log.Info().Str("plan", recorded.Charset).Str("flag", opts.Charset).Msg("plan was recorded for another charset")
			}
			runErr = w.Apply(ctx, recorded)
		}
	} else {
		runErr = w.WalkAll(ctx, roots)
	}

	if plan != nil {
		if err := plan.Save(cfg.PlanFile); err != nil {
			log.Error().Err(err).Str("file", cfg.PlanFile).Msg("failed to write plan")
			if runErr == nil {
				runErr = err
			}
		}
	}
	if cfg.Summary {
		if err := out.Flush(); err != nil {
			log.Error().Err(err).Msg("failed to flush output")
		}
		printSummary(stderr, w.Stats())
	}

	if runErr != nil {
		return runErr
	}
	if w.Errors() > 0 {
		return errFailures
	}
	return nil
}

// Execute runs the root command and returns the exit status.
func Execute() int {
	cmd := newRootCmd(os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errFailures) {
			fmt.Fprintf(os.Stderr, "dirconv: %v\n", err)
		}
		return 1
	}
	return 0
}
