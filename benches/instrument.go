package benches

import (
	"context"
	"time"

	"github.com/estesp/statbench/driver"
	"github.com/estesp/statbench/report"
	"github.com/estesp/statbench/stats"
	"github.com/estesp/statbench/utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultWarmup is the time sampling runs before the operation starts
	DefaultWarmup = 5 * time.Second
	// DefaultCooldown is the time sampling continues after the operation returned
	DefaultCooldown = 5 * time.Second
)

// Operation is the benchmarked unit. It runs synchronously on the caller's goroutine.
type Operation func(ctx context.Context) error

// Options tune a single instrumented run. Every field is taken literally, so
// the zero value means no warmup and no cooldown; start from DefaultOptions
// to get the 5s/5s defaults.
type Options struct {
	// PollInterval between samples, zero selects the default for the target kind
	PollInterval time.Duration
	// Warmup and Cooldown bracket the timed operation. Both widen the sampled
	// window, not the measured execution time.
	Warmup   time.Duration
	Cooldown time.Duration
	// Group overrides the report group, which defaults to the target name
	Group string
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		Warmup:   DefaultWarmup,
		Cooldown: DefaultCooldown,
	}
}

// Instrumenter runs operations while sampling the resource usage of a target
// and turns the samples into persisted reports
type Instrumenter struct {
	resolver  driver.Resolver
	source    stats.Source
	assembler *report.Assembler

	// called with every session before it starts
	sessionHook func(*stats.Session)
}

// NewInstrumenter creates an instrumenter. The resolver and source are used
// for every run; they are not owned by the instrumenter.
func NewInstrumenter(resolver driver.Resolver, source stats.Source, assembler *report.Assembler) *Instrumenter {
	return &Instrumenter{
		resolver:  resolver,
		source:    source,
		assembler: assembler,
	}
}

// Instrument resolves selector, then runs op while a sampling session polls
// the target, and returns the assembled report. The report is returned even
// when op fails; in that case the operation's error is returned too, after the
// session was stopped and joined. Only an unresolvable target yields no report.
func (in *Instrumenter) Instrument(ctx context.Context, selector, testName string, opts Options, op Operation) (*report.Report, error) {
	target, err := in.resolver.Resolve(ctx, selector)
	if err != nil {
		log.WithError(err).Errorf("Could not resolve target '%s' for test %q", selector, testName)
		if errors.Is(err, stats.ErrNoTarget) {
			return nil, err
		}
		return nil, errors.Wrapf(stats.ErrNoTarget, "'%s': %v", selector, err)
	}
	if opts.Group != "" {
		target.Name = opts.Group
	}

	return in.run(ctx, target, testName, opts, op)
}

func (in *Instrumenter) run(ctx context.Context, target stats.Target, testName string, opts Options, op Operation) (*report.Report, error) {
	session := stats.NewSession(in.source, target, testName, opts.PollInterval)
	if in.sessionHook != nil {
		in.sessionHook(session)
	}
	if err := session.Start(ctx); err != nil {
		return nil, err
	}
	// covers a panicking operation; both calls are idempotent
	defer func() {
		session.RequestStop()
		session.Join()
	}()

	var (
		execTime time.Duration
		opErr    error
	)
	if err := sleep(ctx, opts.Warmup); err == nil {
		log.Infof("Start test %q against %s", testName, target)
		start := time.Now()
		opErr = op(ctx)
		execTime = time.Since(start)
		if opErr != nil {
			log.WithError(opErr).Warnf("Test %q failed after %v", testName, execTime)
		} else {
			log.Infof("Test %q complete in %v time elapsed", testName, execTime)
		}

		sleep(ctx, opts.Cooldown)
	}

	session.RequestStop()
	session.Join()

	result, err := session.Collect()
	if err != nil {
		return nil, err
	}

	diag := report.Diagnostics{
		Degraded: result.Degraded || result.Dropped > 0,
		Dropped:  result.Dropped,
		Warnings: result.Warnings,
	}
	rep, asmErr := in.assembler.Assemble(result.Samples, execTime, target, testName, diag)

	switch {
	case opErr != nil:
		return rep, errors.Wrapf(opErr, "test %q", testName)
	case ctx.Err() != nil:
		return rep, errors.Wrapf(ctx.Err(), "test %q interrupted", testName)
	default:
		return rep, asmErr
	}
}

// sleep waits for d unless ctx is done first
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ShellOperation returns an operation running command with `bash -c`, in dir if set
func ShellOperation(command, dir string) Operation {
	return func(ctx context.Context) error {
		out, err := utils.ExecShellCmd(ctx, command, dir)
		if err != nil {
			return errors.Wrapf(err, "output: %s", out)
		}
		log.Debugf("Command %q output: %s", command, out)
		return nil
	}
}
