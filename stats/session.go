package stats

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// State represents the lifecycle state of a sampling session
type State int32

// State constants
const (
	// Idle represents a session not yet started
	Idle State = iota
	// Running represents a session with an active sampling loop
	Running
	// Stopping represents a session whose loop observed a stop request
	Stopping
	// Stopped represents a session whose loop has exited
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Result is what a session hands over once it is stopped and joined
type Result struct {
	Samples []Sample
	// Degraded is set when the loop ended before a stop was requested
	Degraded bool
	// Err is the error that ended the loop early, if any
	Err error
	// Dropped counts polls whose output could not be parsed
	Dropped  int
	Warnings []string
}

// Session owns a background loop polling one Source for one target at a
// fixed interval. A session is single use: Start, RequestStop, Join, Collect.
// The sample buffer belongs to the loop until Join returns.
type Session struct {
	source   Source
	target   Target
	testName string
	interval time.Duration

	state    int32
	joined   int32
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// owned by the loop while running
	result Result
}

// NewSession creates an idle session. A non-positive interval selects the
// default for the target kind.
func NewSession(source Source, target Target, testName string, interval time.Duration) *Session {
	if interval <= 0 {
		interval = DefaultInterval(target.Kind)
	}
	return &Session{
		source:   source,
		target:   target,
		testName: testName,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// State returns the current session state
func (s *Session) State() State {
	return State(atomic.LoadInt32(&s.state))
}

// Interval returns the poll interval of the session
func (s *Session) Interval() time.Duration {
	return s.interval
}

// Start launches the sampling loop
func (s *Session) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, int32(Idle), int32(Running)) {
		return errors.Wrapf(ErrInvalidState, "cannot start session in state %s", s.State())
	}

	log.Infof("Start sampling %s for %q every %v", s.target, s.testName, s.interval)
	go s.run(ctx)
	return nil
}

// RequestStop asks the loop to exit. It never blocks and may be called any
// number of times, also after the loop already exited on its own.
func (s *Session) RequestStop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Join blocks until the sampling loop has exited
func (s *Session) Join() error {
	if s.State() == Idle {
		return errors.Wrap(ErrInvalidState, "cannot join a session that was never started")
	}
	<-s.done
	atomic.StoreInt32(&s.joined, 1)
	return nil
}

// Collect returns the samples gathered by the loop. It is only valid once
// Join has returned.
func (s *Session) Collect() (Result, error) {
	if s.State() != Stopped || atomic.LoadInt32(&s.joined) == 0 {
		return Result{}, errors.Wrapf(ErrInvalidState, "cannot collect from session in state %s before join", s.State())
	}
	return s.result, nil
}

func (s *Session) stopRequested() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Session) run(ctx context.Context) {
	defer func() {
		atomic.StoreInt32(&s.state, int32(Stopped))
		log.Infof("Stopped sampling %s for %q: %d samples", s.target, s.testName, len(s.result.Samples))
		close(s.done)
	}()

	for {
		if s.stopRequested() {
			atomic.StoreInt32(&s.state, int32(Stopping))
			return
		}
		if err := ctx.Err(); err != nil {
			s.fail(err)
			return
		}

		sample, err := s.source.Poll(ctx, s.target)
		switch {
		case err == nil:
			s.append(sample)
		case errors.Is(err, ErrParse):
			s.result.Dropped++
			s.warn("dropped sample: %v", err)
		default:
			s.fail(err)
			return
		}

		timer := time.NewTimer(s.interval)
		select {
		case <-s.stop:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (s *Session) append(sample Sample) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	if sample.TargetID == "" {
		sample.TargetID = s.target.ID
	}
	sample.TestName = s.testName
	log.Debugf("Sample %s: %v", s.target, sample.Fields)
	s.result.Samples = append(s.result.Samples, sample)
}

func (s *Session) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Warnf("Session %s/%s: %s", s.target, s.testName, msg)
	s.result.Warnings = append(s.result.Warnings, msg)
}

func (s *Session) fail(err error) {
	s.result.Degraded = true
	s.result.Err = err
	s.warn("sampling ended early after %d samples: %v", len(s.result.Samples), err)
}
