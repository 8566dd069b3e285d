package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	expect "github.com/google/goexpect"
)

// ErrExpectTimeout is returned when the expected output does not arrive
// within the timeout or loop budget.
var ErrExpectTimeout = errors.New("timed out waiting for device output")

const (
	// cliPollInterval is one loop of the Expect budget. It is also how often
	// the expecter looks for output it may have missed.
	cliPollInterval = 200 * time.Millisecond
	cliSendTimeout  = 10 * time.Second
)

// CLISession is an interactive command line on a network device.
type CLISession interface {
	// Send writes text followed by a newline.
	Send(text string) error
	// Expect waits until pattern matches, the timeout elapses or maxLoops
	// poll intervals have passed (0 means no loop limit). Output volume does
	// not count against the budget. It returns everything read up to and
	// including the match.
	Expect(ctx context.Context, pattern *regexp.Regexp, timeout time.Duration, maxLoops int) (string, error)
	Close() error
}

type cliSession struct {
	exp    *expect.GExpect
	closer io.Closer

	done     chan struct{}
	exited   chan struct{}
	once     sync.Once
	closeErr error
}

// newCLISession attaches an expecter to a running shell. wait blocks until
// the remote side ends the shell; nil means the shell ends only on Close.
func newCLISession(stdin io.WriteCloser, stdout io.Reader, wait func() error, closer io.Closer) (*cliSession, error) {
	s := &cliSession{
		closer: closer,
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	if wait == nil {
		wait = func() error {
			<-s.done
			return nil
		}
	}

	exp, _, err := expect.SpawnGeneric(&expect.GenOptions{
		In:  stdin,
		Out: stdout,
		Wait: func() error {
			defer close(s.exited)
			return wait()
		},
		Close: s.shutdown,
		Check: s.alive,
	}, cliSendTimeout,
		expect.PartialMatch(true),
		expect.CheckDuration(cliPollInterval),
		expect.SendTimeout(cliSendTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("attach expecter: %w", err)
	}
	s.exp = exp
	return s, nil
}

func (s *cliSession) alive() bool {
	select {
	case <-s.done:
		return false
	case <-s.exited:
		return false
	default:
		return true
	}
}

func (s *cliSession) shutdown() error {
	s.once.Do(func() {
		close(s.done)
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
	})
	return s.closeErr
}

func (s *cliSession) Send(text string) error {
	if err := s.exp.Send(text + "\n"); err != nil {
		return fmt.Errorf("send %q: %w", text, err)
	}
	return nil
}

type expectResult struct {
	out string
	err error
}

func (s *cliSession) Expect(ctx context.Context, pattern *regexp.Regexp, timeout time.Duration, maxLoops int) (string, error) {
	limit := timeout
	if budget := time.Duration(maxLoops) * cliPollInterval; maxLoops > 0 && budget < limit {
		limit = budget
	}

	res := make(chan expectResult, 1)
	go func() {
		out, _, err := s.exp.Expect(pattern, limit)
		res <- expectResult{out, err}
	}()

	select {
	case <-ctx.Done():
		// The pending Expect returns once Close stops the session.
		return "", ctx.Err()
	case r := <-res:
		var te expect.TimeoutError
		switch {
		case r.err == nil:
			return r.out, nil
		case errors.As(r.err, &te):
			return r.out, fmt.Errorf("%w: %q not seen in %s", ErrExpectTimeout, pattern, limit)
		default:
			return r.out, fmt.Errorf("waiting for %q: %w", pattern, r.err)
		}
	}
}

func (s *cliSession) Close() error {
	return s.exp.Close()
}
