package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var errBoom = errors.New("boom")

func testLogger() zerolog.Logger { return zerolog.Nop() }

// fakeConnector serves scripted listings and in-memory files.
type fakeConnector struct {
	mu        sync.Mutex
	listings  [][]string
	listErrs  []error
	listCalls int
	files     map[string][]byte
	readErrs  map[string]error
	closeErrs map[string]error
	retrieved []string
	readers   []*trackingReader
}

func (f *fakeConnector) NameList(dir string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.listCalls
	f.listCalls++
	if i < len(f.listErrs) && f.listErrs[i] != nil {
		return nil, f.listErrs[i]
	}
	if len(f.listings) == 0 {
		return nil, nil
	}
	if i >= len(f.listings) {
		i = len(f.listings) - 1
	}
	return f.listings[i], nil
}

func (f *fakeConnector) Retrieve(remotePath string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieved = append(f.retrieved, remotePath)
	data, ok := f.files[remotePath]
	if !ok {
		return nil, errors.New("550 file not found")
	}
	var r io.Reader = bytes.NewReader(data)
	if err := f.readErrs[remotePath]; err != nil {
		r = io.MultiReader(r, &errReader{err: err})
	}
	tr := &trackingReader{r: r, closeErr: f.closeErrs[remotePath]}
	f.readers = append(f.readers, tr)
	return tr, nil
}

func (f *fakeConnector) Close() error { return nil }

type errReader struct{ err error }

func (e *errReader) Read([]byte) (int, error) { return 0, e.err }

type trackingReader struct {
	r        io.Reader
	closeErr error
	closed   bool
}

func (t *trackingReader) Read(p []byte) (int, error) { return t.r.Read(p) }

func (t *trackingReader) Close() error {
	t.closed = true
	return t.closeErr
}

// fakeTransferer records every file it was asked to move.
type fakeTransferer struct {
	calls  []string
	errs   map[string]error
	bytes  int64
	onCall func(job *Job)
}

func (f *fakeTransferer) Name() string { return "fake" }

func (f *fakeTransferer) Transfer(ctx context.Context, job *Job) error {
	f.calls = append(f.calls, job.File)
	if f.onCall != nil {
		f.onCall(job)
	}
	if err := f.errs[job.File]; err != nil {
		return err
	}
	job.Bytes = f.bytes
	return nil
}

// scriptedSession answers each Expect call with the next scripted response.
type scriptedSession struct {
	responses []scriptedResponse
	sent      []string
	expects   int
	closed    bool
}

type scriptedResponse struct {
	out string
	err error
}

func (s *scriptedSession) Send(text string) error {
	s.sent = append(s.sent, text)
	return nil
}

func (s *scriptedSession) Expect(ctx context.Context, pattern *regexp.Regexp, timeout time.Duration, maxLoops int) (string, error) {
	if s.expects >= len(s.responses) {
		return "", ErrExpectTimeout
	}
	r := s.responses[s.expects]
	s.expects++
	return r.out, r.err
}

func (s *scriptedSession) Close() error {
	s.closed = true
	return nil
}

type fakeDialer struct {
	sess  *scriptedSession
	err   error
	dials int
}

func (d *fakeDialer) Dial(ctx context.Context) (CLISession, error) {
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	return d.sess, nil
}
