package main

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrMissingSuccessMarker is returned when every handshake step completed
// but the device never reported success.
var ErrMissingSuccessMarker = errors.New("device output has no success marker")

// defaultPromptLoops gives a prompt step 30s of poll intervals.
const defaultPromptLoops = 150

type HandshakeState int

const (
	HandshakeIdle HandshakeState = iota
	HandshakeAwaitingSourcePrompt
	HandshakeAwaitingDestPrompt
	HandshakeAwaitingCompletion
	HandshakeConfirmed
	HandshakeFailed
)

func (s HandshakeState) String() string {
	switch s {
	case HandshakeIdle:
		return "idle"
	case HandshakeAwaitingSourcePrompt:
		return "awaiting-source-prompt"
	case HandshakeAwaitingDestPrompt:
		return "awaiting-dest-prompt"
	case HandshakeAwaitingCompletion:
		return "awaiting-completion"
	case HandshakeConfirmed:
		return "confirmed"
	case HandshakeFailed:
		return "failed"
	}
	return "unknown"
}

// HandshakeLimits bounds how long each step may wait. The last step covers
// the copy itself and needs far more room than the prompts.
type HandshakeLimits struct {
	PromptTimeout time.Duration
	CopyTimeout   time.Duration
	CopyLoops     int
}

// Handshake drives one copy conversation. It is used once and never returns
// to HandshakeIdle.
type Handshake struct {
	dialect  Dialect
	endpoint FTPEndpoint
	vrf      string
	limits   HandshakeLimits

	State  HandshakeState
	output strings.Builder
}

func newHandshake(dialect Dialect, endpoint FTPEndpoint, vrf string, limits HandshakeLimits) *Handshake {
	return &Handshake{dialect: dialect, endpoint: endpoint, vrf: vrf, limits: limits}
}

type handshakeStep struct {
	state   HandshakeState
	send    string
	await   *regexp.Regexp
	timeout time.Duration
	loops   int
}

// Run sends the copy command, the source and the destination filename in
// turn. A step whose prompt does not show up ends the handshake there.
func (h *Handshake) Run(ctx context.Context, sess CLISession, filename string) error {
	if h.State != HandshakeIdle {
		return fmt.Errorf("handshake already ran, state %s", h.State)
	}

	steps := []handshakeStep{
		{HandshakeAwaitingSourcePrompt, h.dialect.CopyCommand(h.endpoint, h.vrf), h.dialect.SourcePrompt, h.limits.PromptTimeout, defaultPromptLoops},
		{HandshakeAwaitingDestPrompt, filename, h.dialect.DestPrompt, h.limits.PromptTimeout, defaultPromptLoops},
		{HandshakeAwaitingCompletion, filename, h.dialect.CommandPrompt, h.limits.CopyTimeout, h.limits.CopyLoops},
	}

	for _, step := range steps {
		h.State = step.state
		if err := sess.Send(step.send); err != nil {
			h.State = HandshakeFailed
			return err
		}
		out, err := sess.Expect(ctx, step.await, step.timeout, step.loops)
		h.output.WriteString(out)
		if err != nil {
			h.State = HandshakeFailed
			return fmt.Errorf("%s: %w", step.state, err)
		}
	}

	if !h.dialect.Success(h.output.String()) {
		h.State = HandshakeFailed
		return ErrMissingSuccessMarker
	}
	h.State = HandshakeConfirmed
	return nil
}

// Output is everything the device printed during the handshake.
func (h *Handshake) Output() string { return h.output.String() }

var copiedBytes = []*regexp.Regexp{
	regexp.MustCompile(`(\d+) bytes copied`),
	regexp.MustCompile(`\[OK - (\d+)`),
}

// bytesCopied extracts the byte count most CLIs print after a copy.
func bytesCopied(output string) int64 {
	for _, re := range copiedBytes {
		if m := re.FindStringSubmatch(output); m != nil {
			n, _ := strconv.ParseInt(m[1], 10, 64)
			return n
		}
	}
	return 0
}

// DeviceDialer opens a fresh CLI session on the target device.
type DeviceDialer interface {
	Dial(ctx context.Context) (CLISession, error)
}

// DeviceTransferer makes a network device pull each file from the FTP
// server itself. Every file gets its own session.
type DeviceTransferer struct {
	dialer   DeviceDialer
	dialect  Dialect
	endpoint FTPEndpoint
	vrf      string
	limits   HandshakeLimits
	log      zerolog.Logger
}

func NewDeviceTransferer(dialer DeviceDialer, dialect Dialect, endpoint FTPEndpoint, vrf string, limits HandshakeLimits, log zerolog.Logger) *DeviceTransferer {
	return &DeviceTransferer{
		dialer:   dialer,
		dialect:  dialect,
		endpoint: endpoint,
		vrf:      vrf,
		limits:   limits,
		log:      log.With().Str("component", "device").Logger(),
	}
}

func (d *DeviceTransferer) Name() string { return "device" }

func (d *DeviceTransferer) Transfer(ctx context.Context, job *Job) error {
	log := d.log.With().Str("job", job.ID).Logger()

	sess, err := d.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("open device session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Debug().Err(err).Msg("closing device session")
		}
	}()

	filename := relativeName(job.File)
	log.Info().Str("dialect", d.dialect.Name).Str("filename", filename).Msg("Instructing device to copy file")

	h := newHandshake(d.dialect, d.endpoint, d.vrf, d.limits)
	err = h.Run(ctx, sess, filename)
	log.Debug().
		Str("state", h.State.String()).
		Str("output", redact(redact(h.Output(), d.endpoint.Password), d.endpoint.escapedPassword())).
		Msg("Device handshake output")
	if err != nil {
		return err
	}
	job.Bytes = bytesCopied(h.Output())
	return nil
}
