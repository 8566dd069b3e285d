package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/crypto/ssh"
)

// sshDeviceDialer logs into a device over SSH and opens an interactive shell.
type sshDeviceDialer struct {
	addr         string
	config       *ssh.ClientConfig
	dialect      Dialect
	readyTimeout time.Duration
}

func newSSHDeviceDialer(addr string, config *ssh.ClientConfig, dialect Dialect, readyTimeout time.Duration) *sshDeviceDialer {
	return &sshDeviceDialer{
		addr:         addr,
		config:       config,
		dialect:      dialect,
		readyTimeout: readyTimeout,
	}
}

func (d *sshDeviceDialer) Dial(ctx context.Context) (CLISession, error) {
	dialer := net.Dialer{Timeout: d.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, d.addr, d.config)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", d.addr, err)
	}
	client := ssh.NewClient(c, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	closer := &sshSessionCloser{session: session, client: client}

	cli, err := startShell(session, closer)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	if err := d.prepare(ctx, cli); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return cli, nil
}

func startShell(session *ssh.Session, closer *sshSessionCloser) (*cliSession, error) {
	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("vt100", 0, 511, modes); err != nil {
		return nil, fmt.Errorf("failed to request pty: %w", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := session.Shell(); err != nil {
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}
	return newCLISession(stdin, stdout, session.Wait, closer)
}

// prepare waits for the first prompt and runs the dialect's setup commands.
func (d *sshDeviceDialer) prepare(ctx context.Context, cli CLISession) error {
	if _, err := cli.Expect(ctx, d.dialect.CommandPrompt, d.readyTimeout, defaultPromptLoops); err != nil {
		return fmt.Errorf("waiting for login prompt: %w", err)
	}
	for _, cmd := range d.dialect.Setup {
		if err := cli.Send(cmd); err != nil {
			return err
		}
		if _, err := cli.Expect(ctx, d.dialect.CommandPrompt, d.readyTimeout, defaultPromptLoops); err != nil {
			return fmt.Errorf("setup %q: %w", cmd, err)
		}
	}
	return nil
}

type sshSessionCloser struct {
	session *ssh.Session
	client  *ssh.Client
}

func (c *sshSessionCloser) Close() error {
	var result *multierror.Error
	if err := c.session.Close(); err != nil && !errors.Is(err, io.EOF) {
		result = multierror.Append(result, err)
	}
	if err := c.client.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
