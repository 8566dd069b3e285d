package main

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"
)

const defaultFTPPort = 21

type FTPConnectorFactory struct{}

func (f *FTPConnectorFactory) Accept(u *url.URL) bool {
	return u.Scheme == "ftp"
}

func (f *FTPConnectorFactory) Create(u *url.URL, password []byte, opts ConnectorOptions) (Connector, error) {
	return NewFTPConnector(u, password, opts)
}

func (f *FTPConnectorFactory) Name() string {
	return "ftp"
}

type FTPConnector struct {
	client *ftp.ServerConn
	creds  *Credentials
	log    zerolog.Logger
}

func NewFTPConnector(u *url.URL, password []byte, opts ConnectorOptions) (*FTPConnector, error) {
	log := opts.Logger.With().Str("component", "ftp").Logger()
	addr := hostPort(u, defaultFTPPort)

	log.Info().Msg("Logging into FTP server...")
	log.Debug().Str("addr", addr).Str("user", u.User.Username()).Msg("dialing")

	c, err := ftp.Dial(addr, ftp.DialWithTimeout(opts.Timeout))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	err = c.Login(u.User.Username(), string(password))
	if err != nil {
		_ = c.Quit()
		return nil, fmt.Errorf("login as %s: %w", u.User.Username(), err)
	}
	log.Info().Msg("Login successful!")

	return &FTPConnector{
		client: c,
		creds:  newCredentials(u.User.Username(), password),
		log:    log,
	}, nil
}

func (f *FTPConnector) NameList(dir string) ([]string, error) {
	names, err := f.client.NameList(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return names, nil
}

// Retrieve opens a RETR stream. The returned reader must be closed before
// the next command is issued on the connection.
func (f *FTPConnector) Retrieve(remotePath string) (io.ReadCloser, error) {
	r, err := f.client.Retr(remotePath)
	if err != nil {
		return nil, fmt.Errorf("retr %s: %w", remotePath, err)
	}
	return r, nil
}

func (f *FTPConnector) Close() error {
	f.log.Debug().Msg("closing session")
	if f.creds != nil {
		f.creds.Clear()
	}
	return f.client.Quit()
}

func hostPort(u *url.URL, defaultPort int) string {
	if u.Port() != "" {
		return u.Host
	}
	return net.JoinHostPort(u.Hostname(), strconv.Itoa(defaultPort))
}
