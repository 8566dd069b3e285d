package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

func main() {
	configFlag := flag.String("config", "", "Optional YAML configuration file")
	flag.Parse()

	cfg, err := LoadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	log, logCloser := newLogger(cfg.Log)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("onlooker stopped")
		stop()
		logCloser.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, log zerolog.Logger) error {
	log.Info().Str("strategy", cfg.Strategy).Msg("Initializing program")

	password, err := ftpPassword(cfg.FTP)
	if err != nil {
		return err
	}
	defer secureWipe(password)

	metrics := NewMetrics()
	if cfg.MetricsAddr != "" {
		go metrics.Serve(cfg.MetricsAddr, log)
	}

	u := cfg.FTP.URL()
	factory := getConnectorFactory(u)
	if factory == nil {
		return fmt.Errorf("no connector available for scheme: %s", u.Scheme)
	}

	var conn Connector
	opts := ConnectorOptions{
		Timeout:      cfg.FTP.Timeout,
		KnownHosts:   cfg.FTP.KnownHosts,
		InsecureHost: cfg.FTP.InsecureHost,
		Logger:       log,
	}
	connectRetry := RetryPolicy{Attempts: cfg.FTP.ConnectRetries, Delay: cfg.FTP.RetryDelay}
	err = retry(ctx, connectRetry, log, "connect", func() error {
		var err error
		conn, err = factory.Create(u, password, opts)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s error: %w", factory.Name(), err)
	}
	defer conn.Close()

	transfer, err := newTransferer(ctx, cfg, conn, password, log)
	if err != nil {
		return err
	}

	listRetry := RetryPolicy{Attempts: cfg.FTP.ListRetries, Delay: cfg.FTP.RetryDelay}
	w := NewWatcher(conn, transfer, cfg.FTP.Root, cfg.PollInterval, listRetry, metrics, log)
	return w.Run(ctx)
}

func newTransferer(ctx context.Context, cfg *Config, conn Connector, password []byte, log zerolog.Logger) (Transferer, error) {
	switch cfg.Strategy {
	case strategyDevice:
		d, err := newDeviceTransferer(cfg, password, log)
		if err != nil {
			return nil, err
		}
		return d, nil
	case strategyS3:
		client, err := newS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return NewS3Transferer(conn, client, cfg.S3, cfg.ChunkSize, "", log), nil
	default:
		return NewDownloadTransferer(conn, cfg.StorageDir, cfg.ChunkSize, log), nil
	}
}

func newDeviceTransferer(cfg *Config, ftpPassword []byte, log zerolog.Logger) (*DeviceTransferer, error) {
	dc := cfg.Device
	dialect, err := lookupDialect(dc.Dialect, dc.SuccessMarker)
	if err != nil {
		return nil, err
	}

	hostKeys, err := hostKeyCallback(dc.KnownHosts, dc.InsecureHost, log.With().Str("component", "device").Logger())
	if err != nil {
		return nil, err
	}
	auth, err := sshAuthMethods([]byte(dc.Password), dc.Key)
	if err != nil {
		return nil, err
	}
	sshConfig := &ssh.ClientConfig{
		User:            dc.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         cfg.FTP.Timeout,
	}

	endpoint := FTPEndpoint{
		Host:     cfg.FTP.URL().Host,
		User:     cfg.FTP.User,
		Password: string(ftpPassword),
	}
	limits := HandshakeLimits{
		PromptTimeout: dc.PromptTimeout,
		CopyTimeout:   dc.CopyTimeout,
		CopyLoops:     dc.MaxLoops,
	}
	dialer := newSSHDeviceDialer(dc.Addr(), sshConfig, dialect, dc.PromptTimeout)
	return NewDeviceTransferer(dialer, dialect, endpoint, dc.VRF, limits, log), nil
}

// ftpPassword returns the configured password, asking on the terminal when
// none is set. Anonymous logins without a terminal get an empty password.
func ftpPassword(cfg FTPConfig) ([]byte, error) {
	if cfg.Password != "" {
		return []byte(cfg.Password), nil
	}
	password, err := askPassword(fmt.Sprintf("Password for %s@%s: ", cfg.User, cfg.Host))
	if errors.Is(err, errNotTerminal) {
		return []byte{}, nil
	}
	return password, err
}
