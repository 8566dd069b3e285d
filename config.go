package main

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

const (
	strategyDownload = "download"
	strategyDevice   = "device"
	strategyS3       = "s3"
)

type FTPConfig struct {
	Scheme         string
	Host           string
	Port           int
	User           string
	Password       string
	Root           string
	Timeout        time.Duration
	KnownHosts     string
	InsecureHost   bool
	ConnectRetries int
	ListRetries    int
	RetryDelay     time.Duration
}

// URL is the connector address. The password and root are kept out of it.
func (c FTPConfig) URL() *url.URL {
	u := &url.URL{
		Scheme: c.Scheme,
		Host:   c.Host,
	}
	if c.Port != 0 {
		u.Host = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	if c.User != "" {
		u.User = url.User(c.User)
	}
	return u
}

type DeviceConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Key           string
	VRF           string
	Dialect       string
	SuccessMarker string
	KnownHosts    string
	InsecureHost  bool
	PromptTimeout time.Duration
	CopyTimeout   time.Duration
	MaxLoops      int
}

func (c DeviceConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type LogConfig struct {
	Debug     bool
	File      string
	MaxSizeMB int
}

type Config struct {
	FTP          FTPConfig
	PollInterval time.Duration
	Strategy     string
	ChunkSize    int
	StorageDir   string
	Device       DeviceConfig
	S3           S3Config
	Log          LogConfig
	MetricsAddr  string
}

// envNames maps configuration keys to the environment variables that set
// them. The FTP_* and DEBUG names are the historical ones.
var envNames = map[string]string{
	"ftp.host":                 "FTP_IP",
	"ftp.user":                 "FTP_USER",
	"ftp.password":             "FTP_PASS",
	"ftp.poll":                 "FTP_POLL",
	"ftp.scheme":               "FTP_SCHEME",
	"ftp.port":                 "FTP_PORT",
	"ftp.root":                 "FTP_ROOT",
	"ftp.timeout":              "FTP_TIMEOUT",
	"ftp.known_hosts":          "FTP_KNOWN_HOSTS",
	"ftp.insecure_host_key":    "FTP_INSECURE_HOST_KEY",
	"ftp.connect_retries":      "FTP_CONNECT_RETRIES",
	"ftp.list_retries":         "FTP_LIST_RETRIES",
	"ftp.retry_delay":          "FTP_RETRY_DELAY",
	"debug":                    "DEBUG",
	"transfer.strategy":        "TRANSFER_STRATEGY",
	"transfer.chunk_size":      "TRANSFER_CHUNK_SIZE",
	"storage.dir":              "STORAGE_DIR",
	"device.host":              "DEVICE_HOST",
	"device.port":              "DEVICE_PORT",
	"device.user":              "DEVICE_USER",
	"device.password":          "DEVICE_PASSWORD",
	"device.key":               "DEVICE_KEY",
	"device.vrf":               "DEVICE_VRF",
	"device.dialect":           "DEVICE_DIALECT",
	"device.success_marker":    "DEVICE_SUCCESS_MARKER",
	"device.known_hosts":       "DEVICE_KNOWN_HOSTS",
	"device.insecure_host_key": "DEVICE_INSECURE_HOST_KEY",
	"device.prompt_timeout":    "DEVICE_PROMPT_TIMEOUT",
	"device.copy_timeout":      "DEVICE_COPY_TIMEOUT",
	"device.max_loops":         "DEVICE_MAX_LOOPS",
	"s3.endpoint":              "S3_ENDPOINT",
	"s3.bucket":                "S3_BUCKET",
	"s3.region":                "S3_REGION",
	"s3.access_key":            "S3_ACCESS_KEY",
	"s3.secret_key":            "S3_SECRET_KEY",
	"s3.prefix":                "S3_PREFIX",
	"log.file":                 "LOG_FILE",
	"log.max_size_mb":          "LOG_MAX_SIZE_MB",
	"metrics.addr":             "METRICS_ADDR",
}

// LoadConfig resolves configuration from the environment, on top of the
// YAML file at path when path is not empty.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("ftp.scheme", "ftp")
	v.SetDefault("ftp.root", "./")
	v.SetDefault("ftp.poll", 1)
	v.SetDefault("ftp.timeout", 30*time.Second)
	v.SetDefault("ftp.retry_delay", 5*time.Second)
	v.SetDefault("debug", false)
	v.SetDefault("transfer.strategy", strategyDownload)
	v.SetDefault("transfer.chunk_size", 1024)
	v.SetDefault("storage.dir", "/storage")
	v.SetDefault("device.port", defaultSSHPort)
	v.SetDefault("device.dialect", "ios")
	v.SetDefault("device.prompt_timeout", 30*time.Second)
	v.SetDefault("device.copy_timeout", 30*time.Minute)
	v.SetDefault("device.max_loops", 9000)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("log.file", "onlooker.log")
	v.SetDefault("log.max_size_mb", 10)

	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	scheme := strings.ToLower(v.GetString("ftp.scheme"))
	port := v.GetInt("ftp.port")
	if port == 0 {
		port = defaultFTPPort
		if scheme == "sftp" {
			port = defaultSSHPort
		}
	}

	cfg := &Config{
		FTP: FTPConfig{
			Scheme:         scheme,
			Host:           v.GetString("ftp.host"),
			Port:           port,
			User:           v.GetString("ftp.user"),
			Password:       v.GetString("ftp.password"),
			Root:           v.GetString("ftp.root"),
			Timeout:        v.GetDuration("ftp.timeout"),
			KnownHosts:     v.GetString("ftp.known_hosts"),
			InsecureHost:   v.GetBool("ftp.insecure_host_key"),
			ConnectRetries: v.GetInt("ftp.connect_retries"),
			ListRetries:    v.GetInt("ftp.list_retries"),
			RetryDelay:     v.GetDuration("ftp.retry_delay"),
		},
		PollInterval: time.Duration(v.GetInt("ftp.poll")) * time.Minute,
		Strategy:     strings.ToLower(v.GetString("transfer.strategy")),
		ChunkSize:    v.GetInt("transfer.chunk_size"),
		StorageDir:   v.GetString("storage.dir"),
		Device: DeviceConfig{
			Host:          v.GetString("device.host"),
			Port:          v.GetInt("device.port"),
			User:          v.GetString("device.user"),
			Password:      v.GetString("device.password"),
			Key:           v.GetString("device.key"),
			VRF:           v.GetString("device.vrf"),
			Dialect:       strings.ToLower(v.GetString("device.dialect")),
			SuccessMarker: v.GetString("device.success_marker"),
			KnownHosts:    v.GetString("device.known_hosts"),
			InsecureHost:  v.GetBool("device.insecure_host_key"),
			PromptTimeout: v.GetDuration("device.prompt_timeout"),
			CopyTimeout:   v.GetDuration("device.copy_timeout"),
			MaxLoops:      v.GetInt("device.max_loops"),
		},
		S3: S3Config{
			Endpoint:  v.GetString("s3.endpoint"),
			Bucket:    v.GetString("s3.bucket"),
			Region:    v.GetString("s3.region"),
			AccessKey: v.GetString("s3.access_key"),
			SecretKey: v.GetString("s3.secret_key"),
			Prefix:    v.GetString("s3.prefix"),
		},
		Log: LogConfig{
			Debug:     v.GetBool("debug"),
			File:      v.GetString("log.file"),
			MaxSizeMB: v.GetInt("log.max_size_mb"),
		},
		MetricsAddr: v.GetString("metrics.addr"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if c.FTP.Host == "" {
		add("FTP_IP is required")
	}
	if c.FTP.Scheme != "ftp" && c.FTP.Scheme != "sftp" {
		add("unsupported ftp.scheme %q", c.FTP.Scheme)
	}
	if c.PollInterval < time.Minute {
		add("FTP_POLL must be at least 1 minute")
	}
	if c.ChunkSize < 1 {
		add("transfer.chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.FTP.ConnectRetries < 0 || c.FTP.ListRetries < 0 {
		add("retry counts must not be negative")
	}

	switch c.Strategy {
	case strategyDownload:
		if c.StorageDir == "" {
			add("storage.dir is required for the download strategy")
		}
	case strategyDevice:
		if c.FTP.Scheme != "ftp" {
			add("the device strategy needs an ftp source, not %q", c.FTP.Scheme)
		}
		if c.Device.Host == "" {
			add("device.host is required for the device strategy")
		}
		if c.Device.User == "" {
			add("device.user is required for the device strategy")
		}
		if _, err := lookupDialect(c.Device.Dialect, ""); err != nil {
			result = multierror.Append(result, err)
		}
	case strategyS3:
		if c.S3.Bucket == "" {
			add("s3.bucket is required for the s3 strategy")
		}
	default:
		add("unknown transfer.strategy %q", c.Strategy)
	}

	return result.ErrorOrNil()
}
