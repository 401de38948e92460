package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/warroom/adapter"
	"github.com/pithecene-io/warroom/adapter/redis"
	"github.com/pithecene-io/warroom/adapter/webhook"
	"github.com/pithecene-io/warroom/archive"
	"github.com/pithecene-io/warroom/backend"
	"github.com/pithecene-io/warroom/cli/config"
	"github.com/pithecene-io/warroom/iox"
	"github.com/pithecene-io/warroom/metrics"
	"github.com/pithecene-io/warroom/transport"
)

// loadConfig reads the config file and applies the connection flags on
// top of it. Config errors exit with exitError.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadOptional(c.String(ConfigFlag.Name))
	if err != nil {
		return nil, cli.Exit(err.Error(), exitError)
	}
	if c.IsSet(BackendFlag.Name) {
		cfg.Backend.URL = c.String(BackendFlag.Name)
	}
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = DefaultBackendURL
	}
	if c.IsSet(TimeoutFlag.Name) {
		cfg.Backend.Timeout = config.Duration{Duration: c.Duration(TimeoutFlag.Name)}
	}
	return cfg, nil
}

// connection is everything needed to reach one backend.
type connection struct {
	backend *backend.Client
	// dialer performs the duplex handshake with the same TLS and headers.
	dialer *transport.WebSocketDialer
}

func newConnection(cfg config.BackendConfig) (*connection, error) {
	bcfg := backend.Config{
		BaseURL: cfg.URL,
		WSPath:  cfg.WSPath,
		Headers: cfg.Headers,
		Timeout: cfg.Timeout.Duration,
	}
	dialer := &transport.WebSocketDialer{Header: make(http.Header)}
	for k, v := range cfg.Headers {
		dialer.Header.Set(k, v)
	}

	files := backend.TLSFiles{
		CertFile: cfg.TLS.CertFile,
		KeyFile:  cfg.TLS.KeyFile,
		CAFile:   cfg.TLS.CAFile,
	}
	if files.Enabled() {
		tlsConfig, err := backend.LoadTLSConfig(files)
		if err != nil {
			return nil, err
		}
		bcfg.HTTPClient = backend.BuildHTTP2Client(tlsConfig, cfg.Timeout.Duration)
		dialer.HTTPClient = backend.BuildHandshakeClient(tlsConfig)
	}

	bc, err := backend.New(bcfg)
	if err != nil {
		return nil, err
	}
	return &connection{backend: bc, dialer: dialer}, nil
}

// withBackend runs fn against a backend built from the command's flags and
// config, mapping failures to exit codes.
func withBackend(c *cli.Context, fn func(ctx context.Context, bc *backend.Client) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	conn, err := newConnection(cfg.Backend)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	defer iox.DiscardClose(conn.backend)

	return exitErr(fn(c.Context, conn.backend))
}

// newAdapter builds the configured notification adapter, or nil when none
// is configured.
func newAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := adapter.DefaultRetries
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	switch cfg.Type {
	case "":
		return nil, nil
	case config.AdapterWebhook:
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
			Backoff: adapter.DefaultBackoff,
		})
	case config.AdapterRedis:
		return redis.New(redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
			Backoff: adapter.DefaultBackoff,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", cfg.Type)
	}
}

// newArchive opens the configured archive, or returns nil when archiving
// is disabled.
func newArchive(ctx context.Context, cfg config.ArchiveConfig, sessionID string, m *metrics.Collector) (*archive.Archive, error) {
	acfg := archive.Config{Dataset: cfg.Dataset, SessionID: sessionID}

	switch cfg.Backend {
	case "":
		return nil, nil
	case config.ArchiveFS:
		return archive.NewFS(acfg, cfg.Path, m)
	case config.ArchiveS3:
		bucket, prefix := archive.ParseS3Path(cfg.Path)
		return archive.NewS3(ctx, acfg, archive.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		}, m)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

// backoff applies the reconnect section over the defaults.
func backoff(cfg config.ReconnectConfig) transport.Backoff {
	b := transport.DefaultBackoff()
	if cfg.BaseDelay.Duration > 0 {
		b.BaseDelay = cfg.BaseDelay.Duration
	}
	if cfg.MaxAttempts != nil {
		b.MaxAttempts = *cfg.MaxAttempts
	}
	return b
}

// pingInterval returns the configured keepalive period, zero for the
// client default.
func pingInterval(cfg config.KeepaliveConfig) time.Duration {
	return cfg.Interval.Duration
}
