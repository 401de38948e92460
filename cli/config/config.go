package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/warroom/types"
)

// Config represents a warroom.yaml file. Every value is optional and acts
// as a default for the matching CLI flag; flags always win.
type Config struct {
	Backend   BackendConfig       `yaml:"backend"`
	Reconnect ReconnectConfig     `yaml:"reconnect"`
	Keepalive KeepaliveConfig     `yaml:"keepalive"`
	Roster    []types.AgentRecord `yaml:"roster"`
	Adapter   AdapterConfig       `yaml:"adapter"`
	Archive   ArchiveConfig       `yaml:"archive"`
	Capture   CaptureConfig       `yaml:"capture"`
	Log       LogConfig           `yaml:"log"`
}

// BackendConfig locates the backend.
type BackendConfig struct {
	URL     string            `yaml:"url"`
	WSPath  string            `yaml:"ws_path"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	TLS     TLSConfig         `yaml:"tls"`
}

// TLSConfig enables mutual TLS when cert and key are both set.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
}

// ReconnectConfig overrides the reconnect schedule.
type ReconnectConfig struct {
	BaseDelay   Duration `yaml:"base_delay,omitempty"`
	MaxAttempts *int     `yaml:"max_attempts,omitempty"`
}

// KeepaliveConfig overrides the ping period.
type KeepaliveConfig struct {
	Interval Duration `yaml:"interval,omitempty"`
}

// AdapterConfig selects a notification adapter.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// ArchiveConfig selects where reconciled changes are archived.
type ArchiveConfig struct {
	Dataset string `yaml:"dataset"`
	// Backend is fs or s3. Empty disables archiving.
	Backend string `yaml:"backend"`
	// Path is a directory for fs, bucket[/prefix] for s3.
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// CaptureConfig enables raw frame capture.
type CaptureConfig struct {
	// Path is the capture file. A .zst suffix enables compression.
	Path string `yaml:"path"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Adapter types.
const (
	AdapterWebhook = "webhook"
	AdapterRedis   = "redis"
)

// Archive backends.
const (
	ArchiveFS = "fs"
	ArchiveS3 = "s3"
)

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML writes the duration back in its string form.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.Duration.String(), nil
}

// Validate rejects values that would be accepted by YAML but cannot be
// used. Zero values mean "use the default" and are always valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Backend.Timeout.Duration < 0 {
		errs = append(errs, errors.New("backend.timeout must be positive"))
	}
	if (c.Backend.TLS.CertFile == "") != (c.Backend.TLS.KeyFile == "") {
		errs = append(errs, errors.New("backend.tls requires both cert_file and key_file"))
	}
	if c.Reconnect.BaseDelay.Duration < 0 {
		errs = append(errs, errors.New("reconnect.base_delay must be positive"))
	}
	if c.Reconnect.MaxAttempts != nil && *c.Reconnect.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("reconnect.max_attempts must be > 0, got %d", *c.Reconnect.MaxAttempts))
	}
	if c.Keepalive.Interval.Duration < 0 {
		errs = append(errs, errors.New("keepalive.interval must be positive"))
	}

	seen := make(map[string]bool, len(c.Roster))
	for i, a := range c.Roster {
		switch {
		case a.Name == "":
			errs = append(errs, fmt.Errorf("roster[%d]: name is required", i))
		case seen[a.Name]:
			errs = append(errs, fmt.Errorf("roster[%d]: duplicate agent %q", i, a.Name))
		}
		seen[a.Name] = true
		if a.Status != "" && !a.Status.Valid() {
			errs = append(errs, fmt.Errorf("roster[%d]: unknown status %q", i, a.Status))
		}
	}

	switch c.Adapter.Type {
	case "":
	case AdapterWebhook, AdapterRedis:
		if c.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url is required for %s", c.Adapter.Type))
		}
		if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
			errs = append(errs, fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown adapter.type %q (want webhook or redis)", c.Adapter.Type))
	}

	switch c.Archive.Backend {
	case "":
	case ArchiveFS, ArchiveS3:
		if c.Archive.Path == "" {
			errs = append(errs, fmt.Errorf("archive.path is required for %s", c.Archive.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown archive.backend %q (want fs or s3)", c.Archive.Backend))
	}

	return errors.Join(errs...)
}

// RosterOrDefault returns the configured roster with empty statuses set to
// stable.
func (c *Config) RosterOrDefault() []types.AgentRecord {
	out := make([]types.AgentRecord, len(c.Roster))
	for i, a := range c.Roster {
		if a.Status == "" {
			a.Status = types.AgentStable
		}
		out[i] = a
	}
	return out
}
