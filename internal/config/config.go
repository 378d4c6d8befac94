// Package config holds the daemon's tunables and reads them from files.
package config

import (
	"fmt"
	"time"
)

// Duration is a time.Duration written as "5s" in config files.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// Config holds runtime parameters for the daemon. Zero values mean
// "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	Store     string `json:"store" yaml:"store" toml:"store"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	GenerateTimeout Duration `json:"generate_timeout" yaml:"generate_timeout" toml:"generate_timeout"`

	Model   ModelConfig   `json:"model" yaml:"model" toml:"model"`
	Extract ExtractConfig `json:"extract" yaml:"extract" toml:"extract"`
	Agent   AgentConfig   `json:"agent" yaml:"agent" toml:"agent"`
	Themes  ThemesConfig  `json:"themes" yaml:"themes" toml:"themes"`
	HTTP    HTTPConfig    `json:"http" yaml:"http" toml:"http"`
}

// ModelConfig selects and tunes the on-device model.
type ModelConfig struct {
	// Path is a .gguf file or a directory holding one.
	Path          string   `json:"path" yaml:"path" toml:"path"`
	Name          string   `json:"name" yaml:"name" toml:"name"`
	CtxSize       int      `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads       int      `json:"threads" yaml:"threads" toml:"threads"`
	Temperature   float32  `json:"temperature" yaml:"temperature" toml:"temperature"`
	MaxTokens     int      `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	MaxQueueDepth int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWait       Duration `json:"max_wait" yaml:"max_wait" toml:"max_wait"`
	DrainTimeout  Duration `json:"drain_timeout" yaml:"drain_timeout" toml:"drain_timeout"`
	ProbeThrottle Duration `json:"probe_throttle" yaml:"probe_throttle" toml:"probe_throttle"`
	PollInterval  Duration `json:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`
}

// ExtractConfig is the extraction retry policy.
type ExtractConfig struct {
	MaxAttempts    int      `json:"max_attempts" yaml:"max_attempts" toml:"max_attempts"`
	BackoffUnit    Duration `json:"backoff_unit" yaml:"backoff_unit" toml:"backoff_unit"`
	TimeoutBase    Duration `json:"timeout_base" yaml:"timeout_base" toml:"timeout_base"`
	TimeoutStep    Duration `json:"timeout_step" yaml:"timeout_step" toml:"timeout_step"`
	TimeoutCeiling Duration `json:"timeout_ceiling" yaml:"timeout_ceiling" toml:"timeout_ceiling"`
	WatchdogSlack  Duration `json:"watchdog_slack" yaml:"watchdog_slack" toml:"watchdog_slack"`
}

// AgentConfig tunes the polling bridge.
type AgentConfig struct {
	MaxPending int      `json:"max_pending" yaml:"max_pending" toml:"max_pending"`
	LiveWindow Duration `json:"live_window" yaml:"live_window" toml:"live_window"`
	InjectWait Duration `json:"inject_wait" yaml:"inject_wait" toml:"inject_wait"`
	MaxPoll    Duration `json:"max_poll" yaml:"max_poll" toml:"max_poll"`
}

// ThemesConfig points at the base theme registry.
type ThemesConfig struct {
	RegistryURL string   `json:"registry_url" yaml:"registry_url" toml:"registry_url"`
	TTL         Duration `json:"ttl" yaml:"ttl" toml:"ttl"`
}

// HTTPConfig tunes the API server.
type HTTPConfig struct {
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	// MessageTimeout bounds one /v1/messages call; zero leaves it unbounded.
	MessageTimeout Duration `json:"message_timeout" yaml:"message_timeout" toml:"message_timeout"`
	// MaxEventStreams caps open /v1/events connections.
	MaxEventStreams int        `json:"max_event_streams" yaml:"max_event_streams" toml:"max_event_streams"`
	CORS            CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
}

// CORSConfig is opt-in; the browser shim runs on an extension origin.
type CORSConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:            "127.0.0.1:8790",
		Store:           "sqlite:~/.sitecnd/sitecnd.db",
		LogLevel:        "info",
		LogFormat:       "json",
		GenerateTimeout: Duration(2 * time.Minute),
		Agent: AgentConfig{
			MaxPoll: Duration(25 * time.Second),
		},
		Themes: ThemesConfig{
			RegistryURL: "https://tweakcn.com/r/registry.json",
			TTL:         Duration(24 * time.Hour),
		},
		HTTP: HTTPConfig{
			MaxBodyBytes:    1 << 20,
			MessageTimeout:  Duration(30 * time.Second),
			MaxEventStreams: 32,
			CORS: CORSConfig{
				Methods: []string{"GET", "POST", "OPTIONS"},
				Headers: []string{"Content-Type", "X-Log-Level"},
			},
		},
	}
}

// ApplyDefaults fills zero fields from Default. Nested retry and model
// tunables stay zero; their packages apply their own defaults.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.Store == "" {
		c.Store = d.Store
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = d.GenerateTimeout
	}
	if c.Agent.MaxPoll <= 0 {
		c.Agent.MaxPoll = d.Agent.MaxPoll
	}
	if c.Themes.RegistryURL == "" {
		c.Themes.RegistryURL = d.Themes.RegistryURL
	}
	if c.Themes.TTL <= 0 {
		c.Themes.TTL = d.Themes.TTL
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = d.HTTP.MaxBodyBytes
	}
	if c.HTTP.MessageTimeout < 0 {
		c.HTTP.MessageTimeout = 0
	}
	if c.HTTP.MaxEventStreams <= 0 {
		c.HTTP.MaxEventStreams = d.HTTP.MaxEventStreams
	}
	if len(c.HTTP.CORS.Methods) == 0 {
		c.HTTP.CORS.Methods = d.HTTP.CORS.Methods
	}
	if len(c.HTTP.CORS.Headers) == 0 {
		c.HTTP.CORS.Headers = d.HTTP.CORS.Headers
	}
}
