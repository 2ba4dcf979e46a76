package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/famish99/deckd/internal/backends"
	"github.com/famish99/deckd/internal/engine"
	"github.com/famish99/deckd/internal/mediasession"
)

// Config represents the application configuration
type Config struct {
	Log LogConfig `yaml:"log"`

	// Cache settings
	Cache CacheConfig `yaml:"cache"`

	// Playback settings
	Playback PlaybackConfig `yaml:"playback"`

	// Engine and media session intervals
	Timings TimingsConfig `yaml:"timings"`

	// Control surfaces
	MPD   MPDConfig   `yaml:"mpd"`
	MPRIS MPRISConfig `yaml:"mpris"`
}

// LogConfig represents logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// CacheConfig represents cache settings
type CacheConfig struct {
	Directory string `yaml:"directory"`
	MaxSizeGB int    `yaml:"max_size_gb"`
}

// PlaybackConfig represents playback settings
type PlaybackConfig struct {
	CrossfadeSeconds     float64 `yaml:"crossfade_seconds"`      // Near-end crossfade, 0 = hard cuts
	SkipCrossfadeSeconds float64 `yaml:"skip_crossfade_seconds"` // Crossfade for next/previous while playing
	SampleRate           int     `yaml:"sample_rate"`
	SilenceSource        string  `yaml:"silence_source"`
}

// TimingsConfig centralizes every fixed interval used by the playback core
type TimingsConfig struct {
	TickInterval     time.Duration `yaml:"tick_interval"`
	ReadyTimeout     time.Duration `yaml:"ready_timeout"`
	SafetyMargin     time.Duration `yaml:"safety_margin"`
	LateProgress     time.Duration `yaml:"late_progress"`
	Debounce         time.Duration `yaml:"debounce"`
	Cooldown         time.Duration `yaml:"cooldown"`
	GlitchWindow     time.Duration `yaml:"glitch_window"`
	PositionInterval time.Duration `yaml:"position_interval"`
	NavResumeDelay   time.Duration `yaml:"nav_resume_delay"`
	MonitorInterval  time.Duration `yaml:"monitor_interval"`
}

// MPDConfig represents the MPD protocol server settings
type MPDConfig struct {
	Address string `yaml:"address"`
}

// MPRISConfig represents the D-Bus media player settings
type MPRISConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Cache: CacheConfig{
			Directory: "/tmp/deckd-cache",
			MaxSizeGB: 10,
		},
		Playback: PlaybackConfig{
			CrossfadeSeconds:     6,
			SkipCrossfadeSeconds: 2,
			SampleRate:           44100,
			SilenceSource:        backends.SilenceSource,
		},
		Timings: DefaultTimings(),
		MPD:     MPDConfig{Address: "localhost:6600"},
		MPRIS:   MPRISConfig{Enabled: true, Name: "deckd"},
	}
}

// DefaultTimings returns the standard intervals
func DefaultTimings() TimingsConfig {
	e := engine.DefaultTimings()
	m := mediasession.DefaultTimings()
	return TimingsConfig{
		TickInterval:     e.Tick,
		ReadyTimeout:     e.ReadyTimeout,
		SafetyMargin:     e.SafetyMargin,
		LateProgress:     e.LateProgress,
		Debounce:         m.Debounce,
		Cooldown:         m.Cooldown,
		GlitchWindow:     m.GlitchWindow,
		PositionInterval: m.PositionInterval,
		NavResumeDelay:   m.NavResumeDelay,
		MonitorInterval:  500 * time.Millisecond,
	}
}

// LoadConfig loads configuration from file. A missing file yields the
// defaults; fields left out of the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves configuration to file
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the player cannot run with
func (c *Config) Validate() error {
	if c.Playback.CrossfadeSeconds < 0 {
		return fmt.Errorf("playback.crossfade_seconds must not be negative")
	}
	if c.Playback.SkipCrossfadeSeconds < 0 {
		return fmt.Errorf("playback.skip_crossfade_seconds must not be negative")
	}
	if c.Playback.SampleRate <= 0 {
		return fmt.Errorf("playback.sample_rate must be positive")
	}
	return nil
}

// fillDefaults replaces zero intervals with defaults so a partial timings
// block can't disable a timer.
func (c *Config) fillDefaults() {
	d := DefaultTimings()
	t := &c.Timings
	for _, f := range []struct {
		v   *time.Duration
		def time.Duration
	}{
		{&t.TickInterval, d.TickInterval},
		{&t.ReadyTimeout, d.ReadyTimeout},
		{&t.SafetyMargin, d.SafetyMargin},
		{&t.LateProgress, d.LateProgress},
		{&t.Debounce, d.Debounce},
		{&t.Cooldown, d.Cooldown},
		{&t.GlitchWindow, d.GlitchWindow},
		{&t.PositionInterval, d.PositionInterval},
		{&t.NavResumeDelay, d.NavResumeDelay},
		{&t.MonitorInterval, d.MonitorInterval},
	} {
		if *f.v <= 0 {
			*f.v = f.def
		}
	}
	if c.Playback.SilenceSource == "" {
		c.Playback.SilenceSource = backends.SilenceSource
	}
	if c.MPRIS.Name == "" {
		c.MPRIS.Name = "deckd"
	}
}

// EngineTimings returns the crossfade controller intervals
func (c *Config) EngineTimings() engine.Timings {
	return engine.Timings{
		Tick:         c.Timings.TickInterval,
		ReadyTimeout: c.Timings.ReadyTimeout,
		SafetyMargin: c.Timings.SafetyMargin,
		LateProgress: c.Timings.LateProgress,
	}
}

// SessionTimings returns the media session intervals
func (c *Config) SessionTimings() mediasession.Timings {
	return mediasession.Timings{
		Debounce:         c.Timings.Debounce,
		Cooldown:         c.Timings.Cooldown,
		GlitchWindow:     c.Timings.GlitchWindow,
		PositionInterval: c.Timings.PositionInterval,
		NavResumeDelay:   c.Timings.NavResumeDelay,
	}
}

// CrossfadeDuration returns the near-end crossfade length
func (c *Config) CrossfadeDuration() time.Duration {
	return seconds(c.Playback.CrossfadeSeconds)
}

// SkipCrossfadeDuration returns the next/previous crossfade length
func (c *Config) SkipCrossfadeDuration() time.Duration {
	return seconds(c.Playback.SkipCrossfadeSeconds)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
