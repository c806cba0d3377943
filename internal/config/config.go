// Package config loads an optional YAML overlay on top of the core's
// struct defaults, the same load-then-validate shape the rest of the
// retrieval pack uses for its own configuration files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"minimart/pkg/marketdata"
)

// Config is the CLI's configuration schema. Every field mirrors an entry
// in the core's configuration table. Zero generator fields and a zero
// feed.ring_size fall back to the core's own defaults; a zero
// feed.consumer_yield_us selects a scheduler yield and a false
// feed.enable_statistics turns statistics off.
type Config struct {
	Generator struct {
		BasePrice            float64 `yaml:"base_price"`
		Volatility           float64 `yaml:"volatility"`
		SpreadBps            float64 `yaml:"spread_bps"`
		UpdateIntervalUs     int64   `yaml:"update_interval_us"`
		MinQuantity          uint64  `yaml:"min_quantity"`
		MaxQuantity          uint64  `yaml:"max_quantity"`
		MessagesPerBurst     int     `yaml:"messages_per_burst"`
		EnableActivitySpikes bool    `yaml:"enable_activity_spikes"`
		SpikeProbability     int     `yaml:"spike_probability"`
		SpikeMultiplier      int     `yaml:"spike_multiplier"`
		SpikeDurationUs      int64   `yaml:"spike_duration_us"`
	} `yaml:"generator"`

	Feed struct {
		RingSize         int   `yaml:"ring_size"`
		ConsumerYieldUs  int64 `yaml:"consumer_yield_us"`
		EnableStatistics bool  `yaml:"enable_statistics"`
	} `yaml:"feed"`

	Telemetry struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"telemetry"`
}

// Default returns a Config pre-populated with the core's own defaults,
// expressed in the overlay's units. LoadConfig starts from this so a
// YAML file only needs to name the fields it wants to override.
func Default() *Config {
	d := marketdata.DefaultGeneratorConfig()
	f := marketdata.DefaultFeedConfig()

	cfg := &Config{}
	cfg.Generator.BasePrice = d.BasePrice
	cfg.Generator.Volatility = d.Volatility
	cfg.Generator.SpreadBps = d.SpreadBps
	cfg.Generator.UpdateIntervalUs = d.UpdateInterval.Microseconds()
	cfg.Generator.MinQuantity = d.MinQuantity
	cfg.Generator.MaxQuantity = d.MaxQuantity
	cfg.Generator.MessagesPerBurst = d.MessagesPerBurst
	cfg.Generator.EnableActivitySpikes = d.EnableActivitySpikes
	cfg.Generator.SpikeProbability = d.SpikeProbability
	cfg.Generator.SpikeMultiplier = d.SpikeMultiplier
	cfg.Generator.SpikeDurationUs = d.SpikeDuration.Microseconds()

	cfg.Feed.RingSize = f.RingSize
	cfg.Feed.ConsumerYieldUs = f.ConsumerYield.Microseconds()
	cfg.Feed.EnableStatistics = f.EnableStatistics

	cfg.Telemetry.ListenAddr = ":9090"
	return cfg
}

// LoadConfig reads and parses the YAML file at path over Default(), then
// validates the result. Fields absent from the file keep their default.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects configuration values that would break the core's
// invariants (negative rates, out-of-range percentages). Fields left at
// zero are considered "use the default" and always pass.
func (c *Config) Validate() error {
	if c.Generator.Volatility < 0 {
		return fmt.Errorf("generator.volatility must be >= 0")
	}
	if c.Generator.SpreadBps < 0 {
		return fmt.Errorf("generator.spread_bps must be >= 0")
	}
	if c.Generator.MinQuantity > 0 && c.Generator.MaxQuantity > 0 && c.Generator.MinQuantity > c.Generator.MaxQuantity {
		return fmt.Errorf("generator.min_quantity must be <= generator.max_quantity")
	}
	if c.Generator.SpikeProbability < 0 || c.Generator.SpikeProbability > 100 {
		return fmt.Errorf("generator.spike_probability must be within [0, 100]")
	}
	if c.Feed.RingSize < 0 {
		return fmt.Errorf("feed.ring_size must be >= 0")
	}
	return nil
}

// GeneratorConfig builds a marketdata.GeneratorConfig from the overlay,
// leaving zero fields to marketdata's own defaults.
func (c *Config) GeneratorConfig() marketdata.GeneratorConfig {
	return marketdata.GeneratorConfig{
		BasePrice:            c.Generator.BasePrice,
		Volatility:           c.Generator.Volatility,
		SpreadBps:            c.Generator.SpreadBps,
		UpdateInterval:       time.Duration(c.Generator.UpdateIntervalUs) * time.Microsecond,
		MinQuantity:          c.Generator.MinQuantity,
		MaxQuantity:          c.Generator.MaxQuantity,
		MessagesPerBurst:     c.Generator.MessagesPerBurst,
		EnableActivitySpikes: c.Generator.EnableActivitySpikes,
		SpikeProbability:     c.Generator.SpikeProbability,
		SpikeMultiplier:      c.Generator.SpikeMultiplier,
		SpikeDuration:        time.Duration(c.Generator.SpikeDurationUs) * time.Microsecond,
	}
}

// FeedConfig builds a marketdata.FeedConfig from the overlay.
func (c *Config) FeedConfig() marketdata.FeedConfig {
	return marketdata.FeedConfig{
		RingSize:         c.Feed.RingSize,
		ConsumerYield:    time.Duration(c.Feed.ConsumerYieldUs) * time.Microsecond,
		EnableStatistics: c.Feed.EnableStatistics,
	}
}
