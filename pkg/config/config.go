package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/gleanerhq/gleaner/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .gleaner/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Always set targetPath when the directory exists so SaveConfig
	// can create or overwrite the file.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the supported configuration key names in a stable,
// logical order matching the TOML section layout.
func ValidConfigKeys() []string {
	ordered := []string{
		"admission.entropy_minimum",
		"admission.exchange_minimum",
		"admission.explicit_markers",
		"admission.cooldown_minutes",
		"queue.data_dir",
		"queue.max_pending",
		"queue.retention_days",
		"extract.provider",
		"extract.model",
		"extract.target",
		"extract.temperature",
		"extract.max_tokens",
		"extract.timeout_ms",
		"extract.min_count",
		"extract.max_count",
		"extract.min_length",
		"extract.filter_patterns",
		"scheduler.batch_size",
		"cycle.interval_seconds",
		"sinks.vector_path",
		"sinks.write_vectors",
		"sinks.emit_gaps",
		"sinks.kafka_brokers",
		"sinks.kafka_topic",
		"api.listen",
		"api.target",
	}

	// Sanity: only return keys that actually exist in the map.
	result := make([]string, 0, len(ordered))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	seen := make(map[string]bool, len(result))
	for _, k := range result {
		seen[k] = true
	}
	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target .gleaner/
// directory. If the file does not exist, returns NewDefaultConfig() so callers
// always receive a fully-populated Config with sane defaults. Fields
// explicitly set in the file override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	// Merge in defaults: fill in any zero-value fields from the loaded config
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Admission.EntropyMinimum == 0 {
		cfg.Admission.EntropyMinimum = defaults.Admission.EntropyMinimum
	}
	if cfg.Admission.ExchangeMinimum == 0 {
		cfg.Admission.ExchangeMinimum = defaults.Admission.ExchangeMinimum
	}
	if cfg.Admission.ExplicitMarkers == nil {
		cfg.Admission.ExplicitMarkers = defaults.Admission.ExplicitMarkers
	}
	if cfg.Admission.CooldownMinutes == 0 {
		cfg.Admission.CooldownMinutes = defaults.Admission.CooldownMinutes
	}

	if cfg.Queue.MaxPending == 0 {
		cfg.Queue.MaxPending = defaults.Queue.MaxPending
	}
	if cfg.Queue.RetentionDays == 0 {
		cfg.Queue.RetentionDays = defaults.Queue.RetentionDays
	}

	if cfg.Extract.Provider == "" {
		cfg.Extract.Provider = defaults.Extract.Provider
	}
	if cfg.Extract.Model == "" {
		cfg.Extract.Model = defaults.Extract.Model
	}
	if cfg.Extract.Target == "" {
		cfg.Extract.Target = defaults.Extract.Target
	}
	if cfg.Extract.Temperature == 0 {
		cfg.Extract.Temperature = defaults.Extract.Temperature
	}
	if cfg.Extract.MaxTokens == 0 {
		cfg.Extract.MaxTokens = defaults.Extract.MaxTokens
	}
	if cfg.Extract.TimeoutMs == 0 {
		cfg.Extract.TimeoutMs = defaults.Extract.TimeoutMs
	}
	if cfg.Extract.MinCount == 0 {
		cfg.Extract.MinCount = defaults.Extract.MinCount
	}
	if cfg.Extract.MaxCount == 0 {
		cfg.Extract.MaxCount = defaults.Extract.MaxCount
	}
	if cfg.Extract.MinLength == 0 {
		cfg.Extract.MinLength = defaults.Extract.MinLength
	}

	if cfg.Scheduler.BatchSize == 0 {
		cfg.Scheduler.BatchSize = defaults.Scheduler.BatchSize
	}
	if cfg.Cycle.IntervalSeconds == 0 {
		cfg.Cycle.IntervalSeconds = defaults.Cycle.IntervalSeconds
	}

	if cfg.Sinks.KafkaTopic == "" {
		cfg.Sinks.KafkaTopic = defaults.Sinks.KafkaTopic
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}
	if cfg.API.Target == "" {
		cfg.API.Target = defaults.API.Target
	}
}

// SaveConfig persists the configuration to config.toml in the target .gleaner/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
