package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/gleanerhq/gleaner/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the GLEANER_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (GLEANER_API_LISTEN, GLEANER_EXTRACT_MODEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: GLEANER_QUEUE_DATA_DIR, GLEANER_SINKS_EMIT_GAPS, etc.
	v.SetEnvPrefix("GLEANER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Admission
	v.SetDefault("admission.entropy_minimum", d.Admission.EntropyMinimum)
	v.SetDefault("admission.exchange_minimum", d.Admission.ExchangeMinimum)
	v.SetDefault("admission.explicit_markers", d.Admission.ExplicitMarkers)
	v.SetDefault("admission.cooldown_minutes", d.Admission.CooldownMinutes)

	// Queue
	v.SetDefault("queue.data_dir", d.Queue.DataDir)
	v.SetDefault("queue.max_pending", d.Queue.MaxPending)
	v.SetDefault("queue.retention_days", d.Queue.RetentionDays)

	// Extract
	v.SetDefault("extract.provider", d.Extract.Provider)
	v.SetDefault("extract.model", d.Extract.Model)
	v.SetDefault("extract.target", d.Extract.Target)
	v.SetDefault("extract.temperature", d.Extract.Temperature)
	v.SetDefault("extract.max_tokens", d.Extract.MaxTokens)
	v.SetDefault("extract.timeout_ms", d.Extract.TimeoutMs)
	v.SetDefault("extract.min_count", d.Extract.MinCount)
	v.SetDefault("extract.max_count", d.Extract.MaxCount)
	v.SetDefault("extract.min_length", d.Extract.MinLength)
	v.SetDefault("extract.filter_patterns", d.Extract.FilterPatterns)

	// Scheduler / cycle
	v.SetDefault("scheduler.batch_size", d.Scheduler.BatchSize)
	v.SetDefault("cycle.interval_seconds", d.Cycle.IntervalSeconds)

	// Sinks
	v.SetDefault("sinks.vector_path", d.Sinks.VectorPath)
	v.SetDefault("sinks.write_vectors", d.Sinks.WriteVectors)
	v.SetDefault("sinks.emit_gaps", d.Sinks.EmitGaps)
	v.SetDefault("sinks.kafka_brokers", d.Sinks.KafkaBrokers)
	v.SetDefault("sinks.kafka_topic", d.Sinks.KafkaTopic)

	// API
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("api.target", d.API.Target)
}
