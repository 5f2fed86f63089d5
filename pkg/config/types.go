package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent gleaner configuration stored as
// config.toml in the .gleaner/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Admission AdmissionConfig `toml:"admission"`
	Queue     QueueConfig     `toml:"queue"`
	Extract   ExtractConfig   `toml:"extract"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Cycle     CycleConfig     `toml:"cycle"`
	Sinks     SinksConfig     `toml:"sinks"`
	API       APIConfig       `toml:"api"`
}

// AdmissionConfig holds fast-path admission policy.
type AdmissionConfig struct {
	EntropyMinimum  float64  `toml:"entropy_minimum,omitempty"`
	ExchangeMinimum int      `toml:"exchange_minimum,omitempty"`
	ExplicitMarkers []string `toml:"explicit_markers,omitempty"`
	CooldownMinutes int      `toml:"cooldown_minutes,omitempty"`
}

// QueueConfig holds candidate queue settings. An empty DataDir resolves to
// candidates/ under the .gleaner directory at startup.
type QueueConfig struct {
	DataDir       string `toml:"data_dir,omitempty"`
	MaxPending    int    `toml:"max_pending,omitempty"`
	RetentionDays int    `toml:"retention_days,omitempty"`
}

// ExtractConfig holds generation-service and response-filtering settings.
type ExtractConfig struct {
	Provider       string   `toml:"provider,omitempty"`
	Model          string   `toml:"model,omitempty"`
	Target         string   `toml:"target,omitempty"`
	Temperature    float64  `toml:"temperature,omitempty"`
	MaxTokens      int      `toml:"max_tokens,omitempty"`
	TimeoutMs      int      `toml:"timeout_ms,omitempty"`
	MinCount       int      `toml:"min_count,omitempty"`
	MaxCount       int      `toml:"max_count,omitempty"`
	MinLength      int      `toml:"min_length,omitempty"`
	FilterPatterns []string `toml:"filter_patterns,omitempty"`
}

// SchedulerConfig holds slow-path scheduling settings.
type SchedulerConfig struct {
	BatchSize int `toml:"batch_size,omitempty"`
}

// CycleConfig holds the periodic processing signal settings.
type CycleConfig struct {
	IntervalSeconds int `toml:"interval_seconds,omitempty"`
}

// SinksConfig holds fan-out settings for the two external sinks.
type SinksConfig struct {
	VectorPath   string   `toml:"vector_path,omitempty"`
	WriteVectors bool     `toml:"write_vectors"`
	EmitGaps     bool     `toml:"emit_gaps"`
	KafkaBrokers []string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string   `toml:"kafka_topic,omitempty"`
}

// APIConfig holds API server settings and the client target used by CLI
// commands that connect to a running server.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
	Target string `toml:"target,omitempty"`
}

// configKeyInfo holds the getter and setter for one dotted config key.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func setInt(target *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("expected an integer, got %q", v)
	}
	*target = n
	return nil
}

func setFloat(target *float64, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("expected a number, got %q", v)
	}
	*target = f
	return nil
}

func setBool(target *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("expected a boolean, got %q", v)
	}
	*target = b
	return nil
}

// list keys are edited as comma-separated values on the command line
func setList(target *[]string, v string) error {
	if strings.TrimSpace(v) == "" {
		*target = nil
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	*target = out
	return nil
}

// configKeys is the authoritative map of all supported config keys.
var configKeys = map[string]configKeyInfo{
	"admission.entropy_minimum": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Admission.EntropyMinimum, 'f', -1, 64) },
		set: func(c *Config, v string) error { return setFloat(&c.Admission.EntropyMinimum, v) },
	},
	"admission.exchange_minimum": {
		get: func(c *Config) string { return strconv.Itoa(c.Admission.ExchangeMinimum) },
		set: func(c *Config, v string) error { return setInt(&c.Admission.ExchangeMinimum, v) },
	},
	"admission.explicit_markers": {
		get: func(c *Config) string { return strings.Join(c.Admission.ExplicitMarkers, ",") },
		set: func(c *Config, v string) error { return setList(&c.Admission.ExplicitMarkers, v) },
	},
	"admission.cooldown_minutes": {
		get: func(c *Config) string { return strconv.Itoa(c.Admission.CooldownMinutes) },
		set: func(c *Config, v string) error { return setInt(&c.Admission.CooldownMinutes, v) },
	},
	"queue.data_dir": {
		get: func(c *Config) string { return c.Queue.DataDir },
		set: func(c *Config, v string) error { c.Queue.DataDir = v; return nil },
	},
	"queue.max_pending": {
		get: func(c *Config) string { return strconv.Itoa(c.Queue.MaxPending) },
		set: func(c *Config, v string) error { return setInt(&c.Queue.MaxPending, v) },
	},
	"queue.retention_days": {
		get: func(c *Config) string { return strconv.Itoa(c.Queue.RetentionDays) },
		set: func(c *Config, v string) error { return setInt(&c.Queue.RetentionDays, v) },
	},
	"extract.provider": {
		get: func(c *Config) string { return c.Extract.Provider },
		set: func(c *Config, v string) error { c.Extract.Provider = v; return nil },
	},
	"extract.model": {
		get: func(c *Config) string { return c.Extract.Model },
		set: func(c *Config, v string) error { c.Extract.Model = v; return nil },
	},
	"extract.target": {
		get: func(c *Config) string { return c.Extract.Target },
		set: func(c *Config, v string) error { c.Extract.Target = v; return nil },
	},
	"extract.temperature": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Extract.Temperature, 'f', -1, 64) },
		set: func(c *Config, v string) error { return setFloat(&c.Extract.Temperature, v) },
	},
	"extract.max_tokens": {
		get: func(c *Config) string { return strconv.Itoa(c.Extract.MaxTokens) },
		set: func(c *Config, v string) error { return setInt(&c.Extract.MaxTokens, v) },
	},
	"extract.timeout_ms": {
		get: func(c *Config) string { return strconv.Itoa(c.Extract.TimeoutMs) },
		set: func(c *Config, v string) error { return setInt(&c.Extract.TimeoutMs, v) },
	},
	"extract.min_count": {
		get: func(c *Config) string { return strconv.Itoa(c.Extract.MinCount) },
		set: func(c *Config, v string) error { return setInt(&c.Extract.MinCount, v) },
	},
	"extract.max_count": {
		get: func(c *Config) string { return strconv.Itoa(c.Extract.MaxCount) },
		set: func(c *Config, v string) error { return setInt(&c.Extract.MaxCount, v) },
	},
	"extract.min_length": {
		get: func(c *Config) string { return strconv.Itoa(c.Extract.MinLength) },
		set: func(c *Config, v string) error { return setInt(&c.Extract.MinLength, v) },
	},
	"extract.filter_patterns": {
		get: func(c *Config) string { return strings.Join(c.Extract.FilterPatterns, ",") },
		set: func(c *Config, v string) error { return setList(&c.Extract.FilterPatterns, v) },
	},
	"scheduler.batch_size": {
		get: func(c *Config) string { return strconv.Itoa(c.Scheduler.BatchSize) },
		set: func(c *Config, v string) error { return setInt(&c.Scheduler.BatchSize, v) },
	},
	"cycle.interval_seconds": {
		get: func(c *Config) string { return strconv.Itoa(c.Cycle.IntervalSeconds) },
		set: func(c *Config, v string) error { return setInt(&c.Cycle.IntervalSeconds, v) },
	},
	"sinks.vector_path": {
		get: func(c *Config) string { return c.Sinks.VectorPath },
		set: func(c *Config, v string) error { c.Sinks.VectorPath = v; return nil },
	},
	"sinks.write_vectors": {
		get: func(c *Config) string { return strconv.FormatBool(c.Sinks.WriteVectors) },
		set: func(c *Config, v string) error { return setBool(&c.Sinks.WriteVectors, v) },
	},
	"sinks.emit_gaps": {
		get: func(c *Config) string { return strconv.FormatBool(c.Sinks.EmitGaps) },
		set: func(c *Config, v string) error { return setBool(&c.Sinks.EmitGaps, v) },
	},
	"sinks.kafka_brokers": {
		get: func(c *Config) string { return strings.Join(c.Sinks.KafkaBrokers, ",") },
		set: func(c *Config, v string) error { return setList(&c.Sinks.KafkaBrokers, v) },
	},
	"sinks.kafka_topic": {
		get: func(c *Config) string { return c.Sinks.KafkaTopic },
		set: func(c *Config, v string) error { c.Sinks.KafkaTopic = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"api.target": {
		get: func(c *Config) string { return c.API.Target },
		set: func(c *Config, v string) error { c.API.Target = v; return nil },
	},
}
