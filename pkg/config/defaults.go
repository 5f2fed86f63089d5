package config

const (
	defaultEntropyMinimum  = 0.7
	defaultExchangeMinimum = 10
	defaultCooldownMinutes = 30

	defaultMaxPending    = 100
	defaultRetentionDays = 30

	defaultProvider    = "ollama"
	defaultModel       = "llama3.2"
	defaultTarget      = "http://localhost:11434"
	defaultTemperature = 0.3
	defaultMaxTokens   = 1024
	defaultTimeoutMs   = 30000
	defaultMinCount    = 1
	defaultMaxCount    = 5
	defaultMinLength   = 20

	defaultBatchSize     = 5
	defaultCycleInterval = 300

	defaultKafkaTopic = "gleaner.gaps"

	defaultAPIListen       = ":8090"
	defaultClientAPITarget = "http://localhost:8090"
)

// defaultExplicitMarkers lists the phrases that force admission regardless of
// the significance score.
func defaultExplicitMarkers() []string {
	return []string{"remember this", "take note", "important:"}
}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Admission: AdmissionConfig{
			EntropyMinimum:  defaultEntropyMinimum,
			ExchangeMinimum: defaultExchangeMinimum,
			ExplicitMarkers: defaultExplicitMarkers(),
			CooldownMinutes: defaultCooldownMinutes,
		},
		Queue: QueueConfig{
			MaxPending:    defaultMaxPending,
			RetentionDays: defaultRetentionDays,
		},
		Extract: ExtractConfig{
			Provider:    defaultProvider,
			Model:       defaultModel,
			Target:      defaultTarget,
			Temperature: defaultTemperature,
			MaxTokens:   defaultMaxTokens,
			TimeoutMs:   defaultTimeoutMs,
			MinCount:    defaultMinCount,
			MaxCount:    defaultMaxCount,
			MinLength:   defaultMinLength,
		},
		Scheduler: SchedulerConfig{
			BatchSize: defaultBatchSize,
		},
		Cycle: CycleConfig{
			IntervalSeconds: defaultCycleInterval,
		},
		Sinks: SinksConfig{
			WriteVectors: true,
			EmitGaps:     true,
			KafkaTopic:   defaultKafkaTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
			Target: defaultClientAPITarget,
		},
	}
}
