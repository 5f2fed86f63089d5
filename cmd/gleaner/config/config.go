// Package configcmder provides the config command for managing persistent
// gleaner configuration stored in the .gleaner/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent gleaner configuration.

Configuration is stored as config.toml in the .gleaner/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  admission.entropy_minimum, admission.exchange_minimum,
  admission.explicit_markers, admission.cooldown_minutes,
  queue.data_dir, queue.max_pending, queue.retention_days,
  extract.provider, extract.model, extract.target, extract.temperature,
  extract.max_tokens, extract.timeout_ms, extract.min_count,
  extract.max_count, extract.min_length, extract.filter_patterns,
  scheduler.batch_size, cycle.interval_seconds,
  sinks.vector_path, sinks.write_vectors, sinks.emit_gaps,
  sinks.kafka_brokers, sinks.kafka_topic,
  api.listen, api.target

Use subcommands to get, set, or list configuration values:
  gleaner config set <key> <value>    Set a configuration value
  gleaner config get <key>            Get a configuration value
  gleaner config list                 List all configuration values

Examples:
  gleaner config set extract.provider anthropic
  gleaner config set admission.entropy_minimum 0.6
  gleaner config get extract.model
  gleaner config list`

const configShortDesc string = "Manage persistent gleaner configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
