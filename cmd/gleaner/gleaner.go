// Package gleanercmder
package gleanercmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/gleanerhq/gleaner/cmd/gleaner/config"
	servecmder "github.com/gleanerhq/gleaner/cmd/gleaner/serve"
	statuscmder "github.com/gleanerhq/gleaner/cmd/gleaner/status"
	versioncmder "github.com/gleanerhq/gleaner/cmd/version"
)

const gleanerLongDesc string = `Gleaner harvests significant conversation moments from your agents.

It watches completed turns, queues the significant ones as candidates, and
periodically distills them into implications, growth vectors, and knowledge
gaps.

Run services using:
  gleaner serve          Run the API server and processing cycle
  gleaner status         Show per-agent harvesting state
  gleaner config list    Show persistent configuration`

const gleanerShortDesc string = "Gleaner - conversation harvesting for agents"

func NewGleanerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gleaner",
		Short: gleanerShortDesc,
		Long:  gleanerLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .gleaner/ directory location")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
