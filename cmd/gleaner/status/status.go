// Package statuscmder provides the status command for displaying per-agent
// harvesting state from a running gleaner server.
package statuscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gleanerhq/gleaner/pkg/cliui"
	"github.com/gleanerhq/gleaner/pkg/config"
)

type statusCommander struct {
	agent string
	api   string
	limit int
}

// agentStatus mirrors the API's per-agent state snapshot for JSON deserialization.
type agentStatus struct {
	AgentID    string `json:"agent_id"`
	Pending    int    `json:"pending"`
	Processed  int    `json:"processed"`
	Busy       bool   `json:"busy"`
	Cooldowns  int    `json:"cooldowns"`
	VectorPath string `json:"vector_path"`
}

// candidateInfo mirrors the API's trimmed pending-candidate view.
type candidateInfo struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Score        float64   `json:"score"`
	MessageCount int       `json:"message_count"`
}

const statusLongDesc string = `Show per-agent harvesting state.

Queries a running gleaner server for an agent's queue counts, busy flag,
cooldown count, and pending candidates.

Examples:
  gleaner status --agent helper
  gleaner status --agent helper --limit 5
  gleaner status --agent helper --api-target http://remote:8090`

const statusShortDesc string = "Show per-agent harvesting state"

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmder.api == "" {
				configDir, _ := cmd.Flags().GetString("config-dir")
				cfger, err := config.NewConfiger(configDir)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				cmder.api, err = cfger.GetConfigValue("api.target")
				if err != nil {
					return err
				}
			}
			return cmder.run()
		},
	}

	cmd.Flags().StringVar(&cmder.agent, "agent", "", "Agent scope to inspect (required)")
	cmd.Flags().StringVarP(&cmder.api, "api-target", "a", "", "Gleaner API server URL (default from config)")
	cmd.Flags().IntVar(&cmder.limit, "limit", 10, "Maximum pending candidates to list")
	_ = cmd.MarkFlagRequired("agent")

	return cmd
}

func (c *statusCommander) run() error {
	status, err := c.fetchStatus()
	if err != nil {
		return fmt.Errorf("fetching agent state: %w", err)
	}

	fmt.Printf("\n  %s  %s\n", cliui.KeyStyle.Render("Agent:     "), cliui.NameStyle.Render(status.AgentID))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Pending:   "), cliui.ValueStyle.Render(strconv.Itoa(status.Pending)))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Processed: "), cliui.ValueStyle.Render(strconv.Itoa(status.Processed)))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Busy:      "), cliui.ValueStyle.Render(strconv.FormatBool(status.Busy)))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Cooldowns: "), cliui.ValueStyle.Render(strconv.Itoa(status.Cooldowns)))
	fmt.Printf("  %s  %s\n\n", cliui.KeyStyle.Render("Vectors:   "), cliui.DimStyle.Render(status.VectorPath))

	if status.Pending == 0 {
		fmt.Printf("  %s No pending candidates.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	candidates, err := c.fetchCandidates()
	if err != nil {
		return fmt.Errorf("fetching candidates: %w", err)
	}

	for i, cand := range candidates {
		age := cliui.FormatDuration(time.Since(cand.CreatedAt))
		fmt.Printf("  %s %s %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%d.", i+1)),
			cliui.NameStyle.Render(cand.ID),
			cliui.ValueStyle.Render(fmt.Sprintf("score=%.2f msgs=%d", cand.Score, cand.MessageCount)),
			cliui.DimStyle.Render(age+" ago"),
		)
	}

	fmt.Println()
	return nil
}

// fetchStatus calls the API for the agent's state snapshot.
func (c *statusCommander) fetchStatus() (*agentStatus, error) {
	var status agentStatus
	url := fmt.Sprintf("%s/agents/%s/state", c.api, c.agent)
	if err := c.getJSON(url, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// fetchCandidates calls the API for the agent's pending candidates.
func (c *statusCommander) fetchCandidates() ([]candidateInfo, error) {
	var candidates []candidateInfo
	url := fmt.Sprintf("%s/agents/%s/candidates?limit=%d", c.api, c.agent, c.limit)
	if err := c.getJSON(url, &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

func (c *statusCommander) getJSON(url string, out any) error {
	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting from API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading API response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing API response: %w", err)
	}

	return nil
}
