package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"parley/internal/anthropic"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a one-shot question without the interface",
	Long: `Send a single question and print the complete reply, without
streaming or saving anything. Useful for scripting.

Examples:
  parley ask "what does errors.Is do?"
  parley --model claude-opus-4-1 ask "summarize this design"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	if !cfg.HasAPIKey() {
		return fmt.Errorf("no API key configured, set ANTHROPIC_API_KEY")
	}

	client := anthropic.NewClient(cfg.APIKey)
	reply, err := client.Send(context.Background(), anthropic.TurnRequest{
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		System:    cfg.SystemPrompt,
		Messages: []anthropic.ChatMessage{
			{Role: anthropic.RoleUser, Content: args[0]},
		},
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Println(reply)
	return nil
}
