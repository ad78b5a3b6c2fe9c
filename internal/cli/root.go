// Package cli provides the command-line interface for parley.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"parley/internal/anthropic"
	"parley/internal/chat"
	"parley/internal/config"
	"parley/internal/metrics"
	"parley/internal/session"
	"parley/internal/storage"
	"parley/internal/ui"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	flagModel  string
	flagSystem string

	// Global config, loaded in PersistentPreRunE
	cfg config.Config
)

// rootCmd represents the base command when called without any subcommands.
// Running it without a subcommand starts the chat interface.
var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Multi-tab terminal chat for Claude",
	Long: `Parley is a terminal chat client for the Anthropic API with
independent conversation tabs. Each tab streams its reply concurrently,
so a slow answer in one tab never blocks typing in another.

Conversations are saved as JSON files and can optionally be pushed to a
SurrealDB archive for full-text search across machines.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if flagModel != "" {
			cfg.Model = flagModel
		}
		if flagSystem != "" {
			cfg.SystemPrompt = flagSystem
		}
		return nil
	},
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("parley needs an interactive terminal, see 'parley --help' for non-interactive commands")
	}

	// The terminal belongs to the interface, so logs go to the file only.
	logger, closeLog := config.SetupFileLogger(cfg.LogFile, cfg.LogLevel)
	defer closeLog()

	collector := metrics.NewCollector()

	// Without a key the interface still works for reading saved
	// conversations; submits are rejected with a clear message.
	var starter chat.SessionStarter
	if cfg.HasAPIKey() {
		starter = session.NewManager(anthropic.NewClient(cfg.APIKey), logger, collector, cfg.MaxTokens)
	} else {
		logger.Warn("no API key configured, running in read-only mode")
	}

	store := storage.New(cfg.ConversationsDir(), logger, collector)
	app := chat.NewApp(starter, store, collector, logger, cfg.Model, cfg.SystemPrompt)

	convs, err := store.LoadAll()
	if err != nil {
		logger.Warn("could not load saved conversations", "error", err)
	}
	app.Restore(convs)

	return ui.Run(app, logger)
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "override the configured model")
	rootCmd.PersistentFlags().StringVar(&flagSystem, "system", "", "override the configured system prompt")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(archiveCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
