package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"parley/internal/config"
	"parley/internal/storage"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations",
	Long: `List the conversations saved on this machine, oldest first.

Examples:
  parley list`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer closeLog()

	store := storage.New(cfg.ConversationsDir(), logger, nil)
	convs, err := store.LoadAll()
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	if len(convs) == 0 {
		fmt.Println("No saved conversations.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tLAST MESSAGE")
	for _, c := range convs {
		last := ""
		if len(c.Messages) > 0 {
			last = c.Messages[len(c.Messages)-1].Timestamp.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.ID, c.DisplayTitle(), len(c.Messages), last)
	}
	return w.Flush()
}
