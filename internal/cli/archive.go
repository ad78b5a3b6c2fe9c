package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"parley/internal/config"
	"parley/internal/db"
	"parley/internal/metrics"
	"parley/internal/storage"
)

var (
	archivePushAll bool
	archiveLimit   int
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Push conversations to the SurrealDB archive",
	Long: `Manage the optional SurrealDB conversation archive.

The archive is enabled by configuring a database URL (PARLEY_DB_URL or the
db section of the config file).

Examples:
  parley archive push --all
  parley archive push 6f1c9e9a-6a9f-4a7e-9b0e-2f4d8c1a5e37
  parley archive list
  parley archive search "goroutine"
  parley archive show 6f1c9e9a-6a9f-4a7e-9b0e-2f4d8c1a5e37`,
}

var archivePushCmd = &cobra.Command{
	Use:   "push [conversation-id]",
	Short: "Push saved conversations to the archive",
	RunE:  runArchivePush,
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived conversations",
	RunE:  runArchiveList,
}

var archiveSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over archived conversation titles",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveSearch,
}

var archiveShowCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Print one archived conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveShow,
}

func init() {
	archivePushCmd.Flags().BoolVar(&archivePushAll, "all", false, "push every saved conversation")
	archiveListCmd.Flags().IntVarP(&archiveLimit, "limit", "n", 50, "max results")
	archiveSearchCmd.Flags().IntVarP(&archiveLimit, "limit", "n", 50, "max results")

	archiveCmd.AddCommand(archivePushCmd)
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveSearchCmd)
	archiveCmd.AddCommand(archiveShowCmd)
}

// openArchive connects to the configured archive and initializes the
// schema.
func openArchive(ctx context.Context, collector *metrics.Collector) (*db.Client, error) {
	if !cfg.HasArchive() {
		return nil, fmt.Errorf("no archive configured, set PARLEY_DB_URL or the db section of the config file")
	}

	client, err := db.NewClient(ctx, db.Config{
		URL:       cfg.DBURL,
		Namespace: cfg.DBNamespace,
		Database:  cfg.DBDatabase,
		Username:  cfg.DBUser,
		Password:  cfg.DBPass,
	}, nil, collector)
	if err != nil {
		return nil, fmt.Errorf("connect to archive: %w", err)
	}
	if err := client.InitSchema(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("initialize archive schema: %w", err)
	}
	return client, nil
}

func runArchivePush(cmd *cobra.Command, args []string) error {
	if !archivePushAll && len(args) == 0 {
		return fmt.Errorf("pass a conversation id or --all")
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer closeLog()

	ctx := context.Background()
	collector := metrics.NewCollector()
	client, err := openArchive(ctx, collector)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	store := storage.New(cfg.ConversationsDir(), logger, nil)

	if archivePushAll {
		convs, err := store.LoadAll()
		if err != nil {
			return fmt.Errorf("load conversations: %w", err)
		}
		for _, c := range convs {
			if err := client.PushConversation(ctx, c); err != nil {
				exitWithError("push %s: %v", c.ID, err)
			}
			fmt.Printf("Pushed %s (%s)\n", c.ID, c.DisplayTitle())
		}
		if snap := collector.Snapshot().ArchivePush; snap != nil {
			fmt.Printf("Pushed %d conversations (avg %.0fms)\n", snap.Count, snap.AvgTimeMs)
		}
		return nil
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("parse conversation id: %w", err)
	}
	conv, err := store.Load(id)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if err := client.PushConversation(ctx, conv); err != nil {
		return fmt.Errorf("push conversation: %w", err)
	}
	fmt.Printf("Pushed %s (%s)\n", conv.ID, conv.DisplayTitle())
	return nil
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, err := openArchive(ctx, nil)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	summaries, err := client.ListConversations(ctx, archiveLimit)
	if err != nil {
		return err
	}
	printSummaries(summaries)
	return nil
}

func runArchiveSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, err := openArchive(ctx, nil)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	summaries, err := client.SearchConversations(ctx, args[0], archiveLimit)
	if err != nil {
		return err
	}
	printSummaries(summaries)
	return nil
}

func runArchiveShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, err := openArchive(ctx, nil)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	conv, err := client.GetConversation(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s (%d messages, archived %s)\n", conv.Title, conv.MessageCount,
		conv.ArchivedAt.Format("2006-01-02 15:04"))
	if conv.SystemPrompt != nil {
		fmt.Printf("system: %s\n", *conv.SystemPrompt)
	}
	for _, m := range conv.Messages {
		fmt.Printf("\n[%s] %s\n%s\n", m.Timestamp.Format("15:04:05"), m.Role, m.Content)
	}
	return nil
}

func printSummaries(summaries []db.ConversationSummary) {
	if len(summaries) == 0 {
		fmt.Println("No archived conversations.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tARCHIVED")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Title, s.MessageCount, s.ArchivedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}
