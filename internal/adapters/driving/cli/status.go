package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/backsync/internal/adapters/driving/tui/styles"
)

var statusCmd = &cobra.Command{
	Use:   "status [source]",
	Short: "Show fetch statistics",
	Long: `Shows fetch statistics of this run for one source, or for every
configured source when none is given. Use history for fetches of previous
runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history <source>",
	Short: "Show recent fetches of a source",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 10, "number of fetches to show")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	syncer, err := syncService()
	if err != nil {
		return err
	}

	names := args
	if len(names) == 0 {
		names = syncer.Sources()
	}
	if len(names) == 0 {
		cmd.Println("No sources configured.")
		return nil
	}

	for _, name := range names {
		status, err := syncer.Status(name)
		if err != nil {
			return err
		}
		state := "idle"
		if status.Running {
			state = "running"
		}
		cmd.Printf("%s: %s, %d fetches, %d objects imported, %d errors\n",
			status.Source, state, status.Fetches, status.ObjectsImported, status.ErrorCount)
		if status.LastError != "" {
			cmd.Printf("  Last error: %s\n", status.LastError)
		}
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	syncer, err := syncService()
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("getting limit flag: %w", err)
	}

	records, err := syncer.History(cmd.Context(), args[0], limit)
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}
	if len(records) == 0 {
		cmd.Printf("No fetches recorded for %s.\n", args[0])
		return nil
	}

	s := styles.DefaultStyles()
	for _, r := range records {
		cmd.Printf("%s  %-12s %-8s %4d objects  %8s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Entity, r.Policy, r.Objects, r.Duration().Round(msRound), s.Outcome(r))
	}
	return nil
}
