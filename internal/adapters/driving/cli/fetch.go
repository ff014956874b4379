package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/backsync/internal/adapters/driving/tui/progress"
	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driving"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <source> <entity>",
	Short: "Fetch remote objects into the local store",
	Long: `Fetches every remote object of an entity from a configured source and
imports it into the source's local store. Objects are uniqued by their
remote key, so repeated fetches update instead of duplicating.

Policies:
  always   - always contact the remote side (default)
  if-empty - only fetch when no local objects of the entity exist
  never    - never contact the remote side`,
	Args: cobra.ExactArgs(2),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("policy", "always", "fetch policy: always, if-empty or never")
	fetchCmd.Flags().Bool("progress", false, "show a spinner while fetching")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	syncer, err := syncService()
	if err != nil {
		return err
	}

	policyName, err := cmd.Flags().GetString("policy")
	if err != nil {
		return fmt.Errorf("getting policy flag: %w", err)
	}
	policy, err := domain.ParseFetchPolicy(policyName)
	if err != nil {
		return err
	}
	showProgress, err := cmd.Flags().GetBool("progress")
	if err != nil {
		return fmt.Errorf("getting progress flag: %w", err)
	}

	source, entity := args[0], args[1]
	fetch := func(ctx context.Context) (*driving.FetchReport, error) {
		return syncer.Fetch(ctx, source, entity, policy)
	}

	var report *driving.FetchReport
	if showProgress {
		label := fmt.Sprintf("Fetching %s from %s...", entity, source)
		report, err = progress.Run(cmd.Context(), label, nil, fetch)
	} else {
		report, err = fetch(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	printFetchReport(cmd, report)
	return nil
}

func printFetchReport(cmd *cobra.Command, report *driving.FetchReport) {
	if report.Skipped {
		cmd.Printf("Skipped %s from %s: local objects exist.\n", report.Entity, report.Source)
		return
	}
	cmd.Printf("Fetched %d %s objects from %s in %s.\n",
		len(report.Objects), report.Entity, report.Source, report.Duration.Round(msRound))
	if report.Metadata != "" {
		log.Debug("last page: %s", report.Metadata)
	}
}
