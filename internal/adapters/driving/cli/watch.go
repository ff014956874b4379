package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driving"
)

var watchCmd = &cobra.Command{
	Use:   "watch <source>/<entity>...",
	Short: "Fetch entities periodically",
	Long: `Fetches the given entities on a fixed interval until interrupted.
Targets are fetched one after another; a round still running when the
next tick arrives makes that tick a no-op.

Example:
  backsync watch --interval 10m tracker/Issue gh/Issue gh/Label`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Duration("interval", 15*time.Minute, "time between fetch rounds")
	watchCmd.Flags().String("policy", "always", "fetch policy: always, if-empty or never")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if services == nil || services.NewScheduler == nil {
		return errors.New("scheduler not configured")
	}

	interval, err := cmd.Flags().GetDuration("interval")
	if err != nil {
		return fmt.Errorf("getting interval flag: %w", err)
	}
	if interval <= 0 {
		return errors.New("interval must be positive")
	}
	policyName, err := cmd.Flags().GetString("policy")
	if err != nil {
		return fmt.Errorf("getting policy flag: %w", err)
	}
	policy, err := domain.ParseFetchPolicy(policyName)
	if err != nil {
		return err
	}

	targets, err := parseTargets(args, policy)
	if err != nil {
		return err
	}

	onReport := func(report *driving.FetchReport, err error) {
		if err != nil {
			cmd.PrintErrf("fetch failed: %v\n", err)
			return
		}
		printFetchReport(cmd, report)
	}

	watchConfig(cmd)
	scheduler := services.NewScheduler(interval, onReport, targets...)
	cmd.Printf("Watching %d targets every %s. Press Ctrl+C to stop.\n", len(targets), interval)

	err = scheduler.Start(cmd.Context())
	if stopErr := scheduler.Stop(); stopErr != nil {
		log.Warn("stopping scheduler: %v", stopErr)
	}
	if errors.Is(err, cmd.Context().Err()) {
		return nil
	}
	return err
}

func parseTargets(args []string, policy domain.FetchPolicy) ([]driving.FetchTarget, error) {
	targets := make([]driving.FetchTarget, 0, len(args))
	for _, arg := range args {
		source, entity, ok := strings.Cut(arg, "/")
		if !ok || source == "" || entity == "" {
			return nil, fmt.Errorf("invalid target %q, expected source/entity", arg)
		}
		targets = append(targets, driving.FetchTarget{Source: source, Entity: entity, Policy: policy})
	}
	return targets, nil
}
