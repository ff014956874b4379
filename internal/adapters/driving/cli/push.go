package cli

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driving"
)

var createCmd = &cobra.Command{
	Use:   "create <source> <entity> <attr=value>...",
	Short: "Create an object locally and push it",
	Long: `Inserts a new object into the local store of a source and pushes it
to the remote side. The remote response is imported back, so the object
receives its remote key.

Values are parsed as integers, floats, booleans or null where possible and
as strings otherwise.`,
	Args: cobra.MinimumNArgs(3),
	RunE: runCreate,
}

var updateCmd = &cobra.Command{
	Use:   "update <source> <object-id> <attr=value>...",
	Short: "Edit an object locally and push the change",
	Long: `Sets attributes of a local object, identified as Entity/key (see
show), and pushes the change to the remote side.`,
	Args: cobra.MinimumNArgs(3),
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	syncer, err := syncService()
	if err != nil {
		return err
	}
	values, err := parseAssignments(args[2:])
	if err != nil {
		return err
	}

	report, err := syncer.Create(cmd.Context(), args[0], args[1], values)
	if err != nil {
		return fmt.Errorf("create failed: %w", err)
	}
	return printPushReport(cmd, "Created", report)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	syncer, err := syncService()
	if err != nil {
		return err
	}
	id, err := domain.ParseObjectID(args[1])
	if err != nil {
		return err
	}
	values, err := parseAssignments(args[2:])
	if err != nil {
		return err
	}

	report, err := syncer.Update(cmd.Context(), args[0], id, values)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	return printPushReport(cmd, "Updated", report)
}

func printPushReport(cmd *cobra.Command, verb string, report *driving.PushReport) error {
	if len(report.Failed) > 0 {
		ids := slices.Collect(maps.Keys(report.Failed))
		slices.SortFunc(ids, func(a, b domain.ObjectID) int {
			return strings.Compare(a.String(), b.String())
		})
		for _, id := range ids {
			cmd.PrintErrf("  %s: %v\n", id, report.Failed[id])
		}
		return fmt.Errorf("push to %s failed for %d objects", report.Source, len(report.Failed))
	}
	cmd.Printf("%s %s in %s.\n", verb, report.Object, report.Source)
	return nil
}

// parseAssignments parses attr=value arguments.
func parseAssignments(args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected attr=value", arg)
		}
		values[name] = parseValue(raw)
	}
	return values, nil
}

func parseValue(raw string) any {
	if raw == "null" {
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}
