package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/backsync/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/backsync/internal/core/domain"
)

const (
	// maxCellWidth truncates long values in tables.
	maxCellWidth = 40

	// msRound rounds durations for display.
	msRound = time.Millisecond
)

var showCmd = &cobra.Command{
	Use:   "show <source> <entity>",
	Short: "Show the local objects of an entity",
	Long: `Lists the objects of an entity held in the local store of a source,
including subentities. Relationship columns show the keys of related
objects.`,
	Args: cobra.ExactArgs(2),
	RunE: runShow,
}

func init() {
	showCmd.Flags().IntP("limit", "n", 50, "maximum number of objects to show (0 = all)")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	syncer, err := syncService()
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("getting limit flag: %w", err)
	}

	records, err := syncer.Objects(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		cmd.Printf("No %s objects in %s.\n", args[1], args[0])
		return nil
	}

	total := len(records)
	if limit > 0 && total > limit {
		records = records[:limit]
	}

	cmd.Println(renderObjects(records, styles.DefaultStyles()))
	if len(records) < total {
		cmd.Printf("%d of %d objects shown.\n", len(records), total)
	}
	return nil
}

// renderObjects renders records as a table with one column per attribute
// and relationship seen in any record.
func renderObjects(records []domain.ObjectRecord, s *styles.Styles) string {
	attrSet := map[string]struct{}{}
	relSet := map[string]struct{}{}
	for _, rec := range records {
		for k := range rec.Values {
			attrSet[k] = struct{}{}
		}
		for k := range rec.Related {
			relSet[k] = struct{}{}
		}
	}
	attrs := slices.Sorted(maps.Keys(attrSet))
	rels := slices.Sorted(maps.Keys(relSet))

	headers := append([]string{"ID"}, attrs...)
	headers = append(headers, rels...)

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := []string{s.ObjectID(rec.ID)}
		for _, a := range attrs {
			row = append(row, formatValue(rec.Values, a))
		}
		for _, r := range rels {
			row = append(row, formatRelated(rec.Related[r]))
		}
		rows = append(rows, row)
	}

	return s.Table(headers, rows)
}

func formatValue(values map[string]any, attr string) string {
	v, ok := values[attr]
	if !ok || v == nil {
		return ""
	}
	return truncate(strings.ReplaceAll(fmt.Sprint(v), "\n", " "))
}

func formatRelated(ids []domain.ObjectID) string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.Key
	}
	return truncate(strings.Join(keys, ","))
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxCellWidth {
		return s
	}
	return string(r[:maxCellWidth-1]) + "…"
}
