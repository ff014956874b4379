// Package styles provides the colour theme and lipgloss styles shared by
// the terminal output of backsync.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/custodia-labs/backsync/internal/core/domain"
)

// Theme defines the colour palette.
type Theme struct {
	Accent     lipgloss.Color
	Heading    lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Border     lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Accent:     lipgloss.Color("#7C3AED"),
		Heading:    lipgloss.Color("#06B6D4"),
		Foreground: lipgloss.Color("#CDD6F4"),
		Muted:      lipgloss.Color("#6C7086"),
		Success:    lipgloss.Color("#A6E3A1"),
		Warning:    lipgloss.Color("#F9E2AF"),
		Error:      lipgloss.Color("#F38BA8"),
		Border:     lipgloss.Color("#45475A"),
	}
}

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	theme *Theme

	Title   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Muted   lipgloss.Style
	Spinner lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Border  lipgloss.Style
}

// NewStyles creates styles from a theme. A nil theme uses DefaultTheme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	fg := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c)
	}

	return &Styles{
		theme:   theme,
		Title:   fg(theme.Accent).Bold(true),
		Header:  fg(theme.Heading).Bold(true).Padding(0, 1),
		Cell:    fg(theme.Foreground).Padding(0, 1),
		Muted:   fg(theme.Muted),
		Spinner: fg(theme.Accent),
		Error:   fg(theme.Error),
		Success: fg(theme.Success),
		Warning: fg(theme.Warning),
		Border:  fg(theme.Border),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the theme used by these styles.
func (s *Styles) Theme() *Theme {
	return s.theme
}

// Table renders rows under headers with the header and cell styles.
func (s *Styles) Table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Header
			}
			return s.Cell
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

// ObjectID renders an identifier; temporary ones are muted.
func (s *Styles) ObjectID(id domain.ObjectID) string {
	if id.Temporary {
		return s.Muted.Render(id.String())
	}
	return id.String()
}

// Outcome renders the result of a recorded fetch.
func (s *Styles) Outcome(rec domain.FetchRecord) string {
	switch {
	case !rec.Success:
		msg := "failed"
		if rec.Error != "" {
			msg += ": " + rec.Error
		}
		return s.Error.Render(msg)
	case rec.Skipped:
		return s.Muted.Render("skipped")
	default:
		return s.Success.Render("ok")
	}
}
