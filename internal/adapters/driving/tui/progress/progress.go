// Package progress provides a spinner shown while a long-running call is
// in flight.
package progress

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/backsync/internal/adapters/driving/tui/styles"
)

// doneMsg carries the outcome of the wrapped call.
type doneMsg struct {
	value any
	err   error
}

// Model is a bubbletea model that spins until the call finishes or the
// user interrupts it.
type Model struct {
	spinner spinner.Model
	label   string
	cancel  context.CancelFunc
	styles  *styles.Styles

	done  bool
	value any
	err   error
}

// New creates a model labelled label. cancel is invoked when the user
// presses ctrl+c or esc.
func New(label string, cancel context.CancelFunc, s *styles.Styles) Model {
	if s == nil {
		s = styles.DefaultStyles()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Spinner
	return Model{spinner: sp, label: label, cancel: cancel, styles: s}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles spinner ticks, key presses and completion.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		m.done, m.value, m.err = true, msg.value, msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the spinner line, or nothing once done.
func (m Model) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s %s %s\n", m.spinner.View(), m.label, m.styles.Muted.Render("(esc to cancel)"))
}

// Result returns the outcome once the model finished.
func (m Model) Result() (any, error) {
	return m.value, m.err
}

// Run runs fn while showing the spinner and returns its outcome. ctx is
// cancelled when the user interrupts.
func Run[T any](ctx context.Context, label string, opts []tea.ProgramOption, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(label, cancel, nil), opts...)
	go func() {
		v, err := fn(ctx)
		p.Send(doneMsg{value: v, err: err})
	}()

	final, err := p.Run()
	var zero T
	if err != nil {
		return zero, fmt.Errorf("progress: %w", err)
	}
	v, fnErr := final.(Model).Result()
	if t, ok := v.(T); ok {
		return t, fnErr
	}
	return zero, fnErr
}
