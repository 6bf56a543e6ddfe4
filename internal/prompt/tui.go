package prompt

// tui.go: bubbletea confirmation prompt.
//
// One textinput, Enter submits, Ctrl-C / Esc cancel. A cancelled prompt is a
// refusal, not an error.

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// TUI asks through a small bubbletea program.
type TUI struct {
	in  io.Reader
	out io.Writer
}

// NewTUI returns a TUI prompt bound to in and out.
func NewTUI(in io.Reader, out io.Writer) *TUI {
	return &TUI{in: in, out: out}
}

// Confirm runs the prompt until the user submits or cancels.
func (t *TUI) Confirm(question string) (bool, error) {
	p := tea.NewProgram(newConfirmModel(question), tea.WithInput(t.in), tea.WithOutput(t.out))
	result, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("prompt: %w", err)
	}
	final, ok := result.(confirmModel)
	if !ok || !final.done {
		return false, nil
	}
	return Authorizes(final.input.Value()), nil
}

// confirmModel is the bubbletea model behind TUI.
type confirmModel struct {
	question string
	input    textinput.Model
	done     bool
}

func newConfirmModel(question string) confirmModel {
	ti := textinput.New()
	ti.Placeholder = "y/n"
	ti.CharLimit = 16
	ti.Focus()
	return confirmModel{question: question, input: ti}
}

func (m confirmModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s %s\n", m.question, m.input.View())
}
