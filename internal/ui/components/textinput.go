package components

import (
	"os"
	"path/filepath"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/codetutor/internal/ui/theme"
)

// PathInput wraps bubbles/textinput for entering a directory.
type PathInput struct {
	Prompt string
	Model  textinput.Model

	done      bool
	cancelled bool
	invalid   string
}

// NewPathInput creates a focused directory input.
func NewPathInput(prompt, placeholder string) PathInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Focus()

	return PathInput{Prompt: prompt, Model: ti}
}

// Init returns the initial command.
func (t PathInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages.
func (t PathInput) Update(msg tea.Msg) (PathInput, tea.Cmd) {
	if t.done {
		return t, nil
	}
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "enter":
			if strings.TrimSpace(t.Model.Value()) == "" {
				t.invalid = "enter a folder path"
				return t, nil
			}
			t.done = true
			return t, nil
		case "esc", "ctrl+c":
			t.done, t.cancelled = true, true
			return t, nil
		}
	}

	t.invalid = ""
	var cmd tea.Cmd
	t.Model, cmd = t.Model.Update(msg)
	return t, cmd
}

// View renders the input.
func (t PathInput) View() string {
	view := theme.Title.Render(t.Prompt) + "\n" + t.Model.View()
	if t.invalid != "" {
		view += "\n" + lipgloss.NewStyle().Foreground(theme.Error).Render(t.invalid)
	}
	return view + "\n"
}

// Done reports whether the learner submitted or cancelled.
func (t PathInput) Done() bool { return t.done }

// Value returns the entered path with a leading ~ expanded, and false if
// the input was cancelled.
func (t PathInput) Value() (string, bool) {
	if t.cancelled {
		return "", false
	}
	return ExpandHome(strings.TrimSpace(t.Model.Value())), true
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
