package components

import (
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/codetutor/internal/ui/theme"
)

// Confirm is a yes/no question. The default answer is No.
type Confirm struct {
	Prompt string

	yes       bool
	done      bool
	cancelled bool
}

// NewConfirm creates a confirmation prompt.
func NewConfirm(prompt string) Confirm {
	return Confirm{Prompt: prompt}
}

// Update handles key events.
func (c Confirm) Update(msg tea.Msg) (Confirm, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok || c.done {
		return c, nil
	}

	switch kmsg.String() {
	case "left", "right", "tab", "h", "l":
		c.yes = !c.yes
	case "y", "Y":
		c.yes, c.done = true, true
	case "n", "N":
		c.yes, c.done = false, true
	case "enter":
		c.done = true
	case "esc", "ctrl+c":
		c.yes, c.done, c.cancelled = false, true, true
	}
	return c, nil
}

// View renders the prompt and both buttons.
func (c Confirm) View() string {
	yes, no := theme.ButtonInactive, theme.ButtonActive
	if c.yes {
		yes, no = theme.ButtonActive, theme.ButtonInactive
	}
	return theme.Body.Render(c.Prompt) + "\n\n" +
		yes.Render("Yes") + " " + no.Render("No") + "\n"
}

// Done reports whether the learner answered.
func (c Confirm) Done() bool { return c.done }

// Answer reports the choice. A cancelled prompt answers No.
func (c Confirm) Answer() bool { return c.yes && !c.cancelled }

// Cancelled reports whether the learner dismissed the prompt.
func (c Confirm) Cancelled() bool { return c.cancelled }
