package components

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/codetutor/internal/ui/theme"
)

// Picker is a vertical list the learner chooses one entry from. Typing
// narrows the list; enter chooses, esc cancels.
type Picker struct {
	Title    string
	Options  []string
	Selected int

	filter    string
	chosen    string
	done      bool
	cancelled bool
}

// NewPicker creates a picker over options.
func NewPicker(title string, options []string) Picker {
	return Picker{Title: title, Options: options}
}

// Init returns nil (no initial command).
func (p Picker) Init() tea.Cmd {
	return nil
}

// Update handles keyboard navigation.
func (p Picker) Update(msg tea.Msg) (Picker, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok || p.done {
		return p, nil
	}

	visible := p.visible()
	switch key := kmsg.String(); key {
	case "up", "ctrl+p":
		if p.Selected > 0 {
			p.Selected--
		}
	case "down", "ctrl+n":
		if p.Selected < len(visible)-1 {
			p.Selected++
		}
	case "enter":
		if p.Selected >= 0 && p.Selected < len(visible) {
			p.chosen = visible[p.Selected]
			p.done = true
		}
	case "esc", "ctrl+c":
		p.cancelled = true
		p.done = true
	case "backspace":
		if p.filter != "" {
			p.filter = p.filter[:len(p.filter)-1]
			p.Selected = 0
		}
	default:
		if len(key) == 1 {
			p.filter += key
			p.Selected = 0
		}
	}
	return p, nil
}

// View renders the list.
func (p Picker) View() string {
	var b strings.Builder
	b.WriteString(theme.Title.Render(p.Title))
	if p.filter != "" {
		b.WriteString("  " + theme.Hint.Render(p.filter))
	}
	b.WriteString("\n")

	visible := p.visible()
	if len(visible) == 0 {
		b.WriteString(theme.Hint.Render("    no matches") + "\n")
	}
	for i, opt := range visible {
		if i == p.Selected {
			b.WriteString(lipgloss.NewStyle().
				Foreground(theme.Primary).
				Bold(true).
				Render("  ▸ "+opt) + "\n")
		} else {
			b.WriteString(lipgloss.NewStyle().
				Foreground(theme.Text).
				Render("    "+opt) + "\n")
		}
	}
	return b.String()
}

// Done reports whether the learner chose or cancelled.
func (p Picker) Done() bool { return p.done }

// Chosen returns the chosen option and false if the picker was cancelled.
func (p Picker) Chosen() (string, bool) {
	return p.chosen, p.done && !p.cancelled
}

func (p Picker) visible() []string {
	if p.filter == "" {
		return p.Options
	}
	var out []string
	needle := strings.ToLower(p.filter)
	for _, o := range p.Options {
		if strings.Contains(strings.ToLower(o), needle) {
			out = append(out, o)
		}
	}
	return out
}
