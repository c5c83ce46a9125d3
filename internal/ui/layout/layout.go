package layout

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/codetutor/internal/ui/theme"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 72

// KeyHint represents a key binding hint shown under a prompt.
type KeyHint struct {
	Key         string
	Description string
}

// Common hint sets.
var (
	PickerHints = []KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Select"},
		{Key: "Esc", Description: "Cancel"},
	}
	ConfirmHints = []KeyHint{
		{Key: "y/n", Description: "Answer"},
		{Key: "←→", Description: "Switch"},
		{Key: "Esc", Description: "Cancel"},
	}
	InputHints = []KeyHint{
		{Key: "Enter", Description: "Confirm"},
		{Key: "Esc", Description: "Cancel"},
	}
)

// RenderHints renders key hints on one line.
func RenderHints(hints []KeyHint) string {
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		part := lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render(h.Key) +
			" " +
			lipgloss.NewStyle().Foreground(theme.TextDim).Render(h.Description)
		parts = append(parts, part)
	}
	return "  " + strings.Join(parts, "   ")
}

// RenderHeader renders a bar with the product name on the left and title
// on the right.
func RenderHeader(title string, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	left := lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true).
		Render("codetutor")
	right := lipgloss.NewStyle().
		Foreground(theme.Text).
		Render(title)

	gap := width - 4 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Width(width).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1).
		Render(left + strings.Repeat(" ", gap) + right)
}

// RenderPrompt stacks a prompt body above its key hints.
func RenderPrompt(body string, hints []KeyHint) string {
	return body + "\n" + RenderHints(hints) + "\n"
}
