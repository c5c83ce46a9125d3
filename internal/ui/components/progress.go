package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/codetutor/internal/ui/theme"
)

// LessonProgress renders "Lesson N of M" followed by a bar with one cell
// per lesson. Lessons before current are filled.
func LessonProgress(current, total, width int) string {
	label := lipgloss.NewStyle().
		Foreground(theme.Text).
		Render(fmt.Sprintf("Lesson %d of %d", current+1, total)) + "  "
	if total <= 0 {
		return label
	}

	barWidth := width - lipgloss.Width(label)
	if barWidth < total {
		barWidth = total
	}
	cell := barWidth / total

	done := current
	if done > total {
		done = total
	}
	if done < 0 {
		done = 0
	}

	filled := theme.ProgressFilled.Render(strings.Repeat(" ", done*cell))
	empty := theme.ProgressEmpty.Render(strings.Repeat(" ", (total-done)*cell))
	return label + filled + empty
}
