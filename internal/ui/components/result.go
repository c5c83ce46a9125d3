package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/codetutor/internal/evaluate"
	"github.com/abhisek/codetutor/internal/ui/theme"
)

// ResultCard renders an evaluation outcome as a bordered card.
func ResultCard(lesson int, o evaluate.Outcome, width int) string {
	var b strings.Builder

	switch o.Status {
	case evaluate.Pass:
		b.WriteString(theme.Pass.Render(fmt.Sprintf("✓ Lesson %d passed", lesson)))
	case evaluate.Fail:
		b.WriteString(theme.Fail.Render(fmt.Sprintf("✗ Lesson %d is not solved yet", lesson)))
	default:
		b.WriteString(theme.Failure.Render(fmt.Sprintf("! Lesson %d could not be checked", lesson)))
	}

	if o.Status == evaluate.Fail && (o.ExpectedOutput != "" || o.GotInstead != "") {
		b.WriteString("\n\n")
		b.WriteString(theme.Label.Render("Expected  ") + theme.Code.Render(quote(o.ExpectedOutput)))
		b.WriteString("\n")
		b.WriteString(theme.Label.Render("Got       ") + theme.Code.Render(quote(o.GotInstead)))
	}
	if o.Errors != "" {
		b.WriteString("\n\n")
		b.WriteString(theme.Label.Render("Output") + "\n")
		b.WriteString(theme.Body.Render(strings.TrimRight(o.Errors, "\n")))
	}

	switch o.Status {
	case evaluate.Pass:
		b.WriteString("\n\n" + theme.Hint.Render("Run `codetutor submit` again or continue to the next lesson."))
	case evaluate.Fail:
		b.WriteString("\n\n" + theme.Hint.Render("Edit your lesson file and submit again. Ask `codetutor chat` for a hint."))
	}

	style := theme.Card
	if width > 4 {
		style = style.Width(width)
	}
	return style.Render(b.String())
}

func quote(s string) string {
	if s == "" {
		return lipgloss.NewStyle().Foreground(theme.TextDim).Render("(nothing)")
	}
	return fmt.Sprintf("%q", s)
}
