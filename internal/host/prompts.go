package host

import (
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/codetutor/internal/ui/components"
	"github.com/abhisek/codetutor/internal/ui/layout"
)

// pickerModel, confirmModel and inputModel run one component each and
// quit as soon as it is answered.

type pickerModel struct {
	picker components.Picker
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	if m.picker.Done() {
		return m, tea.Quit
	}
	return m, cmd
}

func (m pickerModel) View() tea.View {
	if m.picker.Done() {
		return tea.NewView("")
	}
	return tea.NewView(layout.RenderPrompt(m.picker.View(), layout.PickerHints))
}

type confirmModel struct {
	confirm components.Confirm
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.confirm, cmd = m.confirm.Update(msg)
	if m.confirm.Done() {
		return m, tea.Quit
	}
	return m, cmd
}

func (m confirmModel) View() tea.View {
	if m.confirm.Done() {
		return tea.NewView("")
	}
	return tea.NewView(layout.RenderPrompt(m.confirm.View(), layout.ConfirmHints))
}

type inputModel struct {
	input components.PathInput
}

func (m inputModel) Init() tea.Cmd { return m.input.Init() }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Done() {
		return m, tea.Quit
	}
	return m, cmd
}

func (m inputModel) View() tea.View {
	if m.input.Done() {
		return tea.NewView("")
	}
	return tea.NewView(layout.RenderPrompt(m.input.View(), layout.InputHints))
}
