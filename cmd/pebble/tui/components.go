package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marshallshelly/pebble-entities/pkg/schemasync"
)

// ConfirmationDialog represents a yes/no confirmation dialog
type ConfirmationDialog struct {
	Title       string
	Message     string
	YesSelected bool
	OnConfirm   func() tea.Cmd
	OnCancel    func() tea.Cmd
}

// NewConfirmationDialog creates a new confirmation dialog
func NewConfirmationDialog(title, message string) ConfirmationDialog {
	return ConfirmationDialog{
		Title:       title,
		Message:     message,
		YesSelected: false,
	}
}

// Update handles confirmation dialog updates
func (d *ConfirmationDialog) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "left", "h", "y":
			d.YesSelected = true
			if msg.String() == "y" && d.OnConfirm != nil {
				return d.OnConfirm()
			}
			return nil
		case "right", "l", "n":
			d.YesSelected = false
			if msg.String() == "n" && d.OnCancel != nil {
				return d.OnCancel()
			}
			return nil
		case "enter":
			if d.YesSelected && d.OnConfirm != nil {
				return d.OnConfirm()
			}
			if !d.YesSelected && d.OnCancel != nil {
				return d.OnCancel()
			}
			return nil
		}
	}
	return nil
}

// View renders the confirmation dialog
func (d ConfirmationDialog) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(d.Title))
	b.WriteString("\n\n")
	b.WriteString(d.Message)
	b.WriteString("\n\n")

	yesButton := inactiveButtonStyle.Render("Yes")
	noButton := inactiveButtonStyle.Render("No")

	if d.YesSelected {
		yesButton = activeButtonStyle.Render("Yes")
	} else {
		noButton = activeButtonStyle.Render("No")
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left, yesButton, "  ", noButton))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(FormatKey("←/→", "navigate") + " • " + FormatKey("enter", "confirm") + " • " + FormatKey("esc/q", "cancel")))

	return boxStyle.Render(b.String())
}

// TableItem is one table of a schema plan in the list.
type TableItem struct {
	Plan schemasync.TablePlan
}

func (i TableItem) FilterValue() string { return i.Plan.Table }
func (i TableItem) Title() string {
	return fmt.Sprintf("%s  %s", FormatAction(i.Plan.Action.String()), i.Plan.Table)
}
func (i TableItem) Description() string {
	lines := i.Plan.Describe()
	if len(lines) == 0 {
		return mutedStyle.Render("in sync")
	}
	if i.Plan.Action == schemasync.ActionCreate {
		var cols []string
		for _, c := range i.Plan.Definition.Columns {
			cols = append(cols, c.Name)
		}
		return mutedStyle.Render(lines[0] + ": " + strings.Join(cols, ", "))
	}
	return mutedStyle.Render(strings.Join(lines, "; "))
}

// TableItemDelegate renders plan tables.
type TableItemDelegate struct{}

func (d TableItemDelegate) Height() int                             { return 2 }
func (d TableItemDelegate) Spacing() int                            { return 1 }
func (d TableItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d TableItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(TableItem)
	if !ok {
		return
	}

	var s string
	if index == m.Index() {
		s = selectedItemStyle.Render("▸ " + i.Title() + "\n  " + i.Description())
	} else {
		s = unselectedItemStyle.Render("  " + i.Title() + "\n  " + i.Description())
	}

	_, _ = fmt.Fprint(w, s)
}

// ResultView lists the outcome of each table.
type ResultView struct {
	Results []schemasync.TableResult
}

// View renders the result view
func (r ResultView) View() string {
	if len(r.Results) == 0 {
		return mutedStyle.Render("No tables")
	}

	var b strings.Builder
	for _, res := range r.Results {
		b.WriteString(FormatStatus(res.Status.String()))
		b.WriteString(" ")
		b.WriteString(res.Table)
		if res.Err != nil {
			b.WriteString(mutedStyle.Render(" - " + res.Err.Error()))
		}
		b.WriteString("\n")
	}

	return boxStyle.Render(strings.TrimSuffix(b.String(), "\n"))
}
