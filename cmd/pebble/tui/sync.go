package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marshallshelly/pebble-entities/pkg/schemasync"
)

// SyncMode represents the current mode of the sync UI
type SyncMode int

const (
	ModeList SyncMode = iota
	ModeConfirm
	ModeApplying
	ModeComplete
	ModeError
)

// ApplyFunc applies a reviewed plan.
type ApplyFunc func(ctx context.Context, plan *schemasync.Plan) ([]schemasync.TableResult, error)

// SyncModel is the Bubbletea model for reviewing and applying a schema plan
type SyncModel struct {
	mode         SyncMode
	ctx          context.Context
	plan         *schemasync.Plan
	apply        ApplyFunc
	list         list.Model
	confirmation ConfirmationDialog
	spinner      spinner.Model
	results      ResultView
	applied      bool
	err          error
	width        int
	height       int
}

// NewSyncModel creates a sync UI model for plan.
func NewSyncModel(ctx context.Context, plan *schemasync.Plan, apply ApplyFunc) SyncModel {
	items := make([]list.Item, len(plan.Tables))
	for i, tp := range plan.Tables {
		items[i] = TableItem{Plan: tp}
	}

	l := list.New(items, TableItemDelegate{}, 0, 0)
	l.Title = "Schema Plan"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	return SyncModel{
		mode:    ModeList,
		ctx:     ctx,
		plan:    plan,
		apply:   apply,
		list:    l,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(infoStyle)),
	}
}

// Messages
type confirmedMsg struct{}

type cancelledMsg struct{}

type appliedMsg struct {
	results []schemasync.TableResult
	err     error
}

// Commands
func applyCmd(ctx context.Context, apply ApplyFunc, plan *schemasync.Plan) tea.Cmd {
	return func() tea.Msg {
		results, err := apply(ctx, plan)
		return appliedMsg{results: results, err: err}
	}
}

// Init initializes the model
func (m SyncModel) Init() tea.Cmd {
	return nil
}

// Mode returns the current mode.
func (m SyncModel) Mode() SyncMode { return m.mode }

// Applied reports whether the plan was applied.
func (m SyncModel) Applied() bool { return m.applied }

// Results returns the per-table outcome once the plan was applied.
func (m SyncModel) Results() []schemasync.TableResult { return m.results.Results }

// Err returns the error of the apply run, if any.
func (m SyncModel) Err() error { return m.err }

// Update handles messages
func (m SyncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case confirmedMsg:
		m.mode = ModeApplying
		return m, tea.Batch(m.spinner.Tick, applyCmd(m.ctx, m.apply, m.plan))

	case cancelledMsg:
		m.mode = ModeList
		return m, nil

	case appliedMsg:
		m.applied = true
		m.results = ResultView{Results: msg.results}
		m.err = msg.err
		if msg.err != nil {
			m.mode = ModeError
		} else {
			m.mode = ModeComplete
		}
		return m, nil

	case spinner.TickMsg:
		if m.mode != ModeApplying {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.mode {
		case ModeList:
			if m.list.FilterState() == list.Filtering {
				break
			}
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit

			case "enter", "a":
				if !m.plan.HasChanges() {
					return m, nil
				}
				m.confirmation = NewConfirmationDialog(
					"Apply Schema Changes",
					fmt.Sprintf("Apply changes to %d table(s)?", m.changedTables()),
				)
				m.confirmation.OnConfirm = func() tea.Cmd {
					return func() tea.Msg { return confirmedMsg{} }
				}
				m.confirmation.OnCancel = func() tea.Cmd {
					return func() tea.Msg { return cancelledMsg{} }
				}
				m.mode = ModeConfirm
				return m, nil
			}

		case ModeConfirm:
			switch msg.String() {
			case "ctrl+c", "q", "esc":
				m.mode = ModeList
				return m, nil
			default:
				return m, m.confirmation.Update(msg)
			}

		case ModeComplete, ModeError:
			switch msg.String() {
			case "ctrl+c", "q", "enter":
				return m, tea.Quit
			}
			return m, nil

		case ModeApplying:
			return m, nil
		}
	}

	// Update list
	if m.mode == ModeList {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m SyncModel) changedTables() int {
	n := 0
	for _, tp := range m.plan.Tables {
		if tp.HasChanges() {
			n++
		}
	}
	return n
}

// View renders the UI
func (m SyncModel) View() string {
	switch m.mode {
	case ModeList:
		keys := FormatKey("↑/↓", "navigate") + " • "
		if m.plan.HasChanges() {
			keys += FormatKey("enter", "apply") + " • "
		}
		help := helpStyle.Render(keys + FormatKey("q", "quit"))
		return lipgloss.JoinVertical(lipgloss.Left,
			m.list.View(),
			help,
		)

	case ModeConfirm:
		return m.place(m.confirmation.View())

	case ModeApplying:
		return m.place(boxStyle.Render(m.spinner.View() + " " + infoStyle.Render("Applying schema changes...")))

	case ModeComplete:
		msg := titleStyle.Render("Schema Synchronized") + "\n\n" +
			m.results.View() + "\n\n" +
			helpStyle.Render(FormatKey("enter/q", "exit"))
		return m.place(boxStyle.Render(msg))

	case ModeError:
		msg := titleStyle.Render("Schema Sync Failed") + "\n\n" +
			m.results.View() + "\n" +
			errorStyle.Render(m.err.Error()) + "\n" +
			helpStyle.Render(FormatKey("enter/q", "exit"))
		return m.place(boxStyle.Render(msg))
	}

	return "Unknown mode"
}

func (m SyncModel) place(content string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

// RunSyncUI reviews plan interactively and applies it once confirmed. It
// returns the final model state.
func RunSyncUI(ctx context.Context, plan *schemasync.Plan, apply ApplyFunc) (SyncModel, error) {
	p := tea.NewProgram(NewSyncModel(ctx, plan, apply), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return SyncModel{}, err
	}
	return final.(SyncModel), nil
}
