// Package schemasync reconciles the database schema with entity metadata:
// missing tables are created, missing columns added and changed columns
// altered, in foreign key dependency order.
package schemasync

import (
	"fmt"
	"strings"

	"github.com/marshallshelly/pebble-entities/pkg/dialect"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// Action is what synchronisation does with a table.
type Action int

const (
	ActionNone Action = iota
	ActionCreate
	ActionAlter
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionAlter:
		return "alter"
	default:
		return "none"
	}
}

// ColumnDiff is a column present on both sides that differs.
type ColumnDiff struct {
	Column string
	From   schema.ColumnInfo
	To     schema.ColumnDefinition
	Change dialect.ColumnChange
}

// TablePlan is the planned change for one entity table.
type TablePlan struct {
	Table        string
	Action       Action
	Definition   schema.TableDefinition
	Dependencies []string

	ColumnsAdded    []schema.ColumnDefinition
	ColumnsModified []ColumnDiff
	// ColumnsDropped is only filled when dropping is enabled.
	ColumnsDropped []string
	// Extra lists database columns without a declaration that are kept.
	Extra []string
	// Warnings lists changes that fail on a table that already has rows.
	Warnings []string
}

// HasChanges reports whether applying the plan runs any DDL.
func (t *TablePlan) HasChanges() bool {
	return t.Action != ActionNone
}

// Describe renders the plan as one line per statement.
func (t *TablePlan) Describe() []string {
	switch t.Action {
	case ActionCreate:
		return []string{fmt.Sprintf("create table %s (%d columns)", t.Table, len(t.Definition.Columns))}
	case ActionNone:
		if len(t.Extra) > 0 {
			return []string{fmt.Sprintf("keep extra columns %s", strings.Join(t.Extra, ", "))}
		}
		return nil
	}

	var lines []string
	for _, col := range t.ColumnsAdded {
		lines = append(lines, "add column "+col.Name)
	}
	for _, diff := range t.ColumnsModified {
		var what []string
		if diff.Change.Type {
			what = append(what, "type")
		}
		if diff.Change.Nullable {
			what = append(what, "nullability")
		}
		if diff.Change.Default {
			what = append(what, "default")
		}
		lines = append(lines, fmt.Sprintf("alter column %s (%s)", diff.Column, strings.Join(what, ", ")))
	}
	for _, col := range t.ColumnsDropped {
		lines = append(lines, "drop column "+col)
	}
	if len(t.Extra) > 0 {
		lines = append(lines, fmt.Sprintf("keep extra columns %s", strings.Join(t.Extra, ", ")))
	}
	for _, w := range t.Warnings {
		lines = append(lines, "warning: "+w)
	}
	return lines
}

// Plan is the ordered set of table plans.
type Plan struct {
	Tables []TablePlan
}

// HasChanges reports whether any table needs DDL.
func (p *Plan) HasChanges() bool {
	for i := range p.Tables {
		if p.Tables[i].HasChanges() {
			return true
		}
	}
	return false
}

// Table finds the plan of a table.
func (p *Plan) Table(name string) *TablePlan {
	for i := range p.Tables {
		if p.Tables[i].Table == name {
			return &p.Tables[i]
		}
	}
	return nil
}

// diffTable compares a table definition with its live state. live is nil
// when the table does not exist.
func diffTable(d dialect.Dialect, def schema.TableDefinition, live *schema.TableInfo, dropColumns bool) TablePlan {
	plan := TablePlan{Table: def.Name, Definition: def}

	if live == nil {
		plan.Action = ActionCreate
		return plan
	}

	declared := make(map[string]bool, len(def.Columns))
	for _, col := range def.Columns {
		declared[col.Name] = true

		current := live.Column(col.Name)
		if current == nil {
			plan.ColumnsAdded = append(plan.ColumnsAdded, col)
			if !col.Nullable && col.Default == nil && !col.AutoIncrement {
				plan.Warnings = append(plan.Warnings,
					fmt.Sprintf("column %s is NOT NULL without a default and cannot be added while %s has rows", col.Name, def.Name))
			}
			continue
		}

		if change := dialect.CompareColumn(d, *current, col); change.Any() {
			plan.ColumnsModified = append(plan.ColumnsModified, ColumnDiff{
				Column: col.Name,
				From:   *current,
				To:     col,
				Change: change,
			})
		}
	}

	for _, col := range live.Columns {
		if declared[col.Name] {
			continue
		}
		if dropColumns {
			plan.ColumnsDropped = append(plan.ColumnsDropped, col.Name)
		} else {
			plan.Extra = append(plan.Extra, col.Name)
		}
	}

	if len(plan.ColumnsAdded) > 0 || len(plan.ColumnsModified) > 0 || len(plan.ColumnsDropped) > 0 {
		plan.Action = ActionAlter
	}
	return plan
}
