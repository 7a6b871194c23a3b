package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/pebble-entities/cmd/pebble/output"
	"github.com/marshallshelly/pebble-entities/cmd/pebble/tui"
	"github.com/marshallshelly/pebble-entities/pkg/orm"
	"github.com/marshallshelly/pebble-entities/pkg/schemasync"
)

type tableReport struct {
	Table    string   `json:"table"`
	Action   string   `json:"action,omitempty"`
	Status   string   `json:"status,omitempty"`
	Changes  []string `json:"changes,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// planCmd shows what sync would change
func (c *cli) planCmd() *cobra.Command {
	var dropColumns bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the schema changes sync would make",
		Long: `Compare the registered entities with the live database and list the tables
and columns that sync would create, alter or drop. Nothing is changed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := c.connect(cmd, orm.WithDropColumns(dropColumns))
			if err != nil {
				return err
			}
			defer closeConnection(cmd.Context(), conn)

			plan, err := conn.Plan(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to plan schema changes: %w", err)
			}
			return c.printPlan(plan)
		},
	}

	cmd.Flags().BoolVar(&dropColumns, "drop-columns", false, "Include columns that are no longer declared")
	return cmd
}

// syncCmd applies the schema plan
func (c *cli) syncCmd() *cobra.Command {
	var (
		interactive bool
		dropColumns bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronise the database schema with the registered entities",
		Long: `Create missing tables, add missing columns and alter changed columns, in
foreign key dependency order. Columns that are no longer declared are kept
unless --drop-columns is given.

Examples:
  pebble sync                  # Apply all changes
  pebble sync --interactive    # Review the plan before applying
  pebble sync --drop-columns   # Also drop undeclared columns`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := c.connect(cmd, orm.WithDropColumns(dropColumns))
			if err != nil {
				return err
			}
			defer closeConnection(cmd.Context(), conn)

			if interactive {
				return c.runSyncUI(cmd, conn)
			}
			results, err := conn.Creator().Sync(cmd.Context())
			if perr := c.printResults(results, err); perr != nil {
				return perr
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Review the plan in an interactive UI")
	cmd.Flags().BoolVar(&dropColumns, "drop-columns", false, "Drop columns that are no longer declared")
	return cmd
}

func (c *cli) runSyncUI(cmd *cobra.Command, conn *orm.Connection) error {
	ctx := cmd.Context()
	plan, err := conn.Plan(ctx)
	if err != nil {
		return fmt.Errorf("failed to plan schema changes: %w", err)
	}
	if !plan.HasChanges() {
		output.Success("Database schema is in sync")
		return nil
	}

	model, err := tui.RunSyncUI(ctx, plan, conn.Creator().Apply)
	if err != nil {
		return fmt.Errorf("interactive sync failed: %w", err)
	}
	if !model.Applied() {
		output.Info("No changes applied")
		return nil
	}
	if err := c.printResults(model.Results(), model.Err()); err != nil {
		return err
	}
	return model.Err()
}

func (c *cli) printPlan(plan *schemasync.Plan) error {
	if c.jsonOutput {
		reports := make([]tableReport, 0, len(plan.Tables))
		for _, tp := range plan.Tables {
			reports = append(reports, tableReport{
				Table:    tp.Table,
				Action:   tp.Action.String(),
				Changes:  tp.Describe(),
				Warnings: tp.Warnings,
			})
		}
		return output.JSON(reports)
	}

	if !plan.HasChanges() {
		output.Success("Database schema is in sync")
		return nil
	}

	output.Section("Schema Plan")
	for _, tp := range plan.Tables {
		output.Println(fmt.Sprintf("%s %s", output.StatusIcon(tp.Action.String()), tp.Table))
		for _, change := range tp.Describe() {
			if strings.HasPrefix(change, "warning: ") {
				output.Warning("    %s", change)
				continue
			}
			output.Muted("    %s", change)
		}
	}
	return nil
}

func (c *cli) printResults(results []schemasync.TableResult, syncErr error) error {
	if c.jsonOutput {
		reports := make([]tableReport, 0, len(results))
		for _, r := range results {
			report := tableReport{Table: r.Table, Status: r.Status.String()}
			if r.Err != nil {
				report.Error = r.Err.Error()
			}
			reports = append(reports, report)
		}
		return output.JSON(reports)
	}

	output.Section("Schema Sync")
	var changed int
	for _, r := range results {
		line := fmt.Sprintf("%s %s %s", output.StatusIcon(r.Status.String()), r.Table, r.Status)
		if r.Err != nil {
			line += ": " + r.Err.Error()
		}
		output.Println(line)
		if r.Status == schemasync.StatusCreated || r.Status == schemasync.StatusAltered {
			changed++
		}
	}
	output.Println()
	if syncErr != nil {
		output.Error("Schema sync failed")
		return nil
	}
	if changed == 0 {
		output.Success("Database schema is in sync")
		return nil
	}
	output.Success("Synchronised %d table(s)", changed)
	return nil
}
