package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/pebble-entities/cmd/pebble/output"
	"github.com/marshallshelly/pebble-entities/pkg/driver"
)

// introspectCmd displays live table structures
func (c *cli) introspectCmd() *cobra.Command {
	var tableName string

	cmd := &cobra.Command{
		Use:   "introspect",
		Short: "Introspect database schema",
		Long: `Introspect the database schema and display table structures.

Examples:
  pebble introspect                    # Show all tables
  pebble introspect --table users      # Show specific table
  pebble introspect --json             # Output in JSON format`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runIntrospect(cmd, tableName)
		},
	}

	cmd.Flags().StringVarP(&tableName, "table", "t", "", "Specific table to introspect")
	return cmd
}

func (c *cli) runIntrospect(cmd *cobra.Command, tableName string) error {
	ctx := cmd.Context()

	d, err := c.openDriver(cmd)
	if err != nil {
		return err
	}
	if err := d.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := d.Disconnect(context.WithoutCancel(ctx)); err != nil {
			output.Warning("failed to disconnect: %v", err)
		}
	}()

	if tableName != "" {
		table, err := d.LoadTable(ctx, tableName)
		if err != nil {
			return fmt.Errorf("failed to introspect table %s: %w", tableName, err)
		}
		if table == nil {
			return fmt.Errorf("table %s does not exist", tableName)
		}
		if c.jsonOutput {
			return output.JSON(table)
		}
		printTable(table)
		return nil
	}

	names, err := d.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	tables := make([]*driver.TableInfo, 0, len(names))
	for _, name := range names {
		table, err := d.LoadTable(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to introspect table %s: %w", name, err)
		}
		if table != nil {
			tables = append(tables, table)
		}
	}

	if c.jsonOutput {
		return output.JSON(tables)
	}
	if len(tables) == 0 {
		output.Warning("No tables found in database")
		return nil
	}

	output.Section(fmt.Sprintf("Database Schema (%d tables)", len(tables)))
	for _, table := range tables {
		printTable(table)
		output.Println()
	}
	return nil
}

func printTable(table *driver.TableInfo) {
	output.Primary("Table: %s", table.Name)

	w := tabwriter.NewWriter(output.Writer(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tTYPE\tNULLABLE\tDEFAULT\tFLAGS")
	_, _ = fmt.Fprintln(w, "----\t----\t--------\t-------\t-----")

	for _, col := range table.Columns {
		nullable := "NO"
		if col.Nullable {
			nullable = "YES"
		}
		def := ""
		if col.Default != nil {
			def = *col.Default
		}
		var flags []string
		if col.Primary {
			flags = append(flags, "PK")
		}
		if col.AutoIncrement {
			flags = append(flags, "AUTO")
		}
		if col.Unique {
			flags = append(flags, "UNIQUE")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", col.Name, col.DataType, nullable, def, strings.Join(flags, ","))
	}
	_ = w.Flush()
}
