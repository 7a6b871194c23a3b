package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/pebble-entities/cmd/pebble/output"
	"github.com/marshallshelly/pebble-entities/pkg/codegen"
	"github.com/marshallshelly/pebble-entities/pkg/loader"
)

func (c *cli) generateCmd() *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate code from entity definitions",
	}
	generateCmd.AddCommand(c.generateEntitiesCmd())
	return generateCmd
}

// generateEntitiesCmd writes typed declarations for tagged structs
func (c *cli) generateEntitiesCmd() *cobra.Command {
	var (
		scanDir  string
		outFile  string
		funcName string
	)

	cmd := &cobra.Command{
		Use:   "entities",
		Short: "Generate entity declarations from struct tags",
		Long: `Scan Go source files for structs with po tags and generate a file that
declares them with metadata.Declare.

The generated function registers the entities at compile time, so production
builds do not depend on reflection over struct tags.

Examples:
  pebble generate entities --scan ./internal/models
  pebble generate entities --scan ./models --output ./models/entities.gen.go --func Register`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGenerateEntities(scanDir, outFile, funcName, strings.Join(os.Args[1:], " "))
		},
	}

	cmd.Flags().StringVar(&scanDir, "scan", "", "Directory or file to scan for entity definitions (required)")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Output file path (default: <scan-dir>/"+codegen.DefaultFileName+")")
	cmd.Flags().StringVar(&funcName, "func", codegen.DefaultFuncName, "Name of the generated function")
	_ = cmd.MarkFlagRequired("scan")
	return cmd
}

func (c *cli) runGenerateEntities(scanDir, outFile, funcName, command string) error {
	absPath, err := filepath.Abs(scanDir)
	if err != nil {
		return fmt.Errorf("invalid scan path: %w", err)
	}

	if !c.jsonOutput {
		output.Section("Scanning for entities")
		output.Info("Path: %s", absPath)
	}

	pkg, err := loader.Load(absPath)
	if err != nil {
		return fmt.Errorf("failed to scan for entities: %w", err)
	}
	if len(pkg.Entities) == 0 {
		output.Warning("No tagged structs found in %s", absPath)
		output.Info("Add struct tags like: `po:\"id,primaryKey,autoIncrement\"`")
		return nil
	}

	path, err := codegen.WriteFile(outFile, pkg, codegen.Options{FuncName: funcName, Command: command})
	if err != nil {
		return fmt.Errorf("failed to generate file: %w", err)
	}

	if c.jsonOutput {
		type entity struct {
			Name    string `json:"name"`
			Table   string `json:"table"`
			Columns int    `json:"columns"`
		}
		report := struct {
			File     string   `json:"file"`
			Package  string   `json:"package"`
			Entities []entity `json:"entities"`
		}{File: path, Package: pkg.Name}
		for _, e := range pkg.Entities {
			report.Entities = append(report.Entities, entity{Name: e.Name, Table: e.TableName(), Columns: len(e.Columns)})
		}
		return output.JSON(report)
	}

	output.Success("Found %d entit%s", len(pkg.Entities), plural(len(pkg.Entities), "y", "ies"))
	for _, e := range pkg.Entities {
		output.Println(fmt.Sprintf("  %s → %s (%d columns)", e.Name, e.TableName(), len(e.Columns)))
	}
	output.Println()
	output.Success("Generated: %s", path)
	output.Info("Call %s.%s(storage) before building metadata", pkg.Name, funcNameOrDefault(funcName))
	return nil
}

func funcNameOrDefault(name string) string {
	if name == "" {
		return codegen.DefaultFuncName
	}
	return name
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
