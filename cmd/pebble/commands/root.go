package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/pebble-entities/cmd/pebble/output"
	"github.com/marshallshelly/pebble-entities/pkg/config"
	"github.com/marshallshelly/pebble-entities/pkg/driver"
	"github.com/marshallshelly/pebble-entities/pkg/metadata"
	"github.com/marshallshelly/pebble-entities/pkg/orm"
)

// Option configures the command tree.
type Option func(*cli)

// WithEntities makes the plan and sync commands available for the entities
// declared on storage. With no targets every declared entity is used.
func WithEntities(storage *metadata.Storage, targets ...any) Option {
	return func(c *cli) {
		c.storage = storage
		c.targets = targets
	}
}

// WithDriver replaces the driver the configuration would open.
func WithDriver(d driver.Driver) Option {
	return func(c *cli) { c.driver = d }
}

type cli struct {
	// Global flags
	configFile string
	driverName string
	dbURL      string
	verbose    bool
	jsonOutput bool

	storage *metadata.Storage
	targets []any
	driver  driver.Driver
}

// NewRootCmd builds the pebble command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	c := &cli{}
	for _, opt := range opts {
		opt(c)
	}

	rootCmd := &cobra.Command{
		Use:   "pebble",
		Short: "Pebble - entity metadata and schema synchronisation for Go",
		Long: `Pebble declares entities once and keeps the database schema in line with them.

Features:
  - Typed entity declarations generated from struct tags
  - Dependency-ordered table creation and column reconciliation
  - PostgreSQL, MySQL and SQLite drivers
  - Interactive TUI and non-interactive CLI modes`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "Config file (default: ./pebble.yaml)")
	rootCmd.PersistentFlags().StringVar(&c.driverName, "driver", "", "Database driver: postgres, mysql or sqlite")
	rootCmd.PersistentFlags().StringVar(&c.dbURL, "db", "", "Database connection URL or SQLite file")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(
		c.generateCmd(),
		c.introspectCmd(),
	)
	if c.storage != nil {
		rootCmd.AddCommand(c.planCmd(), c.syncCmd())
	}
	return rootCmd
}

// Execute runs the root command
func Execute(opts ...Option) {
	if err := NewRootCmd(opts...).Execute(); err != nil {
		output.Error("%v", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment, with the global flags
// taking precedence.
func (c *cli) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadFlags(c.configFile, cmd.Flags(), map[string]string{
		"driver":       "driver",
		"database.url": "db",
	})
	if err != nil {
		return nil, err
	}
	if c.dbURL != "" {
		cfg.Database.Path = ""
	}
	if c.verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	return cfg, nil
}

// openDriver returns the injected driver or the one named by the config.
func (c *cli) openDriver(cmd *cobra.Command) (driver.Driver, error) {
	if c.driver != nil {
		return c.driver, nil
	}
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	return orm.OpenDriver(cfg, logger)
}

// connect opens a connection for the registered entities without creating
// the schema.
func (c *cli) connect(cmd *cobra.Command, opts ...orm.Option) (*orm.Connection, error) {
	ctx := cmd.Context()
	opts = append(opts, orm.WithAutoSchemaCreate(false))

	if c.driver != nil {
		return orm.Open(ctx, c.driver, c.storage, c.targets, opts...)
	}
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	conn, err := orm.OpenConfig(ctx, cfg, c.storage, c.targets, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	return conn, nil
}

func closeConnection(ctx context.Context, conn *orm.Connection) {
	if err := conn.Close(ctx); err != nil {
		output.Warning("failed to close connection: %v", err)
	}
}
