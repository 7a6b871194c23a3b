package schemasync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/marshallshelly/pebble-entities/pkg/driver"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// Creator plans and applies schema changes for a set of entities.
type Creator struct {
	driver      driver.SchemaDriver
	metadatas   []*schema.EntityMetadata
	dropColumns bool
	logger      *zap.Logger
}

// Option configures a Creator.
type Option func(*Creator)

// WithDropColumns makes synchronisation drop database columns that no
// entity declares. They are kept by default.
func WithDropColumns(drop bool) Option {
	return func(c *Creator) {
		c.dropColumns = drop
	}
}

// WithLogger sets the logger for applied changes.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Creator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCreator creates a Creator for the given entities.
func NewCreator(d driver.SchemaDriver, metadatas []*schema.EntityMetadata, opts ...Option) *Creator {
	c := &Creator{
		driver:    d,
		metadatas: metadatas,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Plan computes the changes without applying them.
func (c *Creator) Plan(ctx context.Context) (*Plan, error) {
	ordered, err := Order(c.metadatas)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Tables: make([]TablePlan, 0, len(ordered))}
	for _, meta := range ordered {
		tp, err := c.planTable(ctx, meta)
		if err != nil {
			return nil, err
		}
		plan.Tables = append(plan.Tables, tp)
	}
	return plan, nil
}

// Create synchronises the schema. Every table is attempted; a table whose
// referenced table failed is skipped. A *SyncError lists the failures.
func (c *Creator) Create(ctx context.Context) error {
	_, err := c.Sync(ctx)
	return err
}

// Sync is Create returning the per-table results.
func (c *Creator) Sync(ctx context.Context) (results []TableResult, err error) {
	ordered, err := Order(c.metadatas)
	if err != nil {
		return nil, err
	}

	if locker, ok := c.driver.(driver.Locker); ok {
		unlock, lerr := locker.LockSchema(ctx)
		if lerr != nil {
			return nil, fmt.Errorf("failed to acquire schema lock: %w", lerr)
		}
		defer func() {
			if uerr := unlock(ctx); uerr != nil {
				err = multierr.Append(err, fmt.Errorf("failed to release schema lock: %w", uerr))
			}
		}()
	}

	status := make(map[string]TableStatus, len(ordered))
	results = make([]TableResult, 0, len(ordered))
	for _, meta := range ordered {
		result := TableResult{Table: meta.TableName}

		if dep := failedDependency(meta.Dependencies(), status); dep != "" {
			result.Status = StatusSkipped
			result.Err = fmt.Errorf("referenced table %s was not synchronised", dep)
			c.logger.Warn("table skipped", zap.String("table", meta.TableName), zap.String("dependency", dep))
		} else {
			tp, perr := c.planTable(ctx, meta)
			if perr == nil {
				result.Status, perr = c.apply(ctx, &tp)
			}
			if perr != nil {
				result.Status = StatusFailed
				result.Err = perr
				c.logger.Error("table sync failed", zap.String("table", meta.TableName), zap.Error(perr))
			}
		}

		status[meta.TableName] = result.Status
		results = append(results, result)
	}

	if serr := newSyncError(results); serr != nil {
		return results, serr
	}
	return results, nil
}

// Apply runs a previously computed plan. Tables are applied in plan order
// with the same skipping rules as Sync.
func (c *Creator) Apply(ctx context.Context, plan *Plan) ([]TableResult, error) {
	status := make(map[string]TableStatus, len(plan.Tables))
	results := make([]TableResult, 0, len(plan.Tables))
	for i := range plan.Tables {
		tp := &plan.Tables[i]
		result := TableResult{Table: tp.Table}

		if failed := failedDependency(tp.Dependencies, status); failed != "" {
			result.Status = StatusSkipped
			result.Err = fmt.Errorf("referenced table %s was not synchronised", failed)
		} else if s, err := c.apply(ctx, tp); err != nil {
			result.Status = StatusFailed
			result.Err = err
		} else {
			result.Status = s
		}

		status[tp.Table] = result.Status
		results = append(results, result)
	}

	if serr := newSyncError(results); serr != nil {
		return results, serr
	}
	return results, nil
}

func (c *Creator) planTable(ctx context.Context, meta *schema.EntityMetadata) (TablePlan, error) {
	live, err := c.driver.LoadTable(ctx, meta.TableName)
	if err != nil {
		return TablePlan{}, fmt.Errorf("failed to load table %s: %w", meta.TableName, err)
	}

	tp := diffTable(c.driver.Dialect(), meta.TableDefinition(), live, c.dropColumns)
	tp.Dependencies = meta.Dependencies()
	return tp, nil
}

func (c *Creator) apply(ctx context.Context, tp *TablePlan) (TableStatus, error) {
	switch tp.Action {
	case ActionCreate:
		if err := c.driver.CreateTable(ctx, tp.Definition); err != nil {
			return StatusFailed, err
		}
		c.logger.Info("table created", zap.String("table", tp.Table))
		return StatusCreated, nil

	case ActionAlter:
		for _, col := range tp.ColumnsAdded {
			if err := c.driver.AddColumn(ctx, tp.Table, col); err != nil {
				return StatusFailed, fmt.Errorf("add column %s: %w", col.Name, err)
			}
		}
		for _, diff := range tp.ColumnsModified {
			if err := c.driver.AlterColumn(ctx, tp.Table, diff.From, diff.To); err != nil {
				return StatusFailed, fmt.Errorf("alter column %s: %w", diff.Column, err)
			}
		}
		for _, col := range tp.ColumnsDropped {
			if err := c.driver.DropColumn(ctx, tp.Table, col); err != nil {
				return StatusFailed, fmt.Errorf("drop column %s: %w", col, err)
			}
		}
		c.logger.Info("table altered",
			zap.String("table", tp.Table),
			zap.Int("added", len(tp.ColumnsAdded)),
			zap.Int("modified", len(tp.ColumnsModified)),
			zap.Int("dropped", len(tp.ColumnsDropped)),
		)
		return StatusAltered, nil
	}

	if len(tp.Extra) > 0 {
		c.logger.Warn("table has undeclared columns", zap.String("table", tp.Table), zap.Strings("columns", tp.Extra))
	}
	return StatusUnchanged, nil
}

func failedDependency(deps []string, status map[string]TableStatus) string {
	for _, dep := range deps {
		if s, ok := status[dep]; ok && (s == StatusFailed || s == StatusSkipped) {
			return dep
		}
	}
	return ""
}

// IsCyclic reports whether err is a cyclic dependency error.
func IsCyclic(err error) bool {
	var cyc *CyclicDependencyError
	return errors.As(err, &cyc)
}
