// Package orm wires a driver, entity metadata and schema synchronisation
// together and exposes repositories for persisting entities.
package orm

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/marshallshelly/pebble-entities/pkg/driver"
	"github.com/marshallshelly/pebble-entities/pkg/metadata"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
	"github.com/marshallshelly/pebble-entities/pkg/schemasync"
)

// State is the lifecycle state of a Connection.
type State int

const (
	StateCreated State = iota
	StateConnecting
	StateConnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option configures a Connection.
type Option func(*Connection)

// WithAutoSchemaCreate makes Connect synchronise the schema before returning.
func WithAutoSchemaCreate(enabled bool) Option {
	return func(c *Connection) {
		c.autoSchemaCreate = enabled
	}
}

// WithDropColumns lets schema synchronisation drop undeclared columns.
func WithDropColumns(enabled bool) Option {
	return func(c *Connection) {
		c.dropColumns = enabled
	}
}

// WithLogger sets the connection logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithName names the connection in logs.
func WithName(name string) Option {
	return func(c *Connection) {
		c.name = name
	}
}

// WithClock replaces the clock used for create and update date columns.
func WithClock(now func() time.Time) Option {
	return func(c *Connection) {
		if now != nil {
			c.now = now
		}
	}
}

// Connection owns a driver, the registered entity metadata and one
// repository per entity.
//
// Registration is expected to happen once at startup, before queries run.
// Only the lifecycle state is guarded.
type Connection struct {
	name             string
	driver           driver.Driver
	autoSchemaCreate bool
	dropColumns      bool
	logger           *zap.Logger
	now              func() time.Time

	mu    sync.Mutex
	state State

	metadatas    []*schema.EntityMetadata
	repositories []*Repository
	byTarget     map[reflect.Type]*Repository
	subscribers  []Subscriber
	listeners    []*schema.EntityListenerMetadata
	manager      *EntityManager
}

// New creates a Connection over d. It does not connect.
func New(d driver.Driver, opts ...Option) *Connection {
	c := &Connection{
		name:     "default",
		driver:   d,
		logger:   zap.NewNop(),
		now:      time.Now,
		byTarget: make(map[reflect.Type]*Repository),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("connection", c.name))
	c.manager = &EntityManager{conn: c}
	return c
}

// Name returns the connection name.
func (c *Connection) Name() string { return c.name }

// Driver returns the underlying driver.
func (c *Connection) Driver() driver.Driver { return c.driver }

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the connection is usable.
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect connects the driver and, when auto schema creation is enabled,
// synchronises the schema. If synchronisation fails the driver is
// disconnected again and the connection is left Failed; Connect may then be
// retried.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnected, StateConnecting:
		c.mu.Unlock()
		return ErrAlreadyConnected
	case StateClosed:
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	c.state = StateConnecting
	c.mu.Unlock()

	err := c.connect(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateFailed
		c.logger.Error("connection failed", zap.Error(err))
		return err
	}
	c.state = StateConnected
	c.logger.Info("connected", zap.String("driver", c.driver.Name()), zap.Int("entities", len(c.metadatas)))
	return nil
}

func (c *Connection) connect(ctx context.Context) error {
	if err := c.driver.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect %s: %w", c.driver.Name(), err)
	}

	if !c.autoSchemaCreate {
		return nil
	}

	if err := c.creator().Create(ctx); err != nil {
		if derr := c.driver.Disconnect(ctx); derr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to disconnect: %w", derr))
		}
		return err
	}
	return nil
}

// Close disconnects the driver. Closing a closed connection is a no-op;
// closing one that never connected returns ErrNotConnected.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return nil
	case StateConnected:
	default:
		return ErrNotConnected
	}

	if err := c.driver.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", c.driver.Name(), err)
	}
	c.state = StateClosed
	c.logger.Info("connection closed")
	return nil
}

// AddEntityMetadatas registers metadata and creates one repository for each.
// Nil entries and metadata for an already registered type are ignored.
func (c *Connection) AddEntityMetadatas(metas ...*schema.EntityMetadata) {
	for _, m := range metas {
		if m == nil {
			continue
		}
		if _, ok := c.byTarget[m.Target]; ok {
			c.logger.Debug("entity already registered", zap.String("entity", m.Name))
			continue
		}
		repo := &Repository{conn: c, meta: m}
		c.metadatas = append(c.metadatas, m)
		c.repositories = append(c.repositories, repo)
		c.byTarget[m.Target] = repo
	}
}

// AddSubscribers registers subscribers notified of every entity event.
func (c *Connection) AddSubscribers(subs ...Subscriber) {
	c.subscribers = append(c.subscribers, subs...)
}

// AddEntityListeners registers listeners in addition to those built into
// the entity metadata. A listener declared on an embedded ancestor applies
// to every entity embedding it.
func (c *Connection) AddEntityListeners(listeners ...*schema.EntityListenerMetadata) {
	c.listeners = append(c.listeners, listeners...)
}

// Metadatas returns the registered metadata in registration order.
func (c *Connection) Metadatas() []*schema.EntityMetadata {
	return c.metadatas
}

// Metadata returns the metadata of target, which may be a value, a pointer
// or a reflect.Type.
func (c *Connection) Metadata(target any) (*schema.EntityMetadata, error) {
	t := metadata.TypeOf(target)
	for _, m := range c.metadatas {
		if m.Target == t {
			return m, nil
		}
	}
	return nil, &MetadataNotFoundError{Target: t}
}

// HasMetadata reports whether target is registered.
func (c *Connection) HasMetadata(target any) bool {
	_, err := c.Metadata(target)
	return err == nil
}

// Repository returns the repository of target. The type must match exactly.
func (c *Connection) Repository(target any) (*Repository, error) {
	m, err := c.Metadata(target)
	if err != nil {
		return nil, &RepositoryNotFoundError{Target: metadata.TypeOf(target), Err: err}
	}
	repo, ok := c.byTarget[m.Target]
	if !ok {
		return nil, &RepositoryNotFoundError{Target: m.Target, Err: fmt.Errorf("metadata %s has no repository", m.Name)}
	}
	return repo, nil
}

// Repositories returns every repository in registration order.
func (c *Connection) Repositories() []*Repository {
	return c.repositories
}

// Manager returns the connection's entity manager.
func (c *Connection) Manager() *EntityManager {
	return c.manager
}

// SyncSchema synchronises the schema of every registered entity.
func (c *Connection) SyncSchema(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.creator().Create(ctx)
}

// Plan computes the pending schema changes without applying them.
func (c *Connection) Plan(ctx context.Context) (*schemasync.Plan, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.creator().Plan(ctx)
}

// Creator returns a schema creator for the registered entities.
func (c *Connection) Creator() *schemasync.Creator {
	return c.creator()
}

func (c *Connection) creator() *schemasync.Creator {
	return schemasync.NewCreator(c.driver, c.metadatas,
		schemasync.WithDropColumns(c.dropColumns),
		schemasync.WithLogger(c.logger),
	)
}

func (c *Connection) ready() error {
	switch c.State() {
	case StateConnected:
		return nil
	case StateClosed:
		return ErrConnectionClosed
	default:
		return ErrNotConnected
	}
}
