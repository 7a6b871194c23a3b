package orm

import (
	"context"
)

// EntityManager persists entities of any registered type, resolving the
// repository from the entity's type.
type EntityManager struct {
	conn *Connection
}

// Connection returns the owning connection.
func (m *EntityManager) Connection() *Connection { return m.conn }

func (m *EntityManager) Insert(ctx context.Context, entity any) error {
	repo, err := m.conn.Repository(entity)
	if err != nil {
		return err
	}
	return repo.Insert(ctx, entity)
}

func (m *EntityManager) Update(ctx context.Context, entity any) error {
	repo, err := m.conn.Repository(entity)
	if err != nil {
		return err
	}
	return repo.Update(ctx, entity)
}

func (m *EntityManager) Save(ctx context.Context, entity any) error {
	repo, err := m.conn.Repository(entity)
	if err != nil {
		return err
	}
	return repo.Save(ctx, entity)
}

func (m *EntityManager) Remove(ctx context.Context, entity any) error {
	repo, err := m.conn.Repository(entity)
	if err != nil {
		return err
	}
	return repo.Remove(ctx, entity)
}

// FindByID loads an entity of target's type by primary key.
func (m *EntityManager) FindByID(ctx context.Context, target any, ids ...any) (any, error) {
	repo, err := m.conn.Repository(target)
	if err != nil {
		return nil, err
	}
	return repo.FindByID(ctx, ids...)
}

// Find loads entities of target's type.
func (m *EntityManager) Find(ctx context.Context, target any, opts FindOptions) ([]any, error) {
	repo, err := m.conn.Repository(target)
	if err != nil {
		return nil, err
	}
	return repo.Find(ctx, opts)
}

// Count counts rows of target's table.
func (m *EntityManager) Count(ctx context.Context, target any, where Where) (int64, error) {
	repo, err := m.conn.Repository(target)
	if err != nil {
		return 0, err
	}
	return repo.Count(ctx, where)
}
