package orm

import (
	"context"
	"reflect"
)

// TypedRepository is a Repository for a known entity type.
//
//	posts, err := orm.RepositoryOf[Post](conn)
//	err = posts.Insert(ctx, &Post{Title: "hello"})
//	p, err := posts.FindByID(ctx, 1)
type TypedRepository[T any] struct {
	repo *Repository
}

// RepositoryOf returns the typed repository of T.
func RepositoryOf[T any](conn *Connection) (*TypedRepository[T], error) {
	repo, err := conn.Repository(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return &TypedRepository[T]{repo: repo}, nil
}

// Repository returns the untyped repository.
func (r *TypedRepository[T]) Repository() *Repository { return r.repo }

func (r *TypedRepository[T]) Insert(ctx context.Context, entity *T) error {
	return r.repo.Insert(ctx, entity)
}

func (r *TypedRepository[T]) Update(ctx context.Context, entity *T) error {
	return r.repo.Update(ctx, entity)
}

func (r *TypedRepository[T]) Save(ctx context.Context, entity *T) error {
	return r.repo.Save(ctx, entity)
}

func (r *TypedRepository[T]) Remove(ctx context.Context, entity *T) error {
	return r.repo.Remove(ctx, entity)
}

func (r *TypedRepository[T]) FindByID(ctx context.Context, ids ...any) (*T, error) {
	found, err := r.repo.FindByID(ctx, ids...)
	if err != nil {
		return nil, err
	}
	return found.(*T), nil
}

func (r *TypedRepository[T]) FindOne(ctx context.Context, opts FindOptions) (*T, error) {
	found, err := r.repo.FindOne(ctx, opts)
	if err != nil {
		return nil, err
	}
	return found.(*T), nil
}

func (r *TypedRepository[T]) Find(ctx context.Context, opts FindOptions) ([]*T, error) {
	found, err := r.repo.Find(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*T, len(found))
	for i, e := range found {
		out[i] = e.(*T)
	}
	return out, nil
}

func (r *TypedRepository[T]) Count(ctx context.Context, where Where) (int64, error) {
	return r.repo.Count(ctx, where)
}
