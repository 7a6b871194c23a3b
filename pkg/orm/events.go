package orm

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/marshallshelly/pebble-entities/pkg/metadata"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// Event describes an entity lifecycle event.
type Event struct {
	Type       schema.EventType
	Metadata   *schema.EntityMetadata
	Entity     any // pointer to the entity
	Connection *Connection
}

// Subscriber is notified of entity events on a connection. A returned error
// aborts the operation; for Before events nothing has been written yet.
type Subscriber interface {
	Handle(ctx context.Context, event Event) error
}

// EntitySubscriber restricts a subscriber to one entity type. ListenTo may
// also return an embedded ancestor type.
type EntitySubscriber interface {
	Subscriber
	ListenTo() reflect.Type
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, event Event) error

// Handle implements Subscriber.
func (f SubscriberFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// broadcast runs entity listeners, then connection listeners, then
// subscribers. The first error stops the chain.
func (c *Connection) broadcast(ctx context.Context, typ schema.EventType, meta *schema.EntityMetadata, entity any) error {
	for _, l := range meta.ListenersFor(typ) {
		if err := l.Handler(ctx, entity); err != nil {
			return fmt.Errorf("%s listener of %s: %w", typ, meta.Name, err)
		}
	}

	lineage := metadata.Lineage(meta.Target)
	for _, l := range c.listeners {
		if l.Event != typ || (l.Target != nil && !slices.Contains(lineage, l.Target)) {
			continue
		}
		if err := callListener(ctx, l, entity); err != nil {
			return fmt.Errorf("%s listener of %s: %w", typ, meta.Name, err)
		}
	}

	event := Event{Type: typ, Metadata: meta, Entity: entity, Connection: c}
	for _, s := range c.subscribers {
		if es, ok := s.(EntitySubscriber); ok {
			if t := es.ListenTo(); t != nil && !slices.Contains(lineage, t) {
				continue
			}
		}
		if err := s.Handle(ctx, event); err != nil {
			return fmt.Errorf("%s subscriber of %s: %w", typ, meta.Name, err)
		}
	}
	return nil
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

func callListener(ctx context.Context, l *schema.EntityListenerMetadata, entity any) error {
	if l.Handler != nil {
		return l.Handler(ctx, entity)
	}

	m := reflect.ValueOf(entity).MethodByName(l.Method)
	if !m.IsValid() {
		return fmt.Errorf("method %s not found on %T", l.Method, entity)
	}
	mt := m.Type()
	if mt.NumIn() != 1 || mt.In(0) != contextType || mt.NumOut() != 1 || mt.Out(0) != errorType {
		return fmt.Errorf("method %s on %T must have signature func(context.Context) error", l.Method, entity)
	}
	out := m.Call([]reflect.Value{reflect.ValueOf(&ctx).Elem()})
	if err, _ := out[0].Interface().(error); err != nil {
		return err
	}
	return nil
}
