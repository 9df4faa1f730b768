package store

import (
	"iter"
	"slices"
	"sync"

	"github.com/EatZeBaby/databooks/internal/entity"
)

// Collection is a process-local keyed collection that remembers insertion order.
// Values are cloned on the way in and out so callers never share stored state.
type Collection[V any] struct {
	mu    sync.RWMutex
	order []string
	items map[string]V
	clone func(V) V
}

func NewCollection[V any](clone func(V) V) *Collection[V] {
	return &Collection[V]{
		items: make(map[string]V),
		clone: clone,
	}
}

// Upsert inserts v under id or overwrites the existing value.
func (c *Collection[V]) Upsert(id string, v V) {
	v = c.clone(v)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[id]; !ok {
		c.order = append(c.order, id)
	}
	c.items[id] = v
}

func (c *Collection[V]) Get(id string) (V, bool) {
	c.mu.RLock()
	v, ok := c.items[id]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	return c.clone(v), true
}

// List returns the values matching pred in insertion order. The sequence is
// lazy and restartable: every range takes a fresh snapshot of the collection.
func (c *Collection[V]) List(pred func(V) bool) iter.Seq[V] {
	return func(yield func(V) bool) {
		c.mu.RLock()
		snapshot := make([]V, 0, len(c.order))
		for _, id := range c.order {
			v := c.items[id]
			if pred == nil || pred(v) {
				snapshot = append(snapshot, v)
			}
		}
		c.mu.RUnlock()

		for _, v := range snapshot {
			if !yield(c.clone(v)) {
				return
			}
		}
	}
}

func (c *Collection[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

type relationKey struct {
	user   string
	target string
}

// Relations is a set of (user, target) presence pairs.
type Relations struct {
	mu    sync.RWMutex
	order []relationKey
	set   map[relationKey]struct{}
}

func NewRelations() *Relations {
	return &Relations{set: make(map[relationKey]struct{})}
}

// Set adds or removes the pair. Both directions are idempotent.
func (r *Relations) Set(user, target string, present bool) {
	key := relationKey{user: user, target: target}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.set[key]
	switch {
	case present && !exists:
		r.set[key] = struct{}{}
		r.order = append(r.order, key)
	case !present && exists:
		delete(r.set, key)
		r.order = slices.DeleteFunc(r.order, func(k relationKey) bool { return k == key })
	}
}

func (r *Relations) Has(user, target string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.set[relationKey{user: user, target: target}]
	return ok
}

// Targets lists everything user relates to, oldest first.
func (r *Relations) Targets(user string) []string {
	return r.collect(func(k relationKey) (string, bool) { return k.target, k.user == user })
}

// Users lists everyone relating to target, oldest first.
func (r *Relations) Users(target string) []string {
	return r.collect(func(k relationKey) (string, bool) { return k.user, k.target == target })
}

func (r *Relations) Count(target string) int {
	return len(r.Users(target))
}

func (r *Relations) collect(pick func(relationKey) (string, bool)) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []string{}
	for _, k := range r.order {
		if v, ok := pick(k); ok {
			out = append(out, v)
		}
	}
	return out
}

// EventLog is an append-only event sequence.
type EventLog struct {
	mu     sync.RWMutex
	events []*entity.Event
}

func (l *EventLog) Append(e *entity.Event) {
	e = e.Clone()
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

// List yields matching events in append order; see Collection.List.
func (l *EventLog) List(pred func(*entity.Event) bool) iter.Seq[*entity.Event] {
	return func(yield func(*entity.Event) bool) {
		l.mu.RLock()
		snapshot := make([]*entity.Event, 0, len(l.events))
		for _, e := range l.events {
			if pred == nil || pred(e) {
				snapshot = append(snapshot, e)
			}
		}
		l.mu.RUnlock()

		for _, e := range snapshot {
			if !yield(e.Clone()) {
				return
			}
		}
	}
}

// Since returns the events appended at or after cursor and the cursor to
// resume from.
func (l *EventLog) Since(cursor int) ([]*entity.Event, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if cursor < 0 || cursor > len(l.events) {
		cursor = 0
	}
	out := make([]*entity.Event, 0, len(l.events)-cursor)
	for _, e := range l.events[cursor:] {
		out = append(out, e.Clone())
	}
	return out, len(l.events)
}

func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Memory is the volatile store: everything here is lost on restart.
type Memory struct {
	Datasets   *Collection[*entity.Dataset]
	Users      *Collection[*entity.User]
	Profiles   *Collection[*entity.PlatformProfile] // keyed by user id
	Events     *EventLog
	Follows    *Relations
	Likes      *Relations
	TagFollows *Relations
}

func NewMemory() *Memory {
	return &Memory{
		Datasets:   NewCollection((*entity.Dataset).Clone),
		Users:      NewCollection((*entity.User).Clone),
		Profiles:   NewCollection((*entity.PlatformProfile).Clone),
		Events:     &EventLog{},
		Follows:    NewRelations(),
		Likes:      NewRelations(),
		TagFollows: NewRelations(),
	}
}

func (m *Memory) relations(kind entity.RelationKind) *Relations {
	switch kind {
	case entity.RelationLike:
		return m.Likes
	case entity.RelationTag:
		return m.TagFollows
	default:
		return m.Follows
	}
}
