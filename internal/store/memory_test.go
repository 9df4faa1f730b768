package store_test

import (
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EatZeBaby/databooks/internal/entity"
	"github.com/EatZeBaby/databooks/internal/store"
)

func newDataset(t *testing.T, name string) *entity.Dataset {
	t.Helper()
	d, err := entity.NewDataset(entity.DatasetCreate{
		Name:       name,
		Tags:       []string{"sales"},
		OwnerID:    "u1",
		OrgID:      "org",
		SourceType: entity.SourceTypePostgres,
		Visibility: entity.VisibilityPublic,
	}, fixedNow)
	require.NoError(t, err)
	return d
}

func TestCollectionRoundTrip(t *testing.T) {
	c := store.NewCollection((*entity.Dataset).Clone)
	d := newDataset(t, "orders")

	c.Upsert(d.ID, d)
	got, ok := c.Get(d.ID)
	require.True(t, ok)
	assert.Equal(t, d, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCollectionUpsertIsIdempotent(t *testing.T) {
	c := store.NewCollection((*entity.Dataset).Clone)
	d := newDataset(t, "orders")

	c.Upsert(d.ID, d)
	c.Upsert(d.ID, d)
	assert.Equal(t, 1, c.Len())

	d.Name = "orders_v2"
	c.Upsert(d.ID, d)
	got, _ := c.Get(d.ID)
	assert.Equal(t, "orders_v2", got.Name)
	assert.Equal(t, 1, c.Len())
}

func TestCollectionDoesNotAlias(t *testing.T) {
	c := store.NewCollection((*entity.Dataset).Clone)
	d := newDataset(t, "orders")
	c.Upsert(d.ID, d)

	d.Tags[0] = "mutated"
	got, _ := c.Get(d.ID)
	assert.Equal(t, "sales", got.Tags[0])

	got.Tags[0] = "mutated"
	again, _ := c.Get(d.ID)
	assert.Equal(t, "sales", again.Tags[0])
}

func TestCollectionListIsRestartable(t *testing.T) {
	c := store.NewCollection((*entity.Dataset).Clone)
	for _, name := range []string{"a", "b", "c"} {
		d := newDataset(t, name)
		c.Upsert(d.ID, d)
	}

	seq := c.List(func(d *entity.Dataset) bool { return d.Name != "b" })
	names := func() []string {
		var out []string
		for d := range seq {
			out = append(out, d.Name)
		}
		return out
	}
	assert.Equal(t, []string{"a", "c"}, names())

	d := newDataset(t, "d")
	c.Upsert(d.ID, d)
	assert.Equal(t, []string{"a", "c", "d"}, names())

	for d := range seq {
		assert.Equal(t, "a", d.Name)
		break
	}
}

func TestRelationsToggleIsIdempotent(t *testing.T) {
	r := store.NewRelations()

	r.Set("u1", "d1", true)
	r.Set("u1", "d1", true)
	assert.True(t, r.Has("u1", "d1"))
	assert.Equal(t, []string{"d1"}, r.Targets("u1"))
	assert.Equal(t, 1, r.Count("d1"))

	r.Set("u1", "d1", false)
	r.Set("u1", "d1", false)
	assert.False(t, r.Has("u1", "d1"))
	assert.Empty(t, r.Targets("u1"))
	assert.Equal(t, 0, r.Count("d1"))
}

func TestRelationsConcurrentToggles(t *testing.T) {
	r := store.NewRelations()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Set(fmt.Sprintf("u%d", i), "d1", true)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, r.Count("d1"))
}

func TestEventLogSince(t *testing.T) {
	var log store.EventLog
	for i := 0; i < 3; i++ {
		e, err := entity.NewEvent(entity.EventDatasetPublished, map[string]any{"i": i}, "u1", "d1", fixedNow)
		require.NoError(t, err)
		log.Append(e)
	}

	events, cursor := log.Since(0)
	assert.Len(t, events, 3)
	assert.Equal(t, 3, cursor)

	events, cursor = log.Since(cursor)
	assert.Empty(t, events)
	assert.Equal(t, 3, cursor)

	e, err := entity.NewEvent(entity.EventDatasetLiked, nil, "u2", "d1", fixedNow)
	require.NoError(t, err)
	log.Append(e)

	events, cursor = log.Since(cursor)
	require.Len(t, events, 1)
	assert.Equal(t, entity.EventDatasetLiked, events[0].Type)
	assert.Equal(t, 4, cursor)

	liked := slices.Collect(log.List(func(e *entity.Event) bool { return e.Type == entity.EventDatasetLiked }))
	assert.Len(t, liked, 1)
}
