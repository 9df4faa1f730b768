package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/EatZeBaby/databooks/internal/entity"
	"github.com/EatZeBaby/databooks/internal/store"
)

func TestOrderSchemas(t *testing.T) {
	assert.Equal(t, []string{"public", "analytics", "drift"},
		store.OrderSchemas("public", []string{"drift", "public", "analytics", "drift"}))
	assert.Equal(t, []string{"a", "b"}, store.OrderSchemas("public", []string{"b", "a"}))
	assert.Empty(t, store.OrderSchemas("public", nil))
}

// attachDrift builds a second database file with its own migrated tables,
// lets seed write into it through a separate handle, then attaches it to db
// as the schema drift.
func attachDrift(t *testing.T, db *gorm.DB, seed func(drift *store.Durable)) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "drift.db")

	driftDB, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	drift := store.NewDurable(driftDB, "", zap.NewNop())
	require.NoError(t, drift.Migrate(ctx))
	if seed != nil {
		seed(drift)
	}
	sqlDB, err := driftDB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	require.NoError(t, db.Exec("ATTACH DATABASE ? AS drift", path).Error)
}

func seedDatasets(t *testing.T, rows ...*entity.Dataset) func(*store.Durable) {
	return func(drift *store.Durable) {
		for _, r := range rows {
			require.NoError(t, drift.UpsertDataset(context.Background(), r))
		}
	}
}

func countRows(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Raw("SELECT count(*) FROM "+table).Scan(&n).Error)
	return n
}

func TestDiscoveryFindsRowsInOtherSchema(t *testing.T) {
	ctx := context.Background()
	d := migratedDurable(t)

	want := []*entity.Dataset{newDataset(t, "orders"), newDataset(t, "customers"), newDataset(t, "invoices")}
	attachDrift(t, d.DB(), seedDatasets(t, want...))
	require.Zero(t, countRows(t, d.DB(), "main.datasets"))
	require.EqualValues(t, len(want), countRows(t, d.DB(), "drift.datasets"))

	rows, err := d.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, rows, len(want))

	var names []string
	for _, r := range rows {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{"orders", "customers", "invoices"}, names)
}

func TestDiscoveryPrefersConfiguredSchemaRows(t *testing.T) {
	ctx := context.Background()
	d := migratedDurable(t)

	home := newDataset(t, "home")
	require.NoError(t, d.UpsertDataset(ctx, home))
	attachDrift(t, d.DB(), seedDatasets(t, newDataset(t, "stray")))
	require.EqualValues(t, 1, countRows(t, d.DB(), "drift.datasets"))

	rows, err := d.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "home", rows[0].Name)
}

func TestDiscoveryAfterSchemaError(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	require.NoError(t, store.NewDurable(db, "", zap.NewNop()).Migrate(ctx))

	main := store.NewDurable(db, "", zap.NewNop())
	ds := newDataset(t, "orders")
	require.NoError(t, main.UpsertDataset(ctx, ds))

	misconfigured := store.NewDurable(db, "warehouse", zap.NewNop())
	rows, err := misconfigured.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ds.ID, rows[0].ID)
}

func TestDiscoveryEmptyEverywhereIsNotAnError(t *testing.T) {
	ctx := context.Background()
	d := migratedDurable(t)
	attachDrift(t, d.DB(), nil)

	rows, err := d.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	users, err := d.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestDiscoveryByIDFindsRowInOtherSchema(t *testing.T) {
	ctx := context.Background()
	d := migratedDurable(t)

	ds := newDataset(t, "orders")
	u, err := entity.NewUser(entity.UserCreate{ID: "user-1", Name: "Ada", Company: "Acme"}, fixedNow)
	require.NoError(t, err)
	attachDrift(t, d.DB(), func(drift *store.Durable) {
		require.NoError(t, drift.UpsertDataset(ctx, ds))
		require.NoError(t, drift.UpsertUser(ctx, u))
	})
	require.Zero(t, countRows(t, d.DB(), "main.datasets"))

	got, err := d.GetDataset(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, "orders", got.Name)

	gotUser, err := d.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", gotUser.Company)

	_, err = d.GetDataset(ctx, "missing")
	assert.True(t, store.ErrNotFound.Has(err))
}

func TestDiscoveryByIDPrefersConfiguredSchema(t *testing.T) {
	ctx := context.Background()
	d := migratedDurable(t)

	ds := newDataset(t, "home")
	require.NoError(t, d.UpsertDataset(ctx, ds))
	stray := ds.Clone()
	stray.Name = "stray"
	attachDrift(t, d.DB(), seedDatasets(t, stray))

	got, err := d.GetDataset(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, "home", got.Name)
}

func TestDiscoveryByIDAfterSchemaError(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	main := store.NewDurable(db, "", zap.NewNop())
	require.NoError(t, main.Migrate(ctx))
	ds := newDataset(t, "orders")
	require.NoError(t, main.UpsertDataset(ctx, ds))

	got, err := store.NewDurable(db, "warehouse", zap.NewNop()).GetDataset(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, ds.ID, got.ID)
}

func TestStoreReadsAndPatchesDriftedDataset(t *testing.T) {
	ctx := context.Background()
	d := migratedDurable(t)
	ds := newDataset(t, "orders")
	attachDrift(t, d.DB(), seedDatasets(t, ds))

	s := store.New(store.NewMemory(), d, zap.NewNop(), store.WithClock(tickingClock()))

	got, ok := s.GetDataset(ctx, ds.ID)
	require.True(t, ok)
	assert.Equal(t, "orders", got.Name)

	description := "recovered"
	patched, err := s.PatchDataset(ctx, ds.ID, entity.DatasetPatch{Description: &description})
	require.NoError(t, err)
	assert.Equal(t, "recovered", patched.Description)

	mirrored, err := d.GetDataset(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, "recovered", mirrored.Description)
}
