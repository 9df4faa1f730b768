package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EatZeBaby/databooks/internal/utils"
	"github.com/EatZeBaby/databooks/internal/warehouse"
)

func TestDiffColumns(t *testing.T) {
	oldColumns := []warehouse.ColumnDetail{
		{Name: "id", TypeText: "bigint"},
		{Name: "amount", TypeText: "int", Nullable: true},
		{Name: "legacy_flag", TypeText: "boolean"},
	}
	newColumns := []warehouse.ColumnDetail{
		{Name: "id", TypeText: "bigint"},
		{Name: "amount", TypeText: "decimal(10,2)", Nullable: false, Comment: "in cents"},
		{Name: "currency", TypeText: "string"},
	}

	changes := utils.DiffColumns(oldColumns, newColumns)
	require.Len(t, changes, 3)

	assert.Equal(t, "amount", changes[0].Column)
	assert.Equal(t, utils.ChangeModified, changes[0].Change)
	assert.Equal(t, map[string]any{"old": "int", "new": "decimal(10,2)"}, changes[0].Details["type"])
	assert.Equal(t, map[string]any{"old": true, "new": false}, changes[0].Details["nullable"])
	assert.Equal(t, map[string]any{"old": "", "new": "in cents"}, changes[0].Details["comment"])

	assert.Equal(t, utils.ColumnChange{Column: "currency", Change: utils.ChangeAdded, Details: map[string]any{"type": "string"}}, changes[1])
	assert.Equal(t, utils.ColumnChange{Column: "legacy_flag", Change: utils.ChangeRemoved, Details: map[string]any{"type": "boolean"}}, changes[2])
}

func TestDiffColumnsUnchanged(t *testing.T) {
	cols := []warehouse.ColumnDetail{{Name: "id", TypeText: "bigint"}}
	assert.Empty(t, utils.DiffColumns(cols, cols))
}

func TestColumnsSnapshot(t *testing.T) {
	cols := []warehouse.ColumnDetail{
		{Name: "id", TypeText: "bigint"},
		{Name: "amount", TypeText: "decimal(10,2)", Nullable: true, Comment: "in cents"},
	}

	restored, ok := utils.ColumnsFromSnapshot(utils.ColumnsSnapshot(cols))
	require.True(t, ok)
	assert.Equal(t, cols, restored)

	_, ok = utils.ColumnsFromSnapshot(nil)
	assert.False(t, ok)

	_, ok = utils.ColumnsFromSnapshot("not a snapshot")
	assert.False(t, ok)
}

func TestColumnChangePayload(t *testing.T) {
	change := utils.ColumnChange{Column: "id", Change: utils.ChangeAdded, Details: map[string]any{"type": "bigint"}}
	assert.Equal(t, map[string]any{
		"column":  "id",
		"change":  "added",
		"details": map[string]any{"type": "bigint"},
	}, change.Payload())
}
