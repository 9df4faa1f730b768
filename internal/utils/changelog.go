package utils

import (
	"encoding/json"
	"sort"

	"github.com/EatZeBaby/databooks/internal/warehouse"
)

const (
	ChangeAdded    = "added"
	ChangeRemoved  = "removed"
	ChangeModified = "modified"
)

// ColumnChange is one difference between two snapshots of a table's columns.
type ColumnChange struct {
	Column  string         `json:"column"`
	Change  string         `json:"change"`
	Details map[string]any `json:"details"`
}

// Payload is the event payload recorded for the change.
func (c ColumnChange) Payload() map[string]any {
	return map[string]any{"column": c.Column, "change": c.Change, "details": c.Details}
}

func compareColumn(oldCol, newCol warehouse.ColumnDetail) map[string]any {
	details := map[string]any{}
	if oldCol.TypeText != newCol.TypeText {
		details["type"] = map[string]any{"old": oldCol.TypeText, "new": newCol.TypeText}
	}
	if oldCol.Nullable != newCol.Nullable {
		details["nullable"] = map[string]any{"old": oldCol.Nullable, "new": newCol.Nullable}
	}
	if oldCol.Comment != newCol.Comment {
		details["comment"] = map[string]any{"old": oldCol.Comment, "new": newCol.Comment}
	}
	return details
}

// DiffColumns lists added, removed and modified columns, ordered by column name.
func DiffColumns(oldColumns, newColumns []warehouse.ColumnDetail) []ColumnChange {
	oldColumnsMap := make(map[string]warehouse.ColumnDetail, len(oldColumns))
	for _, col := range oldColumns {
		oldColumnsMap[col.Name] = col
	}

	changes := []ColumnChange{}
	for _, newCol := range newColumns {
		oldCol, exists := oldColumnsMap[newCol.Name]
		if !exists {
			changes = append(changes, ColumnChange{
				Column:  newCol.Name,
				Change:  ChangeAdded,
				Details: map[string]any{"type": newCol.TypeText},
			})
			continue
		}
		if details := compareColumn(oldCol, newCol); len(details) > 0 {
			changes = append(changes, ColumnChange{Column: newCol.Name, Change: ChangeModified, Details: details})
		}
		delete(oldColumnsMap, newCol.Name)
	}

	for _, oldCol := range oldColumnsMap {
		changes = append(changes, ColumnChange{
			Column:  oldCol.Name,
			Change:  ChangeRemoved,
			Details: map[string]any{"type": oldCol.TypeText},
		})
	}

	sort.SliceStable(changes, func(i, j int) bool { return changes[i].Column < changes[j].Column })
	return changes
}

// ColumnsSnapshot encodes columns for storage in dataset source metadata.
func ColumnsSnapshot(columns []warehouse.ColumnDetail) []any {
	out := make([]any, 0, len(columns))
	for _, col := range columns {
		out = append(out, map[string]any{
			"name":     col.Name,
			"type":     col.TypeText,
			"nullable": col.Nullable,
			"comment":  col.Comment,
		})
	}
	return out
}

// ColumnsFromSnapshot decodes what ColumnsSnapshot stored. A missing or
// unreadable snapshot yields no columns and false.
func ColumnsFromSnapshot(v any) ([]warehouse.ColumnDetail, bool) {
	if v == nil {
		return nil, false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var stored []struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		Nullable bool   `json:"nullable"`
		Comment  string `json:"comment"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, false
	}
	out := make([]warehouse.ColumnDetail, 0, len(stored))
	for _, s := range stored {
		out = append(out, warehouse.ColumnDetail{Name: s.Name, TypeText: s.Type, Nullable: s.Nullable, Comment: s.Comment})
	}
	return out, true
}
