package store

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// OrderSchemas puts preferred first when present, then the rest lexically,
// without duplicates.
func OrderSchemas(preferred string, schemas []string) []string {
	seen := make(map[string]bool, len(schemas))
	rest := make([]string, 0, len(schemas))
	hasPreferred := false
	for _, s := range schemas {
		if seen[s] {
			continue
		}
		seen[s] = true
		if s == preferred {
			hasPreferred = true
			continue
		}
		rest = append(rest, s)
	}
	slices.Sort(rest)
	if hasPreferred {
		return append([]string{preferred}, rest...)
	}
	return rest
}

// discover reads every row of table. The structured read against the
// configured schema is authoritative when it returns rows; only an empty
// result or a schema error falls through to the other schemas holding a
// table of that name, then to the connection's search path. Finding nothing
// is an empty result, not an error.
func discover[T any](ctx context.Context, d *Durable, table string) ([]*T, error) {
	var rows []*T
	err := classify(d.db.WithContext(ctx).Table(d.table(table)).Order("created_at").Find(&rows).Error)
	switch {
	case err == nil && len(rows) > 0:
		return rows, nil
	case err != nil && !ErrSchema.Has(err):
		return nil, err
	}

	schemas, err := d.schemasWithTable(ctx, table)
	if err != nil {
		d.log.Debug("Failed to enumerate schemas", zap.String("table", table), zap.Error(err))
	}
	for _, schema := range OrderSchemas(d.schema, schemas) {
		rows, err := readQualified[T](ctx, d, schema, table)
		if err != nil {
			d.log.Debug("Skipping schema candidate", zap.String("schema", schema), zap.String("table", table), zap.Error(err))
			continue
		}
		if len(rows) > 0 {
			if schema != d.schema {
				d.log.Info("Found rows outside the configured schema",
					zap.String("table", table), zap.String("schema", schema), zap.String("configured", d.schema))
			}
			return rows, nil
		}
	}

	rows = nil
	if err := d.db.WithContext(ctx).Raw("SELECT * FROM " + quoteIdent(table)).Scan(&rows).Error; err != nil {
		d.log.Debug("Unqualified read failed", zap.String("table", table), zap.Error(err))
		return nil, nil
	}
	return rows, nil
}

// discoverByID runs the same cascade for the row with the given id. The
// configured schema is read once; a miss or a schema error there moves on to
// the other candidates and finally the search path.
func discoverByID[T any](ctx context.Context, d *Durable, table, id string) (*T, error) {
	var row T
	err := classify(d.db.WithContext(ctx).Table(d.table(table)).Where("id = ?", id).Take(&row).Error)
	switch {
	case err == nil:
		return &row, nil
	case !ErrNotFound.Has(err) && !ErrSchema.Has(err):
		return nil, err
	}
	configuredMissed := ErrNotFound.Has(err)

	schemas, err := d.schemasWithTable(ctx, table)
	if err != nil {
		d.log.Debug("Failed to enumerate schemas", zap.String("table", table), zap.Error(err))
	}
	for _, schema := range OrderSchemas(d.schema, schemas) {
		if configuredMissed && schema == d.schema {
			continue
		}
		rows, err := readQualified[T](ctx, d, schema, table, id)
		if err != nil {
			d.log.Debug("Skipping schema candidate", zap.String("schema", schema), zap.String("table", table), zap.Error(err))
			continue
		}
		if len(rows) > 0 {
			if schema != d.schema {
				d.log.Info("Found row outside the configured schema",
					zap.String("table", table), zap.String("schema", schema), zap.String("id", id))
			}
			return rows[0], nil
		}
	}

	var rows []*T
	if err := d.db.WithContext(ctx).Raw("SELECT * FROM "+quoteIdent(table)+" WHERE id = ?", id).Scan(&rows).Error; err != nil {
		d.log.Debug("Unqualified read failed", zap.String("table", table), zap.Error(err))
	}
	if len(rows) == 0 {
		return nil, ErrNotFound.New("%s %s", table, id)
	}
	return rows[0], nil
}

// readQualified reads table in schema, restricted to one id when given.
func readQualified[T any](ctx context.Context, d *Durable, schema, table string, id ...string) ([]*T, error) {
	var rows []*T
	query := fmt.Sprintf("SELECT * FROM %s.%s", quoteIdent(schema), quoteIdent(table))
	var args []any
	if len(id) > 0 {
		query += " WHERE id = ?"
		args = append(args, id[0])
	}
	if err := d.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

// schemasWithTable lists every schema in the catalog holding a table named table.
func (d *Durable) schemasWithTable(ctx context.Context, table string) ([]string, error) {
	db := d.db.WithContext(ctx)

	if d.dialect != dialectSQLite {
		var schemas []string
		err := db.Raw("SELECT table_schema FROM information_schema.tables WHERE table_name = ?", table).
			Scan(&schemas).Error
		return schemas, classify(err)
	}

	var databases []struct {
		Seq  int
		Name string
		File string
	}
	if err := db.Raw("PRAGMA database_list").Scan(&databases).Error; err != nil {
		return nil, classify(err)
	}
	var schemas []string
	for _, database := range databases {
		var count int64
		query := fmt.Sprintf("SELECT count(*) FROM %s.sqlite_master WHERE type = 'table' AND name = ?", quoteIdent(database.Name))
		if err := db.Raw(query, table).Scan(&count).Error; err != nil {
			return schemas, classify(err)
		}
		if count > 0 {
			schemas = append(schemas, database.Name)
		}
	}
	return schemas, nil
}
