package warehouse

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

const DefaultImportSchema = "printshop"

// Postgres inspects the catalog database itself, reusing the durable store's
// connection. db may be nil when no database is configured.
type Postgres struct {
	db     *gorm.DB
	schema string
}

func NewPostgres(db *gorm.DB, importSchema string) *Postgres {
	if importSchema == "" {
		importSchema = DefaultImportSchema
	}
	return &Postgres{db: db, schema: importSchema}
}

func (p *Postgres) ImportSchema() string { return p.schema }

func (p *Postgres) Test(ctx context.Context, schema string) TestResult {
	if p.db == nil {
		return TestResult{OK: false, Error: "DATABASE_URL not configured"}
	}
	schema = fallback(schema, p.schema)
	db := p.db.WithContext(ctx)

	var version string
	if err := db.Raw("SELECT version()").Scan(&version).Error; err != nil {
		return failed(err)
	}
	if fields := strings.Fields(version); len(fields) > 1 {
		version = fields[0] + " " + fields[1]
	}

	var schemas []string
	if err := db.Raw(`SELECT schema_name FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
		ORDER BY schema_name LIMIT 20`).Scan(&schemas).Error; err != nil {
		return failed(err)
	}

	tables, err := p.ListTables(ctx, schema)
	if err != nil {
		return failed(err)
	}
	return TestResult{OK: true, Details: map[string]any{
		"version":        version,
		"schema":         schema,
		"schemas_sample": schemas,
		"tables_sample":  sample(tables, 50),
	}}
}

// ListTables returns the base tables of schema in name order.
func (p *Postgres) ListTables(ctx context.Context, schema string) ([]string, error) {
	if p.db == nil {
		return nil, fmt.Errorf("DATABASE_URL not configured")
	}
	var tables []string
	err := p.db.WithContext(ctx).Raw(`SELECT table_name FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`, fallback(schema, p.schema)).Scan(&tables).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}
