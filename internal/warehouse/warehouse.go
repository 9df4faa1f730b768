package warehouse

import "context"

// TestResult is the outcome of a connector connectivity test.
type TestResult struct {
	OK      bool           `json:"ok"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func failed(err error) TestResult {
	return TestResult{OK: false, Error: err.Error()}
}

type Connector struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	CapabilityFlags []string `json:"capability_flags"`
}

// Connectors lists the supported source platforms and what each can do.
func Connectors() []Connector {
	return []Connector{
		{ID: "snowflake", Type: "snowflake", CapabilityFlags: []string{"render", "test"}},
		{ID: "databricks", Type: "databricks", CapabilityFlags: []string{"render", "test"}},
		{ID: "bigquery", Type: "bigquery", CapabilityFlags: []string{"render", "test"}},
		{ID: "redshift", Type: "redshift", CapabilityFlags: []string{"render"}},
		{ID: "postgres", Type: "postgres", CapabilityFlags: []string{"render", "test", "import"}},
	}
}

type TableSummary struct {
	Name             string `json:"name"`
	FullName         string `json:"full_name"`
	TableType        string `json:"table_type"`
	DataSourceFormat string `json:"data_source_format"`
}

type ColumnDetail struct {
	Name     string `json:"name"`
	TypeText string `json:"type_text"`
	Nullable bool   `json:"nullable"`
	Comment  string `json:"comment"`
}

type TableDetail struct {
	FullName         string            `json:"full_name"`
	CatalogName      string            `json:"catalog_name"`
	SchemaName       string            `json:"schema_name"`
	Name             string            `json:"name"`
	TableType        string            `json:"table_type"`
	DataSourceFormat string            `json:"data_source_format"`
	Owner            string            `json:"owner"`
	Comment          string            `json:"comment"`
	Description      string            `json:"description"`
	CreatedAt        int64             `json:"created_at"`
	UpdatedAt        int64             `json:"updated_at"`
	StorageLocation  string            `json:"storage_location"`
	Properties       map[string]string `json:"properties"`
	Columns          []ColumnDetail    `json:"columns"`
}

// UnityCatalog browses a Databricks workspace catalog.
type UnityCatalog interface {
	ListSchemas(ctx context.Context, catalog string) ([]string, error)
	ListTables(ctx context.Context, catalog, schema string) ([]TableSummary, error)
	TableInfo(ctx context.Context, catalog, schema, table string) (*TableDetail, error)
	Test(ctx context.Context, catalog, schema string) TestResult
}

func sample(names []string, n int) []string {
	if len(names) > n {
		return names[:n]
	}
	return names
}
