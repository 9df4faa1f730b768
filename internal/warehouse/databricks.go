package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/service/catalog"
	"github.com/databricks/databricks-sdk-go/service/database"
	dbsql "github.com/databricks/databricks-sql-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DatabricksConfig struct {
	Profile  string
	Host     string
	Token    string
	HTTPPath string
	Catalog  string
	Schema   string
}

// Databricks talks to a workspace through the SDK. The workspace client is
// built on first use so a process without Databricks credentials still starts.
type Databricks struct {
	cfg    DatabricksConfig
	logger *zap.Logger

	once   sync.Once
	client *databricks.WorkspaceClient
	err    error
}

func NewDatabricks(cfg DatabricksConfig, logger *zap.Logger) *Databricks {
	return &Databricks{cfg: cfg, logger: logger}
}

func (d *Databricks) workspace() (*databricks.WorkspaceClient, error) {
	d.once.Do(func() {
		cfg := &databricks.Config{Profile: d.cfg.Profile}
		if d.cfg.Host != "" && d.cfg.Token != "" {
			cfg = &databricks.Config{Host: d.cfg.Host, Token: d.cfg.Token}
		}
		d.client, d.err = databricks.NewWorkspaceClient(cfg)
		if d.err != nil {
			d.err = fmt.Errorf("failed to create Databricks workspace client: %w", d.err)
		}
	})
	return d.client, d.err
}

func (d *Databricks) ListSchemas(ctx context.Context, catalogName string) ([]string, error) {
	w, err := d.workspace()
	if err != nil {
		return nil, err
	}
	schemas, err := w.Schemas.ListAll(ctx, catalog.ListSchemasRequest{CatalogName: catalogName})
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas in %s: %w", catalogName, err)
	}
	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		names = append(names, s.Name)
	}
	return names, nil
}

func (d *Databricks) ListTables(ctx context.Context, catalogName, schemaName string) ([]TableSummary, error) {
	w, err := d.workspace()
	if err != nil {
		return nil, err
	}
	tables, err := w.Tables.ListAll(ctx, catalog.ListTablesRequest{CatalogName: catalogName, SchemaName: schemaName})
	if err != nil {
		return nil, fmt.Errorf("failed to list tables in %s.%s: %w", catalogName, schemaName, err)
	}
	out := make([]TableSummary, 0, len(tables))
	for _, t := range tables {
		out = append(out, TableSummary{
			Name:             t.Name,
			FullName:         t.FullName,
			TableType:        string(t.TableType),
			DataSourceFormat: string(t.DataSourceFormat),
		})
	}
	return out, nil
}

func (d *Databricks) TableInfo(ctx context.Context, catalogName, schemaName, table string) (*TableDetail, error) {
	w, err := d.workspace()
	if err != nil {
		return nil, err
	}
	fqn := fmt.Sprintf("%s.%s.%s", catalogName, schemaName, table)
	t, err := w.Tables.Get(ctx, catalog.GetTableRequest{FullName: fqn})
	if err != nil {
		return nil, fmt.Errorf("failed to get table %s: %w", fqn, err)
	}

	detail := &TableDetail{
		FullName:         fallback(t.FullName, fqn),
		CatalogName:      fallback(t.CatalogName, catalogName),
		SchemaName:       fallback(t.SchemaName, schemaName),
		Name:             fallback(t.Name, table),
		TableType:        string(t.TableType),
		DataSourceFormat: string(t.DataSourceFormat),
		Owner:            t.Owner,
		Comment:          t.Comment,
		Description:      t.Comment,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		StorageLocation:  t.StorageLocation,
		Properties:       t.Properties,
		Columns:          make([]ColumnDetail, 0, len(t.Columns)),
	}
	if detail.Properties == nil {
		detail.Properties = map[string]string{}
	}
	for _, c := range t.Columns {
		detail.Columns = append(detail.Columns, ColumnDetail{
			Name:     c.Name,
			TypeText: fallback(c.TypeText, string(c.TypeName)),
			Nullable: c.Nullable,
			Comment:  c.Comment,
		})
	}
	return detail, nil
}

// Test checks workspace access and samples catalogs, schemas and tables.
func (d *Databricks) Test(ctx context.Context, catalogName, schemaName string) TestResult {
	w, err := d.workspace()
	if err != nil {
		return failed(err)
	}
	me, err := w.CurrentUser.Me(ctx)
	if err != nil {
		d.logger.Error("Databricks test: connection failed", zap.Error(err))
		return failed(err)
	}
	d.logger.Info("Databricks test", zap.String("user", fallback(me.UserName, me.DisplayName)))

	details := map[string]any{}
	catalogs, err := w.Catalogs.ListAll(ctx, catalog.ListCatalogsRequest{})
	if err != nil {
		d.logger.Warn("Databricks test: list catalogs failed", zap.Error(err))
	}
	names := make([]string, 0, len(catalogs))
	for _, c := range catalogs {
		names = append(names, c.Name)
	}
	details["catalogs"] = sample(names, 10)

	catalogName = fallback(catalogName, d.cfg.Catalog)
	schemaName = fallback(schemaName, d.cfg.Schema)
	if catalogName != "" {
		schemas, err := d.ListSchemas(ctx, catalogName)
		if err != nil {
			d.logger.Warn("Databricks test: list schemas failed", zap.Error(err))
			schemas = []string{}
		}
		details["schemas"] = sample(schemas, 200)
		details["schemas_sample"] = sample(schemas, 10)
	}
	if catalogName != "" && schemaName != "" {
		tables, err := d.ListTables(ctx, catalogName, schemaName)
		if err != nil {
			d.logger.Warn("Databricks test: list tables failed", zap.Error(err))
		}
		tableNames := make([]string, 0, len(tables))
		for _, t := range tables {
			tableNames = append(tableNames, t.Name)
		}
		details["tables_sample"] = sample(tableNames, 10)
		details["catalog"] = catalogName
		details["schema"] = schemaName
	}

	if d.cfg.HTTPPath != "" && d.cfg.Host != "" && d.cfg.Token != "" {
		if err := d.PingWarehouse(ctx); err != nil {
			d.logger.Warn("Databricks test: SQL warehouse ping failed", zap.Error(err))
			details["sql_warehouse"] = err.Error()
		} else {
			details["sql_warehouse"] = "ok"
		}
	}
	return TestResult{OK: true, Details: details}
}

// PingWarehouse opens a connection to the configured SQL warehouse and runs SELECT 1.
func (d *Databricks) PingWarehouse(ctx context.Context) error {
	connector, err := dbsql.NewConnector(
		dbsql.WithServerHostname(d.cfg.Host),
		dbsql.WithPort(443),
		dbsql.WithHTTPPath(d.cfg.HTTPPath),
		dbsql.WithAccessToken(d.cfg.Token),
	)
	if err != nil {
		return fmt.Errorf("failed to create Databricks SQL connector: %w", err)
	}
	db := sql.OpenDB(connector)
	defer db.Close()

	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("failed to query Databricks SQL warehouse: %w", err)
	}
	return nil
}

// MintCredential generates a short-lived credential for a database instance.
func (d *Databricks) MintCredential(ctx context.Context, instance string) (string, error) {
	w, err := d.workspace()
	if err != nil {
		return "", err
	}
	cred, err := w.Database.GenerateDatabaseCredential(ctx, database.GenerateDatabaseCredentialRequest{
		InstanceNames: []string{instance},
		RequestId:     uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate database credential: %w", err)
	}
	if cred.Token == "" {
		return "", fmt.Errorf("failed to generate database credential: token missing in response")
	}
	return cred.Token, nil
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
