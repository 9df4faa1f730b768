package appcontext

import (
	"go.uber.org/zap"

	"github.com/EatZeBaby/databooks/internal/services"
	"github.com/EatZeBaby/databooks/internal/store"
	"github.com/EatZeBaby/databooks/internal/warehouse"
)

type Context struct {
	Store  *store.Store
	Logger *zap.Logger

	Search   *services.SearchIndex
	Mailer   *services.Mailer
	Snippets *services.SnippetRenderer

	Databricks warehouse.UnityCatalog
	Snowflake  *warehouse.Snowflake
	BigQuery   *warehouse.BigQuery
	Postgres   *warehouse.Postgres

	Port           string
	Environment    string
	AllowedOrigins []string
}
