package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/EatZeBaby/databooks/internal/appcontext"
	"github.com/EatZeBaby/databooks/internal/entity"
	"github.com/EatZeBaby/databooks/internal/warehouse"
)

func ListConnectors(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": warehouse.Connectors()})
	}
}

// Connector tests always answer 200; the outcome is carried in the body.

func TestSnowflake(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cfg warehouse.SnowflakeConfig
		if !bindOptionalJSON(c, &cfg) {
			return
		}
		c.JSON(http.StatusOK, ctx.Snowflake.Test(c.Request.Context(), cfg))
	}
}

type DatabricksTestRequest struct {
	Catalog string `json:"catalog"`
	Schema  string `json:"schema"`
}

func TestDatabricks(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DatabricksTestRequest
		if !bindOptionalJSON(c, &req) {
			return
		}
		if ctx.Databricks == nil {
			c.JSON(http.StatusOK, warehouse.TestResult{OK: false, Error: "Databricks is not configured"})
			return
		}
		c.JSON(http.StatusOK, ctx.Databricks.Test(c.Request.Context(), req.Catalog, req.Schema))
	}
}

type PostgresTestRequest struct {
	Schema string `json:"schema"`
}

func TestPostgres(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PostgresTestRequest
		if !bindOptionalJSON(c, &req) {
			return
		}
		c.JSON(http.StatusOK, ctx.Postgres.Test(c.Request.Context(), req.Schema))
	}
}

func TestBigQuery(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ctx.BigQuery.Test(c.Request.Context(), entity.DemoUserID))
	}
}

type PostgresImportRequest struct {
	Schema string   `json:"schema"`
	Tables []string `json:"tables"`
}

// ImportPostgres registers tables of a Postgres schema as internal datasets.
// Without an explicit table list every base table of the schema is imported.
func ImportPostgres(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PostgresImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid request body"})
			return
		}
		if req.Schema == "" {
			req.Schema = ctx.Postgres.ImportSchema()
		}
		if len(req.Tables) == 0 {
			tables, err := ctx.Postgres.ListTables(c.Request.Context(), req.Schema)
			if err != nil {
				ctx.Logger.Error("Failed to list Postgres tables", zap.String("schema", req.Schema), zap.Error(err))
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			req.Tables = tables
		}

		created := []string{}
		var group errs.Group
		for _, table := range req.Tables {
			d, err := ctx.Store.CreateDataset(c.Request.Context(), entity.DatasetCreate{
				Name:               table,
				Description:        fmt.Sprintf("Imported from Postgres %s.%s", req.Schema, table),
				OwnerID:            "system",
				OrgID:              entity.DefaultOrgID,
				SourceType:         entity.SourceTypePostgres,
				SourceMetadataJSON: map[string]any{"schema": req.Schema, "table": table},
				Visibility:         entity.VisibilityInternal,
			})
			group.Add(err)
			if d == nil {
				continue
			}
			created = append(created, d.ID)
			ctx.Search.Index(d)
		}

		body := gin.H{"created": created}
		if err := group.Err(); err != nil {
			respondWriteError(ctx, c, "Failed to import Postgres tables", body, err)
			return
		}
		c.JSON(http.StatusOK, body)
	}
}
