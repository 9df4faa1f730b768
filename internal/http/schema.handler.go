package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/EatZeBaby/databooks/internal/appcontext"
	"github.com/EatZeBaby/databooks/internal/entity"
)

func requireDatabricks(ctx *appcontext.Context, c *gin.Context) bool {
	if ctx.Databricks == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Databricks is not configured"})
		return false
	}
	return true
}

func ListDatabricksSchemas(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireDatabricks(ctx, c) {
			return
		}
		schemas, err := ctx.Databricks.ListSchemas(c.Request.Context(), c.Param("catalog"))
		if err != nil {
			ctx.Logger.Error("Failed to list schemas", zap.String("catalog", c.Param("catalog")), zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"schemas": schemas})
	}
}

func ListDatabricksTables(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireDatabricks(ctx, c) {
			return
		}
		tables, err := ctx.Databricks.ListTables(c.Request.Context(), c.Param("catalog"), c.Param("schema"))
		if err != nil {
			ctx.Logger.Error("Failed to list tables", zap.String("catalog", c.Param("catalog")), zap.String("schema", c.Param("schema")), zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tables": tables})
	}
}

// GetDatabricksTable expects the table as catalog.schema.table.
func GetDatabricksTable(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireDatabricks(ctx, c) {
			return
		}
		parts := strings.SplitN(c.Param("fqn"), ".", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "table must be given as catalog.schema.table"})
			return
		}
		info, err := ctx.Databricks.TableInfo(c.Request.Context(), parts[0], parts[1], parts[2])
		if err != nil {
			ctx.Logger.Error("Failed to get table info", zap.String("table", c.Param("fqn")), zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"table": info})
	}
}

type DatabricksImportRequest struct {
	Catalog     string `json:"catalog"`
	Schema      string `json:"schema"`
	Table       string `json:"table"`
	Description string `json:"description"`
}

// ImportDatabricksTable registers a Unity Catalog table as an internal dataset.
func ImportDatabricksTable(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DatabricksImportRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Catalog == "" || req.Schema == "" || req.Table == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "catalog, schema, table are required"})
			return
		}

		fullName := req.Catalog + "." + req.Schema + "." + req.Table
		dataset, err := ctx.Store.CreateDataset(c.Request.Context(), entity.DatasetCreate{
			Name:        req.Table,
			Description: req.Description,
			OwnerID:     "dbx",
			OrgID:       entity.DefaultOrgID,
			SourceType:  entity.SourceTypeDatabricksUC,
			SourceMetadataJSON: map[string]any{
				"catalog":   req.Catalog,
				"schema":    req.Schema,
				"table":     req.Table,
				"full_name": fullName,
				"path":      fullName,
				"format":    "delta",
			},
			Visibility: entity.VisibilityInternal,
		})
		if dataset != nil {
			ctx.Search.Index(dataset)
		}
		if err != nil {
			respondWriteError(ctx, c, "Failed to import table", dataset, err)
			return
		}
		c.JSON(http.StatusOK, dataset)
	}
}
