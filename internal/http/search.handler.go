package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/EatZeBaby/databooks/internal/appcontext"
	"github.com/EatZeBaby/databooks/internal/entity"
	"github.com/EatZeBaby/databooks/internal/store"
)

const maxSuggestions = 10

// Search matches datasets by name and description. The meilisearch index is
// used when configured, with a local substring scan as the fallback.
func Search(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := strings.TrimSpace(c.Query("q"))
		visibility := entity.Visibility(c.Query("visibility"))
		limit := min(max(queryInt(c, "limit", 20), 1), 100)

		if ctx.Search.Enabled() && query != "" {
			ids, err := ctx.Search.Search(query, visibility, limit)
			if err == nil {
				results := make([]*entity.Dataset, 0, len(ids))
				for _, id := range ids {
					if d, ok := ctx.Store.GetDataset(c.Request.Context(), id); ok {
						results = append(results, d)
					}
				}
				c.JSON(http.StatusOK, gin.H{"results": results})
				return
			}
			ctx.Logger.Error("Failed to perform search", zap.Error(err))
		}

		results := ctx.Store.ListDatasets(c.Request.Context(), store.DatasetFilter{Query: query, Visibility: visibility})
		c.JSON(http.StatusOK, gin.H{"results": results[:min(limit, len(results))]})
	}
}

func SearchSuggestions(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := strings.ToLower(c.Query("q"))
		names := []string{}
		for _, d := range ctx.Store.ListDatasets(c.Request.Context(), store.DatasetFilter{}) {
			if strings.Contains(strings.ToLower(d.Name), q) {
				names = append(names, d.Name)
				if len(names) == maxSuggestions {
					break
				}
			}
		}
		c.JSON(http.StatusOK, gin.H{"suggestions": names})
	}
}
