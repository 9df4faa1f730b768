package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EatZeBaby/databooks/internal/appcontext"
)

type CompanyItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ListCompanies lists user counts per company, alphabetically.
func ListCompanies(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts := ctx.Store.Companies(c.Request.Context())
		items := make([]CompanyItem, 0, len(counts))
		for _, cc := range counts {
			items = append(items, CompanyItem{Name: cc.Company, Count: cc.Users})
		}
		c.JSON(http.StatusOK, gin.H{"companies": items})
	}
}

func GetCompany(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ctx.Store.CompanyOverview(c.Request.Context(), c.Param("company")))
	}
}
