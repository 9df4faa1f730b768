package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EatZeBaby/databooks/internal/appcontext"
	"github.com/EatZeBaby/databooks/internal/entity"
)

func ListTags(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": ctx.Store.TagCounts(c.Request.Context())})
	}
}

type TaggedDataset struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Visibility  entity.Visibility `json:"visibility"`
}

func GetTagDatasets(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		datasets := ctx.Store.DatasetsByTag(c.Request.Context(), c.Param("tag"))
		items := make([]TaggedDataset, 0, len(datasets))
		for _, d := range datasets {
			items = append(items, TaggedDataset{ID: d.ID, Name: d.Name, Description: d.Description, Visibility: d.Visibility})
		}
		c.JSON(http.StatusOK, gin.H{"data": items})
	}
}

func FollowTag(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		tag := c.Param("tag")
		follow := queryBool(c, "follow", true)
		ctx.Store.SetTagFollow(entity.DemoUserID, tag, follow)
		c.JSON(http.StatusOK, gin.H{"tag": tag, "following": follow})
	}
}

func GetTagFollowers(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		tag := c.Param("tag")
		c.JSON(http.StatusOK, gin.H{
			"followers": ctx.Store.TagFollowers(tag),
			"following": ctx.Store.FollowsTag(entity.DemoUserID, tag),
		})
	}
}
