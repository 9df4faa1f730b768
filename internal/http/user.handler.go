package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EatZeBaby/databooks/internal/appcontext"
	"github.com/EatZeBaby/databooks/internal/entity"
)

func GetMe(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ctx.Store.Me(c.Request.Context()))
	}
}

func PatchMe(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch entity.UserPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid request body"})
			return
		}

		user, err := ctx.Store.PatchUser(c.Request.Context(), entity.DemoUserID, patch, entity.MaxSelfTools)
		if err != nil {
			respondWriteError(ctx, c, "Failed to update profile", user, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func ListUsers(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := max(queryInt(c, "limit", 50), 0)
		offset := max(queryInt(c, "offset", 0), 0)

		users := ctx.Store.ListUsers(c.Request.Context(), c.Query("q"))
		start := min(offset, len(users))
		end := min(start+limit, len(users))

		c.JSON(http.StatusOK, gin.H{"data": users[start:end], "total": len(users)})
	}
}

// GetUser never 404s; unknown ids get a synthetic profile.
func GetUser(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		user, ok := ctx.Store.GetUser(c.Request.Context(), id)
		if !ok {
			user = entity.SyntheticUser(id, ctx.Store.Now())
		}
		c.JSON(http.StatusOK, user)
	}
}

func GetUserProfile(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := ctx.Store.GetUser(c.Request.Context(), c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// GetUserActivity returns the dataset ids the user likes and follows. With
// resolve=true the datasets themselves are returned.
func GetUserActivity(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if queryBool(c, "resolve", false) {
			c.JSON(http.StatusOK, ctx.Store.UserActivity(c.Request.Context(), id))
			return
		}
		social := ctx.Store.UserSocial(c.Request.Context(), id)
		c.JSON(http.StatusOK, gin.H{"liked": social.Liked, "following": social.Following})
	}
}

func GetMyPlatformProfile(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, ok := ctx.Store.GetProfile(c.Request.Context(), entity.DemoUserID)
		if !ok {
			profile = entity.DefaultPlatformProfile(entity.DemoUserID)
		}
		c.JSON(http.StatusOK, profile)
	}
}

type PlatformProfileUpdate struct {
	PlatformType entity.PlatformType `json:"platform_type" binding:"required"`
	ConfigJSON   map[string]any      `json:"config_json"`
}

func PutMyPlatformProfile(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PlatformProfileUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "platform_type is required"})
			return
		}

		profile, err := ctx.Store.PutProfile(c.Request.Context(), entity.DemoUserID, req.PlatformType, req.ConfigJSON)
		if err != nil {
			respondWriteError(ctx, c, "Failed to save platform profile", profile, err)
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}
