package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/EatZeBaby/databooks/internal/appcontext"
	"github.com/EatZeBaby/databooks/internal/entity"
	"github.com/EatZeBaby/databooks/internal/seed"
)

func SeedUsers(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req seed.UsersRequest
		if !bindOptionalJSON(c, &req) {
			return
		}

		result, err := seed.New(ctx.Store, 0, ctx.Logger).SeedUsers(c.Request.Context(), req)
		if err != nil {
			respondWriteError(ctx, c, "Failed to seed users", result, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func SeedActivity(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		users := max(queryInt(c, "users", 10), 0)
		interactions := max(queryInt(c, "interactions", 50), 0)

		result, err := seed.New(ctx.Store, 0, ctx.Logger).SeedActivity(c.Request.Context(), users, interactions)
		if err != nil {
			respondWriteError(ctx, c, "Failed to seed activity", result, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// withUserDefaults fills what an admin left out of a new user.
func withUserDefaults(req entity.UserCreate) entity.UserCreate {
	if req.ID == "" {
		req.ID = "user-" + uuid.NewString()
	}
	if req.Name == "" {
		req.Name = "New User"
	}
	if req.Email == "" {
		req.Email = req.ID[:min(6, len(req.ID))] + "@example.com"
	}
	if req.AvatarURL == "" {
		req.AvatarURL = seed.AvatarURL(req.Name)
	}
	if len(req.Tools) == 0 {
		req.Tools = []string{string(entity.PlatformDatabricks)}
	}
	return req
}

func AdminCreateUser(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req entity.UserCreate
		if !bindOptionalJSON(c, &req) {
			return
		}
		createUser(ctx, c, withUserDefaults(req))
	}
}

func createUser(ctx *appcontext.Context, c *gin.Context, req entity.UserCreate) {
	user, err := entity.NewUser(req, ctx.Store.Now())
	if err != nil {
		respondWriteError(ctx, c, "Failed to create user", nil, err)
		return
	}
	user, err = ctx.Store.PutUser(c.Request.Context(), user)
	if err != nil {
		respondWriteError(ctx, c, "Failed to create user", user, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// AdminUpdateUser patches a user, creating it first when the id is unknown.
func AdminUpdateUser(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		var patch entity.UserPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid request body"})
			return
		}

		if _, ok := ctx.Store.GetUser(c.Request.Context(), id); !ok {
			createUser(ctx, c, withUserDefaults(userCreateFromPatch(id, patch)))
			return
		}

		user, err := ctx.Store.PatchUser(c.Request.Context(), id, patch, entity.MaxTools)
		if err != nil {
			respondWriteError(ctx, c, "Failed to update user", user, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func userCreateFromPatch(id string, p entity.UserPatch) entity.UserCreate {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	req := entity.UserCreate{
		ID:         id,
		Name:       deref(p.Name),
		Email:      deref(p.Email),
		AvatarURL:  deref(p.AvatarURL),
		JobTitle:   deref(p.JobTitle),
		Company:    deref(p.Company),
		Subsidiary: deref(p.Subsidiary),
		Role:       deref(p.Role),
	}
	if p.Tools != nil {
		req.Tools = *p.Tools
	}
	return req
}

func AdminBulkUsers(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		count := min(max(queryInt(c, "count", 20), 0), 1000)

		created, err := seed.New(ctx.Store, 0, ctx.Logger).BulkUsers(c.Request.Context(), count)
		if err != nil {
			respondWriteError(ctx, c, "Failed to create users", gin.H{"created": created}, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"created": created})
	}
}

// DBHealth reports on the durable store. It answers 200 with ok=false when the
// database is absent or unreachable.
func DBHealth(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ctx.Store.Durable(); !ok {
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": "DATABASE_URL not configured"})
			return
		}
		report, err := ctx.Store.Health(c.Request.Context())
		if err != nil {
			ctx.Logger.Warn("Database health check failed", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "database": report.Database, "schema": report.Schema, "tables": report.Tables})
	}
}
