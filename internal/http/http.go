package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/EatZeBaby/databooks/internal/appcontext"
	"github.com/EatZeBaby/databooks/internal/entity"
	"github.com/EatZeBaby/databooks/internal/http/middleware"
	"github.com/EatZeBaby/databooks/internal/store"
)

type APIService struct {
	engine  *gin.Engine
	context *appcontext.Context
}

func NewHTTPService(ctx *appcontext.Context) *APIService {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORSMiddleware(ctx.Environment, ctx.AllowedOrigins))

	service := &APIService{
		engine:  engine,
		context: ctx,
	}
	service.setupRoutes()
	return service
}

func (h *APIService) Engine() *gin.Engine {
	return h.engine
}

func (h *APIService) setupRoutes() {
	h.engine.GET("/health", Health())

	v1 := h.engine.Group("/api/v1")
	h.setupDatasetRoutes(v1)
	h.setupSocialRoutes(v1)
	h.setupFeedRoutes(v1)
	h.setupUserRoutes(v1)
	h.setupTagRoutes(v1)
	h.setupSearchRoutes(v1)
	h.setupCompanyRoutes(v1)
	h.setupConnectorRoutes(v1)
	h.setupDatabricksRoutes(v1)
	h.setupAdminRoutes(v1)
}

func (h *APIService) setupDatasetRoutes(group *gin.RouterGroup) {
	datasets := group.Group("/datasets")

	datasets.GET("", ListDatasets(h.context))
	datasets.POST("", CreateDataset(h.context))
	datasets.GET("/:id", GetDataset(h.context))
	datasets.PATCH("/:id", PatchDataset(h.context))
	datasets.GET("/:id/preview", PreviewDataset(h.context))
	datasets.GET("/:id/engagement", GetDatasetEngagement(h.context))
	datasets.POST("/:id/connect", ConnectDataset(h.context))
	datasets.POST("/:id/refresh", RefreshDataset(h.context))
	datasets.POST("/:id/events/schema-change", AddSchemaChangeEvent(h.context))
	datasets.GET("/:id/social", GetDatasetSocial(h.context))
	datasets.GET("/:id/activity", GetDatasetActivity(h.context))
}

func (h *APIService) setupSocialRoutes(group *gin.RouterGroup) {
	group.POST("/follows", ToggleFollow(h.context))
	group.POST("/likes", ToggleLike(h.context))
}

func (h *APIService) setupFeedRoutes(group *gin.RouterGroup) {
	feed := group.Group("/feed")

	feed.GET("", GetFeed(h.context))
	feed.GET("/stream", StreamFeed(h.context))
	feed.POST("/backfill/datasets", BackfillDatasets(h.context))
}

func (h *APIService) setupUserRoutes(group *gin.RouterGroup) {
	users := group.Group("/users")

	users.GET("", ListUsers(h.context))
	users.GET("/me", GetMe(h.context))
	users.PATCH("/me", PatchMe(h.context))
	users.GET("/me/social", GetMySocial(h.context))
	users.GET("/me/profile", GetMyPlatformProfile(h.context))
	users.PUT("/me/profile", PutMyPlatformProfile(h.context))
	users.GET("/:id", GetUser(h.context))
	users.GET("/:id/activity", GetUserActivity(h.context))
	users.GET("/:id/profile", GetUserProfile(h.context))
}

func (h *APIService) setupTagRoutes(group *gin.RouterGroup) {
	tags := group.Group("/tags")

	tags.GET("", ListTags(h.context))
	tags.GET("/:tag/datasets", GetTagDatasets(h.context))
	tags.POST("/:tag/follow", FollowTag(h.context))
	tags.GET("/:tag/followers", GetTagFollowers(h.context))
}

func (h *APIService) setupSearchRoutes(group *gin.RouterGroup) {
	search := group.Group("/search")

	search.GET("", Search(h.context))
	search.GET("/suggestions", SearchSuggestions(h.context))
}

func (h *APIService) setupCompanyRoutes(group *gin.RouterGroup) {
	companies := group.Group("/companies")

	companies.GET("", ListCompanies(h.context))
	companies.GET("/:company", GetCompany(h.context))
}

func (h *APIService) setupConnectorRoutes(group *gin.RouterGroup) {
	connectors := group.Group("/connectors")

	connectors.GET("", ListConnectors(h.context))
	connectors.POST("/snowflake/test", TestSnowflake(h.context))
	connectors.POST("/databricks/test", TestDatabricks(h.context))
	connectors.POST("/postgres/test", TestPostgres(h.context))
	connectors.POST("/bigquery/key", UploadBigQueryKey(h.context))
	connectors.POST("/bigquery/test", TestBigQuery(h.context))

	group.POST("/postgres/import", ImportPostgres(h.context))
}

func (h *APIService) setupDatabricksRoutes(group *gin.RouterGroup) {
	databricks := group.Group("/databricks")

	databricks.GET("/catalogs/:catalog/schemas", ListDatabricksSchemas(h.context))
	databricks.GET("/catalogs/:catalog/schemas/:schema/tables", ListDatabricksTables(h.context))
	databricks.GET("/tables/:fqn", GetDatabricksTable(h.context))
	databricks.POST("/import", ImportDatabricksTable(h.context))
}

func (h *APIService) setupAdminRoutes(group *gin.RouterGroup) {
	admin := group.Group("/admin")

	admin.POST("/seed/users", SeedUsers(h.context))
	admin.POST("/seed", SeedActivity(h.context))
	admin.POST("/users", AdminCreateUser(h.context))
	admin.PATCH("/users/:id", AdminUpdateUser(h.context))
	admin.POST("/users/bulk", AdminBulkUsers(h.context))

	group.GET("/db/health", DBHealth(h.context))
}

// respondWriteError maps a store or validation error onto a response. data is
// the volatile result, returned alongside a 503 when only the durable mirror failed.
func respondWriteError(ctx *appcontext.Context, c *gin.Context, msg string, data any, err error) {
	switch {
	case entity.ErrValidation.Has(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case store.ErrNotFound.Has(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case store.IsDurableFailure(err):
		ctx.Logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database unavailable, change kept in memory only", "data": data})
	default:
		ctx.Logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

// bindOptionalJSON binds the body into v when one was sent. It writes a 422 and
// returns false on a malformed body.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func queryBool(c *gin.Context, key string, def bool) bool {
	v, err := strconv.ParseBool(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
