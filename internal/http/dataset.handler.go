package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/EatZeBaby/databooks/internal/appcontext"
	"github.com/EatZeBaby/databooks/internal/entity"
	"github.com/EatZeBaby/databooks/internal/services"
	"github.com/EatZeBaby/databooks/internal/store"
	"github.com/EatZeBaby/databooks/internal/utils"
)

type PaginatedDatasets struct {
	Page    int               `json:"page"`
	PerPage int               `json:"per_page"`
	Total   int               `json:"total"`
	Data    []*entity.Dataset `json:"data"`
}

func ListDatasets(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := store.DatasetFilter{
			Query:      c.Query("query"),
			OwnerID:    c.Query("owner_id"),
			OrgID:      c.Query("org_id"),
			Visibility: entity.Visibility(c.Query("visibility")),
			Tag:        c.Query("tag"),
			Company:    c.Query("company"),
		}
		page := max(queryInt(c, "page", 1), 1)
		perPage := min(max(queryInt(c, "per_page", 20), 1), 100)

		items := ctx.Store.ListDatasets(c.Request.Context(), filter)
		start := min((page-1)*perPage, len(items))
		end := min(start+perPage, len(items))

		c.JSON(http.StatusOK, PaginatedDatasets{
			Page:    page,
			PerPage: perPage,
			Total:   len(items),
			Data:    items[start:end],
		})
	}
}

func CreateDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req entity.DatasetCreate
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid request body"})
			return
		}
		if req.OwnerID == "" {
			req.OwnerID = entity.DemoUserID
		}
		if req.OrgID == "" {
			req.OrgID = entity.DefaultOrgID
		}

		dataset, err := ctx.Store.CreateDataset(c.Request.Context(), req)
		if dataset == nil {
			respondWriteError(ctx, c, "Failed to create dataset", nil, err)
			return
		}

		_, eventErr := ctx.Store.AppendEvent(c.Request.Context(), entity.EventDatasetPublished,
			map[string]any{"name": dataset.Name}, entity.DemoUserID, dataset.ID)
		ctx.Search.Index(dataset)

		if err == nil {
			err = eventErr
		}
		if err != nil {
			respondWriteError(ctx, c, "Failed to persist dataset", dataset, err)
			return
		}
		c.JSON(http.StatusCreated, dataset)
	}
}

// placeholderDataset stands in for an id that neither store nor the event log knows.
func placeholderDataset(id string, now string) *entity.Dataset {
	return &entity.Dataset{
		ID:                 id,
		Name:               "Dataset",
		Tags:               []string{},
		OwnerID:            "unknown",
		OrgID:              entity.DefaultOrgID,
		SourceType:         entity.SourceTypeUnknown,
		SourceMetadataJSON: map[string]any{},
		Visibility:         entity.VisibilityPublic,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// ucCoordinates returns the Unity Catalog location recorded for a dataset.
func ucCoordinates(d *entity.Dataset) (catalog, schema, table string, ok bool) {
	catalog = d.Metadata("catalog")
	schema = d.Metadata("schema")
	table = d.Metadata("table")
	if table == "" {
		table = d.Metadata("name")
	}
	return catalog, schema, table, catalog != "" && schema != "" && table != ""
}

func GetDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		dataset, ok := ctx.Store.GetDataset(c.Request.Context(), id)
		if !ok {
			dataset, ok = ctx.Store.DeriveDataset(c.Request.Context(), id)
		}
		if !ok {
			dataset = placeholderDataset(id, entity.FormatTime(ctx.Store.Now()))
		}

		if dataset.SourceType == entity.SourceTypeDatabricksUC && dataset.Description == "" && ctx.Databricks != nil {
			if catalog, schema, table, ok := ucCoordinates(dataset); ok {
				info, err := ctx.Databricks.TableInfo(c.Request.Context(), catalog, schema, table)
				if err != nil {
					ctx.Logger.Debug("Failed to enrich dataset from Unity Catalog", zap.String("dataset_id", id), zap.Error(err))
				} else {
					dataset.Description = info.Comment
				}
			}
		}

		c.JSON(http.StatusOK, dataset)
	}
}

func PatchDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch entity.DatasetPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid request body"})
			return
		}

		dataset, err := ctx.Store.PatchDataset(c.Request.Context(), c.Param("id"), patch)
		if dataset != nil {
			ctx.Search.Index(dataset)
		}
		if err != nil {
			respondWriteError(ctx, c, "Failed to update dataset", dataset, err)
			return
		}
		c.JSON(http.StatusOK, dataset)
	}
}

type ColumnSample struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type DatasetPreview struct {
	SchemaSample []ColumnSample `json:"schema_sample"`
	RowCount     *int64         `json:"row_count"`
	Platform     string         `json:"platform"`
	DataType     string         `json:"data_type"`
}

const previewColumns = 5

func PreviewDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		preview := DatasetPreview{SchemaSample: []ColumnSample{}, Platform: "unknown", DataType: "table"}

		dataset, ok := ctx.Store.GetDataset(c.Request.Context(), c.Param("id"))
		if !ok {
			c.JSON(http.StatusOK, preview)
			return
		}

		preview.Platform = string(dataset.SourceType)
		if dataset.SourceType == entity.SourceTypeDatabricksUC {
			preview.Platform = string(entity.PlatformDatabricks)
		}

		catalog, schema, table, ok := ucCoordinates(dataset)
		if !ok || ctx.Databricks == nil {
			c.JSON(http.StatusOK, preview)
			return
		}
		info, err := ctx.Databricks.TableInfo(c.Request.Context(), catalog, schema, table)
		if err != nil {
			ctx.Logger.Warn("Failed to fetch table info for preview", zap.String("dataset_id", dataset.ID), zap.Error(err))
			c.JSON(http.StatusOK, preview)
			return
		}

		for _, col := range info.Columns[:min(previewColumns, len(info.Columns))] {
			preview.SchemaSample = append(preview.SchemaSample, ColumnSample{Name: col.Name, Type: col.TypeText, Nullable: col.Nullable})
		}
		if n, err := strconv.ParseInt(info.Properties["numRows"], 10, 64); err == nil {
			preview.RowCount = &n
		}
		c.JSON(http.StatusOK, preview)
	}
}

type ActorStub struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type EngagementCounts struct {
	Followers int `json:"followers"`
	Likes     int `json:"likes"`
}

type EngagementResponse struct {
	Counts       EngagementCounts `json:"counts"`
	RecentActors []ActorStub      `json:"recent_actors"`
	Health       store.Health     `json:"health"`
}

func GetDatasetEngagement(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		dataset, ok := ctx.Store.GetDataset(c.Request.Context(), c.Param("id"))
		if !ok {
			// social counts still apply to ids only the event log knows
			dataset = &entity.Dataset{ID: c.Param("id")}
		}

		engagement := ctx.Store.DatasetEngagement(c.Request.Context(), dataset)
		actors := make([]ActorStub, 0, len(engagement.RecentActors))
		for _, id := range engagement.RecentActors {
			user, ok := ctx.Store.GetUser(c.Request.Context(), id)
			if !ok {
				user = entity.SyntheticUser(id, ctx.Store.Now())
			}
			actors = append(actors, ActorStub{ID: user.ID, Name: user.Name, AvatarURL: user.AvatarURL})
		}

		c.JSON(http.StatusOK, EngagementResponse{
			Counts:       EngagementCounts{Followers: engagement.Followers, Likes: engagement.Likes},
			RecentActors: actors,
			Health:       engagement.Health,
		})
	}
}

type ConnectRequest struct {
	TargetPlatformType entity.PlatformType `json:"target_platform_type"`
	Options            map[string]any      `json:"options"`
}

type ConnectResponsePayload struct {
	Snippet        string              `json:"snippet"`
	Artifacts      []services.Artifact `json:"artifacts"`
	ConnectionTest map[string]any      `json:"connection_test"`
}

type ConnectResponse struct {
	Platform entity.PlatformType    `json:"platform"`
	Payload  ConnectResponsePayload `json:"payload"`
}

func ConnectDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConnectRequest
		if !bindOptionalJSON(c, &req) {
			return
		}

		dataset, ok := ctx.Store.GetDataset(c.Request.Context(), c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
			return
		}

		platform := req.TargetPlatformType
		if platform == "" {
			platform = entity.PlatformSnowflake
			if profile, ok := ctx.Store.GetProfile(c.Request.Context(), entity.DemoUserID); ok {
				platform = profile.PlatformType
			}
		}

		snippet, artifacts, err := ctx.Snippets.Render(platform, services.NewSnippetContext(dataset, platform))
		if err != nil {
			respondWriteError(ctx, c, "Failed to render snippet", nil, err)
			return
		}

		response := ConnectResponse{
			Platform: platform,
			Payload: ConnectResponsePayload{
				Snippet:        snippet,
				Artifacts:      artifacts,
				ConnectionTest: map[string]any{"ok": true},
			},
		}

		_, err = ctx.Store.AppendEvent(c.Request.Context(), entity.EventDatasetConnected,
			map[string]any{"platform": string(platform)}, entity.DemoUserID, dataset.ID)
		if err != nil {
			respondWriteError(ctx, c, "Failed to record connection", response, err)
			return
		}
		c.JSON(http.StatusOK, response)
	}
}

// RefreshDataset accepts a refresh job. Unity Catalog datasets also get their
// column snapshot synced, with a schema change event per differing column.
func RefreshDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := uuid.NewString()
		body := gin.H{"job_id": jobID, "status": "accepted"}

		dataset, ok := ctx.Store.GetDataset(c.Request.Context(), c.Param("id"))
		if !ok {
			c.JSON(http.StatusAccepted, body)
			return
		}

		var group errs.Group
		if catalog, schema, table, ok := ucCoordinates(dataset); ok && ctx.Databricks != nil {
			changes, err := syncColumns(ctx, c, dataset, catalog, schema, table)
			if err != nil && !store.IsDurableFailure(err) {
				ctx.Logger.Warn("Failed to sync columns from Unity Catalog", zap.String("dataset_id", dataset.ID), zap.Error(err))
			} else {
				group.Add(err)
				body["schema_changes"] = len(changes)
			}
		}

		_, err := ctx.Store.AppendEvent(c.Request.Context(), entity.EventDatasetRefreshed,
			map[string]any{"job_id": jobID}, entity.DemoUserID, dataset.ID)
		group.Add(err)
		if err := group.Err(); err != nil {
			respondWriteError(ctx, c, "Failed to record refresh", body, err)
			return
		}
		c.JSON(http.StatusAccepted, body)
	}
}

// syncColumns stores the table's current columns on the dataset and records
// how they differ from the previous snapshot. The first sync only records.
func syncColumns(ctx *appcontext.Context, c *gin.Context, dataset *entity.Dataset, catalog, schema, table string) ([]utils.ColumnChange, error) {
	info, err := ctx.Databricks.TableInfo(c.Request.Context(), catalog, schema, table)
	if err != nil {
		return nil, err
	}

	var group errs.Group
	changes := []utils.ColumnChange{}
	if previous, ok := utils.ColumnsFromSnapshot(dataset.SourceMetadataJSON["columns"]); ok {
		changes = utils.DiffColumns(previous, info.Columns)
		for _, change := range changes {
			_, err := ctx.Store.AppendEvent(c.Request.Context(), entity.EventDatasetSchemaChanged, change.Payload(), "system", dataset.ID)
			group.Add(err)
		}
	}

	metadata := map[string]any{}
	for k, v := range dataset.SourceMetadataJSON {
		metadata[k] = v
	}
	metadata["columns"] = utils.ColumnsSnapshot(info.Columns)
	_, err = ctx.Store.PatchDataset(c.Request.Context(), dataset.ID, entity.DatasetPatch{SourceMetadataJSON: &metadata})
	group.Add(err)

	return changes, group.Err()
}

type SchemaChangeRequest struct {
	Column  string         `json:"column" binding:"required"`
	Change  string         `json:"change"`
	Details map[string]any `json:"details"`
}

func AddSchemaChangeEvent(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SchemaChangeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "column is required"})
			return
		}
		if req.Change == "" {
			req.Change = "added"
		}
		if req.Details == nil {
			req.Details = map[string]any{}
		}

		event, err := ctx.Store.AppendEvent(c.Request.Context(), entity.EventDatasetSchemaChanged,
			map[string]any{"column": req.Column, "change": req.Change, "details": req.Details}, "system", c.Param("id"))
		if event == nil {
			respondWriteError(ctx, c, "Failed to record schema change", nil, err)
			return
		}
		body := gin.H{"ok": true, "event_id": event.ID}
		if err != nil {
			respondWriteError(ctx, c, "Failed to persist schema change", body, err)
			return
		}
		c.JSON(http.StatusCreated, body)
	}
}
