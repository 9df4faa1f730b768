package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/EatZeBaby/databooks/internal/appcontext"
	"github.com/EatZeBaby/databooks/internal/entity"
	api "github.com/EatZeBaby/databooks/internal/http"
	"github.com/EatZeBaby/databooks/internal/services"
	"github.com/EatZeBaby/databooks/internal/store"
	"github.com/EatZeBaby/databooks/internal/warehouse"
)

// fakeCatalog serves one table whose columns tests can change between calls.
type fakeCatalog struct {
	mu      sync.Mutex
	columns []warehouse.ColumnDetail
	comment string
}

func (f *fakeCatalog) ListSchemas(ctx context.Context, catalog string) ([]string, error) {
	return []string{"sales"}, nil
}

func (f *fakeCatalog) ListTables(ctx context.Context, catalog, schema string) ([]warehouse.TableSummary, error) {
	return []warehouse.TableSummary{{Name: "orders", FullName: catalog + "." + schema + ".orders"}}, nil
}

func (f *fakeCatalog) TableInfo(ctx context.Context, catalog, schema, table string) (*warehouse.TableDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &warehouse.TableDetail{
		FullName:    catalog + "." + schema + "." + table,
		CatalogName: catalog,
		SchemaName:  schema,
		Name:        table,
		Comment:     f.comment,
		Properties:  map[string]string{"numRows": "42"},
		Columns:     append([]warehouse.ColumnDetail(nil), f.columns...),
	}, nil
}

func (f *fakeCatalog) Test(ctx context.Context, catalog, schema string) warehouse.TestResult {
	return warehouse.TestResult{OK: true}
}

func (f *fakeCatalog) setColumns(cols []warehouse.ColumnDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.columns = cols
}

func newTestService(t *testing.T, catalog warehouse.UnityCatalog) (*gin.Engine, *appcontext.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	snippets, err := services.NewSnippetRenderer()
	require.NoError(t, err)
	search, err := services.NewSearchIndex("", "", logger)
	require.NoError(t, err)

	ctx := &appcontext.Context{
		Store:      store.New(store.NewMemory(), nil, logger),
		Logger:     logger,
		Search:     search,
		Mailer:     services.NewMailer("", "", ""),
		Snippets:   snippets,
		Databricks: catalog,
		Snowflake:  warehouse.NewSnowflake(logger),
		BigQuery:   warehouse.NewBigQuery(nil, "", logger),
		Postgres:   warehouse.NewPostgres(nil, ""),

		Port:        "8080",
		Environment: "test",
	}
	return api.NewHTTPService(ctx).Engine(), ctx
}

func doRequest(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func createDataset(t *testing.T, engine *gin.Engine, req entity.DatasetCreate) *entity.Dataset {
	t.Helper()
	w := doRequest(t, engine, http.MethodPost, "/api/v1/datasets", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[*entity.Dataset](t, w)
}

func ucDataset() entity.DatasetCreate {
	return entity.DatasetCreate{
		Name:       "orders",
		SourceType: entity.SourceTypeDatabricksUC,
		SourceMetadataJSON: map[string]any{
			"catalog": "main",
			"schema":  "sales",
			"table":   "orders",
		},
	}
}

func TestCreateAndListDatasets(t *testing.T) {
	engine, _ := newTestService(t, nil)

	created := createDataset(t, engine, entity.DatasetCreate{
		Name:       "orders",
		Tags:       []string{"sales"},
		SourceType: entity.SourceTypePostgres,
	})
	assert.Equal(t, entity.DemoUserID, created.OwnerID)
	assert.Equal(t, entity.DefaultOrgID, created.OrgID)
	assert.Equal(t, entity.VisibilityPublic, created.Visibility)

	createDataset(t, engine, entity.DatasetCreate{Name: "customers", SourceType: entity.SourceTypeSnowflake})

	w := doRequest(t, engine, http.MethodGet, "/api/v1/datasets?tag=sales", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[api.PaginatedDatasets](t, w)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, created.ID, page.Data[0].ID)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/datasets?per_page=1&page=2", nil)
	page = decode[api.PaginatedDatasets](t, w)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.PerPage)
	assert.Len(t, page.Data, 1)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/feed", nil)
	feed := decode[api.PaginatedEvents](t, w)
	require.NotEmpty(t, feed.Data)
	texts := []string{}
	for _, item := range feed.Data {
		texts = append(texts, item.HumanText)
	}
	assert.Contains(t, texts, "orders was added")
}

func TestCreateDatasetRejectsInvalidInput(t *testing.T) {
	engine, _ := newTestService(t, nil)

	w := doRequest(t, engine, http.MethodPost, "/api/v1/datasets", entity.DatasetCreate{SourceType: entity.SourceTypePostgres})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doRequest(t, engine, http.MethodPost, "/api/v1/datasets", entity.DatasetCreate{Name: "orders", SourceType: "oracle"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetUnknownDatasetReturnsPlaceholder(t *testing.T) {
	engine, _ := newTestService(t, nil)

	w := doRequest(t, engine, http.MethodGet, "/api/v1/datasets/missing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[entity.Dataset](t, w)
	assert.Equal(t, "missing", d.ID)
	assert.Equal(t, "Dataset", d.Name)
	assert.Equal(t, "unknown", d.OwnerID)
}

func TestPatchDataset(t *testing.T) {
	engine, _ := newTestService(t, nil)
	created := createDataset(t, engine, entity.DatasetCreate{Name: "orders", SourceType: entity.SourceTypePostgres})

	w := doRequest(t, engine, http.MethodPatch, "/api/v1/datasets/"+created.ID, map[string]any{"description": "All orders"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "All orders", decode[entity.Dataset](t, w).Description)

	w = doRequest(t, engine, http.MethodPatch, "/api/v1/datasets/missing", map[string]any{"description": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConnectDataset(t *testing.T) {
	engine, ctx := newTestService(t, nil)
	created := createDataset(t, engine, entity.DatasetCreate{Name: "orders", SourceType: entity.SourceTypePostgres})

	w := doRequest(t, engine, http.MethodPost, "/api/v1/datasets/"+created.ID+"/connect",
		api.ConnectRequest{TargetPlatformType: entity.PlatformDatabricks})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[api.ConnectResponse](t, w)
	assert.Equal(t, entity.PlatformDatabricks, resp.Platform)
	assert.NotEmpty(t, resp.Payload.Snippet)
	assert.Len(t, resp.Payload.Artifacts, 1)
	assert.Equal(t, true, resp.Payload.ConnectionTest["ok"])

	events := ctx.Store.ListEvents(context.Background(), store.EventFilter{DatasetID: created.ID, Type: entity.EventDatasetConnected})
	require.Len(t, events, 1)
	assert.Equal(t, "databricks", events[0].Payload("platform"))

	t.Run("defaults to snowflake", func(t *testing.T) {
		w := doRequest(t, engine, http.MethodPost, "/api/v1/datasets/"+created.ID+"/connect", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, entity.PlatformSnowflake, decode[api.ConnectResponse](t, w).Platform)
	})

	t.Run("uses the saved platform profile", func(t *testing.T) {
		w := doRequest(t, engine, http.MethodPut, "/api/v1/users/me/profile",
			api.PlatformProfileUpdate{PlatformType: entity.PlatformBigQuery})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = doRequest(t, engine, http.MethodPost, "/api/v1/datasets/"+created.ID+"/connect", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, entity.PlatformBigQuery, decode[api.ConnectResponse](t, w).Platform)
	})

	t.Run("unsupported platform", func(t *testing.T) {
		w := doRequest(t, engine, http.MethodPost, "/api/v1/datasets/"+created.ID+"/connect",
			api.ConnectRequest{TargetPlatformType: "oracle"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("unknown dataset", func(t *testing.T) {
		w := doRequest(t, engine, http.MethodPost, "/api/v1/datasets/missing/connect", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRefreshUnknownDatasetIsAccepted(t *testing.T) {
	engine, _ := newTestService(t, nil)

	w := doRequest(t, engine, http.MethodPost, "/api/v1/datasets/missing/refresh", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "accepted", body["status"])
	assert.NotEmpty(t, body["job_id"])
}

func TestRefreshSyncsUnityCatalogColumns(t *testing.T) {
	catalog := &fakeCatalog{columns: []warehouse.ColumnDetail{
		{Name: "id", TypeText: "bigint"},
		{Name: "amount", TypeText: "int", Nullable: true},
	}}
	engine, ctx := newTestService(t, catalog)
	created := createDataset(t, engine, ucDataset())

	w := doRequest(t, engine, http.MethodPost, "/api/v1/datasets/"+created.ID+"/refresh", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.EqualValues(t, 0, decode[map[string]any](t, w)["schema_changes"])

	catalog.setColumns([]warehouse.ColumnDetail{
		{Name: "id", TypeText: "bigint"},
		{Name: "amount", TypeText: "decimal(10,2)", Nullable: true},
		{Name: "currency", TypeText: "string"},
	})

	w = doRequest(t, engine, http.MethodPost, "/api/v1/datasets/"+created.ID+"/refresh", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["schema_changes"])

	changes := ctx.Store.ListEvents(context.Background(), store.EventFilter{DatasetID: created.ID, Type: entity.EventDatasetSchemaChanged})
	require.Len(t, changes, 2)
	columns := []string{changes[0].Payload("column"), changes[1].Payload("column")}
	assert.ElementsMatch(t, []string{"amount", "currency"}, columns)

	refreshed := ctx.Store.ListEvents(context.Background(), store.EventFilter{DatasetID: created.ID, Type: entity.EventDatasetRefreshed})
	assert.Len(t, refreshed, 2)
}

func TestGetDatasetEnrichesFromUnityCatalog(t *testing.T) {
	engine, _ := newTestService(t, &fakeCatalog{comment: "Orders placed in the web shop"})
	created := createDataset(t, engine, ucDataset())

	w := doRequest(t, engine, http.MethodGet, "/api/v1/datasets/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Orders placed in the web shop", decode[entity.Dataset](t, w).Description)
}

func TestPreviewDataset(t *testing.T) {
	cols := []warehouse.ColumnDetail{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		cols = append(cols, warehouse.ColumnDetail{Name: name, TypeText: "string"})
	}
	engine, _ := newTestService(t, &fakeCatalog{columns: cols})
	created := createDataset(t, engine, ucDataset())

	w := doRequest(t, engine, http.MethodGet, "/api/v1/datasets/"+created.ID+"/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	preview := decode[api.DatasetPreview](t, w)
	assert.Len(t, preview.SchemaSample, 5)
	require.NotNil(t, preview.RowCount)
	assert.EqualValues(t, 42, *preview.RowCount)
	assert.Equal(t, "databricks", preview.Platform)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/datasets/missing/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	preview = decode[api.DatasetPreview](t, w)
	assert.Empty(t, preview.SchemaSample)
	assert.Nil(t, preview.RowCount)
}

func TestSchemaChangeEvent(t *testing.T) {
	engine, ctx := newTestService(t, nil)

	w := doRequest(t, engine, http.MethodPost, "/api/v1/datasets/ds-1/events/schema-change", map[string]any{"column": "amount"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, decode[map[string]any](t, w)["ok"])

	events := ctx.Store.ListEvents(context.Background(), store.EventFilter{DatasetID: "ds-1"})
	require.Len(t, events, 1)
	assert.Equal(t, "added", events[0].Payload("change"))
	assert.Equal(t, "system", events[0].Actor())

	w = doRequest(t, engine, http.MethodPost, "/api/v1/datasets/ds-1/events/schema-change", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestFollowsAndLikes(t *testing.T) {
	engine, _ := newTestService(t, nil)
	created := createDataset(t, engine, entity.DatasetCreate{Name: "orders", SourceType: entity.SourceTypePostgres})

	w := doRequest(t, engine, http.MethodPost, "/api/v1/follows", api.ToggleRequest{DatasetID: created.ID, Follow: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[api.FollowState](t, w).Following)

	w = doRequest(t, engine, http.MethodPost, "/api/v1/likes", api.ToggleRequest{DatasetID: created.ID, Follow: true})
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, engine, http.MethodPost, "/api/v1/likes", api.ToggleRequest{DatasetID: created.ID, Follow: true, UserID: "user-2"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/datasets/"+created.ID+"/social", nil)
	require.Equal(t, http.StatusOK, w.Code)
	social := decode[map[string]any](t, w)
	assert.EqualValues(t, 1, social["followers"])
	assert.EqualValues(t, 2, social["likes"])
	assert.Equal(t, true, social["following"])
	assert.Equal(t, true, social["liked"])

	w = doRequest(t, engine, http.MethodGet, "/api/v1/datasets/"+created.ID+"/engagement", nil)
	require.Equal(t, http.StatusOK, w.Code)
	engagement := decode[api.EngagementResponse](t, w)
	assert.Equal(t, api.EngagementCounts{Followers: 1, Likes: 2}, engagement.Counts)
	require.NotEmpty(t, engagement.RecentActors)
	assert.Equal(t, "user-2", engagement.RecentActors[0].ID)
	assert.Equal(t, "User user-2", engagement.RecentActors[0].Name)

	w = doRequest(t, engine, http.MethodPost, "/api/v1/follows", api.ToggleRequest{DatasetID: created.ID, Follow: false})
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, engine, http.MethodGet, "/api/v1/users/me/social", nil)
	mine := decode[map[string]any](t, w)
	assert.Empty(t, mine["following"])
	assert.Equal(t, []any{created.ID}, mine["liked"])

	w = doRequest(t, engine, http.MethodPost, "/api/v1/follows", map[string]any{"follow": true})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestEngagementForUnknownDataset(t *testing.T) {
	engine, _ := newTestService(t, nil)

	w := doRequest(t, engine, http.MethodPost, "/api/v1/likes", api.ToggleRequest{DatasetID: "ghost", Follow: true})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/datasets/ghost/engagement", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[api.EngagementResponse](t, w).Counts.Likes)
}

func TestDatasetActivityAndBackfill(t *testing.T) {
	engine, ctx := newTestService(t, nil)
	d, err := ctx.Store.CreateDataset(context.Background(), entity.DatasetCreate{
		Name:       "orders",
		OwnerID:    "owner-1",
		OrgID:      entity.DefaultOrgID,
		SourceType: entity.SourceTypePostgres,
	})
	require.NoError(t, err)

	w := doRequest(t, engine, http.MethodGet, "/api/v1/datasets/"+d.ID+"/activity", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[api.PaginatedEvents](t, w).Data)

	w = doRequest(t, engine, http.MethodPost, "/api/v1/feed/backfill/datasets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[store.BackfillResult](t, w)
	assert.Equal(t, store.BackfillResult{TotalDatasets: 1, EventsCreated: 1}, result)

	w = doRequest(t, engine, http.MethodPost, "/api/v1/feed/backfill/datasets", nil)
	assert.Equal(t, 0, decode[store.BackfillResult](t, w).EventsCreated)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/datasets/"+d.ID+"/activity", nil)
	activity := decode[api.PaginatedEvents](t, w)
	require.Len(t, activity.Data, 1)
	assert.Equal(t, entity.EventDatasetPublished, activity.Data[0].Type)
	assert.Equal(t, "system-backfill", activity.Data[0].Actor())
}

func TestStreamFeed(t *testing.T) {
	engine, ctx := newTestService(t, nil)
	server := httptest.NewServer(engine)
	defer server.Close()

	_, err := ctx.Store.AppendEvent(context.Background(), entity.EventDatasetPublished, map[string]any{"name": "old"}, "", "ds-0")
	require.NoError(t, err)

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, server.URL+"/api/v1/feed/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	_, err = ctx.Store.AppendEvent(context.Background(), entity.EventDatasetLiked, map[string]any{"like": true}, "user-1", "ds-1")
	require.NoError(t, err)

	scanner := bufio.NewScanner(resp.Body)
	var eventLine, dataLine string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			eventLine = line
		}
		if strings.HasPrefix(line, "data:") {
			dataLine = line
			break
		}
	}
	assert.Equal(t, "event:dataset.liked", eventLine)

	var streamed entity.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(dataLine, "data:")), &streamed))
	assert.Equal(t, "ds-1", streamed.Dataset())
}

func TestTags(t *testing.T) {
	engine, _ := newTestService(t, nil)
	createDataset(t, engine, entity.DatasetCreate{Name: "orders", Tags: []string{"sales", "finance"}, SourceType: entity.SourceTypePostgres})
	createDataset(t, engine, entity.DatasetCreate{Name: "refunds", Tags: []string{"sales"}, SourceType: entity.SourceTypePostgres})

	w := doRequest(t, engine, http.MethodGet, "/api/v1/tags", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tags := decode[struct {
		Data []store.TagCount `json:"data"`
	}](t, w)
	require.Len(t, tags.Data, 2)
	assert.Equal(t, store.TagCount{Tag: "sales", Count: 2}, tags.Data[0])

	w = doRequest(t, engine, http.MethodGet, "/api/v1/tags/SALES/datasets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]api.TaggedDataset](t, w)["data"], 2)

	w = doRequest(t, engine, http.MethodPost, "/api/v1/tags/sales/follow", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["following"])

	w = doRequest(t, engine, http.MethodGet, "/api/v1/tags/sales/followers", nil)
	followers := decode[map[string]any](t, w)
	assert.EqualValues(t, 1, followers["followers"])
	assert.Equal(t, true, followers["following"])

	w = doRequest(t, engine, http.MethodGet, "/api/v1/users/me/social", nil)
	assert.Equal(t, []any{"sales"}, decode[map[string]any](t, w)["tags"])

	w = doRequest(t, engine, http.MethodPost, "/api/v1/tags/sales/follow?follow=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, engine, http.MethodGet, "/api/v1/tags/sales/followers", nil)
	assert.EqualValues(t, 0, decode[map[string]any](t, w)["followers"])
}

func TestSearch(t *testing.T) {
	engine, _ := newTestService(t, nil)
	createDataset(t, engine, entity.DatasetCreate{Name: "orders", Description: "web shop orders", SourceType: entity.SourceTypePostgres})
	createDataset(t, engine, entity.DatasetCreate{Name: "order_items", SourceType: entity.SourceTypePostgres, Visibility: entity.VisibilityPrivate})
	createDataset(t, engine, entity.DatasetCreate{Name: "customers", SourceType: entity.SourceTypePostgres})

	w := doRequest(t, engine, http.MethodGet, "/api/v1/search?q=order", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]entity.Dataset](t, w)["results"], 2)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/search?q=order&visibility=private", nil)
	results := decode[map[string][]entity.Dataset](t, w)["results"]
	require.Len(t, results, 1)
	assert.Equal(t, "order_items", results[0].Name)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/search/suggestions?q=ORD", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []string{"orders", "order_items"}, decode[map[string][]string](t, w)["suggestions"])
}

func TestCompanies(t *testing.T) {
	engine, _ := newTestService(t, nil)
	for _, u := range []entity.UserCreate{
		{Name: "Ada", Company: "beta"},
		{Name: "Grace", Company: "beta"},
		{Name: "Linus", Company: "Acme"},
	} {
		w := doRequest(t, engine, http.MethodPost, "/api/v1/admin/users", u)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := doRequest(t, engine, http.MethodGet, "/api/v1/companies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	companies := decode[map[string][]api.CompanyItem](t, w)["companies"]
	assert.Equal(t, []api.CompanyItem{{Name: "Acme", Count: 1}, {Name: "beta", Count: 2}}, companies)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/companies/acme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	overview := decode[store.CompanyOverview](t, w)
	assert.Len(t, overview.Users, 1)
	assert.Empty(t, overview.Datasets)
}

func TestUsers(t *testing.T) {
	engine, _ := newTestService(t, nil)

	w := doRequest(t, engine, http.MethodGet, "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.DemoUserID, decode[entity.User](t, w).ID)

	w = doRequest(t, engine, http.MethodPatch, "/api/v1/users/me", map[string]any{"job_title": "Analyst"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Analyst", decode[entity.User](t, w).JobTitle)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/users/ghost", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ghost := decode[entity.User](t, w)
	assert.Equal(t, "ghost", ghost.ID)
	assert.Equal(t, "User ghost", ghost.Name)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/users/ghost/profile", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["total"])
}

func TestUserActivity(t *testing.T) {
	engine, _ := newTestService(t, nil)
	created := createDataset(t, engine, entity.DatasetCreate{Name: "orders", SourceType: entity.SourceTypePostgres})
	doRequest(t, engine, http.MethodPost, "/api/v1/likes", api.ToggleRequest{DatasetID: created.ID, Follow: true, UserID: "user-1"})

	w := doRequest(t, engine, http.MethodGet, "/api/v1/users/user-1/activity", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{created.ID}, decode[map[string]any](t, w)["liked"])

	w = doRequest(t, engine, http.MethodGet, "/api/v1/users/user-1/activity?resolve=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	activity := decode[store.UserActivity](t, w)
	require.Len(t, activity.Liked, 1)
	assert.Equal(t, "orders", activity.Liked[0].Name)
}

func TestPlatformProfile(t *testing.T) {
	engine, _ := newTestService(t, nil)

	w := doRequest(t, engine, http.MethodGet, "/api/v1/users/me/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, engine, http.MethodPut, "/api/v1/users/me/profile", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doRequest(t, engine, http.MethodPut, "/api/v1/users/me/profile", api.PlatformProfileUpdate{
		PlatformType: entity.PlatformSnowflake,
		ConfigJSON:   map[string]any{"warehouse": "COMPUTE_WH"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(t, engine, http.MethodGet, "/api/v1/users/me/profile", nil)
	profile := decode[entity.PlatformProfile](t, w)
	assert.Equal(t, entity.PlatformSnowflake, profile.PlatformType)
}

func TestAdmin(t *testing.T) {
	engine, _ := newTestService(t, nil)

	w := doRequest(t, engine, http.MethodPost, "/api/v1/admin/users/bulk?count=3", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 3, decode[map[string]any](t, w)["created"])

	w = doRequest(t, engine, http.MethodPost, "/api/v1/admin/seed/users", map[string]any{
		"companies":  []string{"Acme"},
		"domains":    []string{"finance"},
		"per_domain": 2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["created"])

	w = doRequest(t, engine, http.MethodGet, "/api/v1/users", nil)
	assert.EqualValues(t, 5, decode[map[string]any](t, w)["total"])

	w = doRequest(t, engine, http.MethodPatch, "/api/v1/admin/users/new-1", map[string]any{"name": "Newcomer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Newcomer", decode[entity.User](t, w).Name)

	w = doRequest(t, engine, http.MethodPatch, "/api/v1/admin/users/new-1", map[string]any{"company": "Acme"})
	require.Equal(t, http.StatusOK, w.Code)
	patched := decode[entity.User](t, w)
	assert.Equal(t, "Newcomer", patched.Name)
	assert.Equal(t, "Acme", patched.Company)

	w = doRequest(t, engine, http.MethodPost, "/api/v1/admin/seed?users=0&interactions=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[map[string]any](t, w)["note"])

	w = doRequest(t, engine, http.MethodGet, "/api/v1/db/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[map[string]any](t, w)
	assert.Equal(t, false, health["ok"])
	assert.Equal(t, "DATABASE_URL not configured", health["error"])
}

func TestConnectors(t *testing.T) {
	engine, _ := newTestService(t, nil)

	w := doRequest(t, engine, http.MethodGet, "/api/v1/connectors", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]warehouse.Connector](t, w)["data"], len(warehouse.Connectors()))

	w = doRequest(t, engine, http.MethodPost, "/api/v1/connectors/postgres/test", nil)
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[warehouse.TestResult](t, w)
	assert.False(t, result.OK)
	assert.Equal(t, "DATABASE_URL not configured", result.Error)

	w = doRequest(t, engine, http.MethodPost, "/api/v1/connectors/databricks/test", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[warehouse.TestResult](t, w).OK)

	w = doRequest(t, engine, http.MethodPost, "/api/v1/postgres/import", api.PostgresImportRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/connectors/bigquery/key", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDatabricksBrowsing(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		engine, _ := newTestService(t, nil)
		w := doRequest(t, engine, http.MethodGet, "/api/v1/databricks/catalogs/main/schemas", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	engine, ctx := newTestService(t, &fakeCatalog{columns: []warehouse.ColumnDetail{{Name: "id", TypeText: "bigint"}}})

	w := doRequest(t, engine, http.MethodGet, "/api/v1/databricks/catalogs/main/schemas", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"sales"}, decode[map[string][]string](t, w)["schemas"])

	w = doRequest(t, engine, http.MethodGet, "/api/v1/databricks/catalogs/main/schemas/sales/tables", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tables := decode[map[string][]warehouse.TableSummary](t, w)["tables"]
	require.Len(t, tables, 1)
	assert.Equal(t, "main.sales.orders", tables[0].FullName)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/databricks/tables/main.sales.orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "orders", decode[map[string]warehouse.TableDetail](t, w)["table"].Name)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/databricks/tables/orders", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, engine, http.MethodPost, "/api/v1/databricks/import", api.DatabricksImportRequest{Catalog: "main"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doRequest(t, engine, http.MethodPost, "/api/v1/databricks/import", api.DatabricksImportRequest{Catalog: "main", Schema: "sales", Table: "orders"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	imported := decode[entity.Dataset](t, w)
	assert.Equal(t, entity.SourceTypeDatabricksUC, imported.SourceType)
	assert.Equal(t, "main.sales.orders", imported.Metadata("full_name"))

	_, ok := ctx.Store.GetDataset(context.Background(), imported.ID)
	assert.True(t, ok)
}
