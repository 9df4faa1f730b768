package http

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/EatZeBaby/databooks/internal/appcontext"
	"github.com/EatZeBaby/databooks/internal/entity"
	"github.com/EatZeBaby/databooks/internal/services"
	"github.com/EatZeBaby/databooks/internal/store"
)

const (
	defaultFeedLimit = 50
	streamInterval   = time.Second
)

type PaginatedEvents struct {
	Cursor *string             `json:"cursor"`
	Data   []services.FeedItem `json:"data"`
}

func GetFeed(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := max(queryInt(c, "limit", defaultFeedLimit), 1)
		events := ctx.Store.ListEvents(c.Request.Context(), store.EventFilter{Limit: limit})
		c.JSON(http.StatusOK, PaginatedEvents{Data: services.FeedItems(events)})
	}
}

func GetDatasetActivity(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := max(queryInt(c, "limit", defaultFeedLimit), 1)
		events := ctx.Store.ListEvents(c.Request.Context(), store.EventFilter{DatasetID: c.Param("id"), Limit: limit})
		c.JSON(http.StatusOK, PaginatedEvents{Data: services.FeedItems(events)})
	}
}

// StreamFeed pushes events appended after the client connected as server-sent
// events. The log is polled once per interval until the client goes away.
func StreamFeed(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		cursor := ctx.Store.EventCursor()

		ticker := time.NewTicker(streamInterval)
		defer ticker.Stop()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Status(http.StatusOK)
		c.Writer.Flush()

		c.Stream(func(w io.Writer) bool {
			select {
			case <-c.Request.Context().Done():
				return false
			case <-ticker.C:
			}

			var events []*entity.Event
			events, cursor = ctx.Store.EventsSince(cursor)
			for _, e := range events {
				data, err := json.Marshal(e)
				if err != nil {
					ctx.Logger.Error("Failed to encode feed event", zap.String("event_id", e.ID), zap.Error(err))
					continue
				}
				c.SSEvent(string(e.Type), string(data))
			}
			return true
		})
	}
}

func BackfillDatasets(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := ctx.Store.BackfillPublished(c.Request.Context(), "system-backfill")
		if err != nil {
			respondWriteError(ctx, c, "Failed to backfill dataset events", result, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
