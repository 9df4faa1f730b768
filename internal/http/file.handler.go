package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/EatZeBaby/databooks/internal/appcontext"
	"github.com/EatZeBaby/databooks/internal/entity"
	"github.com/EatZeBaby/databooks/internal/warehouse"
)

const maxKeyFileSize = 64 << 10

// UploadBigQueryKey stores the demo user's service account key in GCS. The key
// is validated before upload and never echoed back.
func UploadBigQueryKey(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ctx.BigQuery.Enabled() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Key storage not configured"})
			return
		}

		file, err := c.FormFile("file")
		if err != nil {
			ctx.Logger.Error("Failed to get file from request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to get file from request"})
			return
		}

		if !isJSONFile(file) {
			ctx.Logger.Error("Invalid file type", zap.String("filename", file.Filename))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type, only JSON files are allowed"})
			return
		}

		src, err := file.Open()
		if err != nil {
			ctx.Logger.Error("Failed to open file", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open file"})
			return
		}
		defer src.Close()

		raw, err := io.ReadAll(io.LimitReader(src, maxKeyFileSize))
		if err != nil {
			ctx.Logger.Error("Failed to read file", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
			return
		}

		key, err := ctx.BigQuery.StoreKey(c.Request.Context(), entity.DemoUserID, raw)
		if err != nil {
			if errors.Is(err, warehouse.ErrInvalidKey) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.Logger.Error("Failed to upload key file to GCS", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload key file"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":      "File uploaded successfully",
			"project_id":   key.ProjectID,
			"client_email": key.ClientEmail,
		})
	}
}

func isJSONFile(file *multipart.FileHeader) bool {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".json" {
		return false
	}

	mimeType := file.Header.Get("Content-Type")
	return mimeType == "application/json" || mimeType == "application/octet-stream"
}
