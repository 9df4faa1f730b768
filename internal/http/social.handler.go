package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/EatZeBaby/databooks/internal/appcontext"
	"github.com/EatZeBaby/databooks/internal/entity"
)

// ToggleRequest is shared by follows and likes; Follow carries the desired state.
type ToggleRequest struct {
	DatasetID string `json:"dataset_id" binding:"required"`
	Follow    bool   `json:"follow"`
	UserID    string `json:"user_id"`
}

type FollowState struct {
	DatasetID string `json:"dataset_id"`
	Following bool   `json:"following"`
}

func ToggleFollow(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindToggle(c)
		if !ok {
			return
		}

		err := ctx.Store.SetFollow(c.Request.Context(), req.UserID, req.DatasetID, req.Follow)
		_, eventErr := ctx.Store.AppendEvent(c.Request.Context(), entity.EventUserFollowed,
			map[string]any{"follow": req.Follow}, req.UserID, req.DatasetID)
		if req.Follow {
			notifyOwner(ctx, c, req.UserID, req.DatasetID)
		}

		state := FollowState{DatasetID: req.DatasetID, Following: req.Follow}
		if err == nil {
			err = eventErr
		}
		if err != nil {
			respondWriteError(ctx, c, "Failed to toggle follow", state, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func ToggleLike(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindToggle(c)
		if !ok {
			return
		}

		err := ctx.Store.SetLike(c.Request.Context(), req.UserID, req.DatasetID, req.Follow)
		_, eventErr := ctx.Store.AppendEvent(c.Request.Context(), entity.EventDatasetLiked,
			map[string]any{"like": req.Follow}, req.UserID, req.DatasetID)

		state := FollowState{DatasetID: req.DatasetID, Following: req.Follow}
		if err == nil {
			err = eventErr
		}
		if err != nil {
			respondWriteError(ctx, c, "Failed to toggle like", state, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func bindToggle(c *gin.Context) (ToggleRequest, bool) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "dataset_id is required"})
		return req, false
	}
	if req.UserID == "" {
		req.UserID = entity.DemoUserID
	}
	return req, true
}

// notifyOwner mails the dataset owner about a new follower. Failures only log.
func notifyOwner(ctx *appcontext.Context, c *gin.Context, followerID, datasetID string) {
	if !ctx.Mailer.Enabled() {
		return
	}
	dataset, ok := ctx.Store.GetDataset(c.Request.Context(), datasetID)
	if !ok || dataset.OwnerID == followerID {
		return
	}
	owner, ok := ctx.Store.GetUser(c.Request.Context(), dataset.OwnerID)
	if !ok || owner.Email == "" {
		return
	}
	followerName := followerID
	if follower, ok := ctx.Store.GetUser(c.Request.Context(), followerID); ok {
		followerName = follower.Name
	}

	if err := ctx.Mailer.SendFollowNotification(owner.Email, owner.Name, followerName, dataset.Name, dataset.ID); err != nil {
		ctx.Logger.Warn("Failed to send follow notification", zap.String("dataset_id", dataset.ID), zap.Error(err))
	}
}

func GetDatasetSocial(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		social := ctx.Store.DatasetSocial(c.Request.Context(), c.Param("id"), entity.DemoUserID)
		c.JSON(http.StatusOK, gin.H{
			"followers": social.Followers,
			"likes":     social.Likes,
			"following": social.Following,
			"liked":     social.Liked,
		})
	}
}

func GetMySocial(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		social := ctx.Store.UserSocial(c.Request.Context(), entity.DemoUserID)
		c.JSON(http.StatusOK, gin.H{
			"following": social.Following,
			"liked":     social.Liked,
			"tags":      ctx.Store.FollowedTags(entity.DemoUserID),
		})
	}
}
