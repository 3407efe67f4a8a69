package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/exchange"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/logging"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/middleware"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/monitoring"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/session"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/settings"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/storage"
	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

// MediaUploader stores uploaded thumbnails and proofs
type MediaUploader interface {
	UploadThumbnail(ctx context.Context, userID int64, filename string, reader io.Reader, size int64) (string, error)
	UploadProof(ctx context.Context, viewerID, taskID int64, filename string, reader io.Reader, size int64) (string, string, error)
}

// API holds the HTTP handlers. drafts, media, window and monitor may be nil
// when Redis, object storage or monitoring are not configured.
type API struct {
	exchange       *exchange.Service
	settings       *settings.Service
	drafts         *session.Manager
	media          MediaUploader
	monitor        *monitoring.Monitor
	cache          Pinger
	limiter        *middleware.RateLimiter
	window         middleware.WindowCounter
	jwtSecret      string
	uploadsPerHour int
	logger         *logging.Logger
}

// Pinger is an optional backing service checked by /health
type Pinger interface {
	Ping(ctx context.Context) error
}

func currentUser(c *gin.Context) int64 {
	id, _ := middleware.GetUserID(c)
	return id
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.exchange.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	// Redis is optional, so its state is reported without failing the check
	cacheStatus := "disabled"
	if api.cache != nil {
		cacheStatus = "ok"
		if err := api.cache.Ping(ctx); err != nil {
			cacheStatus = "unavailable"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"cache":  cacheStatus,
	})
}

// Users

type registerRequest struct {
	Username string `json:"username"`
}

func (api *API) registerUser(c *gin.Context) {
	var req registerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Username == "" {
		req.Username = middleware.GetUsername(c)
	}

	user, err := api.exchange.RegisterUser(c.Request.Context(), currentUser(c), req.Username)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (api *API) getStats(c *gin.Context) {
	stats, err := api.exchange.Stats(c.Request.Context(), currentUser(c))
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (api *API) togglePause(c *gin.Context) {
	user, err := api.exchange.TogglePause(c.Request.Context(), currentUser(c))
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Videos

func (api *API) listVideos(c *gin.Context) {
	videos, err := api.exchange.ListVideos(c.Request.Context(), currentUser(c))
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos, "count": len(videos)})
}

func (api *API) addVideo(c *gin.Context) {
	var draft models.VideoDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	video, err := api.exchange.AddVideo(c.Request.Context(), currentUser(c), draft)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"video": video})
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (api *API) setVideoActive(c *gin.Context) {
	videoID, ok := parseID(c)
	if !ok {
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	video, err := api.exchange.SetVideoActive(c.Request.Context(), currentUser(c), videoID, *req.Active)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": video})
}

func (api *API) uploadThumbnail(c *gin.Context) {
	ref, ok := api.storeThumbnail(c)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"thumbnail_ref": ref})
}

// storeThumbnail uploads the "file" form field and writes an error
// response on failure
func (api *API) storeThumbnail(c *gin.Context) (string, bool) {
	if api.media == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Media storage is not configured"})
		return "", false
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return "", false
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return "", false
	}
	defer f.Close()

	ref, err := api.media.UploadThumbnail(c.Request.Context(), currentUser(c), file.Filename, f, file.Size)
	if err != nil {
		api.respondUploadError(c, err)
		return "", false
	}
	return ref, true
}

// Tasks

func (api *API) taskResponse(ctx context.Context, d *models.TaskDetails) gin.H {
	resp := gin.H{
		"task":          d.Task,
		"video":         d.Video,
		"thumbnail_url": api.exchange.MediaURL(ctx, d.Video.ThumbnailRef),
	}
	if d.Task.ProofRef != "" {
		resp["proof_url"] = api.exchange.MediaURL(ctx, d.Task.ProofRef)
	}
	return resp
}

func (api *API) requestTask(c *gin.Context) {
	ctx := c.Request.Context()
	details, err := api.exchange.RequestTask(ctx, currentUser(c))
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.taskResponse(ctx, details))
}

type proofRequest struct {
	ProofRef  string `json:"proof_ref" binding:"required"`
	ProofKind string `json:"proof_kind" binding:"required"`
}

func (api *API) submitProof(c *gin.Context) {
	taskID, ok := parseID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	viewerID := currentUser(c)

	var req proofRequest
	if isMultipart(c) {
		if api.media == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Media storage is not configured"})
			return
		}
		file, err := c.FormFile("proof")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No proof file provided"})
			return
		}
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read proof"})
			return
		}
		defer f.Close()

		req.ProofRef, req.ProofKind, err = api.media.UploadProof(ctx, viewerID, taskID, file.Filename, f, file.Size)
		if err != nil {
			api.respondUploadError(c, err)
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	details, err := api.exchange.SubmitProof(ctx, viewerID, taskID, req.ProofRef, req.ProofKind)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.taskResponse(ctx, details))
}

type reviewRequest struct {
	Verdict string `json:"verdict" binding:"required,oneof=valid invalid"`
	Reason  string `json:"reason"`
}

func (api *API) reviewProof(c *gin.Context) {
	taskID, ok := parseID(c)
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var (
		details *models.TaskDetails
		err     error
	)
	if req.Verdict == "valid" {
		details, err = api.exchange.ResolveValid(ctx, currentUser(c), taskID)
	} else {
		details, err = api.exchange.ResolveInvalid(ctx, currentUser(c), taskID, req.Reason)
	}
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.taskResponse(ctx, details))
}

func (api *API) pendingReview(c *gin.Context) {
	ctx := c.Request.Context()
	details, err := api.exchange.PendingReview(ctx, currentUser(c))
	if err != nil {
		api.respondError(c, err)
		return
	}
	if details == nil {
		c.JSON(http.StatusOK, gin.H{"task": nil, "message": "No proofs waiting for review"})
		return
	}
	c.JSON(http.StatusOK, api.taskResponse(ctx, details))
}

func (api *API) respondUploadError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrUnsupportedMedia) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	api.respondError(c, err)
}
