package main

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/middleware"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/tracing"
)

func setupRouter(api *API) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(api.logger), tracing.Middleware())

	// Health check
	router.GET("/health", api.healthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.JWTAuth(api.jwtSecret), middleware.RateLimit(api.limiter))

	uploads := []gin.HandlerFunc{}
	if api.window != nil && api.uploadsPerHour > 0 {
		uploads = append(uploads, middleware.WindowLimit(api.window, "uploads", int64(api.uploadsPerHour), time.Hour))
	}

	// Users
	users := v1.Group("/users/me")
	{
		users.POST("", api.registerUser)
		users.GET("/stats", api.getStats)
		users.POST("/pause", api.togglePause)
	}

	// Videos
	videos := v1.Group("/videos")
	{
		videos.GET("", api.listVideos)
		videos.POST("", api.addVideo)
		videos.POST("/:id/active", api.setVideoActive)
		videos.POST("/thumbnails", append(uploads, api.uploadThumbnail)...)
	}

	// Add-video drafts
	drafts := v1.Group("/drafts")
	{
		drafts.POST("", api.startDraft)
		drafts.GET("", api.getDraft)
		drafts.DELETE("", api.cancelDraft)
		drafts.POST("/input", append(uploads, api.draftInput)...)
	}

	// Tasks and reviews
	tasks := v1.Group("/tasks")
	{
		tasks.POST("", api.requestTask)
		tasks.POST("/:id/proof", append(uploads, api.submitProof)...)
		tasks.POST("/:id/review", api.reviewProof)
	}
	v1.GET("/reviews/pending", api.pendingReview)

	// Admin
	admin := v1.Group("/admin", middleware.RequireAdmin(api.exchange.IsAdmin))
	{
		admin.GET("/health", api.backlogHealth)
		admin.GET("/settings", api.listSettings)
		admin.PUT("/settings/:name", api.updateSetting)
		admin.PUT("/users/:id/status", api.setUserStatus)
		admin.POST("/users/:id/subscription", api.grantSubscription)
		admin.DELETE("/users/:id", api.removeAccount)
	}

	return router
}
