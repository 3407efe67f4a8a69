package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (api *API) backlogHealth(c *gin.Context) {
	if api.monitor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Monitoring is not enabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  api.monitor.Health(),
		"backlog": api.monitor.Snapshot(),
		"alerts":  api.monitor.Alerts(),
	})
}

func (api *API) listSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"settings": api.settings.List()})
}

type settingRequest struct {
	Enabled bool   `json:"enabled"`
	Value   string `json:"value"`
}

func (api *API) updateSetting(c *gin.Context) {
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	setting, err := api.exchange.UpdateSetting(c.Request.Context(), currentUser(c), c.Param("name"), req.Enabled, req.Value)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"setting": setting})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (api *API) setUserStatus(c *gin.Context) {
	userID, ok := parseID(c)
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := api.exchange.SetUserStatus(c.Request.Context(), currentUser(c), userID, req.Status)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type subscriptionRequest struct {
	Days int `json:"days" binding:"required,min=1"`
}

func (api *API) grantSubscription(c *gin.Context) {
	userID, ok := parseID(c)
	if !ok {
		return
	}

	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := api.exchange.GrantSubscription(c.Request.Context(), currentUser(c), userID, req.Days)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (api *API) removeAccount(c *gin.Context) {
	userID, ok := parseID(c)
	if !ok {
		return
	}

	if err := api.exchange.RemoveAccount(c.Request.Context(), currentUser(c), userID); err != nil {
		api.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
