package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/access"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/exchange"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/metrics"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/session"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/settings"
)

// respondError writes the HTTP response for an error returned by the
// exchange, the access gate, settings or drafts
func (api *API) respondError(c *gin.Context, err error) {
	var already *exchange.AlreadyReviewedError
	var inputErr *session.InputError

	switch {
	case errors.Is(err, exchange.ErrNoTaskAvailable):
		c.JSON(http.StatusOK, gin.H{"task": nil, "message": err.Error()})

	case errors.As(err, &already):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "final_status": already.Status})

	case errors.Is(err, exchange.ErrNoOwnedVideo):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "no_owned_video"})

	case errors.Is(err, exchange.ErrVideoLimitReached):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "video_limit_reached"})

	case errors.Is(err, exchange.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, exchange.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, exchange.ErrNotOwner), errors.Is(err, exchange.ErrNotAdmin):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, access.ErrAccountRestricted),
		errors.Is(err, access.ErrSubscriptionRequired),
		errors.Is(err, access.ErrStatusLocked):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "reason": access.Reason(err)})

	case errors.Is(err, exchange.ErrContentRejected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	case errors.As(err, &inputErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": inputErr.Reason, "step": inputErr.Step})

	case errors.Is(err, exchange.ErrValidation), errors.Is(err, settings.ErrInvalidValue):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, settings.ErrUnknownSetting), errors.Is(err, session.ErrNoDraft):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, session.ErrDraftBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	default:
		metrics.RecordError("api", "internal")
		api.logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
