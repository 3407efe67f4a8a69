package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/session"
)

func draftResponse(d *session.Draft) gin.H {
	return gin.H{"draft": d, "prompt": d.Prompt()}
}

func (api *API) draftsEnabled(c *gin.Context) bool {
	if api.drafts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Drafts are not available, use POST /api/v1/videos"})
		return false
	}
	return true
}

func (api *API) startDraft(c *gin.Context) {
	if !api.draftsEnabled(c) {
		return
	}
	ctx := c.Request.Context()
	userID := currentUser(c)

	if err := api.exchange.CanAddVideo(ctx, userID); err != nil {
		api.respondError(c, err)
		return
	}

	d, err := api.drafts.Start(ctx, userID)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, draftResponse(d))
}

func (api *API) getDraft(c *gin.Context) {
	if !api.draftsEnabled(c) {
		return
	}

	d, err := api.drafts.Current(c.Request.Context(), currentUser(c))
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draftResponse(d))
}

func (api *API) cancelDraft(c *gin.Context) {
	if !api.draftsEnabled(c) {
		return
	}

	if err := api.drafts.Cancel(c.Request.Context(), currentUser(c)); err != nil {
		api.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// draftInput answers the current step. The thumbnail step accepts either a
// multipart "file" upload or a media_ref. Finishing the last step stores
// the video.
func (api *API) draftInput(c *gin.Context) {
	if !api.draftsEnabled(c) {
		return
	}
	ctx := c.Request.Context()
	userID := currentUser(c)

	var in session.Input
	if isMultipart(c) {
		in.Text = c.PostForm("text")
		if _, err := c.FormFile("file"); err == nil {
			ref, ok := api.storeThumbnail(c)
			if !ok {
				return
			}
			in.MediaRef = ref
		}
	} else if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := api.drafts.Advance(ctx, userID, in)
	if err != nil {
		var inputErr *session.InputError
		if errors.As(err, &inputErr) && d != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  inputErr.Reason,
				"step":   d.Step,
				"prompt": d.Prompt(),
			})
			return
		}
		api.respondError(c, err)
		return
	}

	if d.Step != session.StepDone {
		c.JSON(http.StatusOK, draftResponse(d))
		return
	}

	// The draft survives a failed save so the answers are not lost
	video, err := api.exchange.AddVideo(ctx, userID, d.Video)
	if err != nil {
		api.respondError(c, err)
		return
	}
	if err := api.drafts.Finish(ctx, userID); err != nil {
		api.logger.WithUserID(userID).WithError(err).Warn("Failed to clear completed draft")
	}
	c.JSON(http.StatusCreated, gin.H{"video": video, "prompt": d.Prompt()})
}
