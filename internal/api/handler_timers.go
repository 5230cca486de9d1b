package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tolppa-client/internal/model"
	"tolppa-client/internal/poller"
	"tolppa-client/internal/timer"
)

// PostTimer handles POST /api/timers.
func (h *Handler) PostTimer(c *gin.Context) {
	var form timer.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	msg, err := h.ctrl.SubmitTimer(c.Request.Context(), form)
	h.respondAction(c, msg, err)
}

// DeleteTimers handles DELETE /api/timers.
func (h *Handler) DeleteTimers(c *gin.Context) {
	msg, err := h.ctrl.DeleteAllTimers(c.Request.Context())
	h.respondAction(c, msg, err)
}

func (h *Handler) respondAction(c *gin.Context, msg model.Message, err error) {
	switch {
	case errors.Is(err, poller.ErrActionUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code := http.StatusOK
	if msg.Severity == model.SeverityError {
		code = http.StatusBadGateway
	}
	c.JSON(code, actionResponse{Message: msg, Status: h.status()})
}
