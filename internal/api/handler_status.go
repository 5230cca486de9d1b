package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tolppa-client/internal/model"
	"tolppa-client/internal/poller"
	"tolppa-client/internal/view"
)

type statusResponse struct {
	poller.Snapshot
	View    view.View `json:"view"`
	Summary string    `json:"summary"`
}

type actionResponse struct {
	Message model.Message  `json:"message"`
	Status  statusResponse `json:"status"`
}

func (h *Handler) status() statusResponse {
	snap := h.ctrl.Snapshot()
	v := view.Build(snap.Status, h.now())
	return statusResponse{Snapshot: snap, View: v, Summary: v.Summary()}
}

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.status())
}

// Refresh handles POST /api/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	if !h.ctrl.Snapshot().Authenticated {
		c.JSON(http.StatusConflict, gin.H{"error": poller.MsgNeedToken})
		return
	}
	h.ctrl.Refresh(c.Request.Context())
	c.JSON(http.StatusOK, h.status())
}
