package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"tolppa-client/internal/model"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	msg, err := h.ctrl.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		log.Error().Err(err).Msg("login could not be persisted")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	code := http.StatusOK
	if msg.Severity == model.SeverityError {
		code = http.StatusUnauthorized
	}
	c.JSON(code, actionResponse{Message: msg, Status: h.status()})
}

// Logout handles POST /api/logout.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.ctrl.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type tokenRequest struct {
	Token string `json:"token"`
}

// PutToken handles PUT /api/token. An empty token stops polling.
func (h *Handler) PutToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.ctrl.SetToken(c.Request.Context(), req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.status())
}
