package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"tolppa-client/config"
	"tolppa-client/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestID())

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheStore := cache.New(cfg.CacheTTL, 10*time.Minute)
	caching := mw.Cache(cacheStore, cfg.CacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter, mw.Invalidate(cacheStore))
	{
		api.GET("/status", caching, h.GetStatus)
		api.POST("/refresh", h.Refresh)

		api.POST("/login", h.Login)
		api.POST("/logout", h.Logout)
		api.PUT("/token", h.PutToken)

		api.POST("/timers", h.PostTimer)
		api.DELETE("/timers", h.DeleteTimers)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", caching, h.GetVAPIDPublicKey)
	}

	return r
}
