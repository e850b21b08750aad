package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"parking-scheduler-backend/config"
	"parking-scheduler-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. gatherer may be nil to
// leave /metrics out.
func NewRouter(handler *Handler, cfg config.ServerConfig, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateBurst)

	// Historical views never change once written; cache them.
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl, mw.HasQuery("at"))

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/tiers", handler.GetTiers)
		api.GET("/tiers/:tier/slots", caching, handler.GetTierSlots)

		api.POST("/requests", handler.PostRequest)

		api.GET("/decisions", handler.GetDecisions)
		api.POST("/decisions/:occupant", handler.PostDecision)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
