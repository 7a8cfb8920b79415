package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/coordinator"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/events"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/monitor"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/pending"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/signer"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/venue"

	"github.com/gin-gonic/gin"
)

// Server wires HTTP and websocket endpoints around the coordinator.
type Server struct {
	Router    *gin.Engine
	Coord     *coordinator.Coordinator
	Cache     *pending.Cache
	Pool      *signer.Pool
	Hub       *events.Hub
	Venues    *venue.Registry
	Metrics   *monitor.Metrics
	JWTSecret string
	APIKey    string
	Meta      SystemMeta

	limiters *limiterSet
}

// SystemMeta describes runtime status exposed on the status endpoint.
type SystemMeta struct {
	Version string
	Venues  []string
}

func NewServer(coord *coordinator.Coordinator, cache *pending.Cache, pool *signer.Pool, hub *events.Hub, venues *venue.Registry, metrics *monitor.Metrics, meta SystemMeta, jwtSecret, apiKey string) *Server {
	r := gin.New()
	limiters := newLimiterSet()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())                // Panic recovery (first)
	r.Use(RequestIDMiddleware())         // Request ID tracking
	r.Use(RequestLogger(metrics))        // Request logging (after ID is set)
	r.Use(RateLimitMiddleware(limiters)) // Rate limiting
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware()) // CORS (last before routes)

	s := &Server{
		Router:    r,
		Coord:     coord,
		Cache:     cache,
		Pool:      pool,
		Hub:       hub,
		Venues:    venues,
		Metrics:   metrics,
		JWTSecret: jwtSecret,
		APIKey:    apiKey,
		Meta:      meta,
		limiters:  limiters,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.POST("/auth/token", s.issueToken)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.POST("/requests", s.submitRequest)
			protected.GET("/requests", s.listRequests)
			protected.GET("/requests/:id", s.getRequest)
			protected.PUT("/requests/:id", s.amendRequest)
			protected.DELETE("/requests/:id", s.cancelRequest)
			protected.POST("/requests/:id/finalize", s.finalizeRequest)
			protected.POST("/requests/cancel-all", s.cancelAll)
			protected.GET("/orders", s.getOpenOrders)

			protected.GET("/system/status", s.getSystemStatus)
			protected.GET("/metrics", s.getMetrics)
			protected.GET("/pool", s.getPoolStats)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start runs the limiter reset loop and serves until the listener fails.
// The loop stops with ctx.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.limiters.resetLoop(ctx)
	return s.Router.Run(addr)
}
