// Package server exposes the relay's ops surface: health, metrics, and the
// live routing status.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dawsh2/AlphaPulse-sub008/internal/observability"
	"github.com/dawsh2/AlphaPulse-sub008/internal/relay"
)

type Ops struct {
	node     string
	addr     string
	router   *relay.Router
	engine   *gin.Engine
	appeared time.Time
}

func New(node, addr string, router *relay.Router, corsOrigins []string, logger zerolog.Logger) *Ops {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(observability.RequestLogger(logger))
	engine.Use(observability.RequestMetricsMiddleware(node))
	if len(corsOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins: corsOrigins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = engine.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	o := &Ops{
		node:     node,
		addr:     addr,
		router:   router,
		engine:   engine,
		appeared: time.Now(),
	}
	o.registerRoutes()
	return o
}

func (o *Ops) registerRoutes() {
	o.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"node":    o.node,
			"uptime":  time.Since(o.appeared).String(),
			"service": "relay",
		})
	})
	o.engine.GET("/topics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"topics":        o.router.Topics(),
			"subscriptions": o.router.Status(),
		})
	})
	o.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler exposes the engine for tests.
func (o *Ops) Handler() http.Handler {
	return o.engine
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (o *Ops) Run(ctx context.Context) error {
	srv := &http.Server{Addr: o.addr, Handler: o.engine}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
