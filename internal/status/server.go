// Package status exposes the operational surface: health, pacing status
// and Prometheus metrics over HTTP.
package status

import (
	"context"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Openpanel-dev/mock/internal/config"
	"github.com/Openpanel-dev/mock/internal/core"
	"github.com/Openpanel-dev/mock/internal/counter"
	"github.com/Openpanel-dev/mock/internal/metrics"
	"github.com/Openpanel-dev/mock/internal/report"
)

// QueueStats is the queue's observability surface.
type QueueStats interface {
	Depth() int
	ActiveRunners() int
}

// Server serves /health, /status and /metrics.
type Server struct {
	srv   *http.Server
	log   *zap.SugaredLogger
	clock core.Clock

	profile   config.HourlyProfile
	store     counter.Store
	queue     QueueStats
	collector *report.Collector
}

// NewServer builds the HTTP server; Start actually binds the listener.
func NewServer(addr string, profile config.HourlyProfile, store counter.Store, q QueueStats, coll *report.Collector, m *metrics.Metrics, log *zap.SugaredLogger) *Server {
	s := &Server{
		log:       log,
		clock:     core.RealClock{},
		profile:   profile,
		store:     store,
		queue:     q,
		collector: coll,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(ginzap.Ginzap(log.Desugar(), time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(log.Desugar(), true))

	router.GET("/health", s.health)
	router.GET("/status", s.status)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	s.srv = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": s.clock.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) status(c *gin.Context) {
	current, err := s.store.Count()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	hour := s.clock.Now().Hour()
	summary := s.collector.Summary()
	c.JSON(http.StatusOK, gin.H{
		"hour":             hour,
		"target_visitors":  s.profile.Target(hour),
		"current_visitors": current,
		"queue_depth":      s.queue.Depth(),
		"active_runners":   s.queue.ActiveRunners(),
		"completed":        summary.Completed,
		"failed":           summary.Failed,
		"events_emitted":   summary.EventsEmitted,
	})
}

// Start binds the listener and serves until Shutdown.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorw("status server failed", "error", err)
		}
	}()
	s.log.Infow("status server listening", "addr", s.srv.Addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
