// Package api exposes stored listings, market analyses and the deal
// pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"realestate-leads/metrics"
	"realestate-leads/services"
	"realestate-leads/storage"
	"realestate-leads/utils"
)

const (
	agentHeader     = "X-Agent-ID"
	agentContextKey = "agent_id"
	shutdownTimeout = 10 * time.Second
)

// Options wires a Server. Metrics is optional; without an Ingestor the
// ingestion routes are not mounted.
type Options struct {
	Properties storage.PropertyStore
	Analysis   *services.AnalysisService
	Insights   *services.InsightService
	Deals      *services.DealService
	Ingestor   *services.Ingestor
	Metrics    *metrics.Registry
}

type Server struct {
	properties storage.PropertyStore
	analysis   *services.AnalysisService
	insights   *services.InsightService
	deals      *services.DealService
	ingestor   *services.Ingestor
	metrics    *metrics.Registry
	logger     *utils.Logger
}

func NewServer(opts Options, logger *utils.Logger) *Server {
	return &Server{
		properties: opts.Properties,
		analysis:   opts.Analysis,
		insights:   opts.Insights,
		deals:      opts.Deals,
		ingestor:   opts.Ingestor,
		metrics:    opts.Metrics,
		logger:     logger.With("api"),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())
	if s.metrics != nil {
		r.Use(s.instrument())
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	s.registerProperties(api.Group("/properties"))

	deals := api.Group("/deals")
	deals.Use(requireAgent())
	s.registerDeals(deals)

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		s.metrics.HTTPLatencySec.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// requireAgent rejects deal requests that do not identify the calling agent.
func requireAgent() gin.HandlerFunc {
	return func(c *gin.Context) {
		agent := c.GetHeader(agentHeader)
		if agent == "" {
			abortWithError(c, http.StatusUnauthorized, agentHeader+" header is required")
			return
		}
		c.Set(agentContextKey, agent)
		c.Next()
	}
}

func agentID(c *gin.Context) string {
	return c.GetString(agentContextKey)
}
