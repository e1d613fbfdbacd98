// Package api serves planning over HTTP with gin. Scenarios posted to
// /api/v1/solve are solved synchronously against the annual data loaded at
// startup; stored results are read back by run id.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/kilianp07/mesplan/core/batch"
	"github.com/kilianp07/mesplan/core/logger"
	"github.com/kilianp07/mesplan/core/model"
	"github.com/kilianp07/mesplan/core/store"
)

// Server holds the dependencies of the handlers.
type Server struct {
	Runner *batch.Runner
	Data   *model.AnnualData
	Store  store.ResultStore
	Log    logger.Logger
	// Token, when set, must be sent as "Authorization: Bearer <token>".
	Token        string
	MaxBodyBytes int64
	// Metrics serves /metrics. Nil uses the default Prometheus registry.
	Metrics http.Handler
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(Recovery(), requestLog(s.log()))

	metrics := s.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(metrics))

	v1 := r.Group("/api/v1", bearer(s.Token))
	{
		v1.POST("/solve", s.solve)
		v1.GET("/runs/:id", s.run)
	}
	r.NoRoute(func(c *gin.Context) {
		abort(c, http.StatusNotFound, "NOT_FOUND", "no route for "+c.Request.Method+" "+c.Request.URL.Path)
	})
	return r
}

// Handler wraps the router with CORS for the given origins.
func (s *Server) Handler(origins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(s.Router())
}

// ListenAndServe serves h on addr until ctx is canceled.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, log logger.Logger) error {
	log = logger.OrNop(log)
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("api server shutdown: %v", err)
		}
	}()
	log.Infof("serving api on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data_loaded": s.Data != nil})
}

func (s *Server) log() logger.Logger { return logger.OrNop(s.Log) }

func bearer(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token != "" && c.GetHeader("Authorization") != "Bearer "+token {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid bearer token")
			return
		}
		c.Next()
	}
}

func requestLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugw("http request", map[string]any{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}
