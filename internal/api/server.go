// Package api exposes the interview over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"reqgather/internal/auth"
	"reqgather/internal/branding"
	"reqgather/internal/estimate"
	"reqgather/internal/export"
	"reqgather/internal/interview"
	"reqgather/internal/session"
)

type Interview interface {
	Turn(ctx context.Context, req interview.TurnRequest) (interview.TurnResponse, error)
	State(ctx context.Context, id string) (session.State, error)
	Reset(ctx context.Context, id string) error
}

type Branding interface {
	Turn(ctx context.Context, id string, answer *string) (branding.Response, error)
	Profile(id string) (map[string]any, bool, error)
}

type Estimator interface {
	Sitemap(ctx context.Context, requirements, branding map[string]any) (estimate.SiteMap, error)
	Prompts(ctx context.Context, sm estimate.SiteMap) (estimate.PromptSet, error)
}

type Artefacts interface {
	WriteJSON(kind export.Kind, id string, v any) error
	ReadJSON(kind export.Kind, id string, v any) error
}

type Deps struct {
	Interview Interview
	Branding  Branding
	Estimator Estimator
	Artefacts Artefacts
	Gatherer  prometheus.Gatherer
	APIToken  string
	Log       *zap.Logger
}

type handler struct {
	Deps
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	h := &handler{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Log))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1", bearerAuth(d.APIToken))
	v1.POST("/sessions", h.createSession)
	v1.POST("/chat", h.chat)
	v1.GET("/sessions/:id", h.getSession)
	v1.DELETE("/sessions/:id", h.deleteSession)
	v1.POST("/branding", h.branding)
	v1.POST("/sessions/:id/sitemap", h.sitemap)
	v1.POST("/sessions/:id/prompts", h.prompts)
	return r
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	errc := make(chan error, 1)
	go func() {
		log.Info("🌐 http server listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("🌐 http server stopped")
	return nil
}

func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.BearerMatches(token, c.GetHeader("Authorization")) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "ERROR", "error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
