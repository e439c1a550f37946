// Package server is the operator's admin HTTP surface: liveness, controller
// status, and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/spacectl/internal/auth"
	"github.com/danmuck/spacectl/internal/controller"
	"github.com/danmuck/spacectl/internal/credential"
	"github.com/danmuck/spacectl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// StatusSource reports controller stats.
type StatusSource interface {
	Snapshot() []controller.Stats
}

// CredentialSource reports whether a game session is published.
type CredentialSource interface {
	Snapshot() credential.Snapshot
}

type Config struct {
	ListenAddr  string
	CorsOrigins []string
	// Validator guards /status and /metrics; nil leaves them open.
	Validator auth.Validator
	Version   string
}

type Admin struct {
	cfg         Config
	router      *gin.Engine
	controllers StatusSource
	credentials CredentialSource
	started     time.Time
}

func New(cfg Config, controllers StatusSource, credentials CredentialSource) *Admin {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.Logger("admin")))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &Admin{
		cfg:         cfg,
		router:      r,
		controllers: controllers,
		credentials: credentials,
		started:     time.Now(),
	}
	a.registerRoutes()
	return a
}

func (a *Admin) Handler() http.Handler { return a.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *Admin) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", a.cfg.ListenAddr).Msg("admin server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen %s: %w", a.cfg.ListenAddr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	log.Info().Str("addr", a.cfg.ListenAddr).Msg("admin server stopped")
	return nil
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if o := strings.TrimSpace(origin); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
