package server

import (
	"net/http"
	"time"

	"github.com/danmuck/spacectl/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (a *Admin) registerRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(a.started).String(),
			"version": a.cfg.Version,
		})
	})

	guarded := a.router.Group("/", a.requireToken())
	guarded.GET("/metrics", gin.WrapH(promhttp.Handler()))
	guarded.GET("/status", func(c *gin.Context) {
		body := gin.H{"uptime": time.Since(a.started).String()}
		if a.controllers != nil {
			body["controllers"] = a.controllers.Snapshot()
		}
		if a.credentials != nil {
			body["credential"] = a.credentials.Snapshot()
		}
		c.JSON(http.StatusOK, body)
	})
}

func (a *Admin) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.cfg.Validator == nil {
			c.Next()
			return
		}
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err == nil {
			err = a.cfg.Validator.Validate(token)
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
