package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Signal/internal/config"
	"github.com/dkeye/Signal/internal/core"
)

type GroupLister interface {
	List() []core.GroupInfo
}

type ConnCounter interface {
	ActiveConnections() int
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Signal  gin.HandlerFunc
	Users   UserStore
	History CallHistory
	Groups  GroupLister
	Conns   ConnCounter
	DB      Pinger
}

func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", health(deps))
	r.GET("/echo", func(c *gin.Context) {
		c.String(http.StatusOK, c.Query("msg"))
	})

	api := r.Group("/api")
	if deps.Signal != nil {
		api.GET("/ws/signal", deps.Signal)
	}
	if deps.Groups != nil {
		api.GET("/groups", func(c *gin.Context) {
			c.JSON(http.StatusOK, deps.Groups.List())
		})
	}
	if deps.Users != nil {
		ctl := &UsersController{Users: deps.Users, History: deps.History}
		ctl.Register(api.Group("/v1/users"))
	}

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}

func health(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if deps.Conns != nil {
			body["connections"] = deps.Conns.ActiveConnections()
		}
		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.DB.Ping(ctx); err != nil {
				body["status"] = "degraded"
				body["db"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
