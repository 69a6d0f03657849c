package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/fileroom/fileroom/internal/adapters/ws"
	"github.com/fileroom/fileroom/internal/app"
	"github.com/fileroom/fileroom/internal/config"
	"github.com/fileroom/fileroom/internal/core"
)

func SetupRouter(ctx context.Context, cfg *config.Config, svc *app.Service, hub *core.BroadcastHub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	ctl := &Controller{Service: svc}
	wsCtl := &ws.Controller{Service: svc, Hub: hub, Buffer: cfg.SendBuffer}

	r.GET("/", ctl.NewRoom)
	r.GET("/manifest.json", ctl.Manifest)

	api := r.Group("/api")
	api.GET("/join/:room", ctl.Join)
	api.POST("/message/:room", ctl.SendMessage)
	api.POST("/upload/:room", ctl.Upload)
	api.DELETE("/message/:id", ctl.DeleteMessage)
	api.GET("/room/:room/data", ctl.RoomData)
	api.DELETE("/room/:room/all", ctl.ClearRoom)
	api.GET("/download/:id", ctl.Download)
	api.POST("/heartbeat/:user", ctl.Heartbeat)

	r.GET("/ws/:room/:user", func(c *gin.Context) {
		wsCtl.Handle(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
