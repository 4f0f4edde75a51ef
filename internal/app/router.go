package app

import (
	"github.com/gin-gonic/gin"

	"github.com/docuchat/backend/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ServiceName:     cfg.ServiceName,
		AllowOrigins:    cfg.AllowOrigins,
		DocumentHandler: handlerset.Document,
		StreamHandler:   handlerset.Stream,
	})
}
