package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/messenger-cosmos-public/bridge/internal/config"
	"github.com/messenger-cosmos-public/bridge/internal/http/middleware"
)

type RouterDeps struct {
	Handler *Handler
	Hub     http.Handler
	Metrics http.Handler
	Origins *middleware.OriginPolicy
	Config  config.Config
	Logger  *zap.Logger
}

// NewRouter wires gin with the bridge middleware, the websocket hub endpoint
// and the operator views.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(deps.Logger))
	r.Use(deps.Origins.CORS())
	if deps.Config.MaintenanceFlag != "" {
		r.Use(middleware.Maintenance(deps.Config.MaintenanceFlag))
	}

	r.GET(deps.Config.HubPath, gin.WrapH(deps.Hub))
	r.GET("/health", deps.Handler.Health)
	r.GET("/metrics", gin.WrapH(deps.Metrics))

	api := r.Group("/api")
	registerClientRoutes(api.Group("/clients"), deps)
	registerGroupRoutes(api.Group("/groups"), deps)

	return r
}

func registerClientRoutes(r *gin.RouterGroup, deps RouterDeps) {
	r.GET("", deps.Handler.ListClients)
	r.GET("/:clientId", deps.Handler.GetClient)
}

func registerGroupRoutes(r *gin.RouterGroup, deps RouterDeps) {
	r.GET("", deps.Handler.ListGroups)
	r.GET("/:groupId", deps.Handler.GetGroup)
	r.GET("/:groupId/members", deps.Handler.ListGroupMembers)
}
