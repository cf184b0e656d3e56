package route

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"singlish-bot/api"
	"singlish-bot/internal/logger"
	"singlish-bot/service"
)

type Deps struct {
	Chat        *service.ChatService
	Catalog     *service.Catalog
	Sessions    *service.SessionManager
	Analytics   *service.AnalyticsService
	Auth        *api.Authenticator
	Health      map[string]api.HealthCheck
	CORSOrigins []string
	ServiceName string
	Logger      *zap.Logger
}

// NewEngine builds the gin engine with the shared middleware stack and
// every route registered.
func NewEngine(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(
		api.Recovery(d.Logger),
		api.RequestLogger(logger.Named(d.Logger, "http")),
		api.CORS(d.CORSOrigins),
	)
	if d.ServiceName != "" {
		r.Use(otelgin.Middleware(d.ServiceName))
	}
	Register(r, d)
	return r
}

func Register(r *gin.Engine, d Deps) {
	r.GET("/health", api.HealthHandler(d.Health))

	group := r.Group("/api", d.Auth.Identify())

	chatGroup := group.Group("/chat")
	{
		chatGroup.POST("", api.ChatHandler(d.Chat))
		chatGroup.GET("/ws", api.ChatSocketHandler(d.Chat, d.CORSOrigins, d.Logger))
	}

	sessionGroup := group.Group("/sessions", d.Auth.RequireAuth())
	{
		sessionGroup.GET("", api.ListSessionsHandler(d.Sessions))
		sessionGroup.GET("/:id/messages", api.SessionMessagesHandler(d.Sessions))
		sessionGroup.DELETE("/:id", api.DeleteSessionHandler(d.Sessions))
	}

	adminGroup := group.Group("/admin", d.Auth.RequireAdmin())
	{
		adminGroup.GET("/intents", api.ListIntentsHandler(d.Catalog))
		adminGroup.GET("/intents/:id", api.GetIntentHandler(d.Catalog))
		adminGroup.POST("/intents", api.CreateIntentHandler(d.Catalog))
		adminGroup.PUT("/intents/:id", api.UpdateIntentHandler(d.Catalog))
		adminGroup.DELETE("/intents/:id", api.DeleteIntentHandler(d.Catalog))
		adminGroup.GET("/analytics/summary", api.AnalyticsSummaryHandler(d.Analytics))
	}
}
