package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rolegate/internal/authz"
	"rolegate/internal/handlers"
	"rolegate/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	homeURL string,
	verifyHandler *handlers.VerifyHandler,
	oauthHandler *handlers.OAuthHandler, // nil, если OAuth не настроен
	recordHandler *handlers.RecordHandler,
	adminSecret []byte,
) *gin.Engine {

	// ---- public
	r.GET("/", handlers.Home(homeURL))
	r.GET("/healthz", handlers.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/verify", verifyHandler.Page)
	r.POST("/verify", verifyHandler.Submit)

	if oauthHandler != nil {
		r.GET("/oauth", oauthHandler.Callback)
		r.GET("/oauth/start", oauthHandler.Start)
	}

	// ---- admin (JWT)
	admin := r.Group("/admin",
		middleware.AuthMiddleware(adminSecret),
		middleware.RequireScope(authz.ScopeRecordsRead),
	)
	{
		admin.GET("/records/:user_id", recordHandler.GetByUserID)
	}

	return r
}
