package api

import (
	"net/http"

	"turnero/internal/metrics"
	"turnero/internal/middleware"
	"turnero/pkg/constraints"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func RegisterRoutes(authHandler *AuthHandler, turnoHandler *TurnoHandler, verifier middleware.AccessVerifier, rdb redis.Scripter, requestsPerSecond int) *gin.Engine {
	r := gin.New()

	r.Use(
		middleware.CorsMiddleware(),
		middleware.RequestID(),
		middleware.TraceMiddleware(),
		middleware.GinZapLogger(),
		middleware.GinZapRecovery(),
		middleware.HttpMiddleware(),
	)
	r.SetTrustedProxies(nil)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")

	// credential endpoints are public; only the password exchange is rate limited
	loginLimiter := middleware.RateLimitMiddleware(rdb, requestsPerSecond)
	api.POST(constraints.PathToken, loginLimiter, authHandler.Login)
	api.POST(constraints.PathTokenRefresh, authHandler.Refresh)

	protected := api.Group("")
	protected.Use(middleware.JWTMiddleware(verifier))
	{
		protected.GET(constraints.PathWhoAmI, authHandler.WhoAmI)
		protected.POST(constraints.PathLogout, authHandler.Logout)
		protected.GET(constraints.PathTurnos, turnoHandler.ListTurnos)
		protected.POST(constraints.PathTurnos, turnoHandler.CreateTurno)
	}
	return r
}
