package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/autoclaim-backend/internal/config"
	"github.com/ignatzorin/autoclaim-backend/internal/http/handlers"
	"github.com/ignatzorin/autoclaim-backend/internal/http/middleware"
)

// Handlers собирает HTTP обработчики приложения.
type Handlers struct {
	Auth   *handlers.AuthHandler
	Claims *handlers.ClaimHandler
	Health *handlers.HealthHandler
	WS     *handlers.WSHandler
}

// authRateLimit задаёт лимит попыток входа и регистрации в период RATE_LIMIT_PERIOD.
const authRateLimit = 5

// SetupRouter регистрирует маршруты. mediaRoot непустой только для
// локального хранилища изображений, которое раздаётся по /media.
func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.AccessTokenParser, mediaRoot string, log logrus.FieldLogger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.ErrorHandler(log))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	if mediaRoot != "" {
		r.StaticFS("/media", http.Dir(mediaRoot))
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(authRateLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	api.GET("/ws", h.WS.Handle)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.GET("/auth/me", h.Auth.Me)
		protected.PATCH("/auth/me", h.Auth.UpdateProfile)

		protected.POST("/claims/submit", middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod), h.Claims.Submit)
		protected.GET("/claims/user/:userId", middleware.UUIDValidator("userId"), h.Claims.ListUser)
		protected.GET("/claims/:id", middleware.UUIDValidator("id"), h.Claims.Get)
		protected.GET("/claims/:id/history", middleware.UUIDValidator("id"), h.Claims.History)
	}

	admin := api.Group("/")
	admin.Use(middleware.AuthMiddleware(tokens), middleware.RequireAdmin())
	{
		admin.PATCH("/claims/:id/status", middleware.UUIDValidator("id"), h.Claims.UpdateStatus)
		admin.PUT("/claims/:id", middleware.UUIDValidator("id"), h.Claims.Update)
		admin.DELETE("/claims/:id", middleware.UUIDValidator("id"), h.Claims.Delete)
		admin.POST("/claims/:id/reanalyze", middleware.UUIDValidator("id"), h.Claims.Reanalyze)

		admin.GET("/admin/claims", h.Claims.ListAll)
		admin.GET("/admin/claims/statistics", h.Claims.Statistics)
		admin.POST("/admin/users/:id/deactivate", middleware.UUIDValidator("id"), h.Auth.DeactivateUser)
	}

	return r
}
