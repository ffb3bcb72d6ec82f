package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragchat/internal/logger"
)

type RouterConfig struct {
	Accounts    AccountService
	Chat        ChatService
	CORSOrigins []string
	MaxUploadMB int
	Log         *logger.Logger
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(cfg.Log.With("Middleware", "RequestLogger")))
	r.Use(CORS(cfg.CORSOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := NewAuthHandler(cfg.Accounts, cfg.Log)
	ragHandler := NewRAGHandler(cfg.Chat, cfg.MaxUploadMB, cfg.Log)
	authMW := NewAuthMiddleware(cfg.Accounts, cfg.Log)

	public := r.Group("/auth")
	{
		public.POST("/signup", authHandler.Signup)
		public.POST("/login", authHandler.Login)
		public.POST("/forgot-password", authHandler.ForgotPassword)
		public.POST("/reset-password", authHandler.ResetPassword)
	}

	protected := r.Group("/")
	protected.Use(authMW.RequireAuth())
	{
		protected.POST("/auth/change-password", authHandler.ChangePassword)
		protected.GET("/profile", authHandler.GetProfile)
		protected.PUT("/profile", authHandler.UpdateProfile)

		protected.GET("/documents", ragHandler.ListDocuments)
		protected.DELETE("/documents/:doc", ragHandler.DeleteDocument)
		protected.GET("/history", ragHandler.History)

		protected.POST("/rag/upload", ragHandler.Upload)
		protected.POST("/rag/query", ragHandler.Query)
	}

	return r
}
