package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"donateo/internal/infra/config"
	"donateo/internal/infra/obs"
)

type ChatHTTP interface {
	Create(c *gin.Context)
	ListMine(c *gin.Context)
	ListAll(c *gin.Context)
	Lookup(c *gin.Context)
	Get(c *gin.Context)
	SendMessage(c *gin.Context)
	SendQuickReply(c *gin.Context)
	SetPickup(c *gin.Context)
	ConfirmPickup(c *gin.Context)
	MarkRead(c *gin.Context)
	End(c *gin.Context)
	Report(c *gin.Context)
}

type Handlers struct {
	Chat           ChatHTTP
	AuthMiddleware gin.HandlerFunc
	Metrics        http.Handler
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine; tests drive it through httptest.
func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", headerUserID, headerUserRole},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}

	api := router.Group("/api/v1")
	if h.Chat != nil {
		api.POST("/chats", h.Chat.Create)
		api.GET("/chats/mine", h.Chat.ListMine)
		api.GET("/chats/lookup", h.Chat.Lookup)
		api.GET("/admin/chats", h.Chat.ListAll)

		chatGroup := api.Group("/chats/:id")
		chatGroup.GET("", h.Chat.Get)
		chatGroup.POST("/messages", h.Chat.SendMessage)
		chatGroup.POST("/quick-replies", h.Chat.SendQuickReply)
		chatGroup.PUT("/pickup", h.Chat.SetPickup)
		chatGroup.POST("/pickup/confirm", h.Chat.ConfirmPickup)
		chatGroup.POST("/read", h.Chat.MarkRead)
		chatGroup.POST("/end", h.Chat.End)
		chatGroup.POST("/report", h.Chat.Report)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
