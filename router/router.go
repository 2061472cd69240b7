package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/roomturn/config"
	"github.com/yeremiapane/roomturn/controllers"
	"github.com/yeremiapane/roomturn/middlewares"
	"github.com/yeremiapane/roomturn/services"
	"github.com/yeremiapane/roomturn/utils"
)

func SetupRouter(cfg config.Config, bot *services.Bot) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())

	if len(cfg.TrustedProxies) > 0 {
		if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			utils.ErrorLogger.WithError(err).Warn("invalid trusted proxies")
		}
	}

	webhookCtrl := controllers.NewWebhookController(bot.Dispatcher, cfg.ChannelSecret, 3*cfg.LineTimeout)
	triggerCtrl := controllers.NewTriggerController(bot.Triggers)
	codeCtrl := controllers.NewRegistrationCodeController(bot.Registration)
	taskCtrl := controllers.NewTaskController(bot.Store)
	feedCtrl := controllers.NewFeedController(bot.Hub, cfg.AllowedOrigin)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "time": time.Now().UTC()})
	})

	// ----------------------------------------------------------------
	//                      CHAT PLATFORM
	// ----------------------------------------------------------------
	r.POST("/webhook", webhookCtrl.Handle)
	r.GET("/webhook", webhookCtrl.Health)

	// ----------------------------------------------------------------
	//                      HOTEL APPLICATION
	// ----------------------------------------------------------------
	limiter := middlewares.NewRateLimiter(cfg.TriggerRatePerSec, int(cfg.TriggerRatePerSec*2))
	api := r.Group("/api")
	api.Use(middlewares.CORSMiddlewares(cfg.AllowedOrigin))
	api.Use(limiter.RateLimit())
	{
		api.POST("/notify", triggerCtrl.Notify)
		api.POST("/registration-codes", codeCtrl.IssueCode)
		api.GET("/tasks", taskCtrl.GetTasks)
		api.GET("/reports", taskCtrl.GetReports)
		api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}

	if bot.Hub != nil {
		r.GET("/ws/feed", feedCtrl.Stream)
	}

	return r
}
