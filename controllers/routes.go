package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"formautofill/app"
	"formautofill/middleware"
	"formautofill/utils"
)

const maxBodySize = 10 << 20

// SetupRouter builds the HTTP command surface. Everything under /api except
// token exchange needs a bearer token.
func SetupRouter(a *app.App) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(middleware.CORS(a.Config.AllowedOrigins))
	router.Use(middleware.SanitizeInput())
	router.Use(middleware.MaxRequestSize(maxBodySize))

	limiters := middleware.CreateRateLimiters()

	authController := NewAuthController(a.Auth)
	sessionController := NewSessionController(a)
	profileController := NewProfileController(a.Profiles, a.Archive)
	domainController := NewDomainController(a.Domains)

	router.GET("/health", func(c *gin.Context) {
		utils.SuccessResponse(c, http.StatusOK, "ok", gin.H{"sessions": len(a.Sessions.List())})
	})

	api := router.Group("/api")

	auth := api.Group("/auth")
	auth.Use(limiters["auth"].Limit())
	auth.POST("/token", middleware.ValidateJSON(), authController.Token)

	protected := api.Group("")
	protected.Use(middleware.Auth(a.Auth))
	protected.Use(limiters["general"].Limit())

	sessions := protected.Group("/sessions")
	sessions.Use(middleware.ValidateJSON())
	{
		sessions.POST("", sessionController.Create)
		sessions.GET("", sessionController.List)
		sessions.GET("/:id", sessionController.Get)
		sessions.GET("/:id/html", sessionController.HTML)
		sessions.DELETE("/:id", sessionController.Delete)
		sessions.POST("/:id/insert", sessionController.Insert)
		sessions.POST("/:id/autofill", limiters["autofill"].Limit(), sessionController.Autofill)
		sessions.POST("/:id/commands", limiters["autofill"].Limit(), sessionController.Command)
		sessions.GET("/:id/active-profile", sessionController.GetActiveProfile)
		sessions.PUT("/:id/active-profile", sessionController.SetActiveProfile)
		sessions.GET("/:id/forms", sessionController.Forms)
		sessions.POST("/:id/highlights/clear", sessionController.ClearHighlights)
	}

	profiles := protected.Group("/profiles")
	{
		profiles.GET("", profileController.List)
		profiles.POST("", middleware.ValidateJSON(), profileController.Create)
		profiles.POST("/import", middleware.ValidateJSON(), profileController.Import)
		profiles.POST("/default", profileController.EnsureDefault)
		profiles.POST("/from-resume", middleware.ValidateContentType("multipart/form-data"), profileController.FromResume)
		profiles.GET("/:id", profileController.Get)
		profiles.PUT("/:id", middleware.ValidateJSON(), profileController.Update)
		profiles.DELETE("/:id", profileController.Delete)
		profiles.GET("/:id/export", profileController.Export)
	}

	domains := protected.Group("/domains")
	domains.Use(middleware.ValidateJSON())
	{
		domains.GET("/:domain/mapping", domainController.Get)
		domains.PUT("/:domain/mapping", domainController.Put)
		domains.POST("/:domain/mapping/learn", domainController.Learn)
		domains.DELETE("/:domain/mapping", domainController.Delete)
	}

	return router
}

// requestLogger logs one line per request through the structured logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		utils.LogInfo("request", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		})
	}
}
