package http

import (
	"net/http"

	"github.com/gdugdh24/kindred-backend/internal/delivery/http/handler"
	"github.com/gdugdh24/kindred-backend/internal/delivery/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Router struct {
	authHandler         *handler.AuthHandler
	sessionHandler      *handler.SessionHandler
	onboardingHandler   *handler.OnboardingHandler
	exploreHandler      *handler.ExploreHandler
	conversationHandler *handler.ConversationHandler
	authMiddleware      *middleware.AuthMiddleware
	metricsHandler      http.Handler
}

func NewRouter(
	authHandler *handler.AuthHandler,
	sessionHandler *handler.SessionHandler,
	onboardingHandler *handler.OnboardingHandler,
	exploreHandler *handler.ExploreHandler,
	conversationHandler *handler.ConversationHandler,
	authMiddleware *middleware.AuthMiddleware,
	metricsHandler http.Handler,
) *Router {
	return &Router{
		authHandler:         authHandler,
		sessionHandler:      sessionHandler,
		onboardingHandler:   onboardingHandler,
		exploreHandler:      exploreHandler,
		conversationHandler: conversationHandler,
		authMiddleware:      authMiddleware,
		metricsHandler:      metricsHandler,
	}
}

func (r *Router) Setup() *gin.Engine {
	if err := handler.RegisterValidators(); err != nil {
		log.Error().Err(err).Msg("Failed to register request validators")
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	// Health check (supports both GET and HEAD)
	healthHandler := func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)
	if r.metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(r.metricsHandler))
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Auth routes (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/guest", r.authHandler.Guest)
			auth.POST("/external", r.authHandler.External)
			auth.POST("/logout", r.authMiddleware.RequireAuth(), r.authHandler.Logout)
		}

		// Protected routes
		protected := v1.Group("")
		protected.Use(r.authMiddleware.RequireAuth())
		{
			session := protected.Group("/session")
			{
				session.GET("", r.sessionHandler.GetView)
				session.GET("/stream", r.sessionHandler.Stream)
				session.PUT("/page", r.sessionHandler.SetPage)
				session.PUT("/presence", r.sessionHandler.SetPresence)
			}

			profile := protected.Group("/profile")
			{
				profile.PUT("", r.sessionHandler.UpdateProfile)
				profile.POST("/tags", r.sessionHandler.MergeTags)
			}

			onboarding := protected.Group("/onboarding")
			{
				onboarding.POST("/start", r.onboardingHandler.Start)
				onboarding.POST("/goal", r.onboardingHandler.SelectGoal)
				onboarding.POST("/answer", r.onboardingHandler.Answer)
				onboarding.POST("/options", r.onboardingHandler.SelectOption)
				onboarding.POST("/chat", r.onboardingHandler.Chat)
				onboarding.POST("/complete", r.onboardingHandler.Complete)
			}

			explore := protected.Group("/explore")
			{
				explore.GET("", r.exploreHandler.Cards)
				explore.GET("/:user_id/explanation", r.exploreHandler.Explanation)
				explore.POST("/:user_id/dismiss", r.exploreHandler.Dismiss)
			}

			conversations := protected.Group("/conversations")
			{
				conversations.POST("/:participant_id/messages", r.conversationHandler.SendMessage)
				conversations.POST("/:participant_id/view", r.conversationHandler.View)
				conversations.DELETE("/active", r.conversationHandler.ClearActive)
			}
		}
	}

	return router
}
