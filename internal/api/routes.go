package api

import (
	"alcyxob/climb-sim/internal/domain" // Needed for RoleMiddleware
	"alcyxob/climb-sim/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	authService service.AuthService,
	episodeService service.EpisodeService,
	exportService service.ExportService, // nil disables /export
) {
	authHandler := NewAuthHandler(authService)
	episodeHandler := NewEpisodeHandler(episodeService, exportService)

	authMiddleware := AuthMiddleware(authService)
	coachOnly := RoleMiddleware(domain.RoleCoach)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// --- Episode Routes ---
		// Reads are open to coaches (own episodes) and reviewers; driving an episode is coach-only.
		episodeGroup := protected.Group("/episodes")
		{
			episodeGroup.POST("", coachOnly, episodeHandler.StartEpisode)
			episodeGroup.GET("/:id", episodeHandler.GetEpisode)
			episodeGroup.GET("/:id/states", episodeHandler.ListStates)
			episodeGroup.GET("/:id/states/:step", episodeHandler.GetState)
			episodeGroup.GET("/:id/steps/:step/plan", episodeHandler.GetPlannedWorkout)
			episodeGroup.POST("/:id/steps/:step/plan", coachOnly, episodeHandler.RecordPlannedWorkout)
			episodeGroup.POST("/:id/advance", coachOnly, episodeHandler.AdvanceEpisode)
			episodeGroup.POST("/:id/export", episodeHandler.ExportEpisode)
		}
	}
}
