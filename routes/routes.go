package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/pollhub/polls-server/controllers"
	"github.com/pollhub/polls-server/middleware"
)

func SetupRoutes(r *gin.Engine) {
	r.GET("/health", controllers.HealthCheck)

	// Server-rendered pages
	r.GET("/", middleware.OptionalAuth(), controllers.IndexPage)
	r.GET("/polls/:id", middleware.OptionalAuth(), controllers.PollPage)
	r.GET("/polls/:id/results", middleware.OptionalAuth(), controllers.ResultsPage)
	r.POST("/polls/:id/vote", middleware.AuthJWT(), middleware.RateLimitVote(), controllers.CastVote)
	r.GET("/login", controllers.LoginPage)
	r.POST("/login", middleware.RateLimitAuth(), controllers.LoginSubmit)
	r.GET("/signup", controllers.SignupPage)
	r.POST("/signup", middleware.RateLimitAuth(), controllers.SignupSubmit)
	r.POST("/logout", middleware.OptionalAuth(), controllers.LogoutSubmit)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", middleware.RateLimitAuth(), controllers.Register)
			auth.POST("/login", middleware.RateLimitAuth(), controllers.Login)
			auth.POST("/google", middleware.RateLimitAuth(), controllers.GoogleLogin)
			auth.POST("/logout", middleware.OptionalAuth(), controllers.Logout)
		}

		api.GET("/me", middleware.AuthJWT(), controllers.Me)

		polls := api.Group("/polls")
		{
			polls.GET("", controllers.ListPolls)
			polls.GET("/:id", middleware.OptionalAuth(), controllers.GetPoll)
			polls.GET("/:id/results", middleware.OptionalAuth(), controllers.GetResults)
			polls.POST("/:id/vote", middleware.AuthJWT(), middleware.RateLimitVote(), controllers.CastVote)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.AuthJWT(), middleware.RequireAdmin())
		{
			admin.POST("/questions", controllers.CreateQuestion)
			admin.GET("/questions", controllers.ListAllQuestions)
			admin.PUT("/questions/:id", controllers.UpdateQuestion)
			admin.DELETE("/questions/:id", controllers.DeleteQuestion)
			admin.POST("/questions/:id/choices", controllers.AddChoice)
			admin.PUT("/choices/:id", controllers.UpdateChoice)
			admin.DELETE("/choices/:id", controllers.DeleteChoice)
			admin.POST("/questions/:id/export", controllers.CreateExport)
		}

		api.GET("/exports/:job_id", middleware.AuthJWT(), middleware.RequireAdmin(), controllers.GetExport)
	}
}
