package router

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/coralcommerce/dispatcher/app"
	"github.com/coralcommerce/dispatcher/config"
	"github.com/coralcommerce/dispatcher/controllers"
	dbpkg "github.com/coralcommerce/dispatcher/db"
	"github.com/coralcommerce/dispatcher/middleware"
)

// Initialize wires all routes and middlewares: public webhook/auth
// surface, then an admin group gated by
// AuthRequired+Authorizer+Adminizer.
func Initialize(r *gin.Engine, cfg config.Configuration, a *app.App) {
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())
	r.Use(dbpkg.SetDBtoContext(a.DB))
	r.Use(app.Middleware(a))

	api := r.Group("/api")

	// Transport webhooks - no auth; the adapters only decode the payload
	// and do not verify any signature or token
	api.POST("/webhook/whatsapp", Logger(), controllers.WebhookWhatsApp)
	api.POST("/webhook/chatwoot", Logger(), controllers.WebhookChatwoot)

	// Synchronous smoke-test path
	api.POST("/test/message", Logger(), controllers.TestMessage)

	// Operational surface - no auth, meant for an internal LB/scraper
	api.GET("/health", controllers.Health)
	api.GET("/metrics", controllers.Metrics)

	// Public (no auth)
	api.POST("/users", Logger(), controllers.CreateUser)
	api.POST("/login", Logger(), controllers.Login)
	api.POST("/refresh", Logger(), controllers.Refresh)

	// Authenticated routes (token required)
	auth := api.Group("")
	auth.Use(controllers.AuthRequired())
	auth.GET("/me", Logger(), controllers.Me)

	// Validated routes (token + active user)
	validated := auth.Group("")
	validated.Use(Authorizer())

	// Admin routes: bot pause/resume and follow-up control
	admin := validated.Group("")
	admin.Use(Adminizer())

	admin.GET("/bot/status/:userId", Logger(), controllers.BotStatus)
	admin.POST("/bot/pause/:userId", Logger(), controllers.BotPause)
	admin.POST("/bot/resume/:userId", Logger(), controllers.BotResume)
	admin.POST("/bot/resume-all", Logger(), controllers.BotResumeAll)

	admin.GET("/followup/status/:userId", Logger(), controllers.FollowUpStatus)
	admin.POST("/followup/activate/:userId", Logger(), controllers.FollowUpActivate)
	admin.POST("/followup/deactivate/:userId", Logger(), controllers.FollowUpDeactivate)

	log.Printf("Routes initialized")
}
