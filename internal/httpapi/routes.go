package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/veilhq/veil/internal/config"
	"github.com/veilhq/veil/internal/integrity"
	"github.com/veilhq/veil/internal/ws"
)

// SetupRoutes configures all application routes and middleware.
func SetupRoutes(router *gin.Engine, env *Env, cfg *config.Config, verifier *integrity.Verifier, nonces *integrity.NonceStore) {

	// --- Middleware ---

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOrigin},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Admin-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Old submission limiters are swept out periodically.
	go func() {
		for {
			time.Sleep(10 * time.Minute)
			env.Limiter.Sweep()
		}
	}()

	// --- API Routes ---

	api := router.Group("/api")
	api.Use(RawBodyMiddleware())

	public := api.Group("", SignatureMiddleware(verifier))
	{
		public.POST("/confess", env.ConfessPublic)
		public.POST("/interaction", env.InteractionPublic)
		public.POST("/events", env.EventsPublic)
		public.POST("/emoji_suggest", env.EmojiSuggest)
		public.POST("/revive", env.RevivePublic)
	}

	// The _work twins take the real actions; they only accept requests
	// this process forwarded to itself.
	work := api.Group("", NonceMiddleware(nonces), SignatureMiddleware(verifier))
	{
		work.POST("/confess_work", env.ConfessWork)
		work.POST("/interaction_work", env.InteractionWork)
		work.POST("/events_work", env.EventsWork)
		work.POST("/revive_work", env.ReviveWork)
	}

	api.POST("/admin/revive", AdminAuthMiddleware(cfg.AdminToken), env.AdminRevive)

	// --- WebSocket Route ---

	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(env.Hub, c.Writer, c.Request)
	})

	router.GET("/healthz", env.Healthz)
}
