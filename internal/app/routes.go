package app

import (
	"github.com/gin-gonic/gin"
	"github.com/notedeck/core/internal/middleware"
	"github.com/notedeck/core/internal/modules/auth"
	"github.com/notedeck/core/internal/modules/category"
	"github.com/notedeck/core/internal/modules/file"
	"github.com/notedeck/core/internal/modules/note"
	"github.com/notedeck/core/internal/pkg/response"
)

func (a *App) registerRoutes() {
	a.router.NoRoute(func(c *gin.Context) { response.NotFound(c) })
	a.router.NoMethod(func(c *gin.Context) { response.MethodNotAllowed(c) })

	// OptionalAuth runs before the rate limiter so authenticated traffic is
	// identified and exempted.
	api := a.router.Group("/api/v1",
		middleware.OptionalAuth(),
		middleware.RateLimit(a.redis.Raw()),
	)
	api.GET("/ping", func(c *gin.Context) {
		response.OK(c, gin.H{"pong": true})
	})

	authMW := middleware.Auth()

	authSvc := auth.NewService(a.db)
	auth.NewHandler(authSvc, a.cfg).RegisterRoutes(api, authMW)

	noteSvc := note.NewService(a.db, a.store, a.redis)
	note.NewHandler(noteSvc).RegisterRoutes(api, authMW)

	fileSvc := file.NewService(a.db, a.store)
	file.NewHandler(fileSvc).RegisterRoutes(api, authMW)

	categorySvc := category.NewService(a.db)
	category.NewHandler(categorySvc).RegisterRoutes(api, authMW)
}
