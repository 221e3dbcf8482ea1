package app

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mx-space/identity/internal/middleware"
	"github.com/mx-space/identity/internal/modules/auth/auth"
	jwtpkg "github.com/mx-space/identity/internal/pkg/jwt"
	"github.com/mx-space/identity/internal/pkg/response"
)

var processStart = time.Now()

func (a *App) registerRoutes(authSvc *auth.Service, issuer *jwtpkg.Issuer) {
	r := a.router
	authMW := middleware.Auth(issuer)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	r.GET("/", func(c *gin.Context) {
		response.OK(c, gin.H{
			"name": "mx-identity",
			"env":  a.cfg.Env,
		})
	})
	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := a.db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			response.InternalError(c, err)
			return
		}
		response.OK(c, gin.H{
			"status": "ok",
			"uptime": time.Since(processStart).Round(time.Second).String(),
		})
	})

	root := r.Group("")
	auth.NewHandler(authSvc).RegisterRoutes(root, authMW)

	// Cron introspection for operators.
	root.GET("/cron", authMW, func(c *gin.Context) {
		response.OK(c, a.sched.List())
	})
}
