package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mx-space/identity/internal/config"
	"github.com/mx-space/identity/internal/database"
	"github.com/mx-space/identity/internal/middleware"
	"github.com/mx-space/identity/internal/modules/auth/auth"
	"github.com/mx-space/identity/internal/modules/auth/lockout"
	"github.com/mx-space/identity/internal/modules/auth/recovery"
	"github.com/mx-space/identity/internal/modules/auth/session"
	"github.com/mx-space/identity/internal/modules/auth/user"
	"github.com/mx-space/identity/internal/pkg/audit"
	pkgcron "github.com/mx-space/identity/internal/pkg/cron"
	"github.com/mx-space/identity/internal/pkg/hasher"
	jwtpkg "github.com/mx-space/identity/internal/pkg/jwt"
	"github.com/mx-space/identity/internal/pkg/mail"
	pkgredis "github.com/mx-space/identity/internal/pkg/redis"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler
}

// New initializes the application: config → DB → Redis → services → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURLValue())
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(corsMiddleware(cfg))
	router.Use(middleware.RateLimit(rc.Raw()))

	issuer, err := jwtpkg.NewIssuer(jwtpkg.Config{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL.Std(),
		RefreshTTL:    cfg.Auth.RefreshTTL.Std(),
		Issuer:        cfg.Auth.Issuer,
		Audience:      cfg.Auth.Audience,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	policy := hasher.DefaultPolicy
	if cfg.Auth.PasswordMinLength > 0 {
		policy.MinLength = cfg.Auth.PasswordMinLength
	}
	pwHasher := hasher.New(cfg.Auth.BcryptCost, policy)

	dir := user.NewService(db)
	sessions := session.NewManager(session.NewGormStore(db), rc, issuer.RefreshTTL(), logger)
	guard := lockout.NewGuard(dir, cfg.Auth.LockoutThreshold,
		time.Duration(cfg.Auth.LockoutMinutes)*time.Minute)
	rec := recovery.NewService(recovery.NewGormStore(db),
		cfg.Auth.VerifyTokenTTL.Std(), cfg.Auth.ResetTokenTTL.Std(), logger)
	notifier := mail.NewNotifier(mail.New(cfg.Mail), cfg.PublicBaseURL)
	sink := audit.New(logger)

	authSvc := auth.NewService(dir, pwHasher, issuer, sessions, guard, rec, notifier, sink, logger)

	ctx, cancel := context.WithCancel(context.Background())
	sched := pkgcron.New()
	registerCronJobs(sched, sessions, rec, logger)
	go sched.Start(ctx)

	a := &App{cfg: cfg, router: router, db: db, logger: logger, cancel: cancel, sched: sched}
	a.registerRoutes(authSvc, issuer)
	return a, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background goroutines.
func (a *App) Shutdown() { a.cancel() }
