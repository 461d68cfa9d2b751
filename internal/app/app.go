// Package app assembles repositories, services, the notification dispatcher
// and the HTTP router over an open database.
package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"communitylibrary/internal/config"
	"communitylibrary/internal/database"
	"communitylibrary/internal/handlers"
	"communitylibrary/internal/logging"
	"communitylibrary/internal/notifications"
	"communitylibrary/internal/repositories"
	"communitylibrary/internal/services"
)

type App struct {
	Router     *gin.Engine
	Services   handlers.Services
	Repos      *repositories.Registry
	Dispatcher *notifications.Dispatcher
}

// New wires the application. extra options are applied to every service after
// the defaults, so tests can swap the clock.
func New(db *database.Database, cfg *config.Config, logger *zap.Logger, extra ...services.Option) *App {
	repos := repositories.NewRegistry(db.Gorm)

	email := notifications.NewEmailSender(logger.Named("email"))
	sms := notifications.NewSMSSender(logger.Named("sms"))
	dispatcher := notifications.NewDispatcher(logger.Named("dispatcher"), cfg.NotifyWorkers, cfg.NotifyQueue,
		map[notifications.Channel]notifications.Sender{
			notifications.ChannelEmail: email,
			notifications.ChannelSMS:   sms,
		})

	opts := append([]services.Option{
		services.WithLogger(logger),
		services.WithNotifier(dispatcher),
	}, extra...)

	svc := handlers.Services{
		Library:       services.NewLibraryService(db.Gorm, repos, opts...),
		Persons:       services.NewPersonService(db.Gorm, repos, opts...),
		Attendance:    services.NewAttendanceService(db.Gorm, repos, opts...),
		Settings:      services.NewSettingsService(db.Gorm, repos.Settings, opts...),
		Dashboard:     services.NewDashboardService(repos, opts...),
		Auth:          services.NewAuthService(db.Gorm, repos, cfg.AuthTokenTTL, opts...),
		Notifications: services.NewNotificationService(email, sms, opts...),
		Ping:          db.Ping,
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logging.GinMiddleware(logger))
	handlers.RegisterRoutes(router, svc, logger)

	return &App{Router: router, Services: svc, Repos: repos, Dispatcher: dispatcher}
}

// Shutdown drains queued notifications, waiting at most timeout.
func (a *App) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.Dispatcher.Shutdown(ctx)
}
