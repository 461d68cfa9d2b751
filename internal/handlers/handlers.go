package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"communitylibrary/internal/services"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Library       services.LibraryService
	Persons       services.PersonService
	Attendance    services.AttendanceService
	Settings      services.SettingsService
	Dashboard     services.DashboardService
	Auth          services.AuthService
	Notifications services.NotificationService

	// Ping reports database health for /healthz.
	Ping func(ctx context.Context) error
}

type LibraryHandler struct {
	svc    Services
	logger *zap.Logger
}

func RegisterRoutes(r *gin.Engine, svc Services, logger *zap.Logger) {
	h := &LibraryHandler{svc: svc, logger: logger}

	r.GET("/healthz", h.healthz)

	api := r.Group("/api")
	api.POST("/auth/login", h.login)

	authed := api.Group("", authenticate(svc.Auth))
	authed.POST("/auth/logout", h.logout)
	authed.GET("/auth/me", h.me)

	// Catalog
	authed.GET("/books", allow(services.PermissionBooksRead), h.listBooks)
	authed.POST("/books", allow(services.PermissionBooksWrite), h.createBook)
	authed.GET("/books/:id", allow(services.PermissionBooksRead), h.getBook)
	authed.PUT("/books/:id", allow(services.PermissionBooksWrite), h.updateBook)
	authed.DELETE("/books/:id", allow(services.PermissionBooksWrite), h.deleteBook)

	// Registry
	authed.GET("/persons", allow(services.PermissionPersonsRead), h.listPersons)
	authed.POST("/persons", allow(services.PermissionPersonsWrite), h.createPerson)
	authed.GET("/persons/:id", allow(services.PermissionPersonsRead), h.getPerson)
	authed.PUT("/persons/:id", allow(services.PermissionPersonsWrite), h.updatePerson)
	authed.DELETE("/persons/:id", allow(services.PermissionPersonsWrite), h.deletePerson)
	authed.GET("/members", allow(services.PermissionPersonsRead), h.listMembers)
	authed.POST("/members", allow(services.PermissionPersonsWrite), h.createMember)

	// Circulation
	authed.GET("/borrowings", allow(services.PermissionBorrowingsRead), h.listBorrowings)
	authed.POST("/borrowings", allow(services.PermissionBorrowingsWrite), h.borrow)
	authed.GET("/borrowings/:id", allow(services.PermissionBorrowingsRead), h.getBorrowing)
	authed.PUT("/borrowings/:id", allow(services.PermissionBorrowingsWrite), h.updateBorrowing)

	authed.GET("/reservations", allow(services.PermissionReservationsRead), h.listReservations)
	authed.POST("/reservations", allow(services.PermissionReservationsWrite), h.reserve)
	authed.GET("/reservations/:id", allow(services.PermissionReservationsRead), h.getReservation)
	authed.PUT("/reservations/:id", allow(services.PermissionReservationsWrite), h.updateReservation)
	authed.DELETE("/reservations/:id", allow(services.PermissionReservationsWrite), h.deleteReservation)

	// Front desk
	authed.GET("/attendance", allow(services.PermissionAttendanceRead), h.listAttendance)
	authed.POST("/attendance", allow(services.PermissionAttendanceWrite), h.recordAttendance)

	// Administration
	authed.GET("/settings", allow(services.PermissionSettingsRead), h.getSettings)
	authed.PUT("/settings", allow(services.PermissionSettingsWrite), h.updateSettings)
	authed.GET("/dashboard/stats", allow(services.PermissionDashboardRead), h.dashboardStats)

	authed.POST("/notifications/email", allow(services.PermissionNotificationsSend), h.sendEmail)
	authed.POST("/notifications/sms", allow(services.PermissionNotificationsSend), h.sendSMS)
}

func (h *LibraryHandler) healthz(c *gin.Context) {
	if h.svc.Ping != nil {
		if err := h.svc.Ping(c.Request.Context()); err != nil {
			h.logger.Error("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// writeError maps the service error taxonomy onto HTTP status codes.
// Unexpected errors are logged and hidden from the caller.
func (h *LibraryHandler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrInvalidState):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// pathID parses the :id parameter, answering 400 itself on failure.
func pathID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what + " id"})
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional uuid query parameter.
func queryID(c *gin.Context, key string) (*uuid.UUID, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return nil, false
	}
	return &id, true
}

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &services.ValidationError{Field: what, Message: "is not a valid id"}
	}
	return id, nil
}
