package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"communitylibrary/internal/services"
)

type updateSettingsRequest struct {
	LibraryName       *string                    `json:"libraryName"`
	MaxBorrowDays     *int                       `json:"maxBorrowDays"`
	MaxBooksPerMember *int                       `json:"maxBooksPerMember"`
	OverdueFinePerDay *decimal.Decimal           `json:"overdueFinePerDay"`
	Notifications     *notificationSettingsPatch `json:"notifications"`
	Theme             *string                    `json:"theme"`
	Language          *string                    `json:"language"`
}

type notificationSettingsPatch struct {
	EmailEnabled    *bool `json:"emailEnabled"`
	SMSEnabled      *bool `json:"smsEnabled"`
	DueReminderDays *int  `json:"dueReminderDays"`
	OverdueAlerts   *bool `json:"overdueAlerts"`
}

func (h *LibraryHandler) getSettings(c *gin.Context) {
	settings, err := h.svc.Settings.Get(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *LibraryHandler) updateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	patch := services.SettingsPatch{
		LibraryName:       req.LibraryName,
		MaxBorrowDays:     req.MaxBorrowDays,
		MaxBooksPerMember: req.MaxBooksPerMember,
		OverdueFinePerDay: req.OverdueFinePerDay,
		Theme:             req.Theme,
		Language:          req.Language,
	}
	if n := req.Notifications; n != nil {
		patch.Notifications = &services.NotificationsPatch{
			EmailEnabled:    n.EmailEnabled,
			SMSEnabled:      n.SMSEnabled,
			DueReminderDays: n.DueReminderDays,
			OverdueAlerts:   n.OverdueAlerts,
		}
	}

	settings, err := h.svc.Settings.Update(c.Request.Context(), patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
