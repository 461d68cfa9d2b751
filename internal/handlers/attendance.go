package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"communitylibrary/internal/models"
	"communitylibrary/internal/repositories"
	"communitylibrary/internal/services"
)

const (
	actionCheckIn  = "check-in"
	actionCheckOut = "check-out"
)

type attendanceRequest struct {
	Action   string `json:"action" binding:"required,oneof=check-in check-out"`
	PersonID string `json:"personId" binding:"omitempty,uuid"`
	RecordID string `json:"recordId" binding:"omitempty,uuid"`
}

// listAttendance accepts personId, date (YYYY-MM-DD, UTC) and open=true.
func (h *LibraryHandler) listAttendance(c *gin.Context) {
	personID, ok := queryID(c, "personId")
	if !ok {
		return
	}
	filter := repositories.AttendanceFilter{
		PersonID: personID,
		OpenOnly: c.Query("open") == "true",
	}
	if raw := c.Query("date"); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		next := day.Add(24 * time.Hour)
		filter.From, filter.To = &day, &next
	}

	records, err := h.svc.Attendance.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *LibraryHandler) recordAttendance(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var personID, recordID uuid.UUID
	var err error
	if req.PersonID != "" {
		if personID, err = parseID(req.PersonID, "personId"); err != nil {
			badRequest(c, err)
			return
		}
	}
	if req.RecordID != "" {
		if recordID, err = parseID(req.RecordID, "recordId"); err != nil {
			badRequest(c, err)
			return
		}
	}

	var record *models.Attendance
	status := http.StatusOK
	ctx := c.Request.Context()

	switch {
	case req.Action == actionCheckIn && req.PersonID != "":
		record, err = h.svc.Attendance.CheckIn(ctx, personID)
		status = http.StatusCreated
	case req.Action == actionCheckIn:
		err = &services.ValidationError{Field: "personId", Message: "is required to check in"}
	case req.RecordID != "":
		record, err = h.svc.Attendance.CheckOutRecord(ctx, recordID)
	case req.PersonID != "":
		record, err = h.svc.Attendance.CheckOut(ctx, personID)
	default:
		err = &services.ValidationError{Field: "personId", Message: "or recordId is required to check out"}
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, record)
}
