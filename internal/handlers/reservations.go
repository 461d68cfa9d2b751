package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"communitylibrary/internal/models"
	"communitylibrary/internal/repositories"
)

const (
	actionCancel = "cancel"
	actionReady  = "ready"
)

type reserveRequest struct {
	BookID   string `json:"bookId" binding:"required,uuid"`
	PersonID string `json:"personId" binding:"required,uuid"`
}

type updateReservationRequest struct {
	Action string `json:"action" binding:"required,oneof=cancel ready"`
}

func (h *LibraryHandler) listReservations(c *gin.Context) {
	bookID, ok := queryID(c, "bookId")
	if !ok {
		return
	}
	personID, ok := queryID(c, "personId")
	if !ok {
		return
	}

	reservations, err := h.svc.Library.ListReservations(c.Request.Context(), repositories.ReservationFilter{
		BookID:   bookID,
		PersonID: personID,
		Status:   models.ReservationStatus(c.Query("status")),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservations)
}

func (h *LibraryHandler) reserve(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	bookID, err := parseID(req.BookID, "bookId")
	if err != nil {
		badRequest(c, err)
		return
	}
	personID, err := parseID(req.PersonID, "personId")
	if err != nil {
		badRequest(c, err)
		return
	}

	reservation, err := h.svc.Library.Reserve(c.Request.Context(), bookID, personID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reservation)
}

func (h *LibraryHandler) getReservation(c *gin.Context) {
	id, ok := pathID(c, "reservation")
	if !ok {
		return
	}
	reservation, err := h.svc.Library.GetReservation(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// updateReservation handles {action:"cancel"} and {action:"ready"}.
func (h *LibraryHandler) updateReservation(c *gin.Context) {
	id, ok := pathID(c, "reservation")
	if !ok {
		return
	}
	var req updateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var (
		reservation *models.Reservation
		err         error
	)
	switch req.Action {
	case actionCancel:
		reservation, err = h.svc.Library.CancelReservation(c.Request.Context(), id)
	case actionReady:
		reservation, err = h.svc.Library.MarkReservationReady(c.Request.Context(), id)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

func (h *LibraryHandler) deleteReservation(c *gin.Context) {
	id, ok := pathID(c, "reservation")
	if !ok {
		return
	}
	if err := h.svc.Library.DeleteReservation(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
