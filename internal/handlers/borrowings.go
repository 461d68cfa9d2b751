package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"communitylibrary/internal/models"
	"communitylibrary/internal/repositories"
)

type borrowRequest struct {
	BookID   string `json:"bookId" binding:"required,uuid"`
	PersonID string `json:"personId" binding:"required,uuid"`
}

type updateBorrowingRequest struct {
	Action string `json:"action" binding:"required,oneof=return"`
}

func (h *LibraryHandler) listBorrowings(c *gin.Context) {
	bookID, ok := queryID(c, "bookId")
	if !ok {
		return
	}
	personID, ok := queryID(c, "personId")
	if !ok {
		return
	}

	borrowings, err := h.svc.Library.ListBorrowings(c.Request.Context(), repositories.BorrowingFilter{
		BookID:   bookID,
		PersonID: personID,
		Status:   models.BorrowingStatus(c.Query("status")),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, borrowings)
}

func (h *LibraryHandler) borrow(c *gin.Context) {
	var req borrowRequest
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

	borrowing, err := h.svc.Library.Borrow(c.Request.Context(), bookID, personID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, borrowing)
}

func (h *LibraryHandler) getBorrowing(c *gin.Context) {
	id, ok := pathID(c, "borrowing")
	if !ok {
		return
	}
	borrowing, err := h.svc.Library.GetBorrowing(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, borrowing)
}

// updateBorrowing handles {action:"return"}.
func (h *LibraryHandler) updateBorrowing(c *gin.Context) {
	id, ok := pathID(c, "borrowing")
	if !ok {
		return
	}
	var req updateBorrowingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	borrowing, err := h.svc.Library.Return(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, borrowing)
}
