package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"communitylibrary/internal/models"
	"communitylibrary/internal/repositories"
	"communitylibrary/internal/services"
)

type createBookRequest struct {
	Title         string `json:"title" binding:"required"`
	Author        string `json:"author" binding:"required"`
	ISBN          string `json:"isbn" binding:"required"`
	Category      string `json:"category"`
	PublishedYear int    `json:"publishedYear" binding:"min=0"`
}

// updateBookRequest patches metadata. A status field in the body is ignored.
type updateBookRequest struct {
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	ISBN          *string `json:"isbn"`
	Category      *string `json:"category"`
	PublishedYear *int    `json:"publishedYear"`
}

func (h *LibraryHandler) listBooks(c *gin.Context) {
	books, err := h.svc.Library.ListBooks(c.Request.Context(), repositories.BookFilter{
		Status:   models.BookStatus(c.Query("status")),
		Category: c.Query("category"),
		Search:   c.Query("search"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *LibraryHandler) createBook(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	book, err := h.svc.Library.CreateBook(c.Request.Context(), services.BookInput{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Category:      req.Category,
		PublishedYear: req.PublishedYear,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (h *LibraryHandler) getBook(c *gin.Context) {
	id, ok := pathID(c, "book")
	if !ok {
		return
	}
	book, err := h.svc.Library.GetBook(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *LibraryHandler) updateBook(c *gin.Context) {
	id, ok := pathID(c, "book")
	if !ok {
		return
	}
	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	book, err := h.svc.Library.UpdateBook(c.Request.Context(), id, services.BookPatch{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Category:      req.Category,
		PublishedYear: req.PublishedYear,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *LibraryHandler) deleteBook(c *gin.Context) {
	id, ok := pathID(c, "book")
	if !ok {
		return
	}
	if err := h.svc.Library.DeleteBook(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
