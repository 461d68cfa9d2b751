package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"communitylibrary/internal/models"
	"communitylibrary/internal/repositories"
	"communitylibrary/internal/services"
)

type createPersonRequest struct {
	Name       string              `json:"name" binding:"required"`
	Email      string              `json:"email" binding:"required,email"`
	Phone      string              `json:"phone"`
	Address    string              `json:"address"`
	PersonType models.PersonType   `json:"personType"`
	Status     models.PersonStatus `json:"status"`
	LibraryID  string              `json:"libraryId"`
}

type updatePersonRequest struct {
	Name       *string              `json:"name"`
	Email      *string              `json:"email" binding:"omitempty,email"`
	Phone      *string              `json:"phone"`
	Address    *string              `json:"address"`
	PersonType *models.PersonType   `json:"personType"`
	Status     *models.PersonStatus `json:"status"`
	LibraryID  *string              `json:"libraryId"`
}

func (h *LibraryHandler) listPersons(c *gin.Context) {
	h.listPersonsOfType(c, models.PersonType(c.Query("type")))
}

// listMembers serves the legacy /members listing, which only ever held members.
func (h *LibraryHandler) listMembers(c *gin.Context) {
	h.listPersonsOfType(c, models.PersonTypeMember)
}

func (h *LibraryHandler) listPersonsOfType(c *gin.Context, personType models.PersonType) {
	persons, err := h.svc.Persons.List(c.Request.Context(), repositories.PersonFilter{
		Type:   personType,
		Status: models.PersonStatus(c.Query("status")),
		Search: c.Query("search"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, persons)
}

func (h *LibraryHandler) createPerson(c *gin.Context) {
	h.createPersonOfType(c, "")
}

func (h *LibraryHandler) createMember(c *gin.Context) {
	h.createPersonOfType(c, models.PersonTypeMember)
}

// createPersonOfType creates a person; a non-empty forced type overrides the body.
func (h *LibraryHandler) createPersonOfType(c *gin.Context, forced models.PersonType) {
	var req createPersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if forced != "" {
		req.PersonType = forced
	}

	person, err := h.svc.Persons.Create(c.Request.Context(), services.PersonInput{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		PersonType: req.PersonType,
		Status:     req.Status,
		LibraryID:  req.LibraryID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, person)
}

func (h *LibraryHandler) getPerson(c *gin.Context) {
	id, ok := pathID(c, "person")
	if !ok {
		return
	}
	person, err := h.svc.Persons.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, person)
}

func (h *LibraryHandler) updatePerson(c *gin.Context) {
	id, ok := pathID(c, "person")
	if !ok {
		return
	}
	var req updatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	person, err := h.svc.Persons.Update(c.Request.Context(), id, services.PersonPatch{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		PersonType: req.PersonType,
		Status:     req.Status,
		LibraryID:  req.LibraryID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, person)
}

func (h *LibraryHandler) deletePerson(c *gin.Context) {
	id, ok := pathID(c, "person")
	if !ok {
		return
	}
	if err := h.svc.Persons.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
