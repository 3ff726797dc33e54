package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/database/books"
)

type AuditController struct {
	auditService AuditService
	books        BookStore
}

func NewAuditController(auditService AuditService, store BookStore) *AuditController {
	return &AuditController{
		auditService: auditService,
		books:        store,
	}
}

// GetAuditEvents returns the current user's audit events, newest first.
// GET /api/audit?limit=&offset=
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	userID := auth.GetUserID(c)
	limit, offset := parsePagination(c)

	events, total, err := ac.auditService.GetEvents(userID, limit, offset)
	if err != nil {
		respondInternalError(c, err, "get audit events")
		return
	}

	c.JSON(http.StatusOK, paginated(events, total, limit, offset))
}

// GetBookHistory returns the circulation history of one book across all users.
// GET /api/books/:id/history?limit=&offset=
func (ac *AuditController) GetBookHistory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondNotFound(c, "book")
		return
	}
	if _, err := ac.books.GetBookByID(id); err != nil {
		if errors.Is(err, books.ErrBookNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}

	limit, offset := parsePagination(c)
	events, total, err := ac.auditService.GetBookHistory(id, limit, offset)
	if err != nil {
		respondInternalError(c, err, "get book history")
		return
	}

	c.JSON(http.StatusOK, paginated(events, total, limit, offset))
}
