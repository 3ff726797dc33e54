package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/entities"
)

// LibraryController serves the catalogue pages: home, list, donate,
// borrow, return and track, plus their JSON counterparts under /api.
type LibraryController struct {
	books    BookStore
	audit    AuditService
	sessions *auth.SessionManager
	pages    *pageRenderer
}

func NewLibraryController(store BookStore, auditService AuditService, sessions *auth.SessionManager, pages *pageRenderer) *LibraryController {
	return &LibraryController{
		books:    store,
		audit:    auditService,
		sessions: sessions,
		pages:    pages,
	}
}

// Home renders the landing page with catalogue counts.
// GET /
func (lc *LibraryController) Home(c *gin.Context) {
	total, borrowed, err := lc.books.GetStats()
	if err != nil {
		lc.pages.internalError(c, err, "home stats")
		return
	}

	lc.pages.render(c, http.StatusOK, "index.html", gin.H{
		"Title":     "Library",
		"Total":     total,
		"Borrowed":  borrowed,
		"Available": total - borrowed,
	})
}

// ListBooks renders every book with its availability.
// GET /books
func (lc *LibraryController) ListBooks(c *gin.Context) {
	all, err := lc.books.GetAllBooks()
	if err != nil {
		lc.pages.internalError(c, err, "list books")
		return
	}

	lc.pages.render(c, http.StatusOK, "books.html", gin.H{
		"Title": "Books",
		"Books": all,
	})
}

// Track renders the books currently on loan.
// GET /track
func (lc *LibraryController) Track(c *gin.Context) {
	borrowed, err := lc.books.GetBorrowedBooks()
	if err != nil {
		lc.pages.internalError(c, err, "track books")
		return
	}

	lc.pages.render(c, http.StatusOK, "track.html", gin.H{
		"Title": "Borrowed books",
		"Books": borrowed,
	})
}

// DonatePage renders the donation form.
// GET /donate
func (lc *LibraryController) DonatePage(c *gin.Context) {
	lc.pages.render(c, http.StatusOK, "donate.html", gin.H{
		"Title": "Donate a book",
	})
}

// Donate adds a book to the catalogue.
// POST /donate
func (lc *LibraryController) Donate(c *gin.Context) {
	title := c.PostForm("book_title")

	book, err := lc.books.CreateBook(title)
	if err != nil {
		var message string
		switch {
		case errors.Is(err, books.ErrTitleRequired):
			message = "Book title is required."
		case errors.Is(err, books.ErrTitleTooLong):
			message = fmt.Sprintf("Book title must be at most %d characters.", books.MaxTitleLength)
		default:
			lc.pages.internalError(c, err, "donate book")
			return
		}

		lc.pages.render(c, http.StatusBadRequest, "donate.html", gin.H{
			"Title":     "Donate a book",
			"BookTitle": title,
			"Error":     message,
		})
		return
	}

	if lc.audit != nil {
		lc.audit.LogDonation(auth.GetUserID(c), book)
	}
	lc.flash(c, auth.FlashSuccess, fmt.Sprintf("Book %q donated successfully!", book.Title))
	c.Redirect(http.StatusSeeOther, "/books")
}

// BorrowPage asks the user to confirm borrowing a book.
// GET /borrow/:id
func (lc *LibraryController) BorrowPage(c *gin.Context) {
	lc.confirmPage(c, "borrow.html", "Borrow a book")
}

// ReturnPage asks the user to confirm returning a book.
// GET /return/:id
func (lc *LibraryController) ReturnPage(c *gin.Context) {
	lc.confirmPage(c, "return.html", "Return a book")
}

// Borrow marks a book as on loan.
// POST /borrow/:id
func (lc *LibraryController) Borrow(c *gin.Context) {
	lc.circulate(c, audit.ActionBorrow)
}

// Return marks a book as available again.
// POST /return/:id
func (lc *LibraryController) Return(c *gin.Context) {
	lc.circulate(c, audit.ActionReturn)
}

func (lc *LibraryController) confirmPage(c *gin.Context, name, title string) {
	book, ok := lc.lookupBook(c)
	if !ok {
		return
	}

	lc.pages.render(c, http.StatusOK, name, gin.H{
		"Title": title,
		"Book":  book,
	})
}

func (lc *LibraryController) circulate(c *gin.Context, action string) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		lc.pages.notFound(c)
		return
	}

	var (
		book      *entities.Book
		err       error
		sameState error
		verb      string
	)
	if action == audit.ActionBorrow {
		book, err = lc.books.Borrow(id)
		sameState, verb = books.ErrAlreadyBorrowed, "borrowed"
	} else {
		book, err = lc.books.Return(id)
		sameState, verb = books.ErrNotBorrowed, "returned"
	}

	switch {
	case errors.Is(err, books.ErrBookNotFound):
		lc.pages.notFound(c)
		return
	case errors.Is(err, sameState):
		lc.logCirculation(c, action, book, false)
		if action == audit.ActionBorrow {
			lc.flash(c, auth.FlashWarning, fmt.Sprintf("%q is already borrowed.", book.Title))
		} else {
			lc.flash(c, auth.FlashWarning, fmt.Sprintf("%q is not currently borrowed.", book.Title))
		}
		c.Redirect(http.StatusSeeOther, "/books")
		return
	case err != nil:
		lc.pages.internalError(c, err, "book "+action)
		return
	}

	lc.logCirculation(c, action, book, true)
	lc.flash(c, auth.FlashSuccess, fmt.Sprintf("You have %s %q successfully.", verb, book.Title))
	c.Redirect(http.StatusSeeOther, "/books")
}

// lookupBook resolves :id, rendering 404 or 500 itself when it fails.
func (lc *LibraryController) lookupBook(c *gin.Context) (*entities.Book, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		lc.pages.notFound(c)
		return nil, false
	}

	book, err := lc.books.GetBookByID(id)
	if err != nil {
		if errors.Is(err, books.ErrBookNotFound) {
			lc.pages.notFound(c)
		} else {
			lc.pages.internalError(c, err, "get book")
		}
		return nil, false
	}
	return book, true
}

func (lc *LibraryController) logCirculation(c *gin.Context, action string, book *entities.Book, success bool) {
	if lc.audit == nil {
		return
	}
	lc.audit.LogCirculation(auth.GetUserID(c), action, book, success)
}

func (lc *LibraryController) flash(c *gin.Context, category, message string) {
	if lc.sessions == nil {
		return
	}
	lc.sessions.AddFlash(c.Request.Context(), category, message)
}

// GetAllBooks returns the catalogue as JSON.
// GET /api/books
func (lc *LibraryController) GetAllBooks(c *gin.Context) {
	all, err := lc.books.GetAllBooks()
	if err != nil {
		respondInternalError(c, err, "api list books")
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": all, "total": len(all)})
}

// GetBorrowedBooks returns the books on loan as JSON.
// GET /api/books/borrowed
func (lc *LibraryController) GetBorrowedBooks(c *gin.Context) {
	borrowed, err := lc.books.GetBorrowedBooks()
	if err != nil {
		respondInternalError(c, err, "api borrowed books")
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": borrowed, "total": len(borrowed)})
}

// GetBook returns one book as JSON.
// GET /api/books/:id
func (lc *LibraryController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondNotFound(c, "book")
		return
	}

	book, err := lc.books.GetBookByID(id)
	if err != nil {
		if errors.Is(err, books.ErrBookNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "api get book")
		return
	}
	c.JSON(http.StatusOK, book)
}
