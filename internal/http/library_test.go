package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookTitles(body map[string]any, key string) []string {
	raw, _ := body[key].([]any)
	titles := make([]string, 0, len(raw))
	for _, b := range raw {
		titles = append(titles, b.(map[string]any)["title"].(string))
	}
	return titles
}

func TestLibrary_DonateBorrowTrackReturn(t *testing.T) {
	srv := setupTestServer(t)
	srv.login(t, "alice")

	// Donate
	w := srv.do(t, http.MethodPost, "/donate", url.Values{"book_title": {"Dune"}})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/books", w.Header().Get("Location"))

	w = srv.do(t, http.MethodGet, "/books", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, []string{"Dune"}, bookTitles(body, "Books"))
	assert.Contains(t, flashMessages(body), `success: Book "Dune" donated successfully!`)

	books, err := srv.books.GetAllBooks()
	require.NoError(t, err)
	require.Len(t, books, 1)
	id := books[0].ID
	assert.False(t, books[0].IsBorrowed)

	// Borrow confirmation page
	w = srv.do(t, http.MethodGet, fmt.Sprintf("/borrow/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	book := decodeJSON(t, w)["Book"].(map[string]any)
	assert.Equal(t, "Dune", book["title"])

	// Borrow
	w = srv.do(t, http.MethodPost, fmt.Sprintf("/borrow/%d", id), url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/books", w.Header().Get("Location"))

	w = srv.do(t, http.MethodGet, "/track", nil)
	body = decodeJSON(t, w)
	assert.Equal(t, []string{"Dune"}, bookTitles(body, "Books"))
	assert.Contains(t, flashMessages(body), `success: You have borrowed "Dune" successfully.`)

	// Return
	w = srv.do(t, http.MethodGet, fmt.Sprintf("/return/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodPost, fmt.Sprintf("/return/%d", id), url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = srv.do(t, http.MethodGet, "/track", nil)
	body = decodeJSON(t, w)
	assert.Empty(t, bookTitles(body, "Books"))
	assert.Contains(t, flashMessages(body), `success: You have returned "Dune" successfully.`)

	got, err := srv.books.GetBookByID(id)
	require.NoError(t, err)
	assert.False(t, got.IsBorrowed)
}

func TestLibrary_SameStateWarns(t *testing.T) {
	srv := setupTestServer(t)
	srv.login(t, "alice")
	book, err := srv.books.CreateBook("Emma")
	require.NoError(t, err)
	path := func(action string) string {
		return fmt.Sprintf("/%s/%d", action, book.ID)
	}

	t.Run("return an available book", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, path("return"), url.Values{})
		require.Equal(t, http.StatusSeeOther, w.Code)

		body := decodeJSON(t, srv.do(t, http.MethodGet, "/books", nil))
		assert.Contains(t, flashMessages(body), `warning: "Emma" is not currently borrowed.`)
	})

	t.Run("borrow a borrowed book", func(t *testing.T) {
		require.Equal(t, http.StatusSeeOther, srv.do(t, http.MethodPost, path("borrow"), url.Values{}).Code)
		srv.do(t, http.MethodGet, "/books", nil) // consume the success flash

		w := srv.do(t, http.MethodPost, path("borrow"), url.Values{})
		require.Equal(t, http.StatusSeeOther, w.Code)

		body := decodeJSON(t, srv.do(t, http.MethodGet, "/books", nil))
		assert.Contains(t, flashMessages(body), `warning: "Emma" is already borrowed.`)

		got, err := srv.books.GetBookByID(book.ID)
		require.NoError(t, err)
		assert.True(t, got.IsBorrowed)
	})
}

func TestLibrary_MissingBook(t *testing.T) {
	srv := setupTestServer(t)
	srv.login(t, "alice")

	for _, path := range []string{"/borrow/999", "/return/999", "/borrow/abc", "/return/-1", "/borrow/0"} {
		t.Run("GET "+path, func(t *testing.T) {
			w := srv.do(t, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
		t.Run("POST "+path, func(t *testing.T) {
			w := srv.do(t, http.MethodPost, path, url.Values{})
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestLibrary_DonateValidation(t *testing.T) {
	srv := setupTestServer(t)
	srv.login(t, "alice")

	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"empty", "", "Book title is required."},
		{"whitespace", "   ", "Book title is required."},
		{"too long", strings.Repeat("x", 101), "Book title must be at most 100 characters."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(t, http.MethodPost, "/donate", url.Values{"book_title": {tt.title}})
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decodeJSON(t, w)["Error"])
		})
	}

	books, err := srv.books.GetAllBooks()
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestLibrary_Home(t *testing.T) {
	srv := setupTestServer(t)
	srv.login(t, "alice")

	for _, title := range []string{"A", "B", "C"} {
		_, err := srv.books.CreateBook(title)
		require.NoError(t, err)
	}
	_, err := srv.books.Borrow(2)
	require.NoError(t, err)

	w := srv.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.EqualValues(t, 3, body["Total"])
	assert.EqualValues(t, 1, body["Borrowed"])
	assert.EqualValues(t, 2, body["Available"])

	authData := body["Auth"].(map[string]any)
	assert.Equal(t, true, authData["logged_in"])
	assert.Equal(t, "alice", authData["username"])
	loginAt, ok := authData["login_at"].(string)
	require.True(t, ok, "login_at missing from auth data")
	parsed, err := time.Parse(time.RFC3339Nano, loginAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), parsed, time.Minute)
}

func TestLibrary_API(t *testing.T) {
	srv := setupTestServer(t)
	srv.login(t, "alice")

	for _, title := range []string{"Dune", "Emma"} {
		_, err := srv.books.CreateBook(title)
		require.NoError(t, err)
	}
	_, err := srv.books.Borrow(1)
	require.NoError(t, err)

	t.Run("all books", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/api/books", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeJSON(t, w)
		assert.Equal(t, []string{"Dune", "Emma"}, bookTitles(body, "books"))
		assert.EqualValues(t, 2, body["total"])
	})

	t.Run("borrowed books", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/api/books/borrowed", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"Dune"}, bookTitles(decodeJSON(t, w), "books"))
	})

	t.Run("one book", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/api/books/2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeJSON(t, w)
		assert.Equal(t, "Emma", body["title"])
		assert.Equal(t, false, body["is_borrowed"])
	})

	t.Run("missing book", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/api/books/99", nil).Code)
		assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/api/books/abc", nil).Code)
	})
}
