package http

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditController_GetAuditEvents(t *testing.T) {
	srv := setupTestServer(t)
	srv.login(t, "alice")

	require.Equal(t, http.StatusSeeOther, srv.do(t, http.MethodPost, "/donate", url.Values{"book_title": {"Dune"}}).Code)
	require.Equal(t, http.StatusSeeOther, srv.do(t, http.MethodPost, "/borrow/1", url.Values{}).Code)
	srv.audit.Wait()

	w := srv.do(t, http.MethodGet, "/api/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)

	// register, login, donate, borrow
	assert.EqualValues(t, 4, body["total"])
	assert.EqualValues(t, 25, body["limit"])
	assert.Equal(t, false, body["has_more"])

	w = srv.do(t, http.MethodGet, "/api/audit?limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeJSON(t, w)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, true, body["has_more"])
}

func TestAuditController_GetAuditEvents_OnlyOwnEvents(t *testing.T) {
	srv := setupTestServer(t)
	srv.login(t, "alice")
	require.Equal(t, http.StatusSeeOther, srv.do(t, http.MethodPost, "/donate", url.Values{"book_title": {"Dune"}}).Code)

	srv.do(t, http.MethodPost, "/logout", url.Values{})
	srv.login(t, "bob")
	srv.audit.Wait()

	w := srv.do(t, http.MethodGet, "/api/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	for _, e := range decodeJSON(t, w)["data"].([]any) {
		assert.NotEqual(t, "book_donate", e.(map[string]any)["action"])
	}
}

func TestAuditController_GetBookHistory(t *testing.T) {
	srv := setupTestServer(t)
	srv.login(t, "alice")

	require.Equal(t, http.StatusSeeOther, srv.do(t, http.MethodPost, "/donate", url.Values{"book_title": {"Dune"}}).Code)
	srv.do(t, http.MethodPost, "/borrow/1", url.Values{})
	srv.do(t, http.MethodPost, "/borrow/1", url.Values{})
	srv.do(t, http.MethodPost, "/return/1", url.Values{})
	srv.audit.Wait()

	w := srv.do(t, http.MethodGet, "/api/books/1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.EqualValues(t, 4, body["total"])

	statuses := map[string]int{}
	for _, e := range body["data"].([]any) {
		statuses[e.(map[string]any)["status"].(string)]++
	}
	assert.Equal(t, map[string]int{"success": 3, "failed": 1}, statuses)

	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/api/books/2/history", nil).Code)
}
