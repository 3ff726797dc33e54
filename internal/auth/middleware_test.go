package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupMiddlewareRouter(t *testing.T) *gin.Engine {
	t.Helper()

	svc := setupTestService(t)
	sm := setupSessionManager(t)
	middleware := NewMiddleware(svc, sm)

	router := gin.New()
	router.Use(sm.SessionLoadSave())
	router.Use(middleware.Handler())
	return router
}

func TestMiddleware_PublicPaths(t *testing.T) {
	publicPaths := []string{
		"/health",
		"/ping",
		"/login",
		"/register",
		"/static/style.css",
		"/favicon.ico",
	}

	for _, path := range publicPaths {
		t.Run(path, func(t *testing.T) {
			router := setupMiddlewareRouter(t)
			router.GET(path, func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, path, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Errorf("Expected status 200 for public path %s, got %d", path, rr.Code)
			}
		})
	}
}

func TestMiddleware_ProtectedPath_RedirectsToLogin(t *testing.T) {
	tests := []struct {
		path     string
		location string
	}{
		{"/books", "/login?next=%2Fbooks"},
		{"/borrow/3", "/login?next=%2Fborrow%2F3"},
		{"/track?x=1", "/login?next=%2Ftrack%3Fx%3D1"},
		{"/", "/login"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			router := setupMiddlewareRouter(t)
			router.GET("/*any", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusFound {
				t.Errorf("Expected redirect (302), got %d", rr.Code)
			}
			if location := rr.Header().Get("Location"); location != tt.location {
				t.Errorf("Expected redirect to %s, got %s", tt.location, location)
			}
		})
	}
}

func TestMiddleware_APIRequests_Return401(t *testing.T) {
	router := setupMiddlewareRouter(t)
	router.GET("/api/books", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/books", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for API path, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/books", nil)
	req.Header.Set("Accept", "application/json")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for JSON client, got %d", rr.Code)
	}
}

func TestMiddleware_StaleSessionIsLoggedOut(t *testing.T) {
	svc := setupTestService(t)
	sm := setupSessionManager(t)

	router := gin.New()
	router.Use(sm.SessionLoadSave())
	router.Use(NewMiddleware(svc, sm).Handler())
	router.POST("/login", func(c *gin.Context) {
		// User 999 was never registered.
		sm.Put(c.Request.Context(), SessionKeyUserID, 999)
		c.Status(http.StatusOK)
	})
	router.GET("/books", func(c *gin.Context) { c.Status(http.StatusOK) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))
	cookie := sessionCookie(t, rr)
	if cookie == nil {
		t.Fatal("expected a session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusFound {
		t.Errorf("Expected redirect for unknown session user, got %d", rr.Code)
	}
}

func TestGetUserID_NotSet(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if id := GetUserID(c); id != 0 {
		t.Errorf("GetUserID() = %d, want 0", id)
	}
	if IsAuthenticated(c) {
		t.Error("IsAuthenticated() = true without a user")
	}
	if name := c.GetString(ContextKeyUsername); name != "" {
		t.Errorf("username = %q, want empty", name)
	}
}

func TestLoginURL(t *testing.T) {
	if got := LoginURL(""); got != "/login" {
		t.Errorf("LoginURL(\"\") = %s", got)
	}
	if got := LoginURL("/donate"); got != "/login?next=%2Fdonate" {
		t.Errorf("LoginURL(/donate) = %s", got)
	}
	if got := LoginURL("/logout"); got != "/login" {
		t.Errorf("LoginURL(/logout) = %s", got)
	}
}
