package auth

import (
	"errors"
	"html/template"
	"math"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/logger"
)

// Audit actions recorded by the controller.
const (
	ActionLogin            = "login"
	ActionLoginFailed      = "login_failed"
	ActionLoginRateLimited = "login_rate_limited"
	ActionLogout           = "logout"
	ActionRegister         = "register"
)

// User-facing messages.
const (
	MsgLoginSuccess   = "Login successful!"
	MsgLoginFailed    = "Login failed. Check your username and/or password."
	MsgRateLimited    = "Too many login attempts. Please try again later."
	MsgRegistered     = "Account created successfully! Please log in."
	MsgUsernameTaken  = "Username already taken."
	MsgLoggedOut      = "You have been logged out."
	MsgSessionFailure = "Failed to create session. Please try again."
)

// AuditLogger receives authentication events. *audit.Service satisfies it.
type AuditLogger interface {
	LogAuth(userID uint, action string, ipAddr, userAgent string, success bool)
}

// isLocalPath validates that a redirect path is local to prevent open redirect attacks.
func isLocalPath(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}
	// Protocol-relative URLs (//evil.com) and backslash tricks
	if strings.HasPrefix(path, "//") || strings.Contains(path, "\\") {
		return false
	}
	// Browsers drop tab, CR and LF, so "/\t/evil.com" becomes "//evil.com".
	for i := 0; i < len(path); i++ {
		if path[i] < 0x20 || path[i] == 0x7f {
			return false
		}
	}
	u, err := url.Parse(path)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return false
	}
	return !strings.Contains(path, "://")
}

// sanitizeRedirectPath returns a safe redirect path, defaulting to "/" if
// invalid. Logging in must never land on /logout.
func sanitizeRedirectPath(path string) string {
	if !isLocalPath(path) || isLogoutPath(path) {
		return "/"
	}
	return path
}

func isLogoutPath(path string) bool {
	u, err := url.Parse(path)
	return err == nil && strings.TrimSuffix(u.Path, "/") == "/logout"
}

// AuthController handles the login, registration and logout pages.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	templates      *template.Template
	rateLimiter    *RateLimiter
	audit          AuditLogger
}

// NewAuthController creates a new authentication controller. Templates are
// loaded from <templatesPath>/auth; without them every page renders as JSON.
func NewAuthController(service *Service, sessionManager *SessionManager, templatesPath string, cfg config.Auth, audit AuditLogger) *AuthController {
	tmpl, err := template.ParseGlob(filepath.Join(templatesPath, "auth", "*.html"))
	if err != nil {
		logger.Log.Warnw("Auth templates not loaded, falling back to JSON", "path", templatesPath, "error", err)
		tmpl = nil
	}

	rateLimiter := NewRateLimiter(RateLimitConfig{
		MaxAttempts:     cfg.MaxLoginAttempts,
		WindowDuration:  cfg.RateLimitWindow,
		LockoutDuration: cfg.LockoutDuration,
	})

	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		templates:      tmpl,
		rateLimiter:    rateLimiter,
		audit:          audit,
	}
}

// RegisterRoutes registers authentication routes on the router.
func (ac *AuthController) RegisterRoutes(router gin.IRoutes) {
	router.GET("/login", ac.LoginPage)
	router.POST("/login", ac.Login)
	router.GET("/register", ac.RegisterPage)
	router.POST("/register", ac.Register)
	router.POST("/logout", ac.Logout)
	router.GET("/logout", ac.Logout)
}

// Stop cleans up resources (rate limiter background goroutine).
func (ac *AuthController) Stop() {
	ac.rateLimiter.Stop()
}

// LoginPage renders the login form.
func (ac *AuthController) LoginPage(c *gin.Context) {
	if IsAuthenticated(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	ac.renderTemplate(c, http.StatusOK, "login.html", gin.H{
		"Title": "Login",
		"Next":  sanitizeRedirectPath(c.Query("next")),
	})
}

// Login handles the login form submission.
func (ac *AuthController) Login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	next := sanitizeRedirectPath(c.PostForm("next"))
	clientIP := c.ClientIP()

	data := gin.H{
		"Title":    "Login",
		"Next":     next,
		"Username": username,
	}

	if allowed, retryAfter := ac.rateLimiter.Allow(clientIP, username); !allowed {
		ac.logAuth(c, 0, ActionLoginRateLimited, false)
		c.Header("Retry-After", retryAfterSeconds(retryAfter))
		data["Error"] = MsgRateLimited
		ac.renderTemplate(c, http.StatusTooManyRequests, "login.html", data)
		return
	}

	user, err := ac.service.Authenticate(username, password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			logger.Log.Errorw("Login failed", "username", username, "error", err)
		}
		ac.rateLimiter.RecordFailure(clientIP, username)
		ac.logAuth(c, 0, ActionLoginFailed, false)

		data["Error"] = MsgLoginFailed
		ac.renderTemplate(c, http.StatusUnauthorized, "login.html", data)
		return
	}

	ac.rateLimiter.RecordSuccess(clientIP, username)

	if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
		logger.Log.Errorw("Failed to create session", "user_id", user.ID, "error", err)
		data["Error"] = MsgSessionFailure
		ac.renderTemplate(c, http.StatusInternalServerError, "login.html", data)
		return
	}

	ac.logAuth(c, user.ID, ActionLogin, true)
	ac.sessionManager.AddFlash(c.Request.Context(), FlashSuccess, MsgLoginSuccess)
	c.Redirect(http.StatusSeeOther, next)
}

// RegisterPage renders the registration form.
func (ac *AuthController) RegisterPage(c *gin.Context) {
	if IsAuthenticated(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	ac.renderTemplate(c, http.StatusOK, "register.html", gin.H{
		"Title": "Register",
	})
}

// Register creates an account and sends the user to the login page.
func (ac *AuthController) Register(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	user, err := ac.service.Register(username, password)
	if err != nil {
		status := http.StatusBadRequest
		var message string
		switch {
		case errors.Is(err, ErrUserExists):
			status = http.StatusConflict
			message = MsgUsernameTaken
		case errors.Is(err, ErrUsernameRequired):
			message = "Username is required."
		case errors.Is(err, ErrUsernameTooLong):
			message = "Username must be at most 100 characters."
		case errors.Is(err, ErrPasswordRequired):
			message = "Password is required."
		case errors.Is(err, ErrPasswordTooLong):
			message = "Password must be at most 72 bytes."
		default:
			logger.Log.Errorw("Registration failed", "username", username, "error", err)
			status = http.StatusInternalServerError
			message = "Registration failed. Please try again."
		}

		ac.logAuth(c, 0, ActionRegister, false)
		ac.renderTemplate(c, status, "register.html", gin.H{
			"Title":    "Register",
			"Username": username,
			"Error":    message,
		})
		return
	}

	ac.logAuth(c, user.ID, ActionRegister, true)
	ac.sessionManager.AddFlash(c.Request.Context(), FlashSuccess, MsgRegistered)
	c.Redirect(http.StatusSeeOther, "/login")
}

// Logout destroys the session and redirects to login.
func (ac *AuthController) Logout(c *gin.Context) {
	userID := ac.sessionManager.GetUserID(c.Request)

	if err := ac.sessionManager.DestroySession(c.Request); err != nil {
		logger.Log.Errorw("Failed to destroy session", "user_id", userID, "error", err)
	}
	if userID != 0 {
		ac.logAuth(c, userID, ActionLogout, true)
	}

	// Destroy leaves an empty session behind, which carries the flash.
	ac.sessionManager.AddFlash(c.Request.Context(), FlashSuccess, MsgLoggedOut)
	c.Redirect(http.StatusSeeOther, "/login")
}

func (ac *AuthController) logAuth(c *gin.Context, userID uint, action string, success bool) {
	if ac.audit == nil {
		return
	}
	ac.audit.LogAuth(userID, action, c.ClientIP(), c.Request.UserAgent(), success)
}

// renderTemplate renders an auth template or falls back to JSON.
func (ac *AuthController) renderTemplate(c *gin.Context, status int, name string, data gin.H) {
	data["Flashes"] = ac.sessionManager.PopFlashes(c.Request.Context())
	data["CSRFToken"] = GetCSRFToken(c)
	data["CSRFField"] = CSRFFormField

	if ac.templates == nil {
		delete(data, "CSRFField")
		c.JSON(status, data)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := ac.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		logger.Log.Errorw("Template render failed", "template", name, "error", err)
	}
}

func retryAfterSeconds(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}
