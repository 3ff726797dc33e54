// Package auth provides user accounts and session-based login for the library.
//
// Every route except /login, /register, /health, /ping and /static/* needs a
// logged-in session. Browsers without one are redirected to
// /login?next=<path>; API and JSON clients get 401.
//
// # Configuration
//
//	AUTH_SESSION_SECRET=<any string>  # CSRF key material, random if empty
//	AUTH_SESSION_LIFETIME=24h         # Session duration
//	AUTH_BCRYPT_COST=12               # bcrypt cost factor
//	AUTH_SECURE_COOKIES=true          # HTTPS-only cookies
//	AUTH_CSRF_ENABLED=true            # gorilla/csrf on unsafe methods
//	AUTH_MAX_LOGIN_ATTEMPTS=5         # failures before lockout
//
// # Usage
//
//	authService := auth.NewService(users.NewRepository(db), cfg.Auth)
//	sessions, _ := auth.NewSessionManager(sqlDB, cfg.Auth)
//	router.Use(sessions.SessionLoadSave())
//	router.Use(auth.NewMiddleware(authService, sessions).Handler())
//
// Extract user in handlers:
//
//	userID := auth.GetUserID(c)  // 0 when logged out
package auth
