package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
)

const contextKeyAuthTemplateData = "auth_template_data"

// AuthTemplateData holds authentication info for templates.
type AuthTemplateData struct {
	LoggedIn  bool   `json:"logged_in"`
	Username  string     `json:"username,omitempty"`
	LoginAt   *time.Time `json:"login_at,omitempty"`
	CSRFToken string     `json:"-"` // empty when CSRF protection is off
}

// AuthContextMiddleware injects authentication data into Gin context for templates.
// Templates can access auth data via .Auth in the template data.
func AuthContextMiddleware(sessions *auth.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authData := AuthTemplateData{
			CSRFToken: auth.GetCSRFToken(c),
		}
		if session := sessions.GetSessionData(c.Request); session != nil {
			authData.LoggedIn = true
			authData.Username = session.Username
			if !session.LoginAt.IsZero() {
				loginAt := session.LoginAt
				authData.LoginAt = &loginAt
			}
		}

		c.Set(contextKeyAuthTemplateData, authData)
		c.Next()
	}
}

// GetAuthTemplateData retrieves auth data from context for use in templates.
func GetAuthTemplateData(c *gin.Context) AuthTemplateData {
	if data, exists := c.Get(contextKeyAuthTemplateData); exists {
		if authData, ok := data.(AuthTemplateData); ok {
			return authData
		}
	}
	return AuthTemplateData{}
}
