package http

import (
	"html/template"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/logger"
)

// pageRenderer executes the library page templates. Requests that prefer
// JSON, or any request when no templates were found, get the page data
// encoded as JSON instead.
type pageRenderer struct {
	templates *template.Template
	sessions  *auth.SessionManager
}

func newPageRenderer(templatesPath string, sessions *auth.SessionManager) *pageRenderer {
	p := &pageRenderer{sessions: sessions}
	if templatesPath == "" {
		return p
	}

	tmpl, err := template.ParseGlob(filepath.Join(templatesPath, "*.html"))
	if err != nil {
		logger.Log.Warnw("Page templates not loaded, falling back to JSON", "path", templatesPath, "error", err)
		return p
	}
	p.templates = tmpl
	return p
}

func (p *pageRenderer) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if p.sessions != nil {
		data["Flashes"] = p.sessions.PopFlashes(c.Request.Context())
	}
	authData := GetAuthTemplateData(c)

	if p.templates == nil || p.templates.Lookup(name) == nil || wantsJSON(c) {
		data["Auth"] = authData
		c.JSON(status, data)
		return
	}

	data["Auth"] = authData
	data["CSRFToken"] = authData.CSRFToken
	data["CSRFField"] = auth.CSRFFormField

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := p.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		logger.Log.Errorw("Template render failed", "template", name, "error", err, "request_id", logger.GetRequestID(c))
	}
}

func (p *pageRenderer) notFound(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		respondNotFound(c, "resource")
		return
	}
	p.render(c, http.StatusNotFound, "404.html", gin.H{
		"Title": "Not found",
		"Error": "The page you were looking for does not exist.",
	})
}

func (p *pageRenderer) internalError(c *gin.Context, err error, context string) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		respondInternalError(c, err, context)
		return
	}
	logger.Log.Errorw("Internal error", "context", context, "error", err, "request_id", logger.GetRequestID(c))
	p.render(c, http.StatusInternalServerError, "error.html", gin.H{
		"Title": "Error",
		"Error": "Something went wrong. Please try again.",
	})
}

func wantsJSON(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
