package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"webpdf/internal/render"
)

// HealthHandler reports the capabilities found at startup.
type HealthHandler struct {
	caps        render.Capabilities
	jobsEnabled bool
}

func NewHealthHandler(caps render.Capabilities, jobsEnabled bool) *HealthHandler {
	return &HealthHandler{caps: caps, jobsEnabled: jobsEnabled}
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "not available"
}

func (h *HealthHandler) Health(c *gin.Context) {
	status := "ok"
	if !h.caps.Ready() {
		status = "degraded"
	}
	body := gin.H{
		"status":  status,
		"browser": availability(h.caps.Browser),
		"imaging": availability(h.caps.Imaging),
	}
	if h.caps.BrowserError != "" {
		body["browser_error"] = h.caps.BrowserError
	}
	if h.caps.ImagingError != "" {
		body["imaging_error"] = h.caps.ImagingError
	}
	c.JSON(http.StatusOK, body)
}

func (h *HealthHandler) Root(c *gin.Context) {
	endpoints := gin.H{
		"/convert":               "POST - HTML content to a single-page PDF",
		"/convert-base64":        "POST - base64 encoded HTML to a single-page PDF",
		"/convert-url":           "POST - web page to a single-page PDF",
		"/convert-url-a4":        "POST - web page captured and split into A4 pages",
		"/convert-url-paginated": "POST - web page printed with A4 page breaks",
		"/health":                "GET - service status",
		"/metrics":               "GET - Prometheus metrics",
	}
	if h.jobsEnabled {
		endpoints["/v1/jobs"] = "POST - queue an asynchronous web page conversion"
		endpoints["/v1/jobs/:id"] = "GET - job status and download link"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "HTML to PDF API",
		"browser":   availability(h.caps.Browser),
		"imaging":   availability(h.caps.Imaging),
		"endpoints": endpoints,
	})
}
