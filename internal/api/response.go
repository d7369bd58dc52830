package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"webpdf/internal/api/middleware"
	"webpdf/internal/convert"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func BadRequest(c *gin.Context, msg string)  { Error(c, http.StatusBadRequest, msg) }
func NotFound(c *gin.Context, msg string)    { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)    { Error(c, http.StatusConflict, msg) }
func Internal(c *gin.Context, msg string)    { Error(c, http.StatusInternalServerError, msg) }
func Unavailable(c *gin.Context, msg string) { Error(c, http.StatusServiceUnavailable, msg) }

// bindJSON decodes the request body into dst and writes the error response
// when it cannot.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(c, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		BadRequest(c, "invalid request body")
		return false
	}
	return true
}

// ConversionError writes err with the status and message chosen by the
// conversion service.
func ConversionError(c *gin.Context, err error) {
	status := convert.StatusOf(err)
	msg := "internal error"
	var convErr *convert.Error
	if errors.As(err, &convErr) && convErr.Message != "" {
		msg = convErr.Message
	}
	middleware.LoggerFromContext(c).Warn("conversion request failed",
		slog.Int("status", status),
		slog.Any("error", err),
	)
	Error(c, status, msg)
}

// PDF writes a finished conversion as an attachment.
func PDF(c *gin.Context, res *convert.Result) {
	c.Header("Content-Disposition", "attachment; filename="+res.Filename)
	if res.Pages > 0 {
		c.Header("X-Page-Count", strconv.Itoa(res.Pages))
	}
	if res.Clipped {
		c.Header("X-Content-Clipped", "true")
	}
	if res.Cached {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Data(http.StatusOK, "application/pdf", res.PDF)
}
