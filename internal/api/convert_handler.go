package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"webpdf/internal/convert"
)

type converter interface {
	ConvertHTML(ctx context.Context, html string) (*convert.Result, error)
	ConvertHTMLBase64(ctx context.Context, encoded string) (*convert.Result, error)
	ConvertURL(ctx context.Context, target string) (*convert.Result, error)
	ConvertURLA4(ctx context.Context, target string) (*convert.Result, error)
	ConvertURLPaginated(ctx context.Context, target string) (*convert.Result, error)
}

type htmlRequest struct {
	HTMLContent string `json:"html_content"`
}

type htmlBase64Request struct {
	HTMLBase64 string `json:"html_base64"`
}

type urlRequest struct {
	URL string `json:"url"`
}

// ConvertHandler exposes the synchronous conversions.
type ConvertHandler struct {
	svc converter
}

func NewConvertHandler(svc converter) *ConvertHandler {
	return &ConvertHandler{svc: svc}
}

func (h *ConvertHandler) ConvertHTML(c *gin.Context) {
	var req htmlRequest
	if !bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*convert.Result, error) {
		return h.svc.ConvertHTML(ctx, req.HTMLContent)
	})
}

func (h *ConvertHandler) ConvertHTMLBase64(c *gin.Context) {
	var req htmlBase64Request
	if !bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*convert.Result, error) {
		return h.svc.ConvertHTMLBase64(ctx, req.HTMLBase64)
	})
}

func (h *ConvertHandler) ConvertURL(c *gin.Context) {
	h.convertURL(c, h.svc.ConvertURL)
}

func (h *ConvertHandler) ConvertURLA4(c *gin.Context) {
	h.convertURL(c, h.svc.ConvertURLA4)
}

func (h *ConvertHandler) ConvertURLPaginated(c *gin.Context) {
	h.convertURL(c, h.svc.ConvertURLPaginated)
}

func (h *ConvertHandler) convertURL(c *gin.Context, run func(context.Context, string) (*convert.Result, error)) {
	var req urlRequest
	if !bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*convert.Result, error) {
		return run(ctx, req.URL)
	})
}

func (h *ConvertHandler) respond(c *gin.Context, run func(context.Context) (*convert.Result, error)) {
	res, err := run(c.Request.Context())
	if err != nil {
		ConversionError(c, err)
		return
	}
	PDF(c, res)
}
