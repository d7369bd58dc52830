package convert

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"webpdf/internal/imaging"
	"webpdf/internal/render"
	"webpdf/internal/tiler"
)

var ErrInvalidInput = errors.New("invalid input")

// Error is a conversion failure with the HTTP status it should surface as.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalidInput(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg, Err: ErrInvalidInput}
}

// StatusOf returns the HTTP status for err, 500 when it is not an *Error.
func StatusOf(err error) int {
	var convErr *Error
	if errors.As(err, &convErr) {
		return convErr.Status
	}
	return http.StatusInternalServerError
}

// classify maps collaborator failures onto request-level errors. The stage
// names which part of the pipeline failed for the 500 messages.
func classify(stage string, err error) error {
	if err == nil {
		return nil
	}
	var convErr *Error
	if errors.As(err, &convErr) {
		return err
	}

	var navErr *render.NavigationError
	if errors.As(err, &navErr) {
		return navigationFailure(navErr)
	}

	switch {
	case errors.Is(err, render.ErrUnavailable):
		return &Error{Status: http.StatusServiceUnavailable, Message: "rendering engine is not available", Err: err}
	case errors.Is(err, tiler.ErrContentTooTall):
		return &Error{Status: http.StatusRequestEntityTooLarge, Message: "page is taller than the configured maximum", Err: err}
	case errors.Is(err, render.ErrNoContent), errors.Is(err, tiler.ErrInvalidDimension):
		return &Error{Status: http.StatusInternalServerError, Message: "could not obtain a valid page height", Err: err}
	case errors.Is(err, render.ErrEmptyCapture):
		return &Error{Status: http.StatusInternalServerError, Message: "captured screenshot is empty", Err: err}
	case errors.Is(err, imaging.ErrEmptyImage), errors.Is(err, imaging.ErrInvalidImage), errors.Is(err, imaging.ErrUnsupportedFormat):
		return &Error{Status: http.StatusInternalServerError, Message: "error processing the captured image", Err: err}
	case errors.Is(err, render.ErrEmptyPDF):
		return &Error{Status: http.StatusInternalServerError, Message: "generated pdf is empty", Err: err}
	case errors.Is(err, render.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &Error{Status: http.StatusInternalServerError, Message: "timed out while " + stage, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Status: 499, Message: "request cancelled", Err: err}
	default:
		return &Error{Status: http.StatusInternalServerError, Message: "error while " + stage, Err: err}
	}
}

func navigationFailure(navErr *render.NavigationError) *Error {
	u := navErr.URL
	switch navErr.Kind {
	case render.NavigationAborted:
		return &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf("connection to %s was aborted; check that the URL is reachable from the server", u), Err: navErr}
	case render.NavigationNameNotResolved:
		return &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf("could not resolve the domain name of %s", u), Err: navErr}
	case render.NavigationConnectionRefused:
		return &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf("connection refused for %s; check that the server is reachable", u), Err: navErr}
	case render.NavigationTimedOut:
		return &Error{Status: http.StatusRequestTimeout, Message: fmt.Sprintf("%s took too long to load", u), Err: navErr}
	case render.NavigationHTTPStatus:
		return &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf("HTTP error %d while loading %s", navErr.Status, u), Err: navErr}
	case render.NavigationNoResponse:
		return &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf("could not load %s; the page did not respond", u), Err: navErr}
	default:
		return &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf("error navigating to %s", u), Err: navErr}
	}
}
