package render

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnavailable  = errors.New("browser unavailable")
	ErrTimeout      = errors.New("render timed out")
	ErrEmptyCapture = errors.New("screenshot is empty")
	ErrEmptyPDF     = errors.New("generated pdf is empty")
	ErrNoContent    = errors.New("could not measure a valid page height")
)

// NavigationKind classifies why a page could not be opened.
type NavigationKind int

const (
	NavigationFailed NavigationKind = iota
	NavigationAborted
	NavigationNameNotResolved
	NavigationConnectionRefused
	NavigationTimedOut
	NavigationHTTPStatus
	NavigationNoResponse
)

// NavigationError reports a failure to load the target document.
type NavigationError struct {
	URL    string
	Kind   NavigationKind
	Status int
	Reason string
	Err    error
}

func (e *NavigationError) Error() string {
	switch e.Kind {
	case NavigationHTTPStatus:
		return fmt.Sprintf("navigate %s: http status %d", e.URL, e.Status)
	case NavigationNoResponse:
		return fmt.Sprintf("navigate %s: no response", e.URL)
	default:
		return fmt.Sprintf("navigate %s: %s", e.URL, e.Reason)
	}
}

func (e *NavigationError) Unwrap() error {
	if e.Kind == NavigationTimedOut {
		return ErrTimeout
	}
	return e.Err
}

// classifyNavigation maps a Chromium net error string onto a NavigationKind.
func classifyNavigation(reason string) NavigationKind {
	switch {
	case strings.Contains(reason, "net::ERR_ABORTED"):
		return NavigationAborted
	case strings.Contains(reason, "net::ERR_NAME_NOT_RESOLVED"):
		return NavigationNameNotResolved
	case strings.Contains(reason, "net::ERR_CONNECTION_REFUSED"):
		return NavigationConnectionRefused
	case strings.Contains(strings.ToLower(reason), "timeout"),
		strings.Contains(reason, "net::ERR_TIMED_OUT"),
		strings.Contains(reason, "context deadline exceeded"):
		return NavigationTimedOut
	default:
		return NavigationFailed
	}
}
