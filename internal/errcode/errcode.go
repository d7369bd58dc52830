package errcode

// Codes carried in job state and notifications:
// - 0: no error
// - 4xxx: the request itself cannot succeed, or succeeded with a warning
// - 5xxx: system failure
const (
	OK                = 0
	InvalidInput      = 4000
	ContentClipped    = 4013
	SystemError       = 5000
	RenderUnavailable = 5003
)
