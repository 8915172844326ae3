package observerclient

import "errors"

var (
	// ErrEmptyResponse is returned when the Observer answers the secret
	// fetch with 200 and an empty body.
	ErrEmptyResponse = errors.New("observerclient: empty response body")

	// ErrBadStatus is returned for any non-200 response to a GET, and
	// for any non-2xx response to the ensure-exists POST.
	ErrBadStatus = errors.New("observerclient: unexpected status code")
)
