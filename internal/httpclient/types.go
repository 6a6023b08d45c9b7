package httpclient

import (
	"errors"
	"fmt"
	"net/url"
)

// HTTPError is returned when the server answers with a non-2xx status
type HTTPError struct {
	StatusCode int
	Message    string

	// URL is the request URL without its query and credentials; download links
	// handed out by the catalog may be signed
	URL string
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewHTTPError creates a new HTTP error for the request URL
func NewHTTPError(statusCode int, requestURL, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        redactURL(requestURL),
		Message:    message,
	}
}

// StatusCode returns the status of the first HTTPError in err's chain, or 0
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
