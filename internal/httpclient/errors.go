package httpclient

import (
	"fmt"
	"net/http"

	"github.com/vyrodovalexey/routebind/internal/util"
)

// maxErrorBodyInMessage bounds the body excerpt included in Error().
const maxErrorBodyInMessage = 256

// ResponseError is returned for responses with a non-2xx status.
type ResponseError struct {
	Method string
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Status, http.StatusText(e.Status))
	if len(e.Body) == 0 {
		return msg
	}
	body := e.Body
	if len(body) > maxErrorBodyInMessage {
		body = body[:maxErrorBodyInMessage]
	}
	return msg + ": " + string(body)
}

// StatusCode returns the response status.
func (e *ResponseError) StatusCode() int {
	return e.Status
}

// ContentType returns the Content-Type of the response.
func (e *ResponseError) ContentType() string {
	if e.Header == nil {
		return ""
	}
	return e.Header.Get("Content-Type")
}

// ResponseBody returns the raw response body.
func (e *ResponseError) ResponseBody() []byte {
	return e.Body
}

// Is checks if the error matches the target.
func (e *ResponseError) Is(target error) bool {
	switch target {
	case util.ErrNotFound:
		return e.Status == http.StatusNotFound
	case util.ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	_, ok := target.(*ResponseError)
	return ok
}
