package client

import (
	"fmt"
	"net/http"
	"time"

	rserrors "github.com/Sternrassler/repo-search/pkg/errors"
)

// protocolError describes a non-success response.
// Rejections caused by an exhausted rate limit name the reset time.
func (c *Client) protocolError(resp *http.Response, body []byte) *rserrors.Error {
	message := describeStatus(resp.StatusCode)

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		if state := c.rateLimiter.State(); state != nil && state.IsExhausted() {
			message = fmt.Sprintf("rate limit exhausted, resets at %s", state.ResetAt.UTC().Format(time.RFC3339))
		}
	}

	return rserrors.New(rserrors.KindProtocol, "%s", message).WithResponse(resp.StatusCode, body)
}

// describeStatus gives a short diagnosis for common search API statuses.
func describeStatus(code int) string {
	switch code {
	case http.StatusUnauthorized:
		return "authentication rejected"
	case http.StatusForbidden:
		return "access forbidden"
	case http.StatusUnprocessableEntity:
		return "search query rejected"
	case http.StatusTooManyRequests:
		return "too many requests"
	case http.StatusServiceUnavailable:
		return "service unavailable"
	default:
		if code >= 500 {
			return "server error"
		}
		return "unexpected status"
	}
}
