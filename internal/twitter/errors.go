package twitter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingAuthor is returned when a tweet's author is absent from the
// users expansion of the response.
var ErrMissingAuthor = errors.New("author missing from response includes")

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("twitter API error (status %d): %s", e.StatusCode, e.Body)
}

// APIError is an error payload returned in place of data, e.g. for a
// deleted or protected tweet.
type APIError struct {
	Problems []Problem
}

// Problem is one entry of the "errors" array of a v2 response.
type Problem struct {
	Title      string `json:"title"`
	Detail     string `json:"detail"`
	Type       string `json:"type"`
	ResourceID string `json:"resource_id,omitempty"`
}

func (e *APIError) Error() string {
	details := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		if p.Detail != "" {
			details = append(details, p.Detail)
		} else {
			details = append(details, p.Title)
		}
	}
	return "twitter API returned errors: " + strings.Join(details, "; ")
}
