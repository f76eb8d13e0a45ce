// Package twitter is a small client for the Twitter API v2: tweet lookup,
// filtered stream rules and the filtered stream itself.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ibeckermayer/hopperbot/internal/config"
	"github.com/ibeckermayer/hopperbot/internal/types"
)

// StatusURL is the public address of a tweet. Any username works; the
// site redirects to the author's canonical URL.
func StatusURL(username string, tweetID int64) string {
	if username == "" {
		username = "twitter"
	}
	return fmt.Sprintf("https://twitter.com/%s/status/%d", username, tweetID)
}

// Client talks to the Twitter API v2 with an app bearer token
type Client struct {
	base       string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	logger     *slog.Logger

	// stream reconnect tuning
	backoffBase  time.Duration
	backoffMax   time.Duration
	stallTimeout time.Duration
}

// New creates a new Twitter client
func New(cfg config.TwitterConfig, logger *slog.Logger) *Client {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 1
	}

	return &Client{
		base:         strings.TrimRight(cfg.APIBase, "/"),
		token:        cfg.BearerToken,
		httpClient:   &http.Client{},
		limiter:      rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
		timeout:      cfg.RequestTimeout.Duration,
		logger:       logger,
		backoffBase:  5 * time.Second,
		backoffMax:   5 * time.Minute,
		stallTimeout: 90 * time.Second,
	}
}

// GetTweet fetches a single tweet with the expansions needed to keep
// walking a reply chain. A response carrying an error payload, with or
// without data, returns *APIError; a tweet whose author is not in the includes
// returns ErrMissingAuthor.
func (c *Client) GetTweet(ctx context.Context, id int64) (types.Tweet, types.User, error) {
	q := url.Values{}
	q.Set("expansions", tweetExpansions)
	q.Set("tweet.fields", tweetFields)
	q.Set("user.fields", userFields)

	var resp tweetResponse
	if err := c.do(ctx, http.MethodGet, "/tweets/"+strconv.FormatInt(id, 10), q, nil, &resp); err != nil {
		return types.Tweet{}, types.User{}, fmt.Errorf("get tweet %d: %w", id, err)
	}

	// An errors array fails the lookup even alongside data.
	if len(resp.Errors) > 0 {
		return types.Tweet{}, types.User{}, fmt.Errorf("get tweet %d: %w", id, &APIError{Problems: resp.Errors})
	}
	if resp.Data == nil {
		return types.Tweet{}, types.User{}, fmt.Errorf("get tweet %d: %w", id,
			&APIError{Problems: []Problem{{Title: "Not Found", Detail: "response carried no data"}}})
	}

	tweet, err := resp.Data.toTweet()
	if err != nil {
		return types.Tweet{}, types.User{}, fmt.Errorf("get tweet %d: %w", id, err)
	}

	author, ok := resp.Includes.findUser(tweet.AuthorID)
	if !ok {
		return tweet, types.User{}, fmt.Errorf("get tweet %d: %w", id, ErrMissingAuthor)
	}

	return tweet, author, nil
}

// do performs one rate limited REST call bounded by the request timeout.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// IsRateLimited reports whether err is a 429 from the API.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests
}
