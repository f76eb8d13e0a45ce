package twitter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ibeckermayer/hopperbot/internal/types"
)

var errStalled = errors.New("stream stalled: no data or keep-alive received")

// Event is one message of the filtered stream. Tweet is nil when the
// message carried only errors or could not be decoded; Err says why.
// Author is nil when the users expansion lacked the tweet's author.
type Event struct {
	Tweet         *types.Tweet
	Author        *types.User
	MatchingRules []MatchingRule
	Err           error
}

// Stream connects to the filtered stream and calls handle for every
// message until ctx is cancelled. Dropped connections are retried with
// exponential backoff; a 429 waits the maximum delay. Authentication
// failures are returned since retrying cannot fix them.
func (c *Client) Stream(ctx context.Context, handle func(Event)) error {
	backoff := NewBackoff(c.backoffBase, c.backoffMax)

	for {
		connected, err := c.streamOnce(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var se *StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("filtered stream: %w", err)
		}

		if connected {
			backoff.Reset()
		}
		if IsRateLimited(err) {
			backoff.Exhaust()
		}

		delay := backoff.Next()
		c.logger.Warn("stream disconnected, reconnecting", "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// streamOnce runs a single stream connection. connected reports whether
// the server accepted it, which resets the reconnect backoff.
func (c *Client) streamOnce(ctx context.Context, handle func(Event)) (connected bool, err error) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := url.Values{}
	q.Set("expansions", tweetExpansions)
	q.Set("tweet.fields", tweetFields)
	q.Set("user.fields", userFields)

	req, err := c.newRequest(connCtx, http.MethodGet, "/tweets/search/stream", q, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("connect stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	c.logger.Info("connected to filtered stream")

	// The server sends a blank keep-alive line every 20 seconds; silence
	// for longer than stallTimeout means the connection is dead.
	stalled := time.AfterFunc(c.stallTimeout, cancel)
	defer stalled.Stop()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		stalled.Reset(c.stallTimeout)

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		handle(parseEvent(line))
	}

	if connCtx.Err() != nil && ctx.Err() == nil {
		return true, errStalled
	}
	if err := scanner.Err(); err != nil {
		return true, fmt.Errorf("read stream: %w", err)
	}
	return true, io.ErrUnexpectedEOF
}

func parseEvent(line []byte) Event {
	var env streamEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Event{Err: fmt.Errorf("decode stream message: %w", err)}
	}

	ev := Event{MatchingRules: env.MatchingRules}
	if len(env.Errors) > 0 {
		ev.Err = &APIError{Problems: env.Errors}
	}
	if env.Data == nil {
		if ev.Err == nil {
			ev.Err = errors.New("stream message carried no tweet")
		}
		return ev
	}

	tweet, err := env.Data.toTweet()
	if err != nil {
		ev.Err = fmt.Errorf("convert stream tweet: %w", err)
		return ev
	}
	ev.Tweet = &tweet

	if author, ok := env.Includes.findUser(tweet.AuthorID); ok {
		ev.Author = &author
	}
	return ev
}
