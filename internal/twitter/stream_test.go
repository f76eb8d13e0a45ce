package twitter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const streamBody = `{"data": {"id": "20", "text": "hi bob", "author_id": "1", "in_reply_to_user_id": "2", "referenced_tweets": [{"type": "replied_to", "id": "10"}]}, "includes": {"users": [{"id": "1", "username": "alice", "name": "Alice"}]}, "matching_rules": [{"id": "42", "tag": "hopperbot"}]}

{"data": {"id": "21", "text": "no author", "author_id": "3"}, "includes": {"users": []}}
{"errors": [{"title": "operational-disconnect", "detail": "This stream has been disconnected"}]}
`

func TestStream_DeliversEventsAndReconnects(t *testing.T) {
	var connections atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tweets/search/stream", r.URL.Path)
		connections.Add(1)
		io.WriteString(w, streamBody)
	}))

	events := make(chan Event, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.Stream(ctx, func(ev Event) {
			select {
			case events <- ev:
			default:
			}
		})
	}()

	var got []Event
	for len(got) < 6 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d events", len(got))
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop on cancel")
	}

	assert.GreaterOrEqual(t, connections.Load(), int32(2))

	first := got[0]
	require.NoError(t, first.Err)
	require.NotNil(t, first.Tweet)
	require.NotNil(t, first.Author)
	assert.Equal(t, int64(20), first.Tweet.ID)
	assert.Equal(t, "alice", first.Author.Username)
	assert.Equal(t, []MatchingRule{{ID: "42", Tag: "hopperbot"}}, first.MatchingRules)

	second := got[1]
	require.NotNil(t, second.Tweet)
	assert.Nil(t, second.Author)

	third := got[2]
	assert.Nil(t, third.Tweet)
	var apiErr *APIError
	assert.True(t, errors.As(third.Err, &apiErr))
}

func TestStream_Unauthorized(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"title": "Unauthorized"}`)
	}))

	err := c.Stream(context.Background(), func(Event) {})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestStream_Stalled(t *testing.T) {
	var connections atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connections.Add(1)
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	c.stallTimeout = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := c.Stream(ctx, func(Event) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, connections.Load(), int32(2))
}

func TestParseEvent_BadJSON(t *testing.T) {
	ev := parseEvent([]byte(`{not json`))
	assert.Nil(t, ev.Tweet)
	assert.Error(t, ev.Err)
}
