package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/hopperbot/internal/config"
	"github.com/ibeckermayer/hopperbot/internal/people"
	"github.com/ibeckermayer/hopperbot/internal/store"
	"github.com/ibeckermayer/hopperbot/internal/thread"
	"github.com/ibeckermayer/hopperbot/internal/tumblr"
	"github.com/ibeckermayer/hopperbot/internal/twitter"
	"github.com/ibeckermayer/hopperbot/internal/types"
	"github.com/ibeckermayer/hopperbot/internal/update"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeResolver struct {
	resolved thread.Resolved
}

func (f *fakeResolver) Resolve(_ context.Context, _ types.Tweet, _ string) thread.Resolved {
	return f.resolved
}

// fakeRenderer writes a placeholder file per index and can fail after
// writing some of them.
type fakeRenderer struct {
	dir       string
	failAfter int // -1 never fails
	calls     int
}

func (f *fakeRenderer) Render(_ context.Context, _, prefix string, rng types.Range) ([]string, error) {
	f.calls++
	var files []string
	for n, i := range rng.Indices() {
		if n == f.failAfter {
			return files, errors.New("element not found")
		}
		path := filepath.Join(f.dir, fmt.Sprintf("%s-%d.png", prefix, i))
		if err := os.WriteFile(path, []byte("png"), 0644); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

type fakePoster struct {
	id    int64
	err   error
	posts []*tumblr.Post
}

func (f *fakePoster) Publish(_ context.Context, post *tumblr.Post) (int64, error) {
	f.posts = append(f.posts, post)
	return f.id, f.err
}

type fakeIndex struct {
	mu      sync.Mutex
	entries []types.ThreadEntry
	err     error
}

func (f *fakeIndex) PutThreadEntry(_ context.Context, e types.ThreadEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

type harness struct {
	queue    *Queue
	resolver *fakeResolver
	renderer *fakeRenderer
	poster   *fakePoster
	index    *fakeIndex
	pub      *Publisher
	dumpDir  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	alice, err := people.New("Alice", "SHE")
	require.NoError(t, err)
	bob, err := people.New("Bob", "HE")
	require.NoError(t, err)

	routes := config.NewRoutes("", []config.UpdateConfig{
		{Blogname: "dest", Twitter: []config.TwitterSource{{Username: "alice"}}},
		{Blogname: "videos", Youtube: []config.YoutubeSource{{ChannelID: "UC123"}}},
	})
	dir := people.NewDirectory(map[int64]people.Person{1: alice, 2: bob})

	resolver := &fakeResolver{resolved: thread.Resolved{
		AltTexts:     []string{"Tweet by @bob: hello", "Tweet by @alice: hi bob"},
		Conversation: []int64{2},
		Range:        types.NewRange(0, 2),
	}}

	h := &harness{
		queue:    NewQueue(),
		resolver: resolver,
		renderer: &fakeRenderer{dir: t.TempDir(), failAfter: -1},
		poster:   &fakePoster{id: 999},
		index:    &fakeIndex{},
		dumpDir:  t.TempDir(),
	}
	h.pub = NewPublisher(h.queue, h.resolver, h.renderer,
		update.NewBuilder(routes, dir, discardLogger()),
		h.poster, h.index,
		PublisherConfig{UpdateTimeout: time.Minute, DumpDir: h.dumpDir},
		discardLogger())
	return h
}

// run drains the queue and waits for the publisher to stop.
func (h *harness) run(t *testing.T) {
	t.Helper()
	h.queue.Close()
	require.NoError(t, h.pub.Run(context.Background()))
}

func aliceReply() *update.TwitterUpdate {
	return update.NewTwitterUpdate(
		types.Tweet{
			ID:               1002,
			AuthorID:         1,
			Text:             "hi bob",
			InReplyToUserID:  2,
			ReferencedTweets: []types.Reference{{Type: types.ReferenceRepliedTo, ID: 1001}},
		},
		types.User{ID: 1, Username: "alice", Name: "Alice"},
		nil,
	)
}

func renderedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	for i := range 3 {
		require.True(t, q.Enqueue(&update.YoutubeUpdate{VideoID: fmt.Sprint(i)}))
	}
	assert.Equal(t, 3, q.Len())

	for i := range 3 {
		u, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprint(i), u.SourceID())
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestQueueCloseWakesWaiters(t *testing.T) {
	q := NewQueue()
	done := make(chan struct{})
	go func() {
		<-q.Wait()
		<-q.Wait()
		close(done)
	}()

	q.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by Close")
	}
	assert.False(t, q.Enqueue(&update.YoutubeUpdate{}))
	assert.True(t, q.Closed())
}

func TestPublishScenario(t *testing.T) {
	h := newHarness(t)
	u := aliceReply()
	require.True(t, h.queue.Enqueue(u))

	h.run(t)

	require.Len(t, h.poster.posts, 1)
	assert.Equal(t, "dest", h.poster.posts[0].Blog)
	assert.Equal(t, []types.ThreadEntry{{SourceID: 1002, Offset: 1, PublishedID: 999, Destination: "dest"}}, h.index.entries)
	assert.Equal(t, update.Cleaned, u.State)
	assert.Empty(t, renderedFiles(t, h.renderer.dir))
	assert.Equal(t, Stats{Published: 1}, h.pub.Stats())
}

func TestPublishContinuationOffset(t *testing.T) {
	h := newHarness(t)
	h.resolver.resolved = thread.Resolved{
		AltTexts:     []string{"Tweet by @alice: hi bob"},
		Conversation: []int64{2},
		Range:        types.NewRange(3, 4),
		Reblog:       &types.ReblogTarget{PostID: 500, Blog: "dest"},
		Stop:         thread.StopIndexed,
	}
	require.True(t, h.queue.Enqueue(aliceReply()))

	h.run(t)

	require.Len(t, h.poster.posts, 1)
	assert.Equal(t, &types.ReblogTarget{PostID: 500, Blog: "dest"}, h.poster.posts[0].Reblog)
	require.Len(t, h.index.entries, 1)
	assert.Equal(t, 3, h.index.entries[0].Offset)
}

func TestRenderFailureCleansUp(t *testing.T) {
	h := newHarness(t)
	h.renderer.failAfter = 1
	u := aliceReply()
	require.True(t, h.queue.Enqueue(u))

	h.run(t)

	assert.Empty(t, h.poster.posts)
	assert.Empty(t, h.index.entries)
	assert.Empty(t, renderedFiles(t, h.renderer.dir))
	assert.Equal(t, int64(1), h.pub.Stats().Failed)

	dumps, err := store.ListDumps(h.dumpDir, store.DumpFailedUpdate)
	require.NoError(t, err)
	assert.Len(t, dumps, 1)
}

func TestPublishFailureCleansUp(t *testing.T) {
	h := newHarness(t)
	h.poster.err = errors.New("tumblr down")
	require.True(t, h.queue.Enqueue(aliceReply()))

	h.run(t)

	assert.Len(t, h.poster.posts, 1)
	assert.Empty(t, h.index.entries)
	assert.Empty(t, renderedFiles(t, h.renderer.dir))
	assert.Equal(t, Stats{Failed: 1}, h.pub.Stats())

	dumps, err := store.ListDumps(h.dumpDir, store.DumpFailedUpdate)
	require.NoError(t, err)
	require.Len(t, dumps, 1)
	fu, err := store.LoadDump[FailedUpdate](dumps[0])
	require.NoError(t, err)
	assert.Equal(t, "dest", fu.Blog)
	assert.Contains(t, fu.Error, "tumblr down")
	assert.Contains(t, string(fu.Post), "Alice replied to Bob on Twitter!")
	var dumped struct {
		Tweet types.Tweet `json:"tweet"`
	}
	require.NoError(t, json.Unmarshal(fu.Update, &dumped))
	assert.Equal(t, int64(1002), dumped.Tweet.ID)
}

func TestDuplicateIndexEntryKeepsRunning(t *testing.T) {
	h := newHarness(t)
	h.index.err = fmt.Errorf("put 1002: %w", store.ErrDuplicateKey)
	require.True(t, h.queue.Enqueue(aliceReply()))
	require.True(t, h.queue.Enqueue(aliceReply()))

	h.run(t)

	assert.Len(t, h.poster.posts, 2)
	assert.Equal(t, int64(2), h.pub.Stats().Published)
}

func TestPublishYoutube(t *testing.T) {
	h := newHarness(t)
	u := &update.YoutubeUpdate{VideoID: "vid1", ChannelID: "UC123", Title: "New", URL: "https://www.youtube.com/watch?v=vid1", Author: "Chan"}
	require.True(t, h.queue.Enqueue(u))

	h.run(t)

	require.Len(t, h.poster.posts, 1)
	assert.Equal(t, "videos", h.poster.posts[0].Blog)
	assert.Zero(t, h.renderer.calls)
	assert.Empty(t, h.index.entries)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.pub.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}
}

func TestRunLeavesQueueOnCancel(t *testing.T) {
	h := newHarness(t)
	for range 5 {
		require.True(t, h.queue.Enqueue(aliceReply()))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.pub.Run(ctx))

	assert.Empty(t, h.poster.posts)
	assert.Zero(t, h.renderer.calls)
	assert.Equal(t, Stats{Pending: 5}, h.pub.Stats())
}

// recordingFetcher serves tweets from a map and records every lookup.
type recordingFetcher struct {
	tweets map[int64]types.Tweet
	users  map[int64]types.User
	calls  []int64
}

func (f *recordingFetcher) GetTweet(_ context.Context, id int64) (types.Tweet, types.User, error) {
	f.calls = append(f.calls, id)
	tw, ok := f.tweets[id]
	if !ok {
		return types.Tweet{}, types.User{}, fmt.Errorf("get tweet %d: %w", id, &twitter.APIError{Problems: []twitter.Problem{{Title: "Not Found Error"}}})
	}
	return tw, f.users[tw.AuthorID], nil
}

type sequencePoster struct {
	next  int64
	posts []*tumblr.Post
}

func (s *sequencePoster) Publish(_ context.Context, post *tumblr.Post) (int64, error) {
	s.posts = append(s.posts, post)
	s.next++
	return s.next, nil
}

func TestReplyContinuesThreadPublishedEarlierInRun(t *testing.T) {
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	alice, err := people.New("Alice", "SHE")
	require.NoError(t, err)
	bob, err := people.New("Bob", "HE")
	require.NoError(t, err)
	dir := people.NewDirectory(map[int64]people.Person{1: alice, 2: bob})
	routes := config.NewRoutes("", []config.UpdateConfig{
		{Blogname: "dest", Twitter: []config.TwitterSource{{Username: "alice"}}},
	})

	aliceUser := types.User{ID: 1, Username: "alice", Name: "Alice"}
	bobUser := types.User{ID: 2, Username: "bob", Name: "Bob"}
	t1 := types.Tweet{ID: 1001, AuthorID: 2, Text: "hello"}
	t2 := types.Tweet{ID: 1002, AuthorID: 1, Text: "hi bob", InReplyToUserID: 2,
		ReferencedTweets: []types.Reference{{Type: types.ReferenceRepliedTo, ID: 1001}}}
	t3 := types.Tweet{ID: 1003, AuthorID: 1, Text: "also", InReplyToUserID: 1,
		ReferencedTweets: []types.Reference{{Type: types.ReferenceRepliedTo, ID: 1002}}}

	fetcher := &recordingFetcher{
		tweets: map[int64]types.Tweet{t1.ID: t1, t2.ID: t2},
		users:  map[int64]types.User{1: aliceUser, 2: bobUser},
	}
	poster := &sequencePoster{next: 998}
	renderer := &fakeRenderer{dir: t.TempDir(), failAfter: -1}
	queue := NewQueue()
	pub := NewPublisher(queue,
		thread.NewResolver(fetcher, st, discardLogger()),
		renderer,
		update.NewBuilder(routes, dir, discardLogger()),
		poster, st,
		PublisherConfig{UpdateTimeout: time.Minute},
		discardLogger())

	first := update.NewTwitterUpdate(t2, aliceUser, nil)
	second := update.NewTwitterUpdate(t3, aliceUser, nil)
	require.True(t, queue.Enqueue(first))
	require.True(t, queue.Enqueue(second))
	queue.Close()

	require.NoError(t, pub.Run(context.Background()))

	assert.Equal(t, []int64{1001}, fetcher.calls)
	require.Len(t, poster.posts, 2)
	assert.Nil(t, poster.posts[0].Reblog)
	assert.Equal(t, &types.ReblogTarget{PostID: 999, Blog: "dest"}, poster.posts[1].Reblog)

	require.NotNil(t, second.Resolved)
	assert.Equal(t, thread.StopIndexed, second.Resolved.Stop)
	assert.Equal(t, types.NewRange(1, 2), second.Resolved.Range)

	entry, found, err := st.GetThreadEntry(context.Background(), 1003)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, types.ThreadEntry{SourceID: 1003, Offset: 1, PublishedID: 1000, Destination: "dest"}, entry)
	assert.Equal(t, int64(2), pub.Stats().Published)
}

func TestListenerEnqueues(t *testing.T) {
	q := NewQueue()
	l := NewTwitterListener(q, discardLogger())

	tweet := types.Tweet{ID: 1002, AuthorID: 1, Text: "hi bob"}
	l.Handle(twitter.Event{
		Tweet:         &tweet,
		Author:        &types.User{ID: 1, Username: "alice"},
		MatchingRules: []twitter.MatchingRule{{ID: "r1", Tag: "hopperbot"}},
	})

	require.Equal(t, 1, q.Len())
	u, _ := q.TryDequeue()
	tu, ok := u.(*update.TwitterUpdate)
	require.True(t, ok)
	assert.Equal(t, update.Observed, tu.State)
	assert.Equal(t, []string{"hopperbot"}, tu.MatchedRules)
	assert.Equal(t, "https://twitter.com/alice/status/1002", tu.URL())
}

func TestListenerDropsIncompleteEvents(t *testing.T) {
	q := NewQueue()
	l := NewTwitterListener(q, discardLogger())

	tweet := types.Tweet{ID: 1002, AuthorID: 1}
	l.Handle(twitter.Event{Tweet: &tweet})
	l.Handle(twitter.Event{Err: errors.New("decode stream message")})

	assert.Zero(t, q.Len())
}
