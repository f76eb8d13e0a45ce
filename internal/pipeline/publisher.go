package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/ibeckermayer/hopperbot/internal/store"
	"github.com/ibeckermayer/hopperbot/internal/thread"
	"github.com/ibeckermayer/hopperbot/internal/tumblr"
	"github.com/ibeckermayer/hopperbot/internal/types"
	"github.com/ibeckermayer/hopperbot/internal/update"
)

const defaultUpdateTimeout = 5 * time.Minute

// Resolver reconstructs the thread above a tweet
type Resolver interface {
	Resolve(ctx context.Context, tweet types.Tweet, username string) thread.Resolved
}

// Renderer screenshots a range of a thread page
type Renderer interface {
	Render(ctx context.Context, threadURL, prefix string, rng types.Range) ([]string, error)
}

// Builder composes posts from updates
type Builder interface {
	Build(u update.Update) (*tumblr.Post, error)
}

// Poster publishes posts and returns the new post id
type Poster interface {
	Publish(ctx context.Context, post *tumblr.Post) (int64, error)
}

// IndexWriter records published threads
type IndexWriter interface {
	PutThreadEntry(ctx context.Context, e types.ThreadEntry) error
}

// PublisherConfig tunes the Publisher
type PublisherConfig struct {
	// UpdateTimeout bounds the work on a single update.
	UpdateTimeout time.Duration
	// DumpDir receives a JSON dump of every failed update; empty disables dumps.
	DumpDir string
}

// Stats counts outcomes since the Publisher started
type Stats struct {
	Published int64
	Failed    int64
	Pending   int
}

// Publisher is the single consumer of the queue. It is the only caller of
// the Renderer and the only writer of the thread index.
type Publisher struct {
	queue    *Queue
	resolver Resolver
	renderer Renderer
	builder  Builder
	poster   Poster
	index    IndexWriter
	cfg      PublisherConfig
	logger   *slog.Logger

	published atomic.Int64
	failed    atomic.Int64
}

// NewPublisher creates a new Publisher
func NewPublisher(queue *Queue, resolver Resolver, renderer Renderer, builder Builder, poster Poster, index IndexWriter, cfg PublisherConfig, logger *slog.Logger) *Publisher {
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = defaultUpdateTimeout
	}
	return &Publisher{
		queue:    queue,
		resolver: resolver,
		renderer: renderer,
		builder:  builder,
		poster:   poster,
		index:    index,
		cfg:      cfg,
		logger:   logger,
	}
}

// Stats returns the outcome counters
func (p *Publisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		Pending:   p.queue.Len(),
	}
}

// Run processes updates in arrival order until the queue is closed and
// drained, or ctx is cancelled. An update already in progress when ctx is
// cancelled is finished first; the rest stay queued.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("publisher started")
	for {
		if ctx.Err() != nil {
			p.stopped()
			return nil
		}
		if u, ok := p.queue.TryDequeue(); ok {
			p.process(ctx, u)
			continue
		}
		if p.queue.Closed() {
			p.logger.Info("publisher stopped: queue drained")
			return nil
		}

		select {
		case <-ctx.Done():
			p.stopped()
			return nil
		case <-p.queue.Wait():
		}
	}
}

func (p *Publisher) stopped() {
	if n := p.queue.Len(); n > 0 {
		p.logger.Warn("publisher stopped with pending updates", "pending", n)
		return
	}
	p.logger.Info("publisher stopped")
}

// process runs one update to completion. Shutdown does not interrupt it;
// only the per-update timeout does.
func (p *Publisher) process(ctx context.Context, u update.Update) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.UpdateTimeout)
	defer cancel()

	logger := p.logger.With(u.LogAttrs()...)
	start := time.Now()

	var (
		post *tumblr.Post
		err  error
	)
	switch u := u.(type) {
	case *update.TwitterUpdate:
		post, err = p.processTwitter(ctx, u, logger)
	case *update.YoutubeUpdate:
		post, err = p.processYoutube(ctx, u, logger)
	default:
		err = fmt.Errorf("%w: %T", update.ErrUnknownUpdate, u)
	}

	if err != nil {
		p.failed.Add(1)
		logger.Error("update failed", "error", err, "duration", time.Since(start))
		p.dump(u, post, err, logger)
		return
	}
	p.published.Add(1)
	logger.Info("update published", "duration", time.Since(start))
}

// processTwitter returns the built post, if it got that far, alongside any error.
func (p *Publisher) processTwitter(ctx context.Context, u *update.TwitterUpdate, logger *slog.Logger) (post *tumblr.Post, err error) {
	defer func() {
		if err != nil {
			u.State = update.Failed
		}
		p.cleanup(u, logger)
	}()

	u.State = update.Resolving
	res := p.resolver.Resolve(ctx, u.Tweet, u.Author.Username)
	u.Resolved = &res
	if res.Stop.Truncated() {
		logger.Warn("thread truncated", "stop", res.Stop.String(), "length", len(res.AltTexts))
	}

	u.State = update.Rendering
	files, err := p.renderer.Render(ctx, u.URL(), u.FilePrefix(), res.Range)
	u.Files = files
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", res.Range, err)
	}

	u.State = update.Publishing
	post, err = p.builder.Build(u)
	if err != nil {
		return nil, fmt.Errorf("failed to build post: %w", err)
	}
	id, err := p.poster.Publish(ctx, post)
	if err != nil {
		return post, fmt.Errorf("failed to publish to %s: %w", post.Blog, err)
	}
	logger.Info("thread published", "blog", post.Blog, "post_id", id, "range", res.Range.String(), "reblog", post.Reblog != nil)

	if id == 0 {
		logger.Warn("publish returned no post id, thread not indexed")
		return post, nil
	}

	entry := types.ThreadEntry{
		SourceID:    u.Tweet.ID,
		Offset:      res.Range.Stop - 1,
		PublishedID: id,
		Destination: post.Blog,
	}
	if err := p.index.PutThreadEntry(ctx, entry); err != nil {
		// The post is live either way, so this does not fail the update.
		if errors.Is(err, store.ErrDuplicateKey) {
			logger.Error("tweet published twice, index entry kept", "post_id", id, "error", err)
		} else {
			logger.Error("failed to index published thread", "post_id", id, "error", err)
		}
		return post, nil
	}
	u.State = update.Persisted
	return post, nil
}

// cleanup removes rendered files whatever the outcome
func (p *Publisher) cleanup(u *update.TwitterUpdate, logger *slog.Logger) {
	for _, f := range u.Files {
		if err := os.Remove(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Warn("rendered file already removed", "path", f)
			} else {
				logger.Error("failed to remove rendered file", "path", f, "error", err)
			}
		}
	}
	u.State = update.Cleaned
}

func (p *Publisher) processYoutube(ctx context.Context, u *update.YoutubeUpdate, logger *slog.Logger) (*tumblr.Post, error) {
	u.State = update.Publishing
	post, err := p.builder.Build(u)
	if err != nil {
		u.State = update.Failed
		return nil, fmt.Errorf("failed to build post: %w", err)
	}
	id, err := p.poster.Publish(ctx, post)
	if err != nil {
		u.State = update.Failed
		return post, fmt.Errorf("failed to publish to %s: %w", post.Blog, err)
	}
	u.State = update.Cleaned
	logger.Info("video published", "blog", post.Blog, "post_id", id, "title", u.Title)
	return post, nil
}

// FailedUpdate is the JSON dump written for an update that could not be
// published. Post holds the request body when the post was built.
type FailedUpdate struct {
	Update   json.RawMessage `json:"update"`
	Blog     string          `json:"blog,omitempty"`
	Post     json.RawMessage `json:"post,omitempty"`
	Error    string          `json:"error"`
	FailedAt time.Time       `json:"failed_at"`
}

func (p *Publisher) dump(u update.Update, post *tumblr.Post, cause error, logger *slog.Logger) {
	if p.cfg.DumpDir == "" {
		return
	}

	raw, err := json.Marshal(u)
	if err != nil {
		logger.Warn("failed to encode failed update", "error", err)
		return
	}
	fu := FailedUpdate{
		Update:   raw,
		Error:    cause.Error(),
		FailedAt: time.Now(),
	}
	if post != nil {
		fu.Blog = post.Blog
		if fu.Post, err = post.Body(); err != nil {
			logger.Warn("failed to encode post body", "error", err)
		}
	}

	path, err := store.SaveDump(p.cfg.DumpDir, store.DumpFailedUpdate, u.SourceID(), fu)
	if err != nil {
		logger.Warn("failed to dump failed update", "error", err)
		return
	}
	logger.Info("failed update dumped", "path", path)
}
