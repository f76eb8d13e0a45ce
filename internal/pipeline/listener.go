package pipeline

import (
	"log/slog"

	"github.com/ibeckermayer/hopperbot/internal/twitter"
	"github.com/ibeckermayer/hopperbot/internal/update"
)

// Enqueuer accepts updates for publishing
type Enqueuer interface {
	Enqueue(u update.Update) bool
}

// TwitterListener turns filtered-stream events into updates. It never
// calls the API itself; everything slow happens in the Publisher.
type TwitterListener struct {
	queue  Enqueuer
	logger *slog.Logger
}

// NewTwitterListener creates a new TwitterListener
func NewTwitterListener(queue Enqueuer, logger *slog.Logger) *TwitterListener {
	return &TwitterListener{queue: queue, logger: logger}
}

// Handle is passed to twitter.Client.Stream
func (l *TwitterListener) Handle(ev twitter.Event) {
	if ev.Err != nil {
		l.logger.Error("stream event error", "error", ev.Err)
	}
	if ev.Tweet == nil {
		return
	}

	logger := l.logger.With("tweet_id", ev.Tweet.ID)
	if ev.Author == nil {
		logger.Error("dropping tweet: author missing from includes", "author_id", ev.Tweet.AuthorID)
		return
	}

	rules := make([]string, 0, len(ev.MatchingRules))
	for _, r := range ev.MatchingRules {
		rules = append(rules, r.Tag)
	}

	u := update.NewTwitterUpdate(*ev.Tweet, *ev.Author, rules)
	if !l.queue.Enqueue(u) {
		logger.Warn("queue closed, dropping tweet")
		return
	}
	logger.Info("tweet queued", "username", ev.Author.Username, "reply", ev.Tweet.IsReply())
}
