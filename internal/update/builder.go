package update

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ibeckermayer/hopperbot/internal/config"
	"github.com/ibeckermayer/hopperbot/internal/people"
	"github.com/ibeckermayer/hopperbot/internal/tumblr"
)

// ErrUnknownUpdate is returned for an Update implementation the builder
// does not know.
var ErrUnknownUpdate = errors.New("unknown update type")

// Builder turns updates into Tumblr posts. It only reads its routes and
// directory, both loaded once at startup.
type Builder struct {
	routes *config.Routes
	dir    *people.Directory
	logger *slog.Logger
}

// NewBuilder creates a new Builder
func NewBuilder(routes *config.Routes, dir *people.Directory, logger *slog.Logger) *Builder {
	return &Builder{routes: routes, dir: dir, logger: logger}
}

// Build dispatches on the update's type
func (b *Builder) Build(u Update) (*tumblr.Post, error) {
	switch u := u.(type) {
	case *TwitterUpdate:
		return b.BuildTwitter(u)
	case *YoutubeUpdate:
		return b.BuildYoutube(u)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownUpdate, u)
	}
}

// BuildTwitter composes a header followed by one image per rendered tweet.
// Only the last image links back to the tweet. Requires a resolved thread
// and one rendered file per position of its range.
func (b *Builder) BuildTwitter(u *TwitterUpdate) (*tumblr.Post, error) {
	res := u.Resolved
	if res == nil {
		return nil, errors.New("update has no resolved thread")
	}

	indices := res.Range.Indices()
	if len(u.Files) != len(indices) {
		return nil, fmt.Errorf("expected %d rendered files for %s, got %d", len(indices), res.Range, len(u.Files))
	}
	if len(res.AltTexts) != len(indices) {
		return nil, fmt.Errorf("expected %d alt texts for %s, got %d", len(indices), res.Range, len(res.AltTexts))
	}

	content := []tumblr.Block{
		tumblr.TextBlock{Text: people.HeaderText(b.dir, u.Tweet.AuthorID, res.Conversation)},
	}
	media := make(map[string]string, len(indices))

	for pos, i := range indices {
		id := fmt.Sprintf("tweet%d", i)
		block := tumblr.ImageBlock{Identifier: id, AltText: res.AltTexts[pos]}
		if pos == len(indices)-1 {
			block.Attribution = tumblr.SourceAttribution(u.URL())
		}
		content = append(content, block)
		media[id] = u.Files[pos]
	}

	route, ok := b.routes.Twitter(u.Author.Username)
	if !ok {
		b.logger.Warn("no blog configured for twitter user, using default",
			"username", u.Author.Username, "blog", route.Blog, "tweet_id", u.Tweet.ID)
	}
	if route.Blog == "" {
		return nil, fmt.Errorf("no destination blog for @%s", u.Author.Username)
	}

	return &tumblr.Post{
		Blog:    route.Blog,
		Content: content,
		Tags:    route.Tags,
		Media:   media,
		Reblog:  res.Reblog,
	}, nil
}

// BuildYoutube announces a new video with a link card
func (b *Builder) BuildYoutube(u *YoutubeUpdate) (*tumblr.Post, error) {
	route, ok := b.routes.Youtube(u.ChannelID)
	if !ok {
		b.logger.Warn("no blog configured for youtube channel, using default",
			"channel_id", u.ChannelID, "blog", route.Blog, "video_id", u.VideoID)
	}
	if route.Blog == "" {
		return nil, fmt.Errorf("no destination blog for channel %s", u.ChannelID)
	}

	name := u.Author
	if name == "" {
		name = people.Unknown.Name
	}

	return &tumblr.Post{
		Blog: route.Blog,
		Content: []tumblr.Block{
			tumblr.TextBlock{Text: name + " uploaded a video!"},
			tumblr.LinkBlock{URL: u.URL, Title: u.Title},
		},
		Tags: route.Tags,
	}, nil
}
