// Package thread reconstructs the reply chain above a tweet and links it
// to posts published on earlier runs.
package thread

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/ibeckermayer/hopperbot/internal/twitter"
	"github.com/ibeckermayer/hopperbot/internal/types"
)

// Fetcher retrieves a tweet with its author.
type Fetcher interface {
	GetTweet(ctx context.Context, id int64) (types.Tweet, types.User, error)
}

// Index is the read side of the thread index.
type Index interface {
	GetThreadEntry(ctx context.Context, sourceID int64) (types.ThreadEntry, bool, error)
}

// StopReason records why the walk ended.
type StopReason int

const (
	// StopRoot means the walk reached a tweet that is not a reply.
	StopRoot StopReason = iota
	// StopIndexed means an ancestor was already published; the thread continues it.
	StopIndexed
	// StopMissingReference means a reply had no replied_to reference.
	StopMissingReference
	// StopFetchError means fetching an ancestor failed.
	StopFetchError
	// StopAPIError means the API answered with an error payload, e.g. a deleted tweet.
	StopAPIError
	// StopMissingAuthor means an ancestor came back without its author.
	StopMissingAuthor
)

func (s StopReason) String() string {
	switch s {
	case StopRoot:
		return "root"
	case StopIndexed:
		return "indexed"
	case StopMissingReference:
		return "missing_reference"
	case StopFetchError:
		return "fetch_error"
	case StopAPIError:
		return "api_error"
	case StopMissingAuthor:
		return "missing_author"
	default:
		return "unknown"
	}
}

// Truncated reports whether the walk stopped before reaching the root or
// an indexed ancestor.
func (s StopReason) Truncated() bool {
	return s != StopRoot && s != StopIndexed
}

// Resolved is the reconstructed thread, oldest tweet first.
type Resolved struct {
	AltTexts     []string            `json:"alt_texts"`
	Conversation []int64             `json:"conversation"`
	Range        types.Range         `json:"range"`
	Reblog       *types.ReblogTarget `json:"reblog,omitempty"`
	Stop         StopReason          `json:"stop"`
}

// AltText describes a tweet for screen readers
func AltText(username, text string) string {
	return "Tweet by @" + username + ": " + text
}

// Resolver walks reply chains backwards
type Resolver struct {
	fetcher Fetcher
	index   Index
	logger  *slog.Logger
}

// NewResolver creates a new Resolver
func NewResolver(fetcher Fetcher, index Index, logger *slog.Logger) *Resolver {
	return &Resolver{fetcher: fetcher, index: index, logger: logger}
}

// Resolve walks from tweet towards the root of its reply chain. It stops
// at the first ancestor found in the index, in which case the result
// continues that published thread and carries a reblog target. Remote
// failures end the walk early with the ancestors gathered so far; Resolve
// never fails.
func (r *Resolver) Resolve(ctx context.Context, tweet types.Tweet, username string) Resolved {
	logger := r.logger.With("tweet_id", tweet.ID)

	alt := []string{AltText(username, tweet.Text)}
	var conversation []int64
	stop := StopRoot

	current := tweet
walk:
	for current.IsReply() {
		conversation = append(conversation, current.InReplyToUserID)

		parentID, ok := current.RepliedTo()
		if !ok {
			logger.Error("reply has no replied_to reference", "current_id", current.ID)
			stop = StopMissingReference
			break
		}

		entry, found, err := r.index.GetThreadEntry(ctx, parentID)
		if err != nil {
			logger.Error("thread index lookup failed, continuing remotely", "parent_id", parentID, "error", err)
		}
		if found {
			slices.Reverse(alt)
			slices.Reverse(conversation)
			logger.Debug("thread continues a published post", "parent_id", parentID, "published_id", entry.PublishedID)
			return Resolved{
				AltTexts:     alt,
				Conversation: conversation,
				Range:        types.NewRange(entry.Offset, entry.Offset+len(alt)),
				Reblog:       &types.ReblogTarget{PostID: entry.PublishedID, Blog: entry.Destination},
				Stop:         StopIndexed,
			}
		}

		parent, author, err := r.fetcher.GetTweet(ctx, parentID)
		if err != nil {
			var apiErr *twitter.APIError
			switch {
			case errors.As(err, &apiErr):
				stop = StopAPIError
			case errors.Is(err, twitter.ErrMissingAuthor):
				stop = StopMissingAuthor
			default:
				stop = StopFetchError
			}
			logger.Error("failed to fetch ancestor", "parent_id", parentID, "stop", stop.String(), "error", err)
			break walk
		}

		alt = append(alt, AltText(author.Username, parent.Text))
		current = parent
	}

	slices.Reverse(alt)
	slices.Reverse(conversation)
	return Resolved{
		AltTexts:     alt,
		Conversation: conversation,
		Range:        types.NewRange(0, len(alt)),
		Stop:         stop,
	}
}
