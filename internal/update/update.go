// Package update holds the pending work items produced by listeners and
// turns them into Tumblr posts.
package update

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ibeckermayer/hopperbot/internal/thread"
	"github.com/ibeckermayer/hopperbot/internal/twitter"
	"github.com/ibeckermayer/hopperbot/internal/types"
)

// State tracks an update through the publisher.
type State int

const (
	Observed State = iota
	Resolving
	Rendering
	Publishing
	Persisted
	Failed
	Cleaned
)

var stateNames = map[State]string{
	Observed:   "observed",
	Resolving:  "resolving",
	Rendering:  "rendering",
	Publishing: "publishing",
	Persisted:  "persisted",
	Failed:     "failed",
	Cleaned:    "cleaned",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Update is a pending item from one source platform. The set of
// implementations is closed: TwitterUpdate and YoutubeUpdate.
type Update interface {
	// SourceID identifies the update in logs, e.g. the tweet id.
	SourceID() string
	// LogAttrs are the attributes every log line about the update carries.
	LogAttrs() []any
	isUpdate()
}

// TwitterUpdate is a tweet seen on the filtered stream
type TwitterUpdate struct {
	Tweet        types.Tweet      `json:"tweet"`
	Author       types.User       `json:"author"`
	MatchedRules []string         `json:"matched_rules,omitempty"`
	ObservedAt   time.Time        `json:"observed_at"`
	Resolved     *thread.Resolved `json:"resolved,omitempty"`
	Files        []string         `json:"files,omitempty"`
	State        State            `json:"state"`

	prefix string
}

// NewTwitterUpdate creates an update in the Observed state
func NewTwitterUpdate(tweet types.Tweet, author types.User, rules []string) *TwitterUpdate {
	return &TwitterUpdate{
		Tweet:        tweet,
		Author:       author,
		MatchedRules: rules,
		ObservedAt:   time.Now(),
		State:        Observed,
	}
}

func (u *TwitterUpdate) isUpdate() {}

func (u *TwitterUpdate) SourceID() string {
	return strconv.FormatInt(u.Tweet.ID, 10)
}

func (u *TwitterUpdate) LogAttrs() []any {
	return []any{"tweet_id", u.Tweet.ID, "username", u.Author.Username}
}

// URL is the tweet's public address
func (u *TwitterUpdate) URL() string {
	return twitter.StatusURL(u.Author.Username, u.Tweet.ID)
}

// FilePrefix names the rendered files of this update. It is unique per
// update so a tweet seen twice never shares files with itself.
func (u *TwitterUpdate) FilePrefix() string {
	if u.prefix == "" {
		u.prefix = fmt.Sprintf("tweet-%d-%s", u.Tweet.ID, uuid.NewString()[:8])
	}
	return u.prefix
}

// YoutubeUpdate is a new video announced by a WebSub notification
type YoutubeUpdate struct {
	VideoID    string    `json:"video_id"`
	ChannelID  string    `json:"channel_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Author     string    `json:"author"`
	Published  time.Time `json:"published"`
	ObservedAt time.Time `json:"observed_at"`
	State      State     `json:"state"`
}

func (u *YoutubeUpdate) isUpdate() {}

func (u *YoutubeUpdate) SourceID() string {
	return u.VideoID
}

func (u *YoutubeUpdate) LogAttrs() []any {
	return []any{"video_id", u.VideoID, "channel_id", u.ChannelID}
}
