package types

import "fmt"

// ReferenceRepliedTo is the reference type linking a reply to its parent tweet.
const ReferenceRepliedTo = "replied_to"

// Tweet represents a post observed on the stream or fetched from the API
type Tweet struct {
	ID               int64       `json:"id"`
	AuthorID         int64       `json:"author_id"`
	Text             string      `json:"text"`
	ConversationID   int64       `json:"conversation_id,omitempty"`
	InReplyToUserID  int64       `json:"in_reply_to_user_id,omitempty"` // 0 when not a reply
	ReferencedTweets []Reference `json:"referenced_tweets,omitempty"`
}

// Reference points from a tweet to a related tweet (reply parent, quote, retweet)
type Reference struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// User is the author data delivered through the users expansion
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// IsReply reports whether the tweet claims to reply to someone.
func (t Tweet) IsReply() bool {
	return t.InReplyToUserID != 0
}

// RepliedTo returns the id of the tweet this one replies to.
// The bool is false when no replied_to reference exists.
func (t Tweet) RepliedTo() (int64, bool) {
	for _, ref := range t.ReferencedTweets {
		if ref.Type == ReferenceRepliedTo {
			return ref.ID, true
		}
	}
	return 0, false
}

// ThreadEntry is a row of the thread index: a source tweet that has been published
type ThreadEntry struct {
	SourceID    int64  `json:"source_id"`
	Offset      int    `json:"offset"`
	PublishedID int64  `json:"published_id"`
	Destination string `json:"destination"`
}

// ReblogTarget identifies an existing post on the destination platform
type ReblogTarget struct {
	PostID int64  `json:"post_id"`
	Blog   string `json:"blog"`
}

// Range is a half-open integer range [Start, Stop) walked in Step increments.
type Range struct {
	Start int `json:"start"`
	Stop  int `json:"stop"`
	Step  int `json:"step"`
}

// NewRange returns [start, stop) with step 1.
func NewRange(start, stop int) Range {
	return Range{Start: start, Stop: stop, Step: 1}
}

// Len returns the number of indices in the range. Ranges with a
// non-positive step are treated as empty.
func (r Range) Len() int {
	if r.Step <= 0 || r.Stop <= r.Start {
		return 0
	}
	return (r.Stop - r.Start + r.Step - 1) / r.Step
}

// Indices returns every index of the range in ascending order.
func (r Range) Indices() []int {
	n := r.Len()
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.Start+i*r.Step)
	}
	return out
}

func (r Range) String() string {
	if r.Step == 1 {
		return fmt.Sprintf("range(%d, %d)", r.Start, r.Stop)
	}
	return fmt.Sprintf("range(%d, %d, %d)", r.Start, r.Stop, r.Step)
}
