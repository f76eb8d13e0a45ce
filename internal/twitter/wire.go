package twitter

import (
	"fmt"
	"strconv"

	"github.com/ibeckermayer/hopperbot/internal/types"
)

// Expansions and fields requested for every tweet, both when fetching and
// on the stream. The thread walk needs all of them.
const (
	tweetExpansions = "author_id,in_reply_to_user_id,referenced_tweets.id"
	tweetFields     = "author_id,conversation_id,in_reply_to_user_id,referenced_tweets,created_at"
	userFields      = "username,name"
)

// The v2 API encodes ids as decimal strings.
type wireTweet struct {
	ID               string         `json:"id"`
	Text             string         `json:"text"`
	AuthorID         string         `json:"author_id"`
	ConversationID   string         `json:"conversation_id,omitempty"`
	InReplyToUserID  string         `json:"in_reply_to_user_id,omitempty"`
	ReferencedTweets []wireRefTweet `json:"referenced_tweets,omitempty"`
}

type wireRefTweet struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type wireUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type includes struct {
	Users []wireUser `json:"users"`
}

type tweetResponse struct {
	Data     *wireTweet `json:"data"`
	Includes includes   `json:"includes"`
	Errors   []Problem  `json:"errors"`
}

// MatchingRule is a stream rule that matched a tweet.
type MatchingRule struct {
	ID  string `json:"id"`
	Tag string `json:"tag"`
}

type streamEnvelope struct {
	Data          *wireTweet     `json:"data"`
	Includes      includes       `json:"includes"`
	MatchingRules []MatchingRule `json:"matching_rules"`
	Errors        []Problem      `json:"errors"`
}

func parseID(field, s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return id, nil
}

func (w *wireTweet) toTweet() (types.Tweet, error) {
	var t types.Tweet
	var err error

	if t.ID, err = parseID("id", w.ID); err != nil {
		return types.Tweet{}, err
	}
	if t.ID == 0 {
		return types.Tweet{}, fmt.Errorf("tweet has no id")
	}
	if t.AuthorID, err = parseID("author_id", w.AuthorID); err != nil {
		return types.Tweet{}, err
	}
	if t.ConversationID, err = parseID("conversation_id", w.ConversationID); err != nil {
		return types.Tweet{}, err
	}
	if t.InReplyToUserID, err = parseID("in_reply_to_user_id", w.InReplyToUserID); err != nil {
		return types.Tweet{}, err
	}
	t.Text = w.Text

	for _, ref := range w.ReferencedTweets {
		id, err := parseID("referenced tweet id", ref.ID)
		if err != nil {
			return types.Tweet{}, err
		}
		t.ReferencedTweets = append(t.ReferencedTweets, types.Reference{Type: ref.Type, ID: id})
	}

	return t, nil
}

func (w wireUser) toUser() (types.User, error) {
	id, err := parseID("user id", w.ID)
	if err != nil {
		return types.User{}, err
	}
	return types.User{ID: id, Username: w.Username, Name: w.Name}, nil
}

// findUser returns the user with the given id from the includes.
func (inc includes) findUser(id int64) (types.User, bool) {
	for _, u := range inc.Users {
		user, err := u.toUser()
		if err != nil {
			continue
		}
		if user.ID == id {
			return user, true
		}
	}
	return types.User{}, false
}
