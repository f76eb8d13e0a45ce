package tumblr

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/ibeckermayer/hopperbot/internal/types"
)

// Block is one NPF content block.
type Block interface {
	blockType() string
}

// TextBlock is a paragraph of plain text
type TextBlock struct {
	Text string
}

func (TextBlock) blockType() string { return "text" }

func (b TextBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{b.blockType(), b.Text})
}

// Attribution links an image back to where it came from
type Attribution struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	AppName     string `json:"app_name,omitempty"`
	DisplayText string `json:"display_text,omitempty"`
}

// SourceAttribution attributes to the Twitter app for twitter.com and x.com
// links and uses a plain link attribution for anything else.
func SourceAttribution(link string) *Attribution {
	if isTwitterHost(link) {
		return &Attribution{Type: "app", URL: link, AppName: "Twitter", DisplayText: "View on Twitter"}
	}
	return &Attribution{Type: "link", URL: link}
}

func isTwitterHost(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host == "twitter.com" || host == "x.com" || host == "mobile.twitter.com"
}

// ImageBlock shows an uploaded image. Identifier names the multipart
// section carrying the file.
type ImageBlock struct {
	Identifier  string
	AltText     string
	Attribution *Attribution
}

func (ImageBlock) blockType() string { return "image" }

type mediaObject struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

func (b ImageBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string        `json:"type"`
		Media       []mediaObject `json:"media"`
		AltText     string        `json:"alt_text,omitempty"`
		Attribution *Attribution  `json:"attribution,omitempty"`
	}{
		Type:        b.blockType(),
		Media:       []mediaObject{{Type: "image/png", Identifier: b.Identifier}},
		AltText:     b.AltText,
		Attribution: b.Attribution,
	})
}

// LinkBlock is a link card
type LinkBlock struct {
	URL         string
	Title       string
	Description string
}

func (LinkBlock) blockType() string { return "link" }

func (b LinkBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string `json:"type"`
		URL         string `json:"url"`
		Title       string `json:"title,omitempty"`
		Description string `json:"description,omitempty"`
	}{b.blockType(), b.URL, b.Title, b.Description})
}

// Post is everything needed to publish one NPF post
type Post struct {
	Blog    string
	Content []Block
	Tags    []string
	// Media maps image block identifiers to files on disk
	Media  map[string]string
	Reblog *types.ReblogTarget
}

// Body returns the JSON body sent to the posts endpoint, without the
// reblog fields that are only known after fetching the parent post.
func (p *Post) Body() ([]byte, error) {
	return json.Marshal(p.body(nil))
}

type postBody struct {
	Content             []Block `json:"content"`
	Tags                string  `json:"tags,omitempty"`
	ParentTumblelogUUID string  `json:"parent_tumblelog_uuid,omitempty"`
	ParentPostID        string  `json:"parent_post_id,omitempty"`
	ReblogKey           string  `json:"reblog_key,omitempty"`
}

func (p *Post) body(parent *parentPost) postBody {
	b := postBody{
		Content: p.Content,
		Tags:    strings.Join(p.Tags, ","),
	}
	if b.Content == nil {
		b.Content = []Block{}
	}
	if parent != nil {
		b.ParentTumblelogUUID = parent.Blog.UUID
		b.ParentPostID = parent.ID.String()
		b.ReblogKey = parent.ReblogKey
	}
	return b
}
