// Package tumblr publishes NPF posts through the Tumblr API v2.
package tumblr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dghubble/oauth1"

	"github.com/ibeckermayer/hopperbot/internal/config"
)

// APIError is a non-2xx response from Tumblr
type APIError struct {
	Status int
	Msg    string
	Errors []Problem
}

// Problem is one entry of the "errors" array
type Problem struct {
	Title  string `json:"title"`
	Code   int    `json:"code"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("tumblr API error (status %d): %s", e.Status, e.Msg)
	for _, p := range e.Errors {
		if p.Detail != "" {
			msg += "; " + p.Detail
		}
	}
	return msg
}

// ID is a post id. The API returns ids as numbers in some places and as
// strings in others.
type ID int64

func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post id %s: %w", data, err)
	}
	*id = ID(n)
	return nil
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

type envelope struct {
	Meta struct {
		Status int    `json:"status"`
		Msg    string `json:"msg"`
	} `json:"meta"`
	Response json.RawMessage `json:"response"`
	Errors   []Problem       `json:"errors"`
}

type createdPost struct {
	ID       ID     `json:"id"`
	IDString string `json:"id_string"`
}

type parentPost struct {
	ID        ID     `json:"id"`
	ReblogKey string `json:"reblog_key"`
	Blog      struct {
		UUID string `json:"uuid"`
		Name string `json:"name"`
	} `json:"blog"`
}

// Client handles all Tumblr API operations
type Client struct {
	base       string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client signing requests with the configured OAuth1 credentials
func New(cfg config.TumblrConfig, logger *slog.Logger) *Client {
	oauthConfig := oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret)
	token := oauth1.NewToken(cfg.OAuthToken, cfg.OAuthSecret)

	return &Client{
		base:       strings.TrimRight(cfg.APIBase, "/"),
		httpClient: oauthConfig.Client(oauth1.NoContext, token),
		logger:     logger,
	}
}

// Publish creates the post, as a reblog when it has a reblog target.
// Returns the id of the new post.
func (c *Client) Publish(ctx context.Context, post *Post) (int64, error) {
	if post.Reblog != nil {
		return c.ReblogPost(ctx, post)
	}
	return c.CreatePost(ctx, post)
}

// CreatePost publishes a new top-level post
func (c *Client) CreatePost(ctx context.Context, post *Post) (int64, error) {
	id, err := c.submit(ctx, post, nil)
	if err != nil {
		return 0, fmt.Errorf("create post on %s: %w", post.Blog, err)
	}
	return id, nil
}

// ReblogPost publishes post as a reblog of post.Reblog. The parent is
// fetched first for its reblog key and blog uuid.
func (c *Client) ReblogPost(ctx context.Context, post *Post) (int64, error) {
	if post.Reblog == nil {
		return 0, fmt.Errorf("reblog post on %s: no reblog target", post.Blog)
	}

	parent, err := c.getPost(ctx, post.Reblog.Blog, post.Reblog.PostID)
	if err != nil {
		return 0, fmt.Errorf("reblog post on %s: %w", post.Blog, err)
	}

	id, err := c.submit(ctx, post, parent)
	if err != nil {
		return 0, fmt.Errorf("reblog post on %s: %w", post.Blog, err)
	}
	return id, nil
}

func (c *Client) getPost(ctx context.Context, blog string, id int64) (*parentPost, error) {
	u := fmt.Sprintf("%s/blog/%s/posts/%d", c.base, url.PathEscape(blog), id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var parent parentPost
	if err := c.do(req, &parent); err != nil {
		return nil, fmt.Errorf("get post %d on %s: %w", id, blog, err)
	}
	if parent.ReblogKey == "" {
		return nil, fmt.Errorf("get post %d on %s: response has no reblog key", id, blog)
	}
	if parent.ID == 0 {
		parent.ID = ID(id)
	}
	return &parent, nil
}

func (c *Client) submit(ctx context.Context, post *Post, parent *parentPost) (int64, error) {
	jsonBody, err := json.Marshal(post.body(parent))
	if err != nil {
		return 0, fmt.Errorf("marshal post: %w", err)
	}

	var body io.Reader
	contentType := "application/json"
	if len(post.Media) > 0 {
		var buf bytes.Buffer
		contentType, err = writeMultipart(&buf, jsonBody, post.Media)
		if err != nil {
			return 0, err
		}
		body = &buf
	} else {
		body = bytes.NewReader(jsonBody)
	}

	u := fmt.Sprintf("%s/blog/%s/posts", c.base, url.PathEscape(post.Blog))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	var created createdPost
	if err := c.do(req, &created); err != nil {
		return 0, err
	}

	id := created.ID
	if id == 0 && created.IDString != "" {
		if err := id.UnmarshalJSON([]byte(created.IDString)); err != nil {
			return 0, err
		}
	}
	if id == 0 {
		return 0, fmt.Errorf("response has no post id")
	}

	c.logger.Debug("tumblr post created", "blog", post.Blog, "post_id", int64(id), "reblog", parent != nil)
	return int64(id), nil
}

// writeMultipart writes the NPF json part followed by one part per media
// identifier, in identifier order.
func writeMultipart(buf *bytes.Buffer, jsonBody []byte, media map[string]string) (string, error) {
	w := multipart.NewWriter(buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="json"`)
	h.Set("Content-Type", "application/json")
	part, err := w.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("create json part: %w", err)
	}
	if _, err := part.Write(jsonBody); err != nil {
		return "", fmt.Errorf("write json part: %w", err)
	}

	identifiers := make([]string, 0, len(media))
	for id := range media {
		identifiers = append(identifiers, id)
	}
	sort.Strings(identifiers)

	for _, id := range identifiers {
		path := media[id]
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read media %s: %w", id, err)
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, id, filepath.Base(path)))
		h.Set("Content-Type", "image/png")
		part, err := w.CreatePart(h)
		if err != nil {
			return "", fmt.Errorf("create media part %s: %w", id, err)
		}
		if _, err := part.Write(data); err != nil {
			return "", fmt.Errorf("write media part %s: %w", id, err)
		}
	}

	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}
	return w.FormDataContentType(), nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Msg: env.Meta.Msg, Errors: env.Errors}
		if decodeErr != nil || apiErr.Msg == "" {
			apiErr.Msg = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}

	if out != nil && len(env.Response) > 0 {
		if err := json.Unmarshal(env.Response, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
