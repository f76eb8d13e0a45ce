package config

import (
	"sort"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
)

// Route is the destination for a single source account
type Route struct {
	Blog string
	Tags []string
}

// Routes maps source accounts to destination blogs. It is built once from
// the [[update]] blocks and only read afterwards.
type Routes struct {
	Default string
	twitter map[string]Route
	youtube map[string]Route
}

// NewRoutes builds the routing table from the configured update blocks.
// Twitter usernames are matched case-insensitively; later blocks win on
// duplicate usernames.
func NewRoutes(defaultBlog string, updates []UpdateConfig) *Routes {
	r := &Routes{
		Default: defaultBlog,
		twitter: make(map[string]Route),
		youtube: make(map[string]Route),
	}

	for _, u := range updates {
		route := Route{Blog: u.Blogname, Tags: u.Tags}
		for _, tw := range u.Twitter {
			if tw.Username == "" {
				continue
			}
			r.twitter[foldUsername(tw.Username)] = route
		}
		for _, yt := range u.Youtube {
			if yt.ChannelID == "" {
				continue
			}
			r.youtube[yt.ChannelID] = route
		}
	}

	return r
}

// Routes returns the routing table for this config
func (c *Config) Routes() *Routes {
	return NewRoutes(c.DefaultBlog, c.Updates)
}

// Twitter looks up the route for a username. The bool is false when the
// username is unmapped and the default blog was returned instead.
func (r *Routes) Twitter(username string) (Route, bool) {
	if route, ok := r.twitter[foldUsername(username)]; ok {
		return route, true
	}
	return Route{Blog: r.Default}, false
}

// Youtube looks up the route for a channel id, falling back to the default blog.
func (r *Routes) Youtube(channelID string) (Route, bool) {
	if route, ok := r.youtube[channelID]; ok {
		return route, true
	}
	return Route{Blog: r.Default}, false
}

// TwitterUsernames returns the folded usernames in sorted order; these scope the stream subscription.
func (r *Routes) TwitterUsernames() []string {
	names := lo.Keys(r.twitter)
	sort.Strings(names)
	return names
}

// TwitterBlogs returns the username → blog mapping
func (r *Routes) TwitterBlogs() map[string]string {
	return lo.MapValues(r.twitter, func(route Route, _ string) string {
		return route.Blog
	})
}

// YoutubeChannels returns the configured channel ids in sorted order.
func (r *Routes) YoutubeChannels() []string {
	ids := lo.Keys(r.youtube)
	sort.Strings(ids)
	return ids
}

// foldUsername case-folds a username. A Caser carries state, so each call gets its own.
func foldUsername(username string) string {
	return cases.Fold().String(username)
}
