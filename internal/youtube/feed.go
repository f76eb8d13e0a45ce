// Package youtube receives new-video notifications from a WebSub hub.
package youtube

import (
	"fmt"
	"io"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ibeckermayer/hopperbot/internal/update"
)

// TopicURL is the feed a hub is subscribed to for one channel
func TopicURL(channelID string) string {
	return "https://www.youtube.com/xml/feeds/videos.xml?channel_id=" + channelID
}

// WatchURL is the public address of a video
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ParseNotification turns an Atom notification into updates, one per entry.
// Entries without a video id are skipped; deletions carry no entries at all.
func ParseNotification(parser *gofeed.Parser, body io.Reader) ([]*update.YoutubeUpdate, error) {
	feed, err := parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse notification: %w", err)
	}

	now := time.Now()
	var updates []*update.YoutubeUpdate
	for _, item := range feed.Items {
		videoID := extension(item, "videoId")
		if videoID == "" {
			continue
		}

		u := &update.YoutubeUpdate{
			VideoID:    videoID,
			ChannelID:  extension(item, "channelId"),
			Title:      item.Title,
			URL:        item.Link,
			ObservedAt: now,
			State:      update.Observed,
		}
		if u.URL == "" {
			u.URL = WatchURL(videoID)
		}
		if len(item.Authors) > 0 && item.Authors[0] != nil {
			u.Author = item.Authors[0].Name
		} else if feed.Title != "" {
			u.Author = feed.Title
		}
		if item.PublishedParsed != nil {
			u.Published = item.PublishedParsed.UTC()
		}
		updates = append(updates, u)
	}

	return updates, nil
}

// extension reads a yt: element of an entry
func extension(item *gofeed.Item, name string) string {
	values := item.Extensions["yt"][name]
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}
