package scrape

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mathieu-neron/tubewatch/internal/fetch"
	"github.com/mathieu-neron/tubewatch/internal/model"
)

// FeedOrder is the category fetch/merge order. Lives come first so a video
// that also appears in the uploads feed is seen as a recording before it is
// seen as a plain upload.
var FeedOrder = []model.FeedCategory{model.FeedLives, model.FeedVideos, model.FeedShorts}

var (
	// videoIDRe matches video id pairings inside the tab JSON blob.
	videoIDRe = regexp.MustCompile(`"videoId"\s*:\s*"([A-Za-z0-9_-]{11})"`)
	// tabTitleRe pulls the first title text following a video id occurrence.
	tabTitleRe = regexp.MustCompile(`"(?:title|headline)"\s*:\s*\{[^{]{0,120}?"(?:text|simpleText)"\s*:\s*"((?:[^"\\]|\\.){1,200})"`)
)

// FetchFeeds returns, per category, the ordered item stubs discovered for a
// channel. A channel with no shorts or no past lives is a normal empty
// result. Only a failure of the uploads feed is an error; it is the one feed
// every channel has.
func (s *Scraper) FetchFeeds(ctx context.Context, channelID string, maxItems int) (map[model.FeedCategory][]model.FeedStub, error) {
	out := make(map[model.FeedCategory][]model.FeedStub, len(FeedOrder))

	for _, category := range FeedOrder {
		stubs, err := s.fetchCategory(ctx, channelID, category, maxItems)
		if err != nil {
			if category != model.FeedVideos && (errors.Is(err, fetch.ErrNotFound) || errors.Is(err, fetch.ErrForbidden)) {
				out[category] = nil
				continue
			}
			return nil, fmt.Errorf("feed %s: %w", category, err)
		}
		out[category] = stubs
	}

	return out, nil
}

func (s *Scraper) fetchCategory(ctx context.Context, channelID string, category model.FeedCategory, maxItems int) ([]model.FeedStub, error) {
	switch category {
	case model.FeedVideos:
		return s.fetchUploadsFeed(ctx, channelID, maxItems)
	case model.FeedShorts:
		return s.fetchTab(ctx, channelID, "shorts", category, maxItems)
	case model.FeedLives:
		return s.fetchTab(ctx, channelID, "streams", category, maxItems)
	default:
		return nil, fmt.Errorf("unknown feed category %q", category)
	}
}

// fetchUploadsFeed parses the channel's Atom uploads feed.
func (s *Scraper) fetchUploadsFeed(ctx context.Context, channelID string, maxItems int) ([]model.FeedStub, error) {
	body, err := s.client.Fetch(ctx, feedURL(channelID))
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse uploads feed: %w", err)
	}

	stubs := make([]model.FeedStub, 0, len(feed.Items))
	for _, entry := range feed.Items {
		videoID := videoIDFromEntry(entry)
		if videoID == "" {
			continue
		}

		published := time.Now()
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			published = *entry.UpdatedParsed
		}

		stubs = append(stubs, model.FeedStub{
			VideoID:   videoID,
			Title:     entry.Title,
			Thumbnail: thumbnailURL(videoID),
			Published: published,
			Category:  model.FeedVideos,
		})
		if len(stubs) >= maxItems {
			break
		}
	}

	return stubs, nil
}

// videoIDFromEntry prefers the yt:videoId extension and falls back to the
// watch link.
func videoIDFromEntry(entry *gofeed.Item) string {
	if ext, ok := entry.Extensions["yt"]; ok {
		if ids, ok := ext["videoId"]; ok && len(ids) > 0 {
			return ids[0].Value
		}
	}
	if i := strings.Index(entry.Link, "watch?v="); i >= 0 {
		id := entry.Link[i+len("watch?v="):]
		if j := strings.IndexAny(id, "&#"); j >= 0 {
			id = id[:j]
		}
		return id
	}
	return ""
}

// fetchTab scrapes a channel tab (shorts, streams) for video ids. The tab
// page embeds its listing as JSON; ids appear in listing order. Published
// times are not present on tab pages and stay zero — the merge keeps the
// feed-known time when the same id also appears in the uploads feed.
func (s *Scraper) fetchTab(ctx context.Context, channelID, tab string, category model.FeedCategory, maxItems int) ([]model.FeedStub, error) {
	body, err := s.client.Fetch(ctx, tabURL(channelID, tab))
	if err != nil {
		return nil, err
	}
	return ParseTabListing(body, category, maxItems), nil
}

// ParseTabListing extracts ordered, id-unique stubs from a tab document.
func ParseTabListing(body string, category model.FeedCategory, maxItems int) []model.FeedStub {
	matches := videoIDRe.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var stubs []model.FeedStub
	for _, m := range matches {
		videoID := body[m[2]:m[3]]
		if seen[videoID] {
			continue
		}
		seen[videoID] = true

		stubs = append(stubs, model.FeedStub{
			VideoID:   videoID,
			Title:     titleNear(body, m[1]),
			Thumbnail: thumbnailURL(videoID),
			Category:  category,
		})
		if len(stubs) >= maxItems {
			break
		}
	}

	return stubs
}

// titleNear looks for a title text shortly after a video id occurrence.
// Best-effort: tab layouts shuffle, and a missing title is filled in later by
// the uploads feed or the oracle.
func titleNear(body string, offset int) string {
	end := min(offset+1200, len(body))
	if m := tabTitleRe.FindStringSubmatch(body[offset:end]); m != nil {
		return unescapeJSON(m[1])
	}
	return ""
}

func unescapeJSON(s string) string {
	r := strings.NewReplacer(`\"`, `"`, `\\`, `\`, `\/`, `/`, `\n`, " ")
	return r.Replace(s)
}
