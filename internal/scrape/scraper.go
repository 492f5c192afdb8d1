// Package scrape turns YouTube's public surfaces (Atom feeds, channel tabs,
// watch pages) into the typed signals the monitor consumes.
package scrape

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mathieu-neron/tubewatch/internal/model"
)

const baseURL = "https://www.youtube.com"

// fetcher is the slice of the fetch client the scraper needs.
type fetcher interface {
	Fetch(ctx context.Context, addr string) (string, error)
}

// Scraper resolves channels, feeds, per-item signals and the live probe.
type Scraper struct {
	client fetcher
}

func New(client fetcher) *Scraper {
	return &Scraper{client: client}
}

func feedURL(channelID string) string {
	return baseURL + "/feeds/videos.xml?channel_id=" + channelID
}

func tabURL(channelID, tab string) string {
	return baseURL + "/channel/" + channelID + "/" + tab
}

func watchURL(videoID string) string {
	return baseURL + "/watch?v=" + videoID
}

// FetchChannel looks up a channel's metadata from its channel page.
func (s *Scraper) FetchChannel(ctx context.Context, channelID string) (*model.Channel, error) {
	body, err := s.client.Fetch(ctx, baseURL+"/channel/"+channelID)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse channel page: %w", err)
	}

	ch := &model.Channel{
		ChannelID:   channelID,
		Title:       metaContent(doc, "og:title"),
		Description: metaContent(doc, "og:description"),
		Thumbnail:   metaContent(doc, "og:image"),
		Active:      true,
	}
	if ch.Title == "" {
		return nil, fmt.Errorf("channel %s: page carries no metadata", channelID)
	}
	return ch, nil
}

func metaContent(doc *goquery.Document, property string) string {
	content, _ := doc.Find(`meta[property="` + property + `"]`).Attr("content")
	return strings.TrimSpace(content)
}

func thumbnailURL(videoID string) string {
	return "https://i.ytimg.com/vi/" + videoID + "/hqdefault.jpg"
}
