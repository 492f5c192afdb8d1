package scrape

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/mathieu-neron/tubewatch/internal/fetch"
	"github.com/mathieu-neron/tubewatch/internal/model"
)

// adjacencyWindow is how far apart (in bytes) an item id and its owning
// channel id may sit and still count as a pairing.
const adjacencyWindow = 800

var channelTokenRe = regexp.MustCompile(`UC[A-Za-z0-9_-]{22}`)

// LiveProbe checks the channel's live view for a broadcast that is live right
// now. Absence of a live broadcast and inability to resolve the owning item
// are not distinguished: both return (nil, nil).
func (s *Scraper) LiveProbe(ctx context.Context, channelID string) (*model.LiveRef, error) {
	body, err := s.client.Fetch(ctx, tabURL(channelID, "live"))
	if err != nil {
		if errors.Is(err, fetch.ErrNotFound) || errors.Is(err, fetch.ErrForbidden) {
			return nil, nil
		}
		return nil, err
	}

	if !isLiveNowRe.MatchString(body) {
		return nil, nil
	}

	videoID := LocateOwnedVideo(body, channelID)
	if videoID == "" {
		return nil, nil
	}

	return &model.LiveRef{
		VideoID:   videoID,
		Title:     pageTitle(body),
		Thumbnail: thumbnailURL(videoID),
	}, nil
}

// LocateOwnedVideo resolves which video id among the pairings in the document
// belongs to the given channel. The document can reference cross-promoted
// content from other channels, so the first pairing found is not good enough;
// the match must carry the target channel id. Fallback chain:
//
//  1. a video id whose following window names the target channel (and no
//     other channel first),
//  2. the symmetric case with the channel id first,
//  3. the video id positionally closest to the first exact occurrence of the
//     target channel id.
func LocateOwnedVideo(body, channelID string) string {
	videoMatches := videoIDRe.FindAllStringSubmatchIndex(body, -1)
	if len(videoMatches) == 0 {
		return ""
	}

	// (1) video id followed closely by the owning channel id.
	for _, m := range videoMatches {
		window := body[m[1]:min(m[1]+adjacencyWindow, len(body))]
		if tok := channelTokenRe.FindString(window); tok == channelID {
			return body[m[2]:m[3]]
		}
	}

	// (2) channel id followed closely by a video id.
	for pos := 0; ; {
		i := strings.Index(body[pos:], channelID)
		if i < 0 {
			break
		}
		start := pos + i + len(channelID)
		window := body[start:min(start+adjacencyWindow, len(body))]
		if m := videoIDRe.FindStringSubmatch(window); m != nil {
			return m[1]
		}
		pos = start
	}

	// (3) nearest video id to the first exact occurrence of the channel id.
	anchor := strings.Index(body, channelID)
	if anchor < 0 {
		return ""
	}
	best := ""
	bestDist := len(body)
	for _, m := range videoMatches {
		dist := m[2] - anchor
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist {
			bestDist = dist
			best = body[m[2]:m[3]]
		}
	}
	return best
}

var pageTitleRe = regexp.MustCompile(`<meta\s+name="title"\s+content="([^"]*)"`)

func pageTitle(body string) string {
	if m := pageTitleRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}
