package scrape

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/mathieu-neron/tubewatch/internal/model"
)

var (
	isLiveNowRe      = regexp.MustCompile(`"isLiveNow"\s*:\s*true`)
	isUpcomingRe     = regexp.MustCompile(`"isUpcoming"\s*:\s*true`)
	isLiveContentRe  = regexp.MustCompile(`"isLiveContent"\s*:\s*true`)
	lengthSecondsRe  = regexp.MustCompile(`"lengthSeconds"\s*:\s*"(\d+)"`)
	scheduledStartRe = regexp.MustCompile(`"scheduledStartTime"\s*:\s*"(\d+)"`)
)

// Resolve fetches a video's watch page and extracts its classification
// signals. A signal the page does not carry is simply absent; that degrades
// classification to a feed-hint default rather than failing the item.
func (s *Scraper) Resolve(ctx context.Context, videoID string) (model.Signals, error) {
	body, err := s.client.Fetch(ctx, watchURL(videoID))
	if err != nil {
		return model.Signals{}, err
	}
	return ParseSignals(body), nil
}

// ParseSignals extracts the signal tuple from a watch-page document.
func ParseSignals(body string) model.Signals {
	sig := model.Signals{
		IsLiveNow:  isLiveNowRe.MatchString(body),
		IsUpcoming: isUpcomingRe.MatchString(body),
	}

	// A live-content page that is neither live nor upcoming is a past
	// broadcast.
	if isLiveContentRe.MatchString(body) && !sig.IsLiveNow && !sig.IsUpcoming {
		sig.WasLive = true
	}

	if m := lengthSecondsRe.FindStringSubmatch(body); m != nil {
		if seconds, err := strconv.Atoi(m[1]); err == nil && seconds > 0 {
			sig.Duration = &seconds
		}
	}

	if m := scheduledStartRe.FindStringSubmatch(body); m != nil {
		if unix, err := strconv.ParseInt(m[1], 10, 64); err == nil && unix > 0 {
			start := time.Unix(unix, 0).UTC()
			sig.ScheduledStart = &start
		}
	}

	return sig
}
