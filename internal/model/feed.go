package model

import "time"

// FeedCategory is one of the discovery lists a channel exposes.
type FeedCategory string

const (
	FeedVideos FeedCategory = "videos"
	FeedShorts FeedCategory = "shorts"
	FeedLives  FeedCategory = "lives"
)

// FeedStub is a single entry discovered in one feed category, before
// classification and dedup.
type FeedStub struct {
	VideoID   string
	Title     string
	Thumbnail string
	Published time.Time
	Category  FeedCategory
}
