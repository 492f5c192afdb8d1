package model

import "time"

// VideoType classifies what kind of item a video id refers to.
type VideoType string

const (
	TypeVideo     VideoType = "video"
	TypeShort     VideoType = "short"
	TypeLive      VideoType = "live"
	TypeScheduled VideoType = "scheduled"
	TypeRecording VideoType = "recording"
)

// Item is a video, live broadcast, or scheduled broadcast belonging to a channel.
//
// IsLiveNow, WasLive and IsUpcoming are the raw signals the last check observed;
// Type is derived from them. Bookmarked is user-owned and never touched by the
// monitor.
type Item struct {
	VideoID        string     `json:"videoId"`
	ChannelID      string     `json:"channelId"`
	Title          string     `json:"title"`
	Thumbnail      string     `json:"thumbnail,omitempty"`
	Published      time.Time  `json:"published"`
	Type           VideoType  `json:"type"`
	Duration       *int       `json:"duration,omitempty"`
	ScheduledStart *time.Time `json:"scheduledStart,omitempty"`
	IsLiveNow      bool       `json:"isLiveNow"`
	WasLive        bool       `json:"wasLive"`
	IsUpcoming     bool       `json:"isUpcoming"`
	Bookmarked     bool       `json:"bookmarked"`
	FirstSeen      time.Time  `json:"firstSeen"`
	LastUpdated    time.Time  `json:"lastUpdated"`
}

// Signals is the transient four-tuple the classification oracle resolves for a
// single video. Absent fields mean the page did not carry the signal, not an
// error.
type Signals struct {
	IsLiveNow      bool
	IsUpcoming     bool
	WasLive        bool
	Duration       *int
	ScheduledStart *time.Time
}

// LiveRef identifies a channel's currently live broadcast as resolved by the
// live probe.
type LiveRef struct {
	VideoID   string
	Title     string
	Thumbnail string
}

// BookmarkRequest is the body for POST/DELETE /api/bookmarks.
type BookmarkRequest struct {
	VideoID string `json:"videoId"`
}
