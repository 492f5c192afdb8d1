package model

import "time"

// Channel represents a monitored YouTube channel.
type Channel struct {
	ChannelID   string    `json:"channelId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Active      bool      `json:"active"`
	CheckedAt   time.Time `json:"checkedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ChannelResponse is the API response for channel lookups.
type ChannelResponse struct {
	ChannelID   string `json:"channelId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Active      bool   `json:"active"`
	ItemCount   int    `json:"itemCount"`
	CheckedAt   string `json:"checkedAt"`
}

// SubscribeRequest is the body for POST /api/channels.
type SubscribeRequest struct {
	ChannelID string `json:"channelId"`
}
