package handler

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/tubewatch/internal/middleware"
	"github.com/mathieu-neron/tubewatch/internal/model"
	"github.com/mathieu-neron/tubewatch/internal/service"
	"github.com/mathieu-neron/tubewatch/pkg/hash"
)

const rssItemLimit = 50

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	GUID    string `xml:"guid"`
	PubDate string `xml:"pubDate"`
}

type RSSHandler struct {
	svc *service.EventService
}

func NewRSSHandler(svc *service.EventService) *RSSHandler {
	return &RSSHandler{svc: svc}
}

// Feed handles GET /feed.rss: recent lifecycle events rendered as RSS 2.0,
// with a content-derived ETag so feed readers can poll cheaply.
func (h *RSSHandler) Feed(c fiber.Ctx) error {
	events, err := h.svc.Recent(c.Context(), rssItemLimit)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render feed")
	}

	feed := rssFeed{
		Version: "2.0",
		Channel: rssChannel{
			Title:       "tubewatch events",
			Link:        "https://www.youtube.com",
			Description: "Detected channel activity",
			Items:       make([]rssItem, 0, len(events)),
		},
	}
	for _, ev := range events {
		feed.Channel.Items = append(feed.Channel.Items, rssItem{
			Title:   eventTitle(ev),
			Link:    "https://www.youtube.com/watch?v=" + ev.VideoID,
			GUID:    fmt.Sprintf("%s-%d", ev.VideoID, ev.ID),
			PubDate: ev.CreatedAt.Format(time.RFC1123Z),
		})
	}

	body, err := xml.Marshal(feed)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render feed")
	}
	body = append([]byte(xml.Header), body...)

	etag := hash.ETag(body)
	if c.Get("If-None-Match") == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}

	c.Set("ETag", etag)
	c.Set("Content-Type", "application/rss+xml; charset=utf-8")
	return c.Send(body)
}

func eventTitle(ev model.Event) string {
	title := ""
	if ev.Payload != nil {
		if t, ok := ev.Payload["title"].(string); ok {
			title = t
		}
	}

	switch ev.Kind {
	case model.EventLiveStarted:
		return "Live now: " + title
	case model.EventLiveEnded:
		return "Stream ended: " + title
	case model.EventScheduled:
		return "Scheduled: " + title
	case model.EventVideoUpdated:
		return "Updated: " + updatedTitle(ev, title)
	default:
		return "New video: " + title
	}
}

// updatedTitle digs the after-title out of a video_updated payload.
func updatedTitle(ev model.Event, fallback string) string {
	after, ok := ev.Payload["after"].(map[string]any)
	if !ok {
		return fallback
	}
	if t, ok := after["title"].(string); ok {
		return t
	}
	return fallback
}
