package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mathieu-neron/tubewatch/internal/model"
	"github.com/mathieu-neron/tubewatch/internal/repository"
)

// MetadataFetcher resolves channel metadata from the channel page.
type MetadataFetcher interface {
	FetchChannel(ctx context.Context, channelID string) (*model.Channel, error)
}

type ChannelService struct {
	store   *repository.Store
	fetcher MetadataFetcher
	cache   *CacheService
}

func NewChannelService(store *repository.Store, fetcher MetadataFetcher, cache *CacheService) *ChannelService {
	return &ChannelService{store: store, fetcher: fetcher, cache: cache}
}

// Subscribe registers a channel for monitoring. Metadata is scraped up front
// so the subscription response already carries title and thumbnail; a scrape
// failure still registers the channel and lets the next poll fill it in.
func (s *ChannelService) Subscribe(ctx context.Context, channelID string) (*model.Channel, error) {
	ch := model.Channel{ChannelID: channelID, Active: true}

	if meta, err := s.fetcher.FetchChannel(ctx, channelID); err != nil {
		log.Printf("subscribe: metadata fetch for %s failed: %v", channelID, err)
	} else if meta != nil {
		ch.Title = meta.Title
		ch.Description = meta.Description
		ch.Thumbnail = meta.Thumbnail
	}

	_, curr, err := s.store.UpsertChannel(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", channelID, err)
	}

	s.invalidate(ctx, channelID)
	return curr, nil
}

// Lookup returns the channel response for a given channel ID. Uses
// cache-aside: check Redis first, fall back to DB, then populate cache.
// Returns (nil, nil) when the channel is unknown.
func (s *ChannelService) Lookup(ctx context.Context, channelID string) (*model.ChannelResponse, error) {
	if s.cache != nil {
		cached, err := s.cache.GetChannel(ctx, channelID)
		if err != nil {
			log.Printf("cache: channel get error: %v", err)
		} else if cached != nil {
			var resp model.ChannelResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				return &resp, nil
			}
		}
	}

	ch, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, nil
	}

	items, err := s.store.ListItemsByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	resp := &model.ChannelResponse{
		ChannelID:   ch.ChannelID,
		Title:       ch.Title,
		Description: ch.Description,
		Thumbnail:   ch.Thumbnail,
		Active:      ch.Active,
		ItemCount:   len(items),
		CheckedAt:   ch.CheckedAt.Format(time.RFC3339),
	}

	if s.cache != nil {
		if err := s.cache.SetChannel(ctx, channelID, resp); err != nil {
			log.Printf("cache: channel set error: %v", err)
		}
	}

	return resp, nil
}

// List returns all subscribed channels, active or paused.
func (s *ChannelService) List(ctx context.Context) ([]model.Channel, error) {
	channels, err := s.store.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []model.Channel{}
	}
	return channels, nil
}

// Unsubscribe removes the channel, its items and its events.
func (s *ChannelService) Unsubscribe(ctx context.Context, channelID string) error {
	if err := s.store.DeleteChannel(ctx, channelID); err != nil {
		return err
	}
	s.invalidate(ctx, channelID)
	return nil
}

// SetActive pauses or resumes monitoring for the channel.
func (s *ChannelService) SetActive(ctx context.Context, channelID string, active bool) error {
	if err := s.store.SetChannelActive(ctx, channelID, active); err != nil {
		return err
	}
	s.invalidate(ctx, channelID)
	return nil
}

func (s *ChannelService) invalidate(ctx context.Context, channelID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateChannel(ctx, channelID); err != nil {
		log.Printf("cache: channel invalidate error: %v", err)
	}
}
