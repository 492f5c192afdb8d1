package service

import (
	"context"
	"time"

	"github.com/mathieu-neron/tubewatch/internal/model"
	"github.com/mathieu-neron/tubewatch/internal/repository"
)

const defaultEventLimit = 100

type EventService struct {
	store *repository.Store
}

func NewEventService(store *repository.Store) *EventService {
	return &EventService{store: store}
}

// Recent returns the newest events first. limit <= 0 falls back to the
// default page size.
func (s *EventService) Recent(ctx context.Context, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	events, err := s.store.ListRecentEvents(ctx, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// Delta returns all events recorded after the given timestamp, oldest first,
// plus a server timestamp the client hands back on its next call.
func (s *EventService) Delta(ctx context.Context, since time.Time) (*model.EventsDeltaResponse, error) {
	events, err := s.store.ListEventsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}

	return &model.EventsDeltaResponse{
		Events:        events,
		SyncTimestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}
