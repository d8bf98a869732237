package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"jdcportal/internal/events"
)

const dispatchBatch = 200

// CreatedEvent is the message published for every new notification.
type CreatedEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Type        Type      `json:"type"`
	UserID      string    `json:"userId,omitempty"`
	TargetRoles []string  `json:"targetRoles,omitempty"`
	Sectors     []string  `json:"sector,omitempty"`
	Link        string    `json:"link,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Dispatcher publishes stored notifications to the broker exactly once per row
// that publishes successfully; failed rows stay pending for the next run.
type Dispatcher struct {
	repo      *Repository
	publisher events.Publisher
	now       func() time.Time
}

func NewDispatcher(repo *Repository, publisher events.Publisher) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context) (int, error) {
	pending, err := d.repo.ListUndispatched(ctx, dispatchBatch)
	if err != nil {
		return 0, err
	}

	sent := 0
	var firstErr error
	for i := range pending {
		n := &pending[i]
		ev := CreatedEvent{
			ID:          n.ID,
			Title:       n.Title,
			Message:     n.Message,
			Type:        n.Type,
			UserID:      n.UserID,
			TargetRoles: n.TargetRoles,
			Sectors:     n.Sectors,
			Link:        n.Link,
			CreatedAt:   n.CreatedAt,
		}
		if err := d.publisher.Publish(ctx, events.QueueNotificationCreated, ev); err != nil {
			log.Printf("notification dispatch failed id=%s err=%v", n.ID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := d.repo.MarkDispatched(ctx, n.ID, d.now()); err != nil {
			return sent, err
		}
		sent++
	}

	if firstErr != nil {
		return sent, fmt.Errorf("dispatched %d of %d: %w", sent, len(pending), firstErr)
	}
	return sent, nil
}
