package services

import (
	"context"
	"fmt"

	"license-service/repository"
)

// EventDeduplicator guarantees at-most-once fulfillment per provider event id.
type EventDeduplicator interface {
	// ShouldProcess returns true exactly once per eventID; the check and the mark are one step.
	ShouldProcess(ctx context.Context, eventID string) (bool, error)
}

type eventDeduplicator struct {
	repo repository.ProcessedEventRepository
}

func NewEventDeduplicator(repo repository.ProcessedEventRepository) EventDeduplicator {
	return &eventDeduplicator{repo: repo}
}

func (d *eventDeduplicator) ShouldProcess(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, fmt.Errorf("empty event id")
	}
	first, err := d.repo.MarkIfAbsent(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("mark event %s: %w", eventID, err)
	}
	return first, nil
}
