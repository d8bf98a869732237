package notification

import (
	"context"
	"log"
	"time"
)

// CleanupService prunes notifications past their retention period.
type CleanupService struct {
	repo      *Repository
	retention time.Duration
	now       func() time.Time
}

func NewCleanupService(repo *Repository, retention time.Duration) *CleanupService {
	return &CleanupService{
		repo:      repo,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (c *CleanupService) CleanupOldNotifications(ctx context.Context) (int64, error) {
	if c.retention <= 0 {
		return 0, nil
	}
	startTime := time.Now()

	deleted, err := c.repo.DeleteOlderThan(ctx, c.now().Add(-c.retention))
	if err != nil {
		log.Printf("Error cleaning up old notifications: %v", err)
		return 0, err
	}

	log.Printf("Cleanup completed: deleted %d old notifications in %v", deleted, time.Since(startTime))
	return deleted, nil
}
