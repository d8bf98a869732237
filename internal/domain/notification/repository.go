package notification

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Cursor marks the last row of a page in (created_at, id) descending order.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, n *Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Notification, error) {
	var n Notification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Page returns up to limit notifications, newest first, strictly older than after.
func (r *Repository) Page(ctx context.Context, after *Cursor, limit int) ([]Notification, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit)
	if after != nil {
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var out []Notification
	err := q.Find(&out).Error
	return out, err
}

func (r *Repository) MarkRead(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id IN ? AND is_read = ?", ids, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *Repository) Delete(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Notification{})
	return res.RowsAffected, res.Error
}

// ListUndispatched returns the oldest notifications not yet published.
func (r *Repository) ListUndispatched(ctx context.Context, limit int) ([]Notification, error) {
	var out []Notification
	err := r.db.WithContext(ctx).
		Where("dispatched_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *Repository) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ? AND dispatched_at IS NULL", id).
		Update("dispatched_at", at).Error
}

func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&Notification{})
	return res.RowsAffected, res.Error
}
