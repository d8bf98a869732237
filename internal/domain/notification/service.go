package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"jdcportal/internal/domain/user"
)

const DefaultWindow = 100

var (
	ErrMissingID    = errors.New("notification id is required")
	ErrInvalidInput = errors.New("invalid notification")
)

// ProfileLookup resolves the role and sectors of a user for MarkAllRead.
type ProfileLookup interface {
	GetByUID(ctx context.Context, uid string) (*user.Profile, error)
}

type DeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Service struct {
	repo     *Repository
	profiles ProfileLookup
	window   int
	now      func() time.Time
}

func NewService(repo *Repository, profiles ProfileLookup, window int) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{
		repo:     repo,
		profiles: profiles,
		window:   window,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create stores n as unread with the current time and returns its id.
func (s *Service) Create(ctx context.Context, n *Notification) (string, error) {
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	if !ValidType(n.Type) {
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidInput, n.Type)
	}
	n.ID = ""
	n.IsRead = false
	n.DispatchedAt = nil
	n.CreatedAt = s.now()

	if err := s.repo.Create(ctx, n); err != nil {
		return "", err
	}
	return n.ID, nil
}

// ListFor returns up to one window of notifications visible to v, newest
// first. Pages are scanned until the window fills or the table is exhausted,
// so older matches are not lost behind notifications addressed to others.
func (s *Service) ListFor(ctx context.Context, v Viewer) ([]Notification, error) {
	out := make([]Notification, 0)
	var cursor *Cursor
	for {
		page, err := s.repo.Page(ctx, cursor, s.window)
		if err != nil {
			return nil, err
		}
		for i := range page {
			if Visible(&page[i], v) {
				out = append(out, page[i])
				if len(out) == s.window {
					return out, nil
				}
			}
		}
		if len(page) < s.window {
			return out, nil
		}
		last := page[len(page)-1]
		cursor = &Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
}

func UnreadCount(list []Notification) int {
	n := 0
	for i := range list {
		if !list[i].IsRead {
			n++
		}
	}
	return n
}

// MarkRead is idempotent: an already read notification is a no-op success.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrMissingID
	}
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.IsRead {
		return nil
	}
	_, err = s.repo.MarkRead(ctx, id)
	return err
}

// MarkAllRead marks every notification userID can see as read. Users
// without a stored profile only see notifications addressed to them.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	v := Viewer{UserID: userID}
	if s.profiles != nil {
		p, err := s.profiles.GetByUID(ctx, userID)
		switch {
		case err == nil:
			v.Role = string(p.Role)
			v.Sectors = p.Sectors
		case errors.Is(err, user.ErrNotFound):
		default:
			return 0, err
		}
	}
	return s.MarkAllReadFor(ctx, v)
}

func (s *Service) MarkAllReadFor(ctx context.Context, v Viewer) (int64, error) {
	list, err := s.ListFor(ctx, v)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(list))
	for i := range list {
		if !list[i].IsRead {
			ids = append(ids, list[i].ID)
		}
	}
	return s.repo.MarkRead(ctx, ids...)
}

// DeleteByID removes the notification without any ownership check.
func (s *Service) DeleteByID(ctx context.Context, id string) (DeleteResult, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DeleteResult{Success: false, Message: "Notification id is required"}, ErrMissingID
	}
	n, err := s.repo.Delete(ctx, id)
	if err != nil {
		log.Printf("notification delete failed id=%s err=%v", id, err)
		return DeleteResult{Success: false, Message: "Failed to delete notification"}, err
	}
	if n == 0 {
		return DeleteResult{Success: true, Message: "Notification already deleted"}, nil
	}
	return DeleteResult{Success: true, Message: "Notification deleted"}, nil
}

// NotifyAdmins creates one broadcast notification targeted to the Admin role.
func (s *Service) NotifyAdmins(ctx context.Context, t Type, title, message, link string) (string, error) {
	return s.Create(ctx, &Notification{
		Title:       title,
		Message:     message,
		Type:        t,
		UserID:      Broadcast,
		TargetRoles: []string{string(user.RoleAdmin)},
		Link:        link,
	})
}

// NotifySector creates a broadcast notification for users assigned to sector.
func (s *Service) NotifySector(ctx context.Context, sector string, t Type, title, message, link string) (string, error) {
	return s.Create(ctx, &Notification{
		Title:   title,
		Message: message,
		Type:    t,
		UserID:  Broadcast,
		Sectors: []string{sector},
		Link:    link,
	})
}
