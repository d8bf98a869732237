package ticket

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"jdcportal/internal/database"
)

var ErrDuplicateMessage = errors.New("ticket already ingested")

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Ticket is an SAP support request ingested from the mailbox.
type Ticket struct {
	ID         string    `json:"id" gorm:"column:id;primaryKey;size:36"`
	MessageID  string    `json:"messageId" gorm:"column:message_id;uniqueIndex;not null"`
	Sector     string    `json:"sector" gorm:"column:sector;index"`
	Subject    string    `json:"subject" gorm:"column:subject"`
	From       string    `json:"from" gorm:"column:sender"`
	Snippet    string    `json:"snippet" gorm:"column:snippet"`
	ReceivedAt time.Time `json:"receivedAt" gorm:"column:received_at;index"`
	Status     Status    `json:"status" gorm:"column:status;not null;default:open"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (Ticket) TableName() string {
	return "sap_tickets"
}

func (t *Ticket) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	return nil
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create returns ErrDuplicateMessage when another runner stored the same
// Gmail message first.
func (r *Repository) Create(ctx context.Context, t *Ticket) error {
	err := r.db.WithContext(ctx).Create(t).Error
	if database.IsUniqueViolation(err) {
		return ErrDuplicateMessage
	}
	return err
}

func (r *Repository) ExistsByMessageID(ctx context.Context, messageID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Ticket{}).Where("message_id = ?", messageID).Count(&n).Error
	return n > 0, err
}

// ListBySector returns tickets newest first; an empty sector lists all.
func (r *Repository) ListBySector(ctx context.Context, sector string) ([]Ticket, error) {
	q := r.db.WithContext(ctx).Order("received_at DESC")
	if sector != "" {
		q = q.Where("LOWER(sector) = LOWER(?)", sector)
	}
	var out []Ticket
	err := q.Find(&out).Error
	return out, err
}
