package notification

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Type is the severity shown by the dashboard.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
)

// Broadcast is the UserID of notifications that are not addressed to one user.
const Broadcast = "all"

type Notification struct {
	ID           string     `json:"id" gorm:"column:id;primaryKey;size:36"`
	Title        string     `json:"title" gorm:"column:title;not null"`
	Message      string     `json:"message" gorm:"column:message"`
	Type         Type       `json:"type" gorm:"column:type;not null"`
	UserID       string     `json:"userId,omitempty" gorm:"column:user_id;index"`
	TargetRoles  []string   `json:"targetRoles,omitempty" gorm:"column:target_roles;serializer:json"`
	Sectors      []string   `json:"sector,omitempty" gorm:"column:sectors;serializer:json"`
	IsRead       bool       `json:"isRead" gorm:"column:is_read;index"`
	Link         string     `json:"link,omitempty" gorm:"column:link"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"column:created_at;index"`
	DispatchedAt *time.Time `json:"-" gorm:"column:dispatched_at;index"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

func ValidType(t Type) bool {
	return t == TypeInfo || t == TypeSuccess || t == TypeError || t == TypeWarning
}

// Viewer is the identity a notification list is filtered for.
type Viewer struct {
	UserID  string
	Role    string
	Sectors []string
}

// Visible reports whether v may see n: admins see everything, otherwise the
// notification must name the viewer, one of its roles, or one of its sectors.
// Role and sector names compare case-insensitively.
func Visible(n *Notification, v Viewer) bool {
	if strings.EqualFold(strings.TrimSpace(v.Role), "Admin") {
		return true
	}
	if v.UserID != "" && n.UserID == v.UserID {
		return true
	}
	if v.Role != "" && containsFold(n.TargetRoles, v.Role) {
		return true
	}
	for _, s := range v.Sectors {
		if containsFold(n.Sectors, s) {
			return true
		}
	}
	return false
}

func containsFold(list []string, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return false
	}
	for _, it := range list {
		if strings.EqualFold(strings.TrimSpace(it), want) {
			return true
		}
	}
	return false
}
