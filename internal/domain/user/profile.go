package user

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleTechnician Role = "Technician"
	RoleLogistics  Role = "Logistics"
	RoleClient     Role = "Client"
	RoleOther      Role = "Other"
)

// ProcessorKind names the Google integration a profile lends its credentials to.
type ProcessorKind string

const (
	ProcessorSheets ProcessorKind = "sheets"
	ProcessorGmail  ProcessorKind = "gmail"
)

// Profile is the stored user record, keyed by the Google account uid.
type Profile struct {
	UID                   string    `json:"uid" gorm:"column:uid;primaryKey;size:128"`
	Email                 string    `json:"email" gorm:"column:email;index"`
	DisplayName           string    `json:"displayName" gorm:"column:display_name"`
	Role                  Role      `json:"role" gorm:"column:role;index"`
	Sectors               []string  `json:"sectors" gorm:"column:sectors;serializer:json"`
	EncryptedRefreshToken string    `json:"-" gorm:"column:encrypted_refresh_token"`
	IsSheetsProcessor     bool      `json:"isSheetsProcessor" gorm:"column:is_sheets_processor"`
	IsGmailProcessor      bool      `json:"isGmailProcessor" gorm:"column:is_gmail_processor"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func (Profile) TableName() string {
	return "user_profiles"
}

func (p *Profile) IsAdmin() bool {
	return IsAdmin(string(p.Role))
}

// IsAdmin compares case-insensitively; stored roles keep their original casing.
func IsAdmin(role string) bool {
	return strings.EqualFold(strings.TrimSpace(role), string(RoleAdmin))
}

// ParseRole maps free text onto a known role, defaulting to Other.
func ParseRole(raw string) (Role, bool) {
	for _, r := range []Role{RoleAdmin, RoleTechnician, RoleLogistics, RoleClient, RoleOther} {
		if strings.EqualFold(strings.TrimSpace(raw), string(r)) {
			return r, true
		}
	}
	return RoleOther, false
}
