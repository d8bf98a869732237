package installation

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusToSchedule Status = "rendez-vous à prendre"
	StatusScheduled  Status = "rendez-vous pris"
	StatusCompleted  Status = "installation terminée"
)

// Installation is one client site of a sector, keyed by CodeClient within that sector.
type Installation struct {
	ID          string    `json:"id" gorm:"column:id;primaryKey;size:36"`
	Sector      string    `json:"sector" gorm:"column:sector;not null;uniqueIndex:idx_installations_sector_code,priority:1"`
	CodeClient  string    `json:"codeClient" gorm:"column:code_client;not null;uniqueIndex:idx_installations_sector_code,priority:2"`
	Name        string    `json:"nom" gorm:"column:name"`
	Address     string    `json:"adresse" gorm:"column:address"`
	City        string    `json:"ville" gorm:"column:city"`
	Phone       string    `json:"telephone" gorm:"column:phone"`
	Commercial  string    `json:"commercial" gorm:"column:commercial"`
	InstallDate string    `json:"dateInstall" gorm:"column:install_date"`
	Comment     string    `json:"commentaire" gorm:"column:comment"`
	Status      Status    `json:"statut" gorm:"column:status"`
	Version     int64     `json:"version" gorm:"column:version;not null;default:1"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	HasCTN bool `json:"hasCTN" gorm:"-"`
}

func (Installation) TableName() string {
	return "installations"
}

func (i *Installation) BeforeCreate(_ *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Version == 0 {
		i.Version = 1
	}
	return nil
}

// SameBusinessFields reports whether a and b agree on every attribute the
// spreadsheet owns. Identity, version and timestamps are not compared.
func SameBusinessFields(a, b *Installation) bool {
	return a.CodeClient == b.CodeClient &&
		a.Name == b.Name &&
		a.Address == b.Address &&
		a.City == b.City &&
		a.Phone == b.Phone &&
		a.Commercial == b.Commercial &&
		a.InstallDate == b.InstallDate &&
		a.Comment == b.Comment &&
		a.Status == b.Status
}

// CopyBusinessFields overwrites dst's sheet-owned attributes with src's.
func CopyBusinessFields(dst, src *Installation) {
	dst.CodeClient = src.CodeClient
	dst.Name = src.Name
	dst.Address = src.Address
	dst.City = src.City
	dst.Phone = src.Phone
	dst.Commercial = src.Commercial
	dst.InstallDate = src.InstallDate
	dst.Comment = src.Comment
	dst.Status = src.Status
}

// NormalizeStatus maps sheet text onto a known status. Matching ignores case,
// accents and dashes; anything unrecognised is still to be scheduled.
func NormalizeStatus(raw string) Status {
	key := foldStatus(raw)
	switch {
	case key == "":
		return StatusToSchedule
	case strings.Contains(key, "termine"):
		return StatusCompleted
	case strings.Contains(key, "pris"):
		return StatusScheduled
	default:
		return StatusToSchedule
	}
}

func foldStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(
		"é", "e", "è", "e", "ê", "e", "à", "a",
		"-", " ", "_", " ",
	).Replace(s)
}

func ValidStatus(s Status) bool {
	return s == StatusToSchedule || s == StatusScheduled || s == StatusCompleted
}
