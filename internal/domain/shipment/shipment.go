package shipment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Shipment is a CTN record: material dispatched to a client.
type Shipment struct {
	ID           string     `json:"id" gorm:"column:id;primaryKey;size:36"`
	ClientCode   string     `json:"codeClient" gorm:"column:client_code;index:idx_shipments_sector_client,priority:2"`
	ClientName   string     `json:"nomClient" gorm:"column:client_name"`
	Sector       string     `json:"secteur" gorm:"column:sector;index:idx_shipments_sector_client,priority:1"`
	DeliveryDate *time.Time `json:"dateLivraison,omitempty" gorm:"column:delivery_date"`
	Status       string     `json:"statut" gorm:"column:status"`
	Products     []string   `json:"produits" gorm:"column:products;serializer:json"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func (Shipment) TableName() string {
	return "shipments"
}

func (s *Shipment) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, s *Shipment) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// ListBySector returns every shipment when sector is empty.
func (r *Repository) ListBySector(ctx context.Context, sector string) ([]Shipment, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if sector != "" {
		q = q.Where("LOWER(sector) = LOWER(?)", sector)
	}
	var out []Shipment
	err := q.Find(&out).Error
	return out, err
}

// ClientCodesWithShipments returns the normalized client codes of sector that
// have at least one shipment.
func (r *Repository) ClientCodesWithShipments(ctx context.Context, sector string) (map[string]bool, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Model(&Shipment{}).
		Where("LOWER(sector) = LOWER(?) AND client_code <> ''", sector).
		Distinct().
		Pluck("client_code", &codes).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(codes))
	for _, c := range codes {
		out[NormalizeCode(c)] = true
	}
	return out, nil
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
