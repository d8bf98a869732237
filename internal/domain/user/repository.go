package user

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jdcportal/internal/middleware"
)

var ErrNotFound = errors.New("user profile not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByUID(ctx context.Context, uid string) (*Profile, error) {
	var p Profile
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SessionAccess feeds middleware.SessionAuth with the stored role and sectors.
func (r *Repository) SessionAccess(ctx context.Context, uid string) (*middleware.Access, error) {
	p, err := r.GetByUID(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		return nil, middleware.ErrSessionRevoked
	}
	if err != nil {
		return nil, err
	}
	return &middleware.Access{Email: p.Email, Role: string(p.Role), Sectors: p.Sectors}, nil
}

func (r *Repository) List(ctx context.Context) ([]Profile, error) {
	var out []Profile
	err := r.db.WithContext(ctx).Order("email ASC").Find(&out).Error
	return out, err
}

// ListAdmins matches the role case-insensitively, like IsAdmin.
func (r *Repository) ListAdmins(ctx context.Context) ([]Profile, error) {
	var out []Profile
	err := r.db.WithContext(ctx).
		Where("LOWER(role) = ?", "admin").
		Order("email ASC").
		Find(&out).Error
	return out, err
}

// Upsert inserts the profile or refreshes its identity fields. Role, sectors and
// processor flags are owned by admins and are only set on insert.
func (r *Repository) Upsert(ctx context.Context, p *Profile) error {
	updates := []string{"email", "display_name", "updated_at"}
	if p.EncryptedRefreshToken != "" {
		updates = append(updates, "encrypted_refresh_token")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(p).Error
}

func (r *Repository) UpdateAccess(ctx context.Context, uid string, role Role, sectors []string) (*Profile, error) {
	p, err := r.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	p.Role = role
	p.Sectors = sectors
	if err := r.db.WithContext(ctx).Model(p).Select("role", "sectors").Updates(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) SetProcessor(ctx context.Context, uid string, kind ProcessorKind, enabled bool) error {
	column := "is_sheets_processor"
	if kind == ProcessorGmail {
		column = "is_gmail_processor"
	}
	res := r.db.WithContext(ctx).Model(&Profile{}).Where("uid = ?", uid).Update(column, enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindProcessor returns the first profile flagged for kind that holds a refresh token.
func (r *Repository) FindProcessor(ctx context.Context, kind ProcessorKind) (*Profile, error) {
	column := "is_sheets_processor"
	if kind == ProcessorGmail {
		column = "is_gmail_processor"
	}
	var p Profile
	err := r.db.WithContext(ctx).
		Where(column+" = ? AND encrypted_refresh_token <> ''", true).
		Order("updated_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
