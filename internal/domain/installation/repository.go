package installation

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"jdcportal/internal/database"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListBySector(ctx context.Context, sector string) ([]Installation, error) {
	var out []Installation
	err := r.db.WithContext(ctx).
		Where("LOWER(sector) = LOWER(?)", sector).
		Order("code_client ASC").
		Find(&out).Error
	return out, err
}

func (r *Repository) GetByID(ctx context.Context, sector, id string) (*Installation, error) {
	var inst Installation
	err := r.db.WithContext(ctx).Where("LOWER(sector) = LOWER(?) AND id = ?", sector, id).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *Repository) Create(ctx context.Context, inst *Installation) error {
	err := r.db.WithContext(ctx).Create(inst).Error
	if database.IsUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

// Update overwrites inst only if the stored version still equals inst.Version,
// then bumps the version. A lost race returns ErrStaleWrite.
func (r *Repository) Update(ctx context.Context, inst *Installation) error {
	res := r.db.WithContext(ctx).
		Model(&Installation{}).
		Where("id = ? AND version = ?", inst.ID, inst.Version).
		Updates(map[string]any{
			"code_client":  inst.CodeClient,
			"name":         inst.Name,
			"address":      inst.Address,
			"city":         inst.City,
			"phone":        inst.Phone,
			"commercial":   inst.Commercial,
			"install_date": inst.InstallDate,
			"comment":      inst.Comment,
			"status":       inst.Status,
			"version":      inst.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleWrite
	}
	inst.Version++
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, inst *Installation, status Status) error {
	res := r.db.WithContext(ctx).
		Model(&Installation{}).
		Where("id = ? AND version = ?", inst.ID, inst.Version).
		Updates(map[string]any{"status": status, "version": inst.Version + 1})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleWrite
	}
	inst.Status = status
	inst.Version++
	return nil
}

// Delete removes inst if nobody changed it since it was read.
func (r *Repository) Delete(ctx context.Context, inst *Installation) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND version = ?", inst.ID, inst.Version).
		Delete(&Installation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleWrite
	}
	return nil
}
