package installation

import (
	"context"
	"strings"
)

// ShipmentIndex answers which client codes of a sector have a CTN.
type ShipmentIndex interface {
	ClientCodesWithShipments(ctx context.Context, sector string) (map[string]bool, error)
}

type Service struct {
	repo      *Repository
	shipments ShipmentIndex
}

func NewService(repo *Repository, shipments ShipmentIndex) *Service {
	return &Service{repo: repo, shipments: shipments}
}

// ListWithShipments lists a sector's installations with HasCTN filled in.
func (s *Service) ListWithShipments(ctx context.Context, sector string) ([]Installation, error) {
	items, err := s.repo.ListBySector(ctx, sector)
	if err != nil {
		return nil, err
	}
	if s.shipments == nil || len(items) == 0 {
		return items, nil
	}

	codes, err := s.shipments.ClientCodesWithShipments(ctx, sector)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].HasCTN = codes[strings.ToUpper(strings.TrimSpace(items[i].CodeClient))]
	}
	return items, nil
}

func (s *Service) UpdateStatus(ctx context.Context, sector, id string, status Status) (*Installation, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	inst, err := s.repo.GetByID(ctx, sector, id)
	if err != nil {
		return nil, err
	}
	if inst.Status == status {
		return inst, nil
	}
	if err := s.repo.UpdateStatus(ctx, inst, status); err != nil {
		return nil, err
	}
	return inst, nil
}
