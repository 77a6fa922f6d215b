package service

import (
	"context"

	"github.com/rs/zerolog"

	"farmops/internal/clock"
	apperrors "farmops/internal/errors"
	"farmops/internal/model"
	"farmops/internal/repository"
)

// EquipmentService tracks machines and their operational status.
type EquipmentService struct {
	equipment *repository.EquipmentRepository
	clock     clock.Clock
	log       zerolog.Logger
}

func NewEquipmentService(equipment *repository.EquipmentRepository, clk clock.Clock, log zerolog.Logger) *EquipmentService {
	return &EquipmentService{equipment: equipment, clock: clk, log: log}
}

func (s *EquipmentService) Create(ctx context.Context, name, location, notes string) (*model.Equipment, error) {
	if name == "" {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "equipment name is required")
	}
	eq := &model.Equipment{
		Name:     name,
		Status:   model.EquipmentOperational,
		Location: location,
		Notes:    notes,
	}
	if err := s.equipment.Create(ctx, eq); err != nil {
		return nil, err
	}
	return eq, nil
}

func (s *EquipmentService) List(ctx context.Context, location string) ([]model.Equipment, error) {
	return s.equipment.List(ctx, location)
}

// SetStatus moves a machine to a new status. Returning to operational
// stamps the service time.
func (s *EquipmentService) SetStatus(ctx context.Context, id uint, status model.EquipmentStatus, notes string) (*model.Equipment, error) {
	if !status.Valid() {
		return nil, apperrors.Wrapf(apperrors.ErrValidation, "unknown equipment status %q", status)
	}
	eq, err := s.equipment.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if eq.Status != model.EquipmentOperational && status == model.EquipmentOperational {
		now := s.clock.Now()
		eq.LastServiceAt = &now
	}
	eq.Status = status
	if notes != "" {
		eq.Notes = notes
	}
	if err := s.equipment.Save(ctx, eq); err != nil {
		return nil, err
	}
	return eq, nil
}
