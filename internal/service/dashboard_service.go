package service

import (
	"context"

	"github.com/rs/zerolog"

	"farmops/internal/clock"
	"farmops/internal/model"
	"farmops/internal/repository"
)

// ProductionDashboard aggregates the farm's operational state for the
// production and equipment dashboard views.
type ProductionDashboard struct {
	TaskCounts       map[model.TaskStatus]int64      `json:"taskCounts"`
	CompletionRate   float64                         `json:"completionRate"`
	OverdueCount     int64                           `json:"overdueCount"`
	ConflictCount    int64                           `json:"conflictCount"`
	LowStockCount    int                             `json:"lowStockCount"`
	ExpiringTraining int                             `json:"expiringTraining"`
	EquipmentCounts  map[model.EquipmentStatus]int64 `json:"equipmentCounts"`
}

// DashboardService computes read-only aggregates; it owns no state.
type DashboardService struct {
	tasks     *repository.TaskRepository
	inventory *InventoryService
	training  *TrainingService
	equipment *repository.EquipmentRepository
	clock     clock.Clock
	log       zerolog.Logger
}

func NewDashboardService(tasks *repository.TaskRepository, inventory *InventoryService, training *TrainingService, equipment *repository.EquipmentRepository, clk clock.Clock, log zerolog.Logger) *DashboardService {
	return &DashboardService{
		tasks:     tasks,
		inventory: inventory,
		training:  training,
		equipment: equipment,
		clock:     clk,
		log:       log,
	}
}

// Production builds the production dashboard snapshot.
func (s *DashboardService) Production(ctx context.Context) (*ProductionDashboard, error) {
	counts, err := s.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	overdue, err := s.tasks.CountOverdue(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}
	conflicts, err := s.tasks.CountConflicted(ctx)
	if err != nil {
		return nil, err
	}
	lowStock, err := s.inventory.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}
	expiring, err := s.training.ListExpiring(ctx, 30)
	if err != nil {
		return nil, err
	}
	equipment, err := s.equipment.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	var total, done int64
	for status, n := range counts {
		total += n
		if status == model.StatusCompleted || status == model.StatusApproved {
			done += n
		}
	}
	rate := 0.0
	if total > 0 {
		rate = float64(done) / float64(total)
	}

	return &ProductionDashboard{
		TaskCounts:       counts,
		CompletionRate:   rate,
		OverdueCount:     overdue,
		ConflictCount:    conflicts,
		LowStockCount:    len(lowStock),
		ExpiringTraining: len(expiring),
		EquipmentCounts:  equipment,
	}, nil
}
