package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"farmops/internal/clock"
	apperrors "farmops/internal/errors"
	"farmops/internal/model"
	"farmops/internal/repository"
)

// TemplateInput carries a template's full editable state.
type TemplateInput struct {
	Title       string
	Description string
	Type        string
	Location    string
	Priority    string
	Frequency   model.Frequency
	DaysOfWeek  []string
	DayOfMonth  int
	StartDate   time.Time
	IsActive    bool
	Checklist   []model.ChecklistStep
	Automation  model.AutomationSettings
}

// UpdateSummary is the change summary returned from a template edit, shown
// to the manager in the propagation dialog.
type UpdateSummary struct {
	Changes           []FieldChange           `json:"changes"`
	AffectedTaskCount int                     `json:"affectedTaskCount"`
	ConflictCount     int                     `json:"conflictCount"`
	ChangeRecordID    string                  `json:"changeRecordId,omitempty"`
	PropagationStatus model.PropagationStatus `json:"propagationStatus,omitempty"`
}

// DeleteSummary reports what a template deletion did to its instances.
type DeleteSummary struct {
	Title         string `json:"title"`
	RemovedCount  int64  `json:"removedCount"`
	OrphanedCount int64  `json:"orphanedCount"`
}

// TemplateService owns the recurring-task template lifecycle: validation,
// versioning, propagation and deletion semantics.
type TemplateService struct {
	db        *gorm.DB
	templates *repository.TemplateRepository
	tasks     *repository.TaskRepository
	engine    *PropagationEngine
	generator *InstanceGenerator
	clock     clock.Clock
	log       zerolog.Logger
}

func NewTemplateService(db *gorm.DB, templates *repository.TemplateRepository, tasks *repository.TaskRepository, engine *PropagationEngine, generator *InstanceGenerator, clk clock.Clock, log zerolog.Logger) *TemplateService {
	return &TemplateService{
		db:        db,
		templates: templates,
		tasks:     tasks,
		engine:    engine,
		generator: generator,
		clock:     clk,
		log:       log,
	}
}

// Create validates and persists a new template at version 1.
func (s *TemplateService) Create(ctx context.Context, in TemplateInput) (*model.RecurringTaskTemplate, error) {
	if in.StartDate.IsZero() {
		in.StartDate = s.clock.Now()
	}
	if in.Priority == "" {
		in.Priority = "medium"
	}
	if err := validateTemplateInput(in); err != nil {
		return nil, err
	}

	tpl := &model.RecurringTaskTemplate{
		Title:             in.Title,
		Description:       in.Description,
		Type:              in.Type,
		Location:          in.Location,
		Priority:          in.Priority,
		Frequency:         in.Frequency,
		DaysOfWeek:        in.DaysOfWeek,
		DayOfMonth:        in.DayOfMonth,
		StartDate:         in.StartDate,
		IsActive:          in.IsActive,
		ChecklistTemplate: in.Checklist,
		Automation:        datatypes.NewJSONType(in.Automation),
		Version:           1,
	}
	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, err
	}
	s.log.Info().Uint("template_id", tpl.ID).Str("title", tpl.Title).Msg("template created")
	return tpl, nil
}

func (s *TemplateService) Get(ctx context.Context, id uint) (*model.RecurringTaskTemplate, error) {
	return s.templates.FindByID(ctx, id)
}

func (s *TemplateService) List(ctx context.Context, activeOnly bool, location string) ([]model.RecurringTaskTemplate, error) {
	return s.templates.List(ctx, activeOnly, location)
}

// Update validates the edit, bumps the version transactionally with the
// field changes, then hands the diff to the propagation engine under the
// chosen strategy. The returned summary is what the UI's propagation
// warning dialog renders.
func (s *TemplateService) Update(ctx context.Context, id uint, in TemplateInput, strategy Strategy, onProgress ProgressFunc) (*model.RecurringTaskTemplate, *UpdateSummary, error) {
	if strategy == "" {
		strategy = StrategyNewOnly
	}
	if !strategy.Valid() {
		return nil, nil, apperrors.Wrapf(apperrors.ErrValidation, "unknown propagation strategy %q", strategy)
	}

	tpl, err := s.templates.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	// A partial edit body may omit the start date; an omitted date keeps
	// the stored schedule rather than zeroing it.
	if in.StartDate.IsZero() {
		in.StartDate = tpl.StartDate
	}
	if err := validateTemplateInput(in); err != nil {
		return nil, nil, err
	}
	snapshot := *tpl

	tpl.Title = in.Title
	tpl.Description = in.Description
	tpl.Type = in.Type
	tpl.Location = in.Location
	tpl.Priority = in.Priority
	tpl.Frequency = in.Frequency
	tpl.DaysOfWeek = in.DaysOfWeek
	tpl.DayOfMonth = in.DayOfMonth
	tpl.StartDate = in.StartDate
	tpl.IsActive = in.IsActive
	tpl.ChecklistTemplate = in.Checklist
	tpl.Automation = datatypes.NewJSONType(in.Automation)

	changes := DiffTemplates(&snapshot, tpl)
	if len(changes) == 0 {
		return tpl, &UpdateSummary{Changes: []FieldChange{}}, nil
	}

	tpl.Version = snapshot.Version + 1
	if err := s.templates.Save(ctx, tpl); err != nil {
		return nil, nil, err
	}

	rec, err := s.engine.Apply(ctx, tpl, changes, strategy, onProgress)
	if err != nil {
		if rec != nil {
			return tpl, &UpdateSummary{
				Changes:           changes,
				AffectedTaskCount: rec.AffectedTaskCount,
				ConflictCount:     rec.ConflictCount,
				ChangeRecordID:    rec.ID,
				PropagationStatus: rec.PropagationStatus,
			}, err
		}
		return nil, nil, err
	}

	return tpl, &UpdateSummary{
		Changes:           changes,
		AffectedTaskCount: rec.AffectedTaskCount,
		ConflictCount:     rec.ConflictCount,
		ChangeRecordID:    rec.ID,
		PropagationStatus: rec.PropagationStatus,
	}, nil
}

// Delete removes a template. Future unstarted instances are removed with
// it; everything already worked on survives, detached and labeled with the
// old template title.
func (s *TemplateService) Delete(ctx context.Context, id uint) (*DeleteSummary, error) {
	tpl, err := s.templates.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	summary := &DeleteSummary{Title: tpl.Title}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txTasks := s.tasks.WithTx(tx)
		txTemplates := s.templates.WithTx(tx)

		removed, err := txTasks.DeleteFutureUnstarted(ctx, id, s.clock.Now())
		if err != nil {
			return err
		}
		orphaned, err := txTasks.OrphanByTemplate(ctx, id, tpl.Title)
		if err != nil {
			return err
		}
		summary.RemovedCount = removed
		summary.OrphanedCount = orphaned
		return txTemplates.Delete(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("template_id", id).
		Int64("removed", summary.RemovedCount).
		Int64("orphaned", summary.OrphanedCount).
		Msg("template deleted")
	return summary, nil
}

// Generate expands the template over [from, to] via the instance generator.
func (s *TemplateService) Generate(ctx context.Context, id uint, from, to time.Time) ([]model.TaskInstance, error) {
	tpl, err := s.templates.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "generation range end precedes start")
	}
	return s.generator.Generate(ctx, tpl, from, to)
}

// GenerateUpcoming runs a generation pass over all active templates for the
// next horizon days. Driven by the cron scheduler when configured.
func (s *TemplateService) GenerateUpcoming(ctx context.Context, horizonDays int) (int, error) {
	if horizonDays <= 0 {
		horizonDays = 14
	}
	tpls, err := s.templates.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	total := 0
	for i := range tpls {
		created, err := s.generator.Generate(ctx, &tpls[i], now, now.AddDate(0, 0, horizonDays))
		if err != nil {
			return total, err
		}
		total += len(created)
	}
	return total, nil
}

// validWeekdays are the day names accepted in a weekly rule.
var validWeekdays = map[string]bool{
	"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true,
	"Friday": true, "Saturday": true, "Sunday": true,
}

func validateTemplateInput(in TemplateInput) error {
	if in.Title == "" {
		return apperrors.Wrap(apperrors.ErrValidation, "title is required")
	}
	if !in.Frequency.Valid() {
		return apperrors.Wrapf(apperrors.ErrValidation, "unknown frequency %q", in.Frequency)
	}
	if in.Frequency == model.FrequencyWeekly {
		if len(in.DaysOfWeek) == 0 {
			return apperrors.Wrap(apperrors.ErrValidation, "weekly schedule requires at least one day of week")
		}
		for _, d := range in.DaysOfWeek {
			if !validWeekdays[d] {
				return apperrors.Wrapf(apperrors.ErrValidation, "unknown weekday %q", d)
			}
		}
	}
	if in.Frequency == model.FrequencyMonthly && in.DayOfMonth != 0 && (in.DayOfMonth < 1 || in.DayOfMonth > 31) {
		return apperrors.Wrapf(apperrors.ErrValidation, "day of month %d out of range", in.DayOfMonth)
	}
	for _, step := range in.Checklist {
		if err := step.Validate(); err != nil {
			return apperrors.Wrap(apperrors.ErrValidation, err.Error())
		}
	}
	return nil
}
