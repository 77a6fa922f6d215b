package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"farmops/internal/clock"
	apperrors "farmops/internal/errors"
	"farmops/internal/model"
	"farmops/internal/repository"
)

// TrainingService manages courses and staff completion records.
type TrainingService struct {
	training *repository.TrainingRepository
	users    *repository.UserRepository
	clock    clock.Clock
	log      zerolog.Logger
}

func NewTrainingService(training *repository.TrainingRepository, users *repository.UserRepository, clk clock.Clock, log zerolog.Logger) *TrainingService {
	return &TrainingService{training: training, users: users, clock: clk, log: log}
}

func (s *TrainingService) CreateCourse(ctx context.Context, name, description string, validityDays int) (*model.TrainingCourse, error) {
	if name == "" {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "course name is required")
	}
	if validityDays < 0 {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "validity days must be non-negative")
	}
	course := &model.TrainingCourse{Name: name, Description: description, ValidityDays: validityDays}
	if err := s.training.CreateCourse(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *TrainingService) ListCourses(ctx context.Context) ([]model.TrainingCourse, error) {
	return s.training.ListCourses(ctx)
}

// RecordCompletion logs a user's completion of a course, computing the
// expiry from the course's validity window.
func (s *TrainingService) RecordCompletion(ctx context.Context, userID, courseID uint, completedAt time.Time, score int) (*model.TrainingRecord, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	course, err := s.training.FindCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if completedAt.IsZero() {
		completedAt = s.clock.Now()
	}
	if score < 0 || score > 100 {
		return nil, apperrors.Wrapf(apperrors.ErrValidation, "score %d out of range", score)
	}

	rec := &model.TrainingRecord{
		UserID:      userID,
		CourseID:    courseID,
		CompletedAt: completedAt,
		Score:       score,
	}
	if course.ValidityDays > 0 {
		expires := completedAt.AddDate(0, 0, course.ValidityDays)
		rec.ExpiresAt = &expires
	}
	if err := s.training.CreateRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *TrainingService) ListRecords(ctx context.Context, userID uint) ([]model.TrainingRecord, error) {
	return s.training.ListRecordsByUser(ctx, userID)
}

// ListExpiring returns records lapsing within the next given days.
func (s *TrainingService) ListExpiring(ctx context.Context, withinDays int) ([]model.TrainingRecord, error) {
	if withinDays <= 0 {
		withinDays = 30
	}
	now := s.clock.Now()
	return s.training.ListExpiring(ctx, now, now.AddDate(0, 0, withinDays))
}
