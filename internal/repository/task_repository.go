package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "farmops/internal/errors"
	"farmops/internal/model"
)

// TaskFilter narrows task listings.
type TaskFilter struct {
	Status     model.TaskStatus
	Location   string
	AssigneeID *uint
	DueFrom    *time.Time
	DueTo      *time.Time
	TemplateID *uint
}

// TaskRepository handles CRUD for task instances.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.TaskInstance) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// CreateBatch inserts generated instances in one statement.
func (r *TaskRepository) CreateBatch(ctx context.Context, tasks []model.TaskInstance) error {
	if len(tasks) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&tasks).Error; err != nil {
		return fmt.Errorf("create tasks: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id uint) (*model.TaskInstance, error) {
	var task model.TaskInstance
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "task %d", id)
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

func (r *TaskRepository) List(ctx context.Context, f TaskFilter) ([]model.TaskInstance, error) {
	q := r.db.WithContext(ctx).Order("due_date ASC, id ASC")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Location != "" {
		q = q.Where("location = ?", f.Location)
	}
	if f.AssigneeID != nil {
		q = q.Where("assignee_id = ?", *f.AssigneeID)
	}
	if f.DueFrom != nil {
		q = q.Where("due_date >= ?", *f.DueFrom)
	}
	if f.DueTo != nil {
		q = q.Where("due_date <= ?", *f.DueTo)
	}
	if f.TemplateID != nil {
		q = q.Where("recurring_task_id = ?", *f.TemplateID)
	}
	var tasks []model.TaskInstance
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListDueDatesByTemplate returns the set of due dates (truncated to day)
// already generated for a template inside [from, to]. The generator uses it
// to keep generation idempotent.
func (r *TaskRepository) ListDueDatesByTemplate(ctx context.Context, templateID uint, from, to time.Time) (map[string]struct{}, error) {
	var dates []time.Time
	if err := r.db.WithContext(ctx).Model(&model.TaskInstance{}).
		Where("recurring_task_id = ? AND due_date >= ? AND due_date <= ?", templateID, from, to).
		Pluck("due_date", &dates).Error; err != nil {
		return nil, fmt.Errorf("list due dates: %w", err)
	}
	seen := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		seen[d.Format("2006-01-02")] = struct{}{}
	}
	return seen, nil
}

// ListAffected returns the propagation scope for a template: future-due
// instances that are not in a terminal completed state.
func (r *TaskRepository) ListAffected(ctx context.Context, templateID uint, from time.Time) ([]model.TaskInstance, error) {
	var tasks []model.TaskInstance
	if err := r.db.WithContext(ctx).
		Where("recurring_task_id = ? AND due_date >= ? AND status NOT IN ?",
			templateID, from, []model.TaskStatus{model.StatusCompleted, model.StatusApproved}).
		Order("due_date ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list affected tasks: %w", err)
	}
	return tasks, nil
}

// ListWithTemplateUpdates returns template-linked instances that are either
// user-modified or behind their template's current version.
func (r *TaskRepository) ListWithTemplateUpdates(ctx context.Context) ([]model.TaskInstance, error) {
	var tasks []model.TaskInstance
	if err := r.db.WithContext(ctx).
		Joins("JOIN recurring_task_templates rt ON rt.id = task_instances.recurring_task_id").
		Where("task_instances.is_from_deleted_recurring = ?", false).
		Where("task_instances.is_modified_after_creation = ? OR task_instances.template_version < rt.version", true).
		Order("task_instances.due_date ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks with template updates: %w", err)
	}
	return tasks, nil
}

// CountByStatus returns task counts grouped by status.
func (r *TaskRepository) CountByStatus(ctx context.Context) (map[model.TaskStatus]int64, error) {
	type row struct {
		Status model.TaskStatus
		N      int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&model.TaskInstance{}).
		Select("status, count(*) as n").Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	counts := make(map[model.TaskStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// CountOverdue counts non-terminal tasks past their due date.
func (r *TaskRepository) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.TaskInstance{}).
		Where("due_date < ? AND status NOT IN ?", now,
			[]model.TaskStatus{model.StatusCompleted, model.StatusSkipped, model.StatusApproved}).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count overdue tasks: %w", err)
	}
	return n, nil
}

// CountConflicted counts instances currently in conflict with their
// template: in progress, user-modified, and version-behind.
func (r *TaskRepository) CountConflicted(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.TaskInstance{}).
		Joins("JOIN recurring_task_templates rt ON rt.id = task_instances.recurring_task_id").
		Where("task_instances.is_from_deleted_recurring = ?", false).
		Where("task_instances.status = ?", model.StatusInProgress).
		Where("task_instances.is_modified_after_creation = ?", true).
		Where("task_instances.template_version < rt.version").
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count conflicted tasks: %w", err)
	}
	return n, nil
}

func (r *TaskRepository) Save(ctx context.Context, task *model.TaskInstance) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// DeleteFutureUnstarted removes a template's future instances that nobody
// has started. Used when the template itself is deleted.
func (r *TaskRepository) DeleteFutureUnstarted(ctx context.Context, templateID uint, from time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("recurring_task_id = ? AND due_date >= ? AND status = ?", templateID, from, model.StatusPending).
		Delete(&model.TaskInstance{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete future tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// OrphanByTemplate detaches the remaining instances of a deleted template,
// preserving them for history with the old template title.
func (r *TaskRepository) OrphanByTemplate(ctx context.Context, templateID uint, templateTitle string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.TaskInstance{}).
		Where("recurring_task_id = ?", templateID).
		Updates(map[string]interface{}{
			"is_from_deleted_recurring":    true,
			"deleted_recurring_task_title": templateTitle,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("orphan tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.TaskInstance{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Wrapf(apperrors.ErrNotFound, "task %d", id)
	}
	return nil
}
