package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"farmops/internal/model"
	"farmops/internal/repository"
)

// InstanceGenerator expands a template's schedule rule into concrete task
// instances over a date range.
type InstanceGenerator struct {
	tasks *repository.TaskRepository
	log   zerolog.Logger
}

func NewInstanceGenerator(tasks *repository.TaskRepository, log zerolog.Logger) *InstanceGenerator {
	return &InstanceGenerator{tasks: tasks, log: log}
}

// Generate writes one pending instance per matching day in [from, to] and
// returns the newly created instances. Days that already have an instance
// for this template are skipped, so repeated calls over the same range are
// idempotent. Existing instances are never touched.
func (g *InstanceGenerator) Generate(ctx context.Context, tpl *model.RecurringTaskTemplate, from, to time.Time) ([]model.TaskInstance, error) {
	if !tpl.IsActive {
		return nil, nil
	}

	from = truncateToDay(from)
	to = truncateToDay(to)

	existing, err := g.tasks.ListDueDatesByTemplate(ctx, tpl.ID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	var created []model.TaskInstance
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if !occursOn(tpl, day) {
			continue
		}
		if _, ok := existing[day.Format("2006-01-02")]; ok {
			continue
		}
		created = append(created, newInstance(tpl, day))
	}

	if err := g.tasks.CreateBatch(ctx, created); err != nil {
		return nil, err
	}
	if len(created) > 0 {
		g.log.Info().
			Uint("template_id", tpl.ID).
			Int("count", len(created)).
			Time("from", from).
			Time("to", to).
			Msg("generated task instances")
	}
	return created, nil
}

// occursOn applies the template's schedule rule to a single day.
func occursOn(tpl *model.RecurringTaskTemplate, day time.Time) bool {
	start := truncateToDay(tpl.StartDate)
	if day.Before(start) {
		return false
	}

	switch tpl.Frequency {
	case model.FrequencyDaily:
		return true
	case model.FrequencyWeekly:
		name := day.Weekday().String()
		for _, d := range tpl.DaysOfWeek {
			if d == name {
				return true
			}
		}
		return false
	case model.FrequencyBiweekly:
		return daysBetween(start, day)%14 == 0
	case model.FrequencyMonthly:
		// Monthly templates fire on the last calendar day of the month;
		// DayOfMonth exists in the schema but does not drive occurrence.
		return day.Day() == daysInMonth(day.Month(), day.Year())
	}
	return false
}

// newInstance stamps a fresh pending instance with the template's current
// content and version.
func newInstance(tpl *model.RecurringTaskTemplate, day time.Time) model.TaskInstance {
	id := tpl.ID
	return model.TaskInstance{
		Title:           tpl.Title,
		Description:     tpl.Description,
		Type:            tpl.Type,
		Status:          model.StatusPending,
		Priority:        tpl.Priority,
		Location:        tpl.Location,
		DueDate:         day,
		RecurringTaskID: &id,
		TemplateVersion: tpl.Version,
		Checklist:       model.NewChecklist(tpl.ChecklistTemplate),
	}
}

// daysBetween counts calendar days from a to b. Both dates are re-anchored
// in UTC so a DST transition between them cannot skew the count.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	au := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bu := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au) / (24 * time.Hour))
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func daysInMonth(month time.Month, year int) int {
	// Move to next month, roll back a day.
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	lastOfMonth := firstOfMonth.AddDate(0, 1, 0).AddDate(0, 0, -1)
	return lastOfMonth.Day()
}
