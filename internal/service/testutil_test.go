package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"farmops/internal/clock"
	"farmops/internal/model"
	"farmops/internal/repository"
)

// testNow is the fixed instant all service tests run at.
var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

// env bundles a fresh in-memory database with the full service graph.
type env struct {
	db *gorm.DB

	templateRepo     *repository.TemplateRepository
	taskRepo         *repository.TaskRepository
	changeRepo       *repository.ChangeRepository
	notificationRepo *repository.NotificationRepository
	userRepo         *repository.UserRepository
	inventoryRepo    *repository.InventoryRepository
	trainingRepo     *repository.TrainingRepository
	equipmentRepo    *repository.EquipmentRepository

	notifier   *Notifier
	generator  *InstanceGenerator
	engine     *PropagationEngine
	templates  *TemplateService
	tasks      *TaskService
	resolution *ResolutionHandler
	inventory  *InventoryService
	training   *TrainingService
	equipment  *EquipmentService
	dashboard  *DashboardService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repository.NewDB(dsn)
	require.NoError(t, err)

	log := zerolog.Nop()
	clk := clock.Fixed{Time: testNow}

	e := &env{db: db}
	e.templateRepo = repository.NewTemplateRepository(db)
	e.taskRepo = repository.NewTaskRepository(db)
	e.changeRepo = repository.NewChangeRepository(db)
	e.notificationRepo = repository.NewNotificationRepository(db)
	e.userRepo = repository.NewUserRepository(db)
	e.inventoryRepo = repository.NewInventoryRepository(db)
	e.trainingRepo = repository.NewTrainingRepository(db)
	e.equipmentRepo = repository.NewEquipmentRepository(db)

	e.notifier = NewNotifier(e.notificationRepo, log)
	e.generator = NewInstanceGenerator(e.taskRepo, log)
	e.engine = NewPropagationEngine(db, e.taskRepo, e.changeRepo, e.notifier, clk, log)
	e.templates = NewTemplateService(db, e.templateRepo, e.taskRepo, e.engine, e.generator, clk, log)
	e.tasks = NewTaskService(e.taskRepo, e.templateRepo, clk, log)
	e.resolution = NewResolutionHandler(db, e.taskRepo, e.templateRepo, e.changeRepo, e.userRepo, e.notifier, clk, log)
	e.inventory = NewInventoryService(db, e.inventoryRepo, e.userRepo, e.notifier, log)
	e.training = NewTrainingService(e.trainingRepo, e.userRepo, clk, log)
	e.equipment = NewEquipmentService(e.equipmentRepo, clk, log)
	e.dashboard = NewDashboardService(e.taskRepo, e.inventory, e.training, e.equipmentRepo, clk, log)
	return e
}

// dailyTemplateInput returns a valid daily template starting the day after
// the fixed test clock.
func dailyTemplateInput(title string) TemplateInput {
	return TemplateInput{
		Title:     title,
		Type:      "seeding",
		Location:  "greenhouse-1",
		Priority:  "medium",
		Frequency: model.FrequencyDaily,
		StartDate: testNow.AddDate(0, 0, 1),
		IsActive:  true,
	}
}

func fixedClock() clock.Fixed {
	return clock.Fixed{Time: testNow}
}

func taskFilterForTemplate(id uint) repository.TaskFilter {
	return repository.TaskFilter{TemplateID: &id}
}

func day(yearDay string) time.Time {
	d, err := time.Parse("2006-01-02", yearDay)
	if err != nil {
		panic(err)
	}
	return d.UTC()
}
