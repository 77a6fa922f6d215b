package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmops/internal/clock"
	"farmops/internal/model"
	"farmops/internal/repository"
	"farmops/internal/service"
)

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *repository.UserRepository) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repository.NewDB(dsn)
	require.NoError(t, err)

	log := zerolog.Nop()
	clk := clock.Fixed{Time: testNow}

	templateRepo := repository.NewTemplateRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	changeRepo := repository.NewChangeRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	trainingRepo := repository.NewTrainingRepository(db)
	equipmentRepo := repository.NewEquipmentRepository(db)

	notifier := service.NewNotifier(notificationRepo, log)
	generator := service.NewInstanceGenerator(taskRepo, log)
	engine := service.NewPropagationEngine(db, taskRepo, changeRepo, notifier, clk, log)
	templates := service.NewTemplateService(db, templateRepo, taskRepo, engine, generator, clk, log)
	tasks := service.NewTaskService(taskRepo, templateRepo, clk, log)
	resolution := service.NewResolutionHandler(db, taskRepo, templateRepo, changeRepo, userRepo, notifier, clk, log)
	inventory := service.NewInventoryService(db, inventoryRepo, userRepo, notifier, log)
	training := service.NewTrainingService(trainingRepo, userRepo, clk, log)
	equipment := service.NewEquipmentService(equipmentRepo, clk, log)
	dashboard := service.NewDashboardService(taskRepo, inventory, training, equipmentRepo, clk, log)

	srv := NewServer(Deps{
		Templates:  templates,
		Tasks:      tasks,
		Detector:   service.NewChangeDetector(taskRepo, clk),
		Resolution: resolution,
		Changes:    service.NewChangeFeed(changeRepo),
		Inventory:  inventory,
		Training:   training,
		Equipment:  equipment,
		Dashboard:  dashboard,
		Notifier:   notifier,
	}, log)
	return srv, userRepo
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTemplateEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/recurring-tasks", reqBody{
		"title":     "Water seedlings",
		"type":      "irrigation",
		"priority":  "medium",
		"frequency": "daily",
		"startDate": testNow.Format(time.RFC3339),
		"isActive":  true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tpl := decode[model.RecurringTaskTemplate](t, rec)
	assert.Equal(t, 1, tpl.Version)

	// Weekly template without days is rejected.
	rec = doJSON(t, h, http.MethodPost, "/api/recurring-tasks", reqBody{
		"title": "Weekly walkabout", "frequency": "weekly",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/recurring-tasks/%d", tpl.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/recurring-tasks/9999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Generate instances, then edit with update_all and check the summary.
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/recurring-tasks/%d/generate", tpl.ID), reqBody{
		"from": testNow.AddDate(0, 0, 1).Format(time.RFC3339),
		"to":   testNow.AddDate(0, 0, 5).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPatch, fmt.Sprintf("/api/recurring-tasks/%d", tpl.ID), reqBody{
		"title":               "Water seedlings",
		"type":                "irrigation",
		"priority":            "high",
		"frequency":           "daily",
		"startDate":           tpl.StartDate.Format(time.RFC3339),
		"isActive":            true,
		"propagationStrategy": "update_all",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var patched struct {
		Template      model.RecurringTaskTemplate `json:"template"`
		ChangeSummary service.UpdateSummary       `json:"changeSummary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patched))
	assert.Equal(t, 2, patched.Template.Version)
	assert.Equal(t, 5, patched.ChangeSummary.AffectedTaskCount)
	assert.Equal(t, model.PropagationCompleted, patched.ChangeSummary.PropagationStatus)

	rec = doJSON(t, h, http.MethodGet, "/api/recurring-tasks/changes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	changes := decode[[]model.TemplateChangeRecord](t, rec)
	require.Len(t, changes, 1)
	assert.Equal(t, []string{"priority"}, []string(changes[0].ChangedFields))

	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/recurring-tasks/%d", tpl.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	del := decode[service.DeleteSummary](t, rec)
	assert.Equal(t, int64(5), del.RemovedCount)
}

func TestTaskConflictFlowOverHTTP(t *testing.T) {
	srv, userRepo := newTestServer(t)
	h := srv.Handler()

	worker := model.User{Name: "Sam", Email: "sam@farm.test"}
	require.NoError(t, userRepo.Create(context.Background(), &worker))

	rec := doJSON(t, h, http.MethodPost, "/api/recurring-tasks", reqBody{
		"title": "Check hives", "frequency": "daily",
		"startDate": testNow.Format(time.RFC3339), "isActive": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	tpl := decode[model.RecurringTaskTemplate](t, rec)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/recurring-tasks/%d/generate", tpl.ID), reqBody{
		"from": testNow.AddDate(0, 0, 1).Format(time.RFC3339),
		"to":   testNow.AddDate(0, 0, 1).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var gen struct {
		Created []model.TaskInstance `json:"created"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gen))
	require.Len(t, gen.Created, 1)
	taskID := gen.Created[0].ID

	// Worker starts the task and edits it.
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/tasks/%d/status", taskID), reqBody{"status": "in_progress"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodPatch, fmt.Sprintf("/api/tasks/%d", taskID), reqBody{
		"description": "queen spotted in box 2",
		"assigneeId":  worker.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	edited := decode[model.TaskInstance](t, rec)
	assert.True(t, edited.IsModifiedAfterCreation)

	// The scope preview warns about the one in-flight instance.
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/recurring-tasks/%d/propagation-scope", tpl.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var scope struct {
		AffectedTaskCount int `json:"affectedTaskCount"`
		ConflictCount     int `json:"conflictCount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scope))
	assert.Equal(t, 1, scope.AffectedTaskCount)
	assert.Equal(t, 1, scope.ConflictCount)

	// Manager edits the template underneath.
	rec = doJSON(t, h, http.MethodPatch, fmt.Sprintf("/api/recurring-tasks/%d", tpl.ID), reqBody{
		"title": "Check hives and varroa boards", "frequency": "daily",
		"startDate": tpl.StartDate.Format(time.RFC3339), "isActive": true,
		"propagationStrategy": "update_all",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/tasks/with-template-updates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	flagged := decode[[]service.TaskWithConflict](t, rec)
	require.Len(t, flagged, 1)
	assert.Equal(t, service.ConflictPending, flagged[0].ConflictState)

	// The assignee was notified.
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/notifications?userId=%d&unread=true", worker.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decode[[]model.Notification](t, rec)
	require.Len(t, notes, 1)

	// Resolving on an unlinked task is a 409; on the real one it works.
	rec = doJSON(t, h, http.MethodPost, "/api/tasks", reqBody{"title": "Standalone", "dueDate": testNow.Format(time.RFC3339)})
	require.Equal(t, http.StatusCreated, rec.Code)
	standalone := decode[model.TaskInstance](t, rec)
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/tasks/%d/resolve-conflict", standalone.ID), reqBody{"action": "keep_current"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/tasks/%d/resolve-conflict", taskID), reqBody{
		"action": "keep_current", "notes": "my notes are current",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resolved := decode[model.TaskInstance](t, rec)
	assert.False(t, resolved.IsModifiedAfterCreation)

	// The resolution shows up in the task's audit trail.
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/tasks/%d/resolutions", taskID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trail := decode[[]model.ConflictResolutionLog](t, rec)
	require.Len(t, trail, 1)
	assert.Equal(t, model.ResolutionKeepCurrent, trail[0].Action)

	// Invalid transition surfaces as 400.
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/tasks/%d/status", standalone.ID), reqBody{"status": "completed"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Mark the notification read.
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/notifications/%s/read", notes[0].ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInventoryEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/inventory", reqBody{
		"name": "Calf milk powder", "unit": "kg", "quantity": 20.0,
		"unitCost": 4.0, "restockThreshold": 25.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[model.InventoryItem](t, rec)

	// Already under threshold.
	rec = doJSON(t, h, http.MethodGet, "/api/inventory/low-stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	low := decode[[]model.InventoryItem](t, rec)
	require.Len(t, low, 1)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/inventory/%d/transactions", item.ID), reqBody{
		"kind": "consumption", "quantity": 50.0,
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "overdraft")

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/inventory/%d/transactions", item.ID), reqBody{
		"kind": "purchase", "quantity": 20.0, "unitCost": 6.0, "reference": "invoice 99",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/inventory/%d/transactions", item.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]model.InventoryTransaction](t, rec)
	require.Len(t, history, 1)
	assert.InDelta(t, 120.0, history[0].TotalCost, 1e-9)
}

func TestDashboardEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/equipment", reqBody{"name": "Seeder", "location": "shed"})
	require.Equal(t, http.StatusCreated, rec.Code)
	eq := decode[model.Equipment](t, rec)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/equipment/%d/status", eq.ID), reqBody{"status": "maintenance"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/dashboard/production", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[service.ProductionDashboard](t, rec)
	assert.Equal(t, int64(1), dash.EquipmentCounts[model.EquipmentMaintenance])
}

// reqBody is shorthand for JSON request payloads.
type reqBody = map[string]any
