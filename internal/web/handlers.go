package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "farmops/internal/errors"
	"farmops/internal/model"
	"farmops/internal/repository"
	"farmops/internal/service"
)

// respondError maps service errors onto HTTP status codes.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrInvalidTransition):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrNotInConflict), errors.Is(err, apperrors.ErrInsufficientStock):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// Template handlers

type templateRequest struct {
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	Type        string                   `json:"type"`
	Location    string                   `json:"location"`
	Priority    string                   `json:"priority"`
	Frequency   model.Frequency          `json:"frequency"`
	DaysOfWeek  []string                 `json:"daysOfWeek"`
	DayOfMonth  int                      `json:"dayOfMonth"`
	StartDate   time.Time                `json:"startDate"`
	IsActive    *bool                    `json:"isActive"`
	Checklist   []model.ChecklistStep    `json:"checklistTemplate"`
	Automation  model.AutomationSettings `json:"automation"`

	// PATCH only: propagation scope for the edit.
	PropagationStrategy service.Strategy `json:"propagationStrategy"`
}

func (r templateRequest) toInput() service.TemplateInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return service.TemplateInput{
		Title:       r.Title,
		Description: r.Description,
		Type:        r.Type,
		Location:    r.Location,
		Priority:    r.Priority,
		Frequency:   r.Frequency,
		DaysOfWeek:  r.DaysOfWeek,
		DayOfMonth:  r.DayOfMonth,
		StartDate:   r.StartDate,
		IsActive:    active,
		Checklist:   r.Checklist,
		Automation:  r.Automation,
	}
}

func (s *Server) handleCreateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tpl, err := s.templates.Create(c.Request.Context(), req.toInput())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (s *Server) handleListTemplates(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	tpls, err := s.templates.List(c.Request.Context(), activeOnly, c.Query("location"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpls)
}

func (s *Server) handleGetTemplate(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	tpl, err := s.templates.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (s *Server) handleUpdateTemplate(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tpl, summary, err := s.templates.Update(c.Request.Context(), id, req.toInput(), req.PropagationStrategy, nil)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": tpl, "changeSummary": summary})
}

func (s *Server) handleDeleteTemplate(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	summary, err := s.templates.Delete(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// handlePropagationScope previews what an update_all edit would hit, for
// the warning dialog shown before the user picks a strategy.
func (s *Server) handlePropagationScope(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, err := s.templates.Get(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	affected, conflicts, err := s.detector.Scope(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affectedTaskCount": affected, "conflictCount": conflicts})
}

type generateRequest struct {
	From time.Time `json:"from" binding:"required"`
	To   time.Time `json:"to" binding:"required"`
}

func (s *Server) handleGenerate(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := s.templates.Generate(c.Request.Context(), id, req.From, req.To)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created, "count": len(created)})
}

func (s *Server) handleListChanges(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	recs, err := s.changes.Recent(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// Task handlers

type taskRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Type        string                `json:"type"`
	Priority    string                `json:"priority"`
	Location    string                `json:"location"`
	DueDate     time.Time             `json:"dueDate"`
	AssigneeID  *uint                 `json:"assigneeId"`
	Checklist   []model.ChecklistStep `json:"checklist"`
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := s.tasks.Create(c.Request.Context(), service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Priority:    req.Priority,
		Location:    req.Location,
		DueDate:     req.DueDate,
		AssigneeID:  req.AssigneeID,
		Checklist:   req.Checklist,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleListTasks(c *gin.Context) {
	filter := repository.TaskFilter{
		Status:   model.TaskStatus(c.Query("status")),
		Location: c.Query("location"),
	}
	if v := c.Query("assigneeId"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			aid := uint(id)
			filter.AssigneeID = &aid
		}
	}
	if v := c.Query("templateId"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			tid := uint(id)
			filter.TemplateID = &tid
		}
	}
	tasks, err := s.tasks.List(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	task, err := s.tasks.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

type taskUpdateRequest struct {
	Title       *string               `json:"title"`
	Description *string               `json:"description"`
	Priority    *string               `json:"priority"`
	AssigneeID  *uint                 `json:"assigneeId"`
	Progress    *int                  `json:"progress"`
	Checklist   []model.ChecklistItem `json:"checklist"`
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req taskUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := s.tasks.Update(c.Request.Context(), id, service.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
		Progress:    req.Progress,
		Checklist:   req.Checklist,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := s.tasks.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type statusRequest struct {
	Status model.TaskStatus `json:"status" binding:"required"`
}

func (s *Server) handleTaskStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := s.tasks.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleTasksWithTemplateUpdates(c *gin.Context) {
	tasks, err := s.tasks.ListWithTemplateUpdates(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

type resolveRequest struct {
	Action         model.ResolutionAction `json:"action" binding:"required"`
	Notes          string                 `json:"notes"`
	ChangeRecordID string                 `json:"changeRecordId"`
}

func (s *Server) handleResolveConflict(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := s.resolution.Resolve(c.Request.Context(), id, service.ResolutionInput{
		Action:         req.Action,
		Notes:          req.Notes,
		ChangeRecordID: req.ChangeRecordID,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleResolutionHistory(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	entries, err := s.changes.ResolutionHistory(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Inventory handlers

type inventoryRequest struct {
	Name             string  `json:"name"`
	Category         string  `json:"category"`
	Unit             string  `json:"unit"`
	Quantity         float64 `json:"quantity"`
	UnitCost         float64 `json:"unitCost"`
	RestockThreshold float64 `json:"restockThreshold"`
	Location         string  `json:"location"`
}

func (s *Server) handleCreateInventory(c *gin.Context) {
	var req inventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := s.inventory.CreateItem(c.Request.Context(), service.InventoryInput{
		Name:             req.Name,
		Category:         req.Category,
		Unit:             req.Unit,
		Quantity:         req.Quantity,
		UnitCost:         req.UnitCost,
		RestockThreshold: req.RestockThreshold,
		Location:         req.Location,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (s *Server) handleListInventory(c *gin.Context) {
	items, err := s.inventory.ListItems(c.Request.Context(), c.Query("category"), c.Query("location"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) handleLowStock(c *gin.Context) {
	items, err := s.inventory.ListLowStock(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type transactionRequest struct {
	Kind      model.TransactionKind `json:"kind" binding:"required"`
	Quantity  float64               `json:"quantity"`
	UnitCost  float64               `json:"unitCost"`
	Reference string                `json:"reference"`
}

func (s *Server) handleCreateTransaction(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := s.inventory.RecordTransaction(c.Request.Context(), id, service.TransactionInput{
		Kind:      req.Kind,
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
		Reference: req.Reference,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) handleListTransactions(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	txs, err := s.inventory.ListTransactions(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

// Training handlers

type courseRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	ValidityDays int    `json:"validityDays"`
}

func (s *Server) handleCreateCourse(c *gin.Context) {
	var req courseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	course, err := s.training.CreateCourse(c.Request.Context(), req.Name, req.Description, req.ValidityDays)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, course)
}

func (s *Server) handleListCourses(c *gin.Context) {
	courses, err := s.training.ListCourses(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, courses)
}

type trainingRecordRequest struct {
	UserID      uint      `json:"userId" binding:"required"`
	CourseID    uint      `json:"courseId" binding:"required"`
	CompletedAt time.Time `json:"completedAt"`
	Score       int       `json:"score"`
}

func (s *Server) handleCreateTrainingRecord(c *gin.Context) {
	var req trainingRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := s.training.RecordCompletion(c.Request.Context(), req.UserID, req.CourseID, req.CompletedAt, req.Score)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) handleExpiringTraining(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("withinDays", "30"))
	recs, err := s.training.ListExpiring(c.Request.Context(), days)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// Equipment handlers

type equipmentRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

func (s *Server) handleCreateEquipment(c *gin.Context) {
	var req equipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	eq, err := s.equipment.Create(c.Request.Context(), req.Name, req.Location, req.Notes)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, eq)
}

func (s *Server) handleListEquipment(c *gin.Context) {
	eqs, err := s.equipment.List(c.Request.Context(), c.Query("location"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, eqs)
}

type equipmentStatusRequest struct {
	Status model.EquipmentStatus `json:"status" binding:"required"`
	Notes  string                `json:"notes"`
}

func (s *Server) handleEquipmentStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req equipmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	eq, err := s.equipment.SetStatus(c.Request.Context(), id, req.Status, req.Notes)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, eq)
}

// Dashboard and notification handlers

func (s *Server) handleProductionDashboard(c *gin.Context) {
	dash, err := s.dashboard.Production(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (s *Server) handleListNotifications(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Query("userId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId query parameter required"})
		return
	}
	unreadOnly := c.Query("unread") == "true"
	ns, err := s.notifier.List(c.Request.Context(), uint(userID), unreadOnly)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ns)
}

func (s *Server) handleMarkNotificationRead(c *gin.Context) {
	if err := s.notifier.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
