package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/marketflow-backend/internal/activity"
	"github.com/yungbote/marketflow-backend/internal/api"
	"github.com/yungbote/marketflow-backend/internal/gen"
	"github.com/yungbote/marketflow-backend/internal/logger"
	"github.com/yungbote/marketflow-backend/internal/module"
	"github.com/yungbote/marketflow-backend/internal/requestdata"
	"github.com/yungbote/marketflow-backend/internal/store"
)

const moduleID = "scheduler"

type Module struct {
	log      *logger.Logger
	db       *gorm.DB
	tasks    *store.Store[Task, *Task]
	taskLogs *store.LogStore[TaskLog, *TaskLog]
	activity activity.Recorder
	gateway  *gen.Gateway
}

func New(db *gorm.DB, baseLog *logger.Logger, recorder activity.Recorder, gateway *gen.Gateway) *Module {
	log := baseLog.With("module", moduleID)
	return &Module{
		log: log,
		db:  db,
		tasks: store.New[Task, *Task](db, log, "tasks",
			store.WithCascade(&TaskLog{}, "task_id")),
		taskLogs: store.NewLogStore[TaskLog, *TaskLog](db, log, "task_logs", "task_id"),
		activity: recorder,
		gateway:  gateway,
	}
}

func (m *Module) Descriptor() module.Descriptor {
	return module.Descriptor{
		ID:          moduleID,
		Name:        "Scheduler",
		Description: "Schedule recurring campaign sends, reports and social posts",
		Icon:        "clock",
		Color:       "#F59E0B",
		Category:    "automation",
		APIPrefix:   "/scheduler",
	}
}

func (m *Module) InitSchema(ctx context.Context) error {
	return m.db.WithContext(ctx).AutoMigrate(&Task{}, &TaskLog{})
}

func (m *Module) Routes(rg *gin.RouterGroup) {
	rg.POST("/generate", m.generate)
	rg.GET("/tasks", m.listTasks)
	rg.POST("/tasks", m.createTask)
	rg.GET("/tasks/:id", m.getTask)
	rg.PUT("/tasks/:id", m.updateTask)
	rg.DELETE("/tasks/:id", m.deleteTask)
	rg.POST("/tasks/:id/run", m.runTask)
	rg.GET("/logs", m.listLogs)
}

func (m *Module) listTasks(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	filters := map[string]any{}
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if taskType := c.Query("task_type"); taskType != "" {
		filters["task_type"] = taskType
	}
	tasks, err := m.tasks.List(c.Request.Context(), rd.WorkspaceID, filters)
	if err != nil {
		m.log.Error("List tasks failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	api.RespondOK(c, gin.H{"success": true, "data": tasks})
}

type createTaskRequest struct {
	Name     string         `json:"name"`
	TaskType string         `json:"task_type"`
	Schedule string         `json:"schedule"`
	Payload  map[string]any `json:"payload"`
}

func (m *Module) createTask(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Schedule) == "" {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("name and schedule are required"))
		return
	}
	if req.TaskType == "" {
		req.TaskType = "campaign"
	}
	var payload datatypes.JSON
	if req.Payload != nil {
		raw, err := json.Marshal(req.Payload)
		if err != nil {
			api.RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("payload is not valid JSON"))
			return
		}
		payload = raw
	}
	task := &Task{
		Name:     req.Name,
		TaskType: req.TaskType,
		Schedule: req.Schedule,
		Payload:  payload,
		Status:   "pending",
	}
	created, err := m.tasks.Create(c.Request.Context(), rd.WorkspaceID, task)
	if err != nil {
		m.log.Error("Create task failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "create",
		Description: fmt.Sprintf("Created task: %s", created.Name),
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondCreated(c, created)
}

func (m *Module) getTask(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid task id"))
		return
	}
	task, err := m.tasks.Get(c.Request.Context(), rd.WorkspaceID, id)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("task not found"))
		return
	}
	if err != nil {
		m.log.Error("Get task failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	logs, err := m.taskLogs.ListForParent(c.Request.Context(), task.ID, 20)
	if err != nil {
		m.log.Error("List task logs failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	api.RespondOK(c, gin.H{"success": true, "data": gin.H{"task": task, "logs": logs}})
}

func (m *Module) updateTask(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid task id"))
		return
	}
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	fields := api.FilterFields(body, map[string]string{
		"name":      "name",
		"task_type": "task_type",
		"schedule":  "schedule",
		"payload":   "payload",
		"status":    "status",
	})
	updated, err := m.tasks.Update(c.Request.Context(), rd.WorkspaceID, id, fields)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("task not found"))
		return
	}
	if err != nil {
		m.log.Error("Update task failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "update",
		Description: fmt.Sprintf("Updated task: %s", updated.Name),
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondOK(c, gin.H{"success": true, "data": updated})
}

func (m *Module) deleteTask(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid task id"))
		return
	}
	err = m.tasks.Delete(c.Request.Context(), rd.WorkspaceID, id)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("task not found"))
		return
	}
	if err != nil {
		m.log.Error("Delete task failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "delete",
		Description: "Deleted task",
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondOK(c, gin.H{"success": true})
}

// runTask executes a task once, outside its schedule, and records the
// run.
func (m *Module) runTask(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid task id"))
		return
	}
	task, err := m.tasks.Get(c.Request.Context(), rd.WorkspaceID, id)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("task not found"))
		return
	}
	if err != nil {
		m.log.Error("Get task failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	now := time.Now()
	entry, err := m.taskLogs.Append(c.Request.Context(), &TaskLog{
		LogBase: store.LogBase{CreatedAt: now},
		TaskID:  task.ID,
		Status:  "completed",
		Output:  fmt.Sprintf("Manual run of %s task completed", task.TaskType),
	})
	if err != nil {
		m.log.Error("Append task log failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	if _, err := m.tasks.Update(c.Request.Context(), rd.WorkspaceID, task.ID, map[string]any{
		"status":      "active",
		"last_run_at": now,
	}); err != nil {
		m.log.Error("Update task after run failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "run",
		Description: fmt.Sprintf("Ran task: %s", task.Name),
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondOK(c, gin.H{"success": true, "data": entry})
}

func (m *Module) listLogs(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	taskID, err := uuid.Parse(c.Query("task_id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("task_id is required"))
		return
	}
	if _, err := m.tasks.Get(c.Request.Context(), rd.WorkspaceID, taskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("task not found"))
			return
		}
		m.log.Error("Get task failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	logs, err := m.taskLogs.ListForParent(c.Request.Context(), taskID, 50)
	if err != nil {
		m.log.Error("List task logs failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	api.RespondOK(c, gin.H{"success": true, "data": logs})
}

type generateRequest struct {
	Type     string `json:"type"`
	Prompt   string `json:"prompt"`
	TaskType string `json:"task_type"`
	Cadence  string `json:"cadence"`
}

// generate streams an AI-drafted posting calendar or campaign sequence
// over SSE.
func (m *Module) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("prompt is required"))
		return
	}
	genType := req.Type
	if genType == "" {
		genType = "schedule"
	}
	var sb strings.Builder
	if req.TaskType != "" {
		fmt.Fprintf(&sb, "Task type: %s\n", req.TaskType)
	}
	if req.Cadence != "" {
		fmt.Fprintf(&sb, "Cadence: %s\n", req.Cadence)
	}
	sb.WriteString("\n")
	sb.WriteString(req.Prompt)
	m.gateway.Run(c, gen.Request{
		Type:   genType,
		System: "You are a marketing operations planner. Produce concrete schedules and campaign sequences with dates, channels and copy angles.",
		Prompt: sb.String(),
	})
}
