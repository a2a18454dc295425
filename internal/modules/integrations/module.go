package integrations

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

const moduleID = "integrations"

type Module struct {
	log         *logger.Logger
	db          *gorm.DB
	connections *store.Store[Connection, *Connection]
	syncLogs    *store.LogStore[SyncLog, *SyncLog]
	activity    activity.Recorder
	gateway     *gen.Gateway
}

func New(db *gorm.DB, baseLog *logger.Logger, recorder activity.Recorder, gateway *gen.Gateway) *Module {
	log := baseLog.With("module", moduleID)
	return &Module{
		log: log,
		db:  db,
		connections: store.New[Connection, *Connection](db, log, "connections",
			store.WithCascade(&SyncLog{}, "connection_id")),
		syncLogs: store.NewLogStore[SyncLog, *SyncLog](db, log, "sync_logs", "connection_id"),
		activity: recorder,
		gateway:  gateway,
	}
}

func (m *Module) Descriptor() module.Descriptor {
	return module.Descriptor{
		ID:          moduleID,
		Name:        "Integrations",
		Description: "Connect CRMs, email platforms and ad networks to sync audience data",
		Icon:        "plug",
		Color:       "#6366F1",
		Category:    "data",
		APIPrefix:   "/integrations",
	}
}

func (m *Module) InitSchema(ctx context.Context) error {
	return m.db.WithContext(ctx).AutoMigrate(&Connection{}, &SyncLog{})
}

func (m *Module) Routes(rg *gin.RouterGroup) {
	rg.POST("/generate", m.generate)
	rg.GET("/connections", m.listConnections)
	rg.POST("/connections", m.createConnection)
	rg.GET("/connections/:id", m.getConnection)
	rg.PUT("/connections/:id", m.updateConnection)
	rg.DELETE("/connections/:id", m.deleteConnection)
	rg.POST("/connections/:id/sync", m.syncConnection)
	rg.GET("/logs", m.listLogs)
}

func (m *Module) listConnections(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	filters := map[string]any{}
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if provider := c.Query("provider"); provider != "" {
		filters["provider"] = provider
	}
	connections, err := m.connections.List(c.Request.Context(), rd.WorkspaceID, filters)
	if err != nil {
		m.log.Error("List connections failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	api.RespondOK(c, gin.H{"success": true, "data": connections})
}

type createConnectionRequest struct {
	Name     string         `json:"name"`
	Provider string         `json:"provider"`
	Config   map[string]any `json:"config"`
}

func (m *Module) createConnection(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req createConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("name is required"))
		return
	}
	if strings.TrimSpace(req.Provider) == "" {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("provider is required"))
		return
	}
	var cfg datatypes.JSON
	if req.Config != nil {
		raw, err := json.Marshal(req.Config)
		if err != nil {
			api.RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("config is not valid JSON"))
			return
		}
		cfg = raw
	}
	conn := &Connection{
		Name:     req.Name,
		Provider: req.Provider,
		Config:   cfg,
		Status:   "disconnected",
	}
	created, err := m.connections.Create(c.Request.Context(), rd.WorkspaceID, conn)
	if err != nil {
		m.log.Error("Create connection failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "create",
		Description: fmt.Sprintf("Created connection: %s", created.Name),
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondCreated(c, created)
}

func (m *Module) getConnection(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid connection id"))
		return
	}
	conn, err := m.connections.Get(c.Request.Context(), rd.WorkspaceID, id)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("connection not found"))
		return
	}
	if err != nil {
		m.log.Error("Get connection failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	logs, err := m.syncLogs.ListForParent(c.Request.Context(), conn.ID, 20)
	if err != nil {
		m.log.Error("List sync logs failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	api.RespondOK(c, gin.H{"success": true, "data": gin.H{"connection": conn, "logs": logs}})
}

func (m *Module) updateConnection(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid connection id"))
		return
	}
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	fields := api.FilterFields(body, map[string]string{
		"name":     "name",
		"provider": "provider",
		"config":   "config",
		"status":   "status",
	})
	updated, err := m.connections.Update(c.Request.Context(), rd.WorkspaceID, id, fields)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("connection not found"))
		return
	}
	if err != nil {
		m.log.Error("Update connection failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "update",
		Description: fmt.Sprintf("Updated connection: %s", updated.Name),
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondOK(c, gin.H{"success": true, "data": updated})
}

func (m *Module) deleteConnection(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid connection id"))
		return
	}
	err = m.connections.Delete(c.Request.Context(), rd.WorkspaceID, id)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("connection not found"))
		return
	}
	if err != nil {
		m.log.Error("Delete connection failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "delete",
		Description: "Deleted connection",
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondOK(c, gin.H{"success": true})
}

// syncConnection records a manual sync run and marks the connection
// active.
func (m *Module) syncConnection(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid connection id"))
		return
	}
	conn, err := m.connections.Get(c.Request.Context(), rd.WorkspaceID, id)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("connection not found"))
		return
	}
	if err != nil {
		m.log.Error("Get connection failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	now := time.Now()
	entry, err := m.syncLogs.Append(c.Request.Context(), &SyncLog{
		LogBase:      store.LogBase{CreatedAt: now},
		ConnectionID: conn.ID,
		Status:       "success",
		Details:      fmt.Sprintf("Manual sync of %s completed", conn.Provider),
	})
	if err != nil {
		m.log.Error("Append sync log failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	if _, err := m.connections.Update(c.Request.Context(), rd.WorkspaceID, conn.ID, map[string]any{
		"status":         "active",
		"last_synced_at": now,
	}); err != nil {
		m.log.Error("Update connection after sync failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "sync",
		Description: fmt.Sprintf("Synced connection: %s", conn.Name),
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
	connectionID, err := uuid.Parse(c.Query("connection_id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("connection_id is required"))
		return
	}
	// Resolving the parent enforces workspace scoping for log reads.
	if _, err := m.connections.Get(c.Request.Context(), rd.WorkspaceID, connectionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("connection not found"))
			return
		}
		m.log.Error("Get connection failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	logs, err := m.syncLogs.ListForParent(c.Request.Context(), connectionID, 50)
	if err != nil {
		m.log.Error("List sync logs failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	api.RespondOK(c, gin.H{"success": true, "data": logs})
}

type generateRequest struct {
	Type     string `json:"type"`
	Prompt   string `json:"prompt"`
	Provider string `json:"provider"`
}

// generate streams AI-drafted integration copy (setup guides, field
// mapping suggestions) over SSE.
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
		genType = "guide"
	}
	prompt := req.Prompt
	if req.Provider != "" {
		prompt = fmt.Sprintf("Provider: %s\n\n%s", req.Provider, prompt)
	}
	m.gateway.Run(c, gen.Request{
		Type:   genType,
		System: "You are an integrations specialist for a marketing automation platform. Write clear, actionable setup and data-mapping guidance.",
		Prompt: prompt,
	})
}
