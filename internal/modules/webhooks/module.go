package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
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

const moduleID = "webhooks"

type Module struct {
	log       *logger.Logger
	db        *gorm.DB
	webhooks  *store.Store[Webhook, *Webhook]
	delivLogs *store.LogStore[DeliveryLog, *DeliveryLog]
	activity  activity.Recorder
	gateway   *gen.Gateway
}

func New(db *gorm.DB, baseLog *logger.Logger, recorder activity.Recorder, gateway *gen.Gateway) *Module {
	log := baseLog.With("module", moduleID)
	return &Module{
		log: log,
		db:  db,
		webhooks: store.New[Webhook, *Webhook](db, log, "webhooks",
			store.WithCascade(&DeliveryLog{}, "webhook_id")),
		delivLogs: store.NewLogStore[DeliveryLog, *DeliveryLog](db, log, "delivery_logs", "webhook_id"),
		activity:  recorder,
		gateway:   gateway,
	}
}

func (m *Module) Descriptor() module.Descriptor {
	return module.Descriptor{
		ID:          moduleID,
		Name:        "Webhooks",
		Description: "Push workspace events to external endpoints",
		Icon:        "webhook",
		Color:       "#EC4899",
		Category:    "automation",
		APIPrefix:   "/webhooks",
	}
}

func (m *Module) InitSchema(ctx context.Context) error {
	return m.db.WithContext(ctx).AutoMigrate(&Webhook{}, &DeliveryLog{})
}

func (m *Module) Routes(rg *gin.RouterGroup) {
	rg.POST("/generate", m.generate)
	rg.GET("/webhooks", m.listWebhooks)
	rg.POST("/webhooks", m.createWebhook)
	rg.GET("/webhooks/:id", m.getWebhook)
	rg.PUT("/webhooks/:id", m.updateWebhook)
	rg.DELETE("/webhooks/:id", m.deleteWebhook)
	rg.POST("/webhooks/:id/test", m.testWebhook)
	rg.GET("/logs", m.listLogs)
}

func (m *Module) listWebhooks(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	filters := map[string]any{}
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	hooks, err := m.webhooks.List(c.Request.Context(), rd.WorkspaceID, filters)
	if err != nil {
		m.log.Error("List webhooks failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	api.RespondOK(c, gin.H{"success": true, "data": hooks})
}

func validEndpointURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

type createWebhookRequest struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

func (m *Module) createWebhook(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req createWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("name is required"))
		return
	}
	if !validEndpointURL(req.URL) {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("url must be a valid http(s) endpoint"))
		return
	}
	var events datatypes.JSON
	if len(req.Events) > 0 {
		raw, err := json.Marshal(req.Events)
		if err != nil {
			api.RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("events is not valid JSON"))
			return
		}
		events = raw
	}
	hook := &Webhook{
		Name:   req.Name,
		URL:    req.URL,
		Secret: req.Secret,
		Events: events,
		Status: "active",
	}
	created, err := m.webhooks.Create(c.Request.Context(), rd.WorkspaceID, hook)
	if err != nil {
		m.log.Error("Create webhook failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "create",
		Description: fmt.Sprintf("Created webhook: %s", created.Name),
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondCreated(c, created)
}

func (m *Module) getWebhook(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid webhook id"))
		return
	}
	hook, err := m.webhooks.Get(c.Request.Context(), rd.WorkspaceID, id)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("webhook not found"))
		return
	}
	if err != nil {
		m.log.Error("Get webhook failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	logs, err := m.delivLogs.ListForParent(c.Request.Context(), hook.ID, 20)
	if err != nil {
		m.log.Error("List delivery logs failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	api.RespondOK(c, gin.H{"success": true, "data": gin.H{"webhook": hook, "logs": logs}})
}

func (m *Module) updateWebhook(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid webhook id"))
		return
	}
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	fields := api.FilterFields(body, map[string]string{
		"name":   "name",
		"url":    "url",
		"secret": "secret",
		"events": "events",
		"status": "status",
	})
	if raw, ok := fields["url"]; ok {
		s, isString := raw.(string)
		if !isString || !validEndpointURL(s) {
			api.RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("url must be a valid http(s) endpoint"))
			return
		}
	}
	updated, err := m.webhooks.Update(c.Request.Context(), rd.WorkspaceID, id, fields)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("webhook not found"))
		return
	}
	if err != nil {
		m.log.Error("Update webhook failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "update",
		Description: fmt.Sprintf("Updated webhook: %s", updated.Name),
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondOK(c, gin.H{"success": true, "data": updated})
}

func (m *Module) deleteWebhook(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid webhook id"))
		return
	}
	err = m.webhooks.Delete(c.Request.Context(), rd.WorkspaceID, id)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("webhook not found"))
		return
	}
	if err != nil {
		m.log.Error("Delete webhook failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "delete",
		Description: "Deleted webhook",
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondOK(c, gin.H{"success": true})
}

// testWebhook records a sample delivery so an endpoint can be verified
// without waiting for a real event.
func (m *Module) testWebhook(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid webhook id"))
		return
	}
	hook, err := m.webhooks.Get(c.Request.Context(), rd.WorkspaceID, id)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("webhook not found"))
		return
	}
	if err != nil {
		m.log.Error("Get webhook failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	sample, _ := json.Marshal(map[string]any{
		"event":     "test.ping",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	entry, err := m.delivLogs.Append(c.Request.Context(), &DeliveryLog{
		LogBase:   store.LogBase{CreatedAt: time.Now()},
		WebhookID: hook.ID,
		Status:    "delivered",
		Payload:   sample,
	})
	if err != nil {
		m.log.Error("Append delivery log failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "test",
		Description: fmt.Sprintf("Tested webhook: %s", hook.Name),
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
	webhookID, err := uuid.Parse(c.Query("webhook_id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("webhook_id is required"))
		return
	}
	if _, err := m.webhooks.Get(c.Request.Context(), rd.WorkspaceID, webhookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("webhook not found"))
			return
		}
		m.log.Error("Get webhook failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	logs, err := m.delivLogs.ListForParent(c.Request.Context(), webhookID, 50)
	if err != nil {
		m.log.Error("List delivery logs failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	api.RespondOK(c, gin.H{"success": true, "data": logs})
}

type generateRequest struct {
	Type   string   `json:"type"`
	Prompt string   `json:"prompt"`
	Events []string `json:"events"`
}

// generate streams an AI-drafted payload template or handler snippet
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
		genType = "payload"
	}
	prompt := req.Prompt
	if len(req.Events) > 0 {
		prompt = fmt.Sprintf("Events: %s\n\n%s", strings.Join(req.Events, ", "), prompt)
	}
	m.gateway.Run(c, gen.Request{
		Type:   genType,
		System: "You are an API integrations engineer. Draft webhook payload schemas and consumer handler examples.",
		Prompt: prompt,
	})
}
