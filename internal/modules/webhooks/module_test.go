package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/marketflow-backend/internal/activity"
	"github.com/yungbote/marketflow-backend/internal/gen"
	"github.com/yungbote/marketflow-backend/internal/logger"
	"github.com/yungbote/marketflow-backend/internal/requestdata"
)

type fakeAIClient struct{}

func (fakeAIClient) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "ok", nil
}

func (fakeAIClient) StreamText(ctx context.Context, system, user string, onDelta func(delta string)) (string, error) {
	onDelta("{")
	onDelta(`"event":"order.created"}`)
	return `{"event":"order.created"}`, nil
}

func (fakeAIClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return "https://img.example.com/out.png", nil
}

type testEnv struct {
	router   *gin.Engine
	db       *gorm.DB
	module   *Module
	recorder activity.Recorder
	ws       uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	dsn := "file:" + filepath.Join(t.TempDir(), "webhooks_test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := activity.InitSchema(db); err != nil {
		t.Fatalf("migrate activity: %v", err)
	}

	recorder := activity.NewRecorder(db, log)
	m := New(db, log, recorder, gen.NewGateway(fakeAIClient{}, log))
	if err := m.InitSchema(context.Background()); err != nil {
		t.Fatalf("migrate module: %v", err)
	}

	ws := uuid.New()
	router := gin.New()
	rg := router.Group("/api" + m.Descriptor().APIPrefix)
	rg.Use(func(c *gin.Context) {
		rd := &requestdata.RequestData{WorkspaceID: ws}
		c.Request = c.Request.WithContext(requestdata.WithRequestData(c.Request.Context(), rd))
		c.Next()
	})
	m.Routes(rg)

	return &testEnv{router: router, db: db, module: m, recorder: recorder, ws: ws}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/webhooks"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createWebhook(t *testing.T, name string) uuid.UUID {
	t.Helper()
	w := e.do(t, "POST", "/webhooks", map[string]any{
		"name":   name,
		"url":    "https://hooks.example.com/in",
		"events": []string{"order.created"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create webhook: %d %s", w.Code, w.Body.String())
	}
	var created Webhook
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created webhook: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatalf("expected generated id")
	}
	return created.ID
}

func TestCreateWebhook_RecordsActivity(t *testing.T) {
	env := newTestEnv(t)
	env.createWebhook(t, "Order events")

	entries, err := env.recorder.Recent(context.Background(), env.ws, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one activity entry, got %d", len(entries))
	}
	if entries[0].Module != "webhooks" || entries[0].Action != "create" {
		t.Fatalf("unexpected activity entry: %+v", entries[0])
	}
	if !strings.Contains(entries[0].Description, "Order events") {
		t.Fatalf("description missing webhook name: %q", entries[0].Description)
	}
}

func TestCreateWebhook_RejectsBadURL(t *testing.T) {
	env := newTestEnv(t)
	for _, badURL := range []string{"", "not a url", "ftp://example.com/x"} {
		w := env.do(t, "POST", "/webhooks", map[string]any{"name": "n", "url": badURL})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("url %q: expected 400, got %d", badURL, w.Code)
		}
	}
}

func TestGetWebhook_UnknownIDReturns404(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/webhooks/"+uuid.New().String(), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("unexpected error code %q", envelope.Error.Code)
	}
}

func TestDeleteWebhook_CascadesDeliveryLogs(t *testing.T) {
	env := newTestEnv(t)
	id := env.createWebhook(t, "to delete")

	if w := env.do(t, "POST", "/webhooks/"+id.String()+"/test", nil); w.Code != http.StatusOK {
		t.Fatalf("test delivery: %d %s", w.Code, w.Body.String())
	}
	if w := env.do(t, "DELETE", "/webhooks/"+id.String(), nil); w.Code != http.StatusOK {
		t.Fatalf("delete webhook: %d %s", w.Code, w.Body.String())
	}

	// Logs are reachable only through their parent, so they 404 with it.
	if w := env.do(t, "GET", "/logs?webhook_id="+id.String(), nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for logs of deleted webhook, got %d", w.Code)
	}
	var count int64
	if err := env.db.Model(&DeliveryLog{}).Where("webhook_id = ?", id).Count(&count).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected cascade to remove delivery logs, found %d", count)
	}

	if w := env.do(t, "DELETE", "/webhooks/"+id.String(), nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %d", w.Code)
	}
}

func TestInitSchema_IdempotentOnPopulatedStore(t *testing.T) {
	env := newTestEnv(t)
	id := env.createWebhook(t, "survives reboots")

	// Repeated boots re-run the migration; data must survive.
	for i := 0; i < 2; i++ {
		if err := env.module.InitSchema(context.Background()); err != nil {
			t.Fatalf("InitSchema run %d failed: %v", i+2, err)
		}
	}

	w := env.do(t, "GET", "/webhooks/"+id.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("webhook lost after schema re-init: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "survives reboots") {
		t.Fatalf("webhook data mutated after schema re-init: %s", w.Body.String())
	}
}

func TestUpdateWebhook_RejectsBadURL(t *testing.T) {
	env := newTestEnv(t)
	id := env.createWebhook(t, "strict url")

	for _, badURL := range []string{"", "not a url", "ftp://example.com/x"} {
		w := env.do(t, "PUT", "/webhooks/"+id.String(), map[string]any{"url": badURL})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("url %q: expected 400, got %d: %s", badURL, w.Code, w.Body.String())
		}
	}

	var hook Webhook
	if err := env.db.Where("id = ?", id).First(&hook).Error; err != nil {
		t.Fatalf("load webhook: %v", err)
	}
	if hook.URL != "https://hooks.example.com/in" {
		t.Fatalf("rejected update mutated the stored url: %q", hook.URL)
	}
}

func TestUpdateWebhook_PartialFieldsOnly(t *testing.T) {
	env := newTestEnv(t)
	id := env.createWebhook(t, "original name")

	w := env.do(t, "PUT", "/webhooks/"+id.String(), map[string]any{
		"status":  "paused",
		"ignored": "field",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update webhook: %d %s", w.Code, w.Body.String())
	}

	var hook Webhook
	if err := env.db.Where("id = ?", id).First(&hook).Error; err != nil {
		t.Fatalf("load webhook: %v", err)
	}
	if hook.Status != "paused" {
		t.Fatalf("status not updated: %q", hook.Status)
	}
	if hook.Name != "original name" {
		t.Fatalf("absent field overwritten: %q", hook.Name)
	}
}

func TestGenerate_StreamsEventStream(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/generate", map[string]any{"prompt": "payload for order.created"})
	if w.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: chunk") {
		t.Fatalf("missing chunk events: %q", body)
	}
	if strings.Count(body, "event: result") != 1 {
		t.Fatalf("expected exactly one result event: %q", body)
	}
	if !strings.Contains(body, `"type":"payload"`) {
		t.Fatalf("expected default payload type tag: %q", body)
	}
}

func TestGenerate_RequiresPrompt(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "POST", "/generate", map[string]any{"prompt": "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank prompt, got %d", w.Code)
	}
}
