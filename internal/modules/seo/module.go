package seo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/marketflow-backend/internal/activity"
	"github.com/yungbote/marketflow-backend/internal/api"
	"github.com/yungbote/marketflow-backend/internal/gen"
	"github.com/yungbote/marketflow-backend/internal/logger"
	"github.com/yungbote/marketflow-backend/internal/module"
	"github.com/yungbote/marketflow-backend/internal/requestdata"
	"github.com/yungbote/marketflow-backend/internal/store"
)

const moduleID = "seo"

type Module struct {
	log      *logger.Logger
	db       *gorm.DB
	keywords *store.Store[Keyword, *Keyword]
	audits   *store.LogStore[Audit, *Audit]
	activity activity.Recorder
	gateway  *gen.Gateway
}

func New(db *gorm.DB, baseLog *logger.Logger, recorder activity.Recorder, gateway *gen.Gateway) *Module {
	log := baseLog.With("module", moduleID)
	return &Module{
		log: log,
		db:  db,
		// Keyword lists rank by opportunity, not recency.
		keywords: store.New[Keyword, *Keyword](db, log, "keywords",
			store.WithOrder("opportunity DESC"),
			store.WithCascade(&Audit{}, "keyword_id")),
		audits:   store.NewLogStore[Audit, *Audit](db, log, "audits", "keyword_id"),
		activity: recorder,
		gateway:  gateway,
	}
}

func (m *Module) Descriptor() module.Descriptor {
	return module.Descriptor{
		ID:          moduleID,
		Name:        "SEO",
		Description: "Track keyword opportunities and generate optimized content",
		Icon:        "search",
		Color:       "#10B981",
		Category:    "content",
		APIPrefix:   "/seo",
	}
}

func (m *Module) InitSchema(ctx context.Context) error {
	return m.db.WithContext(ctx).AutoMigrate(&Keyword{}, &Audit{})
}

func (m *Module) Routes(rg *gin.RouterGroup) {
	rg.POST("/generate", m.generate)
	rg.GET("/keywords", m.listKeywords)
	rg.POST("/keywords", m.createKeyword)
	rg.GET("/keywords/:id", m.getKeyword)
	rg.PUT("/keywords/:id", m.updateKeyword)
	rg.DELETE("/keywords/:id", m.deleteKeyword)
	rg.GET("/audits", m.listAudits)
}

func (m *Module) listKeywords(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	filters := map[string]any{}
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	keywords, err := m.keywords.List(c.Request.Context(), rd.WorkspaceID, filters)
	if err != nil {
		m.log.Error("List keywords failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	api.RespondOK(c, gin.H{"success": true, "data": keywords})
}

type createKeywordRequest struct {
	Term         string `json:"term"`
	SearchVolume int    `json:"search_volume"`
	Difficulty   int    `json:"difficulty"`
}

func (m *Module) createKeyword(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req createKeywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if strings.TrimSpace(req.Term) == "" {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("term is required"))
		return
	}
	keyword := &Keyword{
		Term:         req.Term,
		SearchVolume: req.SearchVolume,
		Difficulty:   req.Difficulty,
		Opportunity:  opportunityScore(req.SearchVolume, req.Difficulty),
		Status:       "active",
	}
	created, err := m.keywords.Create(c.Request.Context(), rd.WorkspaceID, keyword)
	if err != nil {
		m.log.Error("Create keyword failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "create",
		Description: fmt.Sprintf("Created keyword: %s", created.Term),
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondCreated(c, created)
}

func (m *Module) getKeyword(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid keyword id"))
		return
	}
	keyword, err := m.keywords.Get(c.Request.Context(), rd.WorkspaceID, id)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("keyword not found"))
		return
	}
	if err != nil {
		m.log.Error("Get keyword failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	audits, err := m.audits.ListForParent(c.Request.Context(), keyword.ID, 20)
	if err != nil {
		m.log.Error("List audits failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	api.RespondOK(c, gin.H{"success": true, "data": gin.H{"keyword": keyword, "audits": audits}})
}

func (m *Module) updateKeyword(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid keyword id"))
		return
	}
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	fields := api.FilterFields(body, map[string]string{
		"term":          "term",
		"search_volume": "search_volume",
		"difficulty":    "difficulty",
		"status":        "status",
	})
	updated, err := m.keywords.Update(c.Request.Context(), rd.WorkspaceID, id, fields)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("keyword not found"))
		return
	}
	if err != nil {
		m.log.Error("Update keyword failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	// Volume or difficulty changes reprice the opportunity.
	if _, volChanged := fields["search_volume"]; volChanged || hasKey(fields, "difficulty") {
		updated, err = m.keywords.Update(c.Request.Context(), rd.WorkspaceID, id, map[string]any{
			"opportunity": opportunityScore(updated.SearchVolume, updated.Difficulty),
		})
		if err != nil {
			m.log.Error("Reprice keyword opportunity failed", "error", err)
			api.RespondStorageError(c)
			return
		}
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "update",
		Description: fmt.Sprintf("Updated keyword: %s", updated.Term),
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondOK(c, gin.H{"success": true, "data": updated})
}

func hasKey(fields map[string]any, key string) bool {
	_, ok := fields[key]
	return ok
}

func (m *Module) deleteKeyword(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid keyword id"))
		return
	}
	err = m.keywords.Delete(c.Request.Context(), rd.WorkspaceID, id)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("keyword not found"))
		return
	}
	if err != nil {
		m.log.Error("Delete keyword failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "delete",
		Description: "Deleted keyword",
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondOK(c, gin.H{"success": true})
}

func (m *Module) listAudits(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	keywordID, err := uuid.Parse(c.Query("keyword_id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("keyword_id is required"))
		return
	}
	if _, err := m.keywords.Get(c.Request.Context(), rd.WorkspaceID, keywordID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("keyword not found"))
			return
		}
		m.log.Error("Get keyword failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	audits, err := m.audits.ListForParent(c.Request.Context(), keywordID, 50)
	if err != nil {
		m.log.Error("List audits failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	api.RespondOK(c, gin.H{"success": true, "data": audits})
}

type generateRequest struct {
	Type     string   `json:"type"`
	Prompt   string   `json:"prompt"`
	Keywords []string `json:"keywords"`
}

// generate streams SEO-optimized copy (meta descriptions, article
// outlines, title variants) over SSE.
func (m *Module) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" && len(req.Keywords) == 0 {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("prompt or keywords are required"))
		return
	}
	genType := req.Type
	if genType == "" {
		genType = "meta"
	}
	var sb strings.Builder
	if len(req.Keywords) > 0 {
		fmt.Fprintf(&sb, "Target keywords: %s\n\n", strings.Join(req.Keywords, ", "))
	}
	sb.WriteString(req.Prompt)
	m.gateway.Run(c, gen.Request{
		Type:   genType,
		System: "You are an SEO content strategist. Write copy that reads naturally while targeting the given keywords.",
		Prompt: sb.String(),
	})
}
