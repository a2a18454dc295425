package team

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

const moduleID = "team"

type Module struct {
	log        *logger.Logger
	db         *gorm.DB
	members    *store.Store[Member, *Member]
	memberLogs *store.LogStore[MemberLog, *MemberLog]
	activity   activity.Recorder
	gateway    *gen.Gateway
}

func New(db *gorm.DB, baseLog *logger.Logger, recorder activity.Recorder, gateway *gen.Gateway) *Module {
	log := baseLog.With("module", moduleID)
	return &Module{
		log: log,
		db:  db,
		members: store.New[Member, *Member](db, log, "members",
			store.WithCascade(&MemberLog{}, "member_id")),
		memberLogs: store.NewLogStore[MemberLog, *MemberLog](db, log, "member_logs", "member_id"),
		activity:   recorder,
		gateway:    gateway,
	}
}

func (m *Module) Descriptor() module.Descriptor {
	return module.Descriptor{
		ID:          moduleID,
		Name:        "Team",
		Description: "Manage workspace members, roles and permissions",
		Icon:        "users",
		Color:       "#8B5CF6",
		Category:    "workspace",
		APIPrefix:   "/team",
	}
}

func (m *Module) InitSchema(ctx context.Context) error {
	return m.db.WithContext(ctx).AutoMigrate(&Member{}, &MemberLog{})
}

func (m *Module) Routes(rg *gin.RouterGroup) {
	rg.POST("/generate", m.generate)
	rg.GET("/members", m.listMembers)
	rg.POST("/members", m.createMember)
	rg.GET("/members/:id", m.getMember)
	rg.PUT("/members/:id", m.updateMember)
	rg.DELETE("/members/:id", m.deleteMember)
	rg.GET("/logs", m.listLogs)
}

func (m *Module) listMembers(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	filters := map[string]any{}
	if role := c.Query("role"); role != "" {
		filters["role"] = role
	}
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	members, err := m.members.List(c.Request.Context(), rd.WorkspaceID, filters)
	if err != nil {
		m.log.Error("List members failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	api.RespondOK(c, gin.H{"success": true, "data": members})
}

type createMemberRequest struct {
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Role        string         `json:"role"`
	Permissions map[string]any `json:"permissions"`
}

func (m *Module) createMember(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("name and email are required"))
		return
	}
	if req.Role == "" {
		req.Role = "editor"
	}
	var perms datatypes.JSON
	if req.Permissions != nil {
		raw, err := json.Marshal(req.Permissions)
		if err != nil {
			api.RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("permissions is not valid JSON"))
			return
		}
		perms = raw
	}
	member := &Member{
		Name:        req.Name,
		Email:       req.Email,
		Role:        req.Role,
		Permissions: perms,
		Status:      "pending",
	}
	created, err := m.members.Create(c.Request.Context(), rd.WorkspaceID, member)
	if err != nil {
		m.log.Error("Create member failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	if _, err := m.memberLogs.Append(c.Request.Context(), &MemberLog{
		LogBase:  store.LogBase{CreatedAt: time.Now()},
		MemberID: created.ID,
		Action:   "invited",
		Details:  fmt.Sprintf("Invited as %s", created.Role),
	}); err != nil {
		m.log.Warn("Append member log failed", "error", err)
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "create",
		Description: fmt.Sprintf("Invited member: %s", created.Email),
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondCreated(c, created)
}

func (m *Module) getMember(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid member id"))
		return
	}
	member, err := m.members.Get(c.Request.Context(), rd.WorkspaceID, id)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("member not found"))
		return
	}
	if err != nil {
		m.log.Error("Get member failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	logs, err := m.memberLogs.ListForParent(c.Request.Context(), member.ID, 20)
	if err != nil {
		m.log.Error("List member logs failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	api.RespondOK(c, gin.H{"success": true, "data": gin.H{"member": member, "logs": logs}})
}

func (m *Module) updateMember(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid member id"))
		return
	}
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	fields := api.FilterFields(body, map[string]string{
		"name":        "name",
		"email":       "email",
		"role":        "role",
		"permissions": "permissions",
		"status":      "status",
	})
	updated, err := m.members.Update(c.Request.Context(), rd.WorkspaceID, id, fields)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("member not found"))
		return
	}
	if err != nil {
		m.log.Error("Update member failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	if _, ok := fields["role"]; ok {
		if _, err := m.memberLogs.Append(c.Request.Context(), &MemberLog{
			LogBase:  store.LogBase{CreatedAt: time.Now()},
			MemberID: updated.ID,
			Action:   "role_changed",
			Details:  fmt.Sprintf("Role set to %s", updated.Role),
		}); err != nil {
			m.log.Warn("Append member log failed", "error", err)
		}
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "update",
		Description: fmt.Sprintf("Updated member: %s", updated.Email),
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondOK(c, gin.H{"success": true, "data": updated})
}

func (m *Module) deleteMember(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid member id"))
		return
	}
	err = m.members.Delete(c.Request.Context(), rd.WorkspaceID, id)
	if errors.Is(err, store.ErrNotFound) {
		api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("member not found"))
		return
	}
	if err != nil {
		m.log.Error("Delete member failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	m.activity.Record(c.Request.Context(), activity.Entry{
		Module:      moduleID,
		Action:      "delete",
		Description: "Removed member",
		WorkspaceID: rd.WorkspaceID,
	})
	api.RespondOK(c, gin.H{"success": true})
}

func (m *Module) listLogs(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WorkspaceID == uuid.Nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	memberID, err := uuid.Parse(c.Query("member_id"))
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("member_id is required"))
		return
	}
	if _, err := m.members.Get(c.Request.Context(), rd.WorkspaceID, memberID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("member not found"))
			return
		}
		m.log.Error("Get member failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	logs, err := m.memberLogs.ListForParent(c.Request.Context(), memberID, 50)
	if err != nil {
		m.log.Error("List member logs failed", "error", err)
		api.RespondStorageError(c)
		return
	}
	api.RespondOK(c, gin.H{"success": true, "data": logs})
}

type generateRequest struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
	Role   string `json:"role"`
}

// generate streams AI-drafted team content (onboarding docs, role
// descriptions, outreach emails) over SSE.
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
		genType = "doc"
	}
	prompt := req.Prompt
	if req.Role != "" {
		prompt = fmt.Sprintf("Role: %s\n\n%s", req.Role, prompt)
	}
	m.gateway.Run(c, gen.Request{
		Type:   genType,
		System: "You are a people-operations writer for a marketing team. Draft concise onboarding material and role documentation.",
		Prompt: prompt,
	})
}
