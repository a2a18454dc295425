package server

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/marketflow-backend/internal/activity"
	"github.com/yungbote/marketflow-backend/internal/api"
	"github.com/yungbote/marketflow-backend/internal/logger"
	"github.com/yungbote/marketflow-backend/internal/middleware"
	"github.com/yungbote/marketflow-backend/internal/module"
	"github.com/yungbote/marketflow-backend/internal/requestdata"
)

type RouterConfig struct {
	Log                 *logger.Logger
	Registry            *module.Registry
	WorkspaceMiddleware *middleware.WorkspaceMiddleware
	Activity            activity.Recorder
	CORSOrigins         []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api")
	apiGroup.Use(cfg.WorkspaceMiddleware.RequireWorkspace())

	// Dashboard shell: the fixed module set and the workspace feed.
	apiGroup.GET("/modules", func(c *gin.Context) {
		api.RespondOK(c, gin.H{"success": true, "data": cfg.Registry.Descriptors()})
	})
	apiGroup.GET("/activity", func(c *gin.Context) {
		rd := requestdata.GetRequestData(c.Request.Context())
		if rd == nil || rd.WorkspaceID == uuid.Nil {
			api.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		entries, err := cfg.Activity.Recent(c.Request.Context(), rd.WorkspaceID, 50)
		if err != nil {
			cfg.Log.Error("List activity failed", "error", err)
			api.RespondStorageError(c)
			return
		}
		api.RespondOK(c, gin.H{"success": true, "data": entries})
	})

	cfg.Registry.Mount(apiGroup)

	return router
}

// SplitOrigins parses the comma-separated CORS_ORIGINS value.
func SplitOrigins(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
