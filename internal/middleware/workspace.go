package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/marketflow-backend/internal/logger"
	"github.com/yungbote/marketflow-backend/internal/requestdata"
)

type WorkspaceClaims struct {
	WorkspaceID string `json:"workspace_id"`
	jwt.RegisteredClaims
}

// WorkspaceMiddleware resolves the tenant for every inbound request.
// Downstream handlers read the workspace id from the request context
// only; a request that cannot be resolved never reaches a module route.
type WorkspaceMiddleware struct {
	log          *logger.Logger
	jwtSecretKey string
}

func NewWorkspaceMiddleware(log *logger.Logger, jwtSecretKey string) *WorkspaceMiddleware {
	middlewareLog := log.With("middleware", "WorkspaceMiddleware")
	return &WorkspaceMiddleware{log: middlewareLog, jwtSecretKey: jwtSecretKey}
}

func (wm *WorkspaceMiddleware) RequireWorkspace() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		workspaceID, err := wm.resolveWorkspace(tokenString)
		if err != nil {
			wm.log.Debug("Workspace resolution failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		rd := &requestdata.RequestData{
			TokenString: tokenString,
			WorkspaceID: workspaceID,
		}
		c.Request = c.Request.WithContext(requestdata.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

func (wm *WorkspaceMiddleware) resolveWorkspace(tokenString string) (uuid.UUID, error) {
	parsedToken, err := jwt.ParseWithClaims(tokenString, &WorkspaceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(wm.jwtSecretKey), nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsedToken.Claims.(*WorkspaceClaims)
	if !ok || !parsedToken.Valid {
		return uuid.Nil, fmt.Errorf("invalid or expired token")
	}
	workspaceID, err := uuid.Parse(claims.WorkspaceID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid workspace id in token: %w", err)
	}
	if workspaceID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("empty workspace id in token")
	}
	return workspaceID, nil
}

// extractToken checks the query string first (EventSource cannot set
// headers), then the Authorization header.
func extractToken(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
