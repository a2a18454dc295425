package gen

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/marketflow-backend/internal/ai"
	"github.com/yungbote/marketflow-backend/internal/api"
	"github.com/yungbote/marketflow-backend/internal/logger"
	"github.com/yungbote/marketflow-backend/internal/sse"
)

// Request is what a module's generate route hands to the gateway after
// building its prompt from module-specific fields.
type Request struct {
	// Type tags the terminal result payload ("email", "post", "image", ...).
	Type string
	// System is the module's system prompt.
	System string
	// Prompt is the assembled user prompt.
	Prompt string
}

// Gateway adapts the provider client onto a streaming session. Every
// module generation route goes through Run so the chunk ordering,
// single-terminal-event and cancellation guarantees hold uniformly.
type Gateway struct {
	log *logger.Logger
	ai  ai.Client
}

func NewGateway(aiClient ai.Client, baseLog *logger.Logger) *Gateway {
	return &Gateway{
		log: baseLog.With("component", "GenerationGateway"),
		ai:  aiClient,
	}
}

// Run opens a streaming session on the response and drives one
// generation call over it. Upstream deltas become chunk events, success
// becomes one result event, failure one error event. The upstream call
// runs on the request context, so a client disconnect cancels it and no
// terminal event is attempted on the dead transport.
func (g *Gateway) Run(c *gin.Context, req Request) {
	session, err := sse.NewSession(c.Writer, c.Request, g.log)
	if err != nil {
		g.log.Error("Failed to open streaming session", "error", err)
		api.RespondError(c, http.StatusInternalServerError, "streaming_unsupported", err)
		return
	}
	ctx := session.Context()

	if req.Type == "image" {
		g.runImage(ctx, session, req)
		return
	}

	full, err := g.ai.StreamText(ctx, req.System, req.Prompt, func(delta string) {
		if sendErr := session.SendChunk(delta); sendErr != nil {
			g.log.Debug("Chunk dropped after session close", "error", sendErr)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			// Client went away; upstream was canceled, nothing to report.
			g.log.Debug("Generation canceled by client disconnect", "error", ctx.Err())
			return
		}
		g.log.Error("Generation failed", "error", err)
		if sendErr := session.SendError(err); sendErr != nil && !errors.Is(sendErr, sse.ErrSessionClosed) {
			g.log.Warn("Failed to write error event", "error", sendErr)
		}
		return
	}

	if sendErr := session.SendResult(gin.H{"content": full, "type": req.Type}); sendErr != nil && !errors.Is(sendErr, sse.ErrSessionClosed) {
		g.log.Warn("Failed to write result event", "error", sendErr)
	}
}

// runImage drives a non-streaming image call: no chunks, one terminal
// event carrying the image URL.
func (g *Gateway) runImage(ctx context.Context, session *sse.Session, req Request) {
	url, err := g.ai.GenerateImage(ctx, req.Prompt)
	if err != nil {
		if ctx.Err() != nil {
			g.log.Debug("Image generation canceled by client disconnect", "error", ctx.Err())
			return
		}
		g.log.Error("Image generation failed", "error", err)
		if sendErr := session.SendError(err); sendErr != nil && !errors.Is(sendErr, sse.ErrSessionClosed) {
			g.log.Warn("Failed to write error event", "error", sendErr)
		}
		return
	}
	if sendErr := session.SendResult(gin.H{"content": url, "type": "image"}); sendErr != nil && !errors.Is(sendErr, sse.ErrSessionClosed) {
		g.log.Warn("Failed to write result event", "error", sendErr)
	}
}
