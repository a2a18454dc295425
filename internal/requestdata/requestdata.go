package requestdata

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

var requestDataKey contextKey

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey)
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

// RequestData carries the identity resolved for one inbound request.
// WorkspaceID is the tenant scoping key; handlers must read it from here
// rather than from the request body or query string.
type RequestData struct {
	TokenString string
	WorkspaceID uuid.UUID
}
