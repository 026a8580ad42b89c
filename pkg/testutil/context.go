package testutil

import (
	"net/http"

	id "vouch/pkg/domain"
	"vouch/pkg/requestcontext"
)

// WithPrincipal adds tenant and acting user to the request context, the way
// the auth middleware does for a validated bearer token.
func WithPrincipal(req *http.Request, tenantID id.TenantID, userID id.UserID) *http.Request {
	ctx := requestcontext.WithTenantID(req.Context(), tenantID)
	ctx = requestcontext.WithUserID(ctx, userID)
	return req.WithContext(ctx)
}

// WithTraceID adds a correlation id to the request context.
func WithTraceID(req *http.Request, traceID string) *http.Request {
	return req.WithContext(requestcontext.WithTraceID(req.Context(), traceID))
}
