package tenancy

import (
	"context"
	"net/http"
)

type ctxKey string

const orgKey ctxKey = "crm.org_id"

// WithOrgID stores the org id in context.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgKey, orgID)
}

// OrgIDFromContext extracts the org id if present.
func OrgIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(orgKey)
	if val == nil {
		return "", false
	}
	orgID, ok := val.(string)
	return orgID, ok && orgID != ""
}

// Middleware resolves the org for each request from the X-Org-ID header,
// falling back to defaultOrg for single-tenant deployments.
func Middleware(defaultOrg string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID := r.Header.Get("X-Org-ID")
			if orgID == "" {
				orgID = defaultOrg
			}
			if orgID == "" {
				http.Error(w, "missing org id", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOrgID(r.Context(), orgID)))
		})
	}
}
