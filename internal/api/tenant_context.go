package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
)

// TenantContextKey is the key for storing tenant context
type TenantContextKey struct{}

// GetTenantIDFromContext retrieves the tenant ID from context
func GetTenantIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(TenantContextKey{}).(string); ok {
		return id
	}
	return ""
}

// GetTenantIDFromRequest extracts the tenant ID from a request.
// Priority: 1. Context (from middleware), 2. X-Tenant-ID header,
// 3. Query param, 4. Dev mode env var
func GetTenantIDFromRequest(r *http.Request) (string, error) {
	if id := GetTenantIDFromContext(r.Context()); id != "" {
		return id, nil
	}

	if id := r.Header.Get("X-Tenant-ID"); id != "" {
		return id, nil
	}

	if id := r.URL.Query().Get("tenant_id"); id != "" {
		return id, nil
	}

	devMode := os.Getenv("DEV_MODE") == "true" || os.Getenv("ENVIRONMENT") == "development"
	if devMode {
		if id := os.Getenv("DEFAULT_TENANT_ID"); id != "" {
			return id, nil
		}
	}

	return "", fmt.Errorf("tenant ID not found in request")
}

// RequireTenantMiddleware requires tenant context, returns 401 if not present
func RequireTenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetTenantIDFromRequest(r)
		if err != nil {
			http.Error(w, `{"error":"tenant context required"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), TenantContextKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
