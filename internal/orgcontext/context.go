package orgcontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type orgKey struct{}

// WithOrgID scopes ctx to a tenant.
func WithOrgID(ctx context.Context, orgID int64) context.Context {
	return context.WithValue(ctx, orgKey{}, snowflake.ID(orgID))
}

// OrgIDFromContext returns the tenant for ctx. A zero id is reported as unset.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	orgID, ok := ctx.Value(orgKey{}).(snowflake.ID)
	if !ok || orgID <= 0 {
		return 0, false
	}
	return orgID, true
}
