package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/crewbill/internal/observability/context"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
)

const HeaderOrg = "X-Org-ID"

// OrgContext resolves the tenant from the X-Org-ID header, falling back to the
// configured default organization.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := int64(0)
		if raw := strings.TrimSpace(c.GetHeader(HeaderOrg)); raw != "" {
			parsed, err := snowflake.ParseString(raw)
			if err != nil || parsed <= 0 {
				AbortWithError(c, newValidationError("organization_id", "invalid_organization", "invalid organization"))
				return
			}
			orgID = parsed.Int64()
		} else if s.cfg.DefaultOrgID > 0 {
			orgID = s.cfg.DefaultOrgID
		}
		if orgID == 0 {
			AbortWithError(c, newValidationError("organization_id", "invalid_organization", "organization is required"))
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		ctx = obscontext.WithOrgID(ctx, snowflake.ID(orgID).String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
