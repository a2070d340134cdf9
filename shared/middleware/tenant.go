package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/models"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/tenancy"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/utils"
)

// ResolveTenant maps the request host to a tenant and stores it in the
// context. Requests for unknown hosts get a 404; suspended, expired and
// deleted stores get stable, distinguishable responses so crawlers and
// customers see the store's real state rather than a generic error.
//
// When the gateway already resolved the host it forwards X-Tenant-ID, which
// takes precedence over re-parsing the Host header.
func ResolveTenant(resolver *tenancy.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			tenant *models.Tenant
			err    error
		)

		if forwarded := c.GetHeader("X-Tenant-ID"); forwarded != "" {
			tenant, err = resolver.ResolveByID(c.Request.Context(), forwarded)
		} else {
			tenant, err = resolver.Resolve(c.Request.Context(), c.Request.Host)
		}

		if err != nil {
			abortForResolution(c, err)
			return
		}

		c.Set("tenant", tenant)
		c.Set("resolved_tenant_id", tenant.ID.String())

		c.Next()
	}
}

func abortForResolution(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tenancy.ErrTenantNotFound):
		utils.NotFoundResponse(c, "Store not found")
	case errors.Is(err, tenancy.ErrTenantSuspended):
		utils.ForbiddenResponse(c, "This store has been suspended")
	case errors.Is(err, tenancy.ErrTenantExpired):
		utils.GoneResponse(c, "This store is no longer available")
	case errors.Is(err, tenancy.ErrTenantDeleted):
		utils.GoneResponse(c, "This store is no longer available")
	default:
		utils.InternalServerErrorResponse(c, "Failed to resolve store")
	}
	c.Abort()
}

// GetTenantFromContext returns the tenant resolved for this request
func GetTenantFromContext(c *gin.Context) (*models.Tenant, bool) {
	value, exists := c.Get("tenant")
	if !exists {
		return nil, false
	}
	tenant, ok := value.(*models.Tenant)
	return tenant, ok
}
