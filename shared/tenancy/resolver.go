package tenancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/muragewanjohi/storeflow-website-sub003/shared/models"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/utils"
)

// Resolution outcomes. Callers must branch on these: an unknown hostname is
// a 404, while a suspended/expired/deleted store must answer with a stable
// "store unavailable" response instead of pretending it never existed.
var (
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrTenantSuspended = errors.New("tenant suspended")
	ErrTenantExpired   = errors.New("tenant expired")
	ErrTenantDeleted   = errors.New("tenant deleted")
)

// defaultReserved are subdomains that collide with platform routes and can
// never be registered by a store
var defaultReserved = []string{"www", "api", "admin", "app", "mail", "cdn", "status"}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Resolver maps an inbound hostname to a tenant. Every storage operation in
// the platform runs inside a tenant scope produced here; nothing else is
// allowed to query across tenants except platform-admin operations.
//
// Results are cached in Redis with a short TTL because tenant status can
// change (suspension) and a stale active tenant is only an acceptable risk
// for a bounded window of seconds.
type Resolver struct {
	db         *gorm.DB
	baseDomain string
	cacheTTL   time.Duration
	reserved   map[string]struct{}
}

// NewResolver creates a resolver configured from the environment
func NewResolver(db *gorm.DB) *Resolver {
	baseDomain := os.Getenv("PLATFORM_DOMAIN")
	if baseDomain == "" {
		baseDomain = "storeflow.local"
	}

	ttl := 10 * time.Second
	if raw := os.Getenv("TENANT_CACHE_TTL"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			ttl = time.Duration(secs) * time.Second
		}
	}

	reserved := make(map[string]struct{})
	for _, name := range defaultReserved {
		reserved[name] = struct{}{}
	}
	for _, name := range strings.Split(os.Getenv("RESERVED_SUBDOMAINS"), ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			reserved[name] = struct{}{}
		}
	}

	return &Resolver{
		db:         db,
		baseDomain: strings.ToLower(baseDomain),
		cacheTTL:   ttl,
		reserved:   reserved,
	}
}

// NormalizeHost strips the port and lowercases a request hostname
func NormalizeHost(hostname string) string {
	host := strings.TrimSpace(hostname)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

// Resolve maps a hostname to an active tenant. A custom domain match takes
// precedence; otherwise the first label of a host under the platform domain
// is matched against the subdomain column.
func (r *Resolver) Resolve(ctx context.Context, hostname string) (*models.Tenant, error) {
	host := NormalizeHost(hostname)
	if host == "" {
		return nil, ErrTenantNotFound
	}

	if tenant, ok := r.cached("tenant:host:" + host); ok {
		return checkStatus(tenant)
	}

	tenant, err := r.lookupByHost(ctx, host)
	if err != nil {
		return nil, err
	}

	r.cache("tenant:host:"+host, tenant)
	return checkStatus(tenant)
}

// ResolveByID loads a tenant by id and applies the same status branching as
// Resolve. Used on internal hops where the gateway already resolved the host.
func (r *Resolver) ResolveByID(ctx context.Context, tenantID string) (*models.Tenant, error) {
	if tenantID == "" {
		return nil, ErrTenantNotFound
	}

	if tenant, ok := r.cached("tenant:id:" + tenantID); ok {
		return checkStatus(tenant)
	}

	var tenant models.Tenant
	if err := r.db.WithContext(ctx).Where("id = ?", tenantID).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to load tenant %s: %w", tenantID, err)
	}

	r.cache("tenant:id:"+tenantID, &tenant)
	return checkStatus(&tenant)
}

func (r *Resolver) lookupByHost(ctx context.Context, host string) (*models.Tenant, error) {
	var tenant models.Tenant

	// Exact custom-domain match wins over platform subdomains
	err := r.db.WithContext(ctx).Where("custom_domain = ?", host).First(&tenant).Error
	if err == nil {
		return &tenant, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to resolve host %s: %w", host, err)
	}

	label, ok := r.subdomainLabel(host)
	if !ok {
		return nil, ErrTenantNotFound
	}
	if _, isReserved := r.reserved[label]; isReserved {
		return nil, ErrTenantNotFound
	}

	err = r.db.WithContext(ctx).Where("subdomain = ?", label).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to resolve subdomain %s: %w", label, err)
	}
	return &tenant, nil
}

// subdomainLabel extracts the store label from "<label>.<platform domain>"
func (r *Resolver) subdomainLabel(host string) (string, bool) {
	suffix := "." + r.baseDomain
	if !strings.HasSuffix(host, suffix) {
		return "", false
	}
	label := strings.TrimSuffix(host, suffix)
	if label == "" || strings.Contains(label, ".") {
		return "", false
	}
	return label, true
}

// IsReservedSubdomain reports whether a subdomain collides with a platform route
func (r *Resolver) IsReservedSubdomain(name string) bool {
	_, ok := r.reserved[strings.ToLower(name)]
	return ok
}

// ValidateSubdomain checks registration-time subdomain rules: DNS label
// syntax plus the reserved-word list
func (r *Resolver) ValidateSubdomain(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if !subdomainPattern.MatchString(name) {
		return fmt.Errorf("subdomain %q is not a valid DNS label", name)
	}
	if r.IsReservedSubdomain(name) {
		return fmt.Errorf("subdomain %q is reserved", name)
	}
	return nil
}

// InvalidateTenant drops every cached entry for a tenant. Called by the
// tenant admin service after any mutation so suspension takes effect within
// one cache miss instead of one TTL.
func (r *Resolver) InvalidateTenant(tenant *models.Tenant) {
	_ = utils.CacheDelete("tenant:id:" + tenant.ID.String())
	_ = utils.CacheDelete("tenant:host:" + tenant.Subdomain + "." + r.baseDomain)
	if tenant.CustomDomain != nil {
		_ = utils.CacheDelete("tenant:host:" + strings.ToLower(*tenant.CustomDomain))
	}
}

// BaseDomain returns the platform's own domain
func (r *Resolver) BaseDomain() string {
	return r.baseDomain
}

func (r *Resolver) cached(key string) (*models.Tenant, bool) {
	raw, err := utils.CacheGet(key)
	if err != nil {
		return nil, false
	}
	var tenant models.Tenant
	if err := json.Unmarshal([]byte(raw), &tenant); err != nil {
		return nil, false
	}
	return &tenant, true
}

func (r *Resolver) cache(key string, tenant *models.Tenant) {
	data, err := json.Marshal(tenant)
	if err != nil {
		return
	}
	// Cache failures are non-critical; the next request hits the database
	_ = utils.CacheSet(key, string(data), r.cacheTTL)
}

// checkStatus converts a tenant row into a resolution outcome
func checkStatus(tenant *models.Tenant) (*models.Tenant, error) {
	switch {
	case tenant.Status == models.TenantStatusDeleted:
		return nil, ErrTenantDeleted
	case tenant.Status == models.TenantStatusSuspended:
		return nil, ErrTenantSuspended
	case tenant.IsExpired():
		return nil, ErrTenantExpired
	}
	return tenant, nil
}
