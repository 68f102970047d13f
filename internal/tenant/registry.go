package tenant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medsched/confirmlink/pkg/config"
	"github.com/medsched/confirmlink/pkg/database"
)

// Pool is the slice of pgxpool.Pool the record store needs. pgxmock
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Context is one tenant's resolved configuration: branding, its storage
// pool, and its symmetric key. Built once at startup and passed by
// reference; never re-derived per request.
type Context struct {
	ID          string
	DisplayName string
	LogoRef     string

	pool Pool
	key  string
}

func NewContext(id, displayName, logoRef string, pool Pool, key string) *Context {
	return &Context{
		ID:          id,
		DisplayName: displayName,
		LogoRef:     logoRef,
		pool:        pool,
		key:         key,
	}
}

func (c *Context) Pool() Pool {
	return c.pool
}

// Key returns the tenant's symmetric decryption key. Only the storage
// adapter reads it; it must never reach a log line or a response body.
func (c *Context) Key() string {
	return c.key
}

// LogValue keeps key material and connection details out of structured logs.
func (c *Context) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", c.ID),
		slog.String("name", c.DisplayName),
	)
}

var _ slog.LogValuer = (*Context)(nil)

// Registry resolves tenant ids to their contexts. Pure lookup, no side
// effects; the tenant set is immutable after New.
type Registry struct {
	tenants map[string]*Context
	def     *Context
	pools   []Pool
}

// New connects one pool per distinct database URL (clinics may share a
// physical database) and builds the tenant table.
func New(ctx context.Context, cfg config.TenantsConfig, dbCfg config.DatabaseConfig) (*Registry, error) {
	if len(cfg.Tenants) == 0 {
		return nil, fmt.Errorf("no tenants configured")
	}

	r := &Registry{tenants: make(map[string]*Context, len(cfg.Tenants))}
	poolsByURL := make(map[string]Pool)

	for _, tc := range cfg.Tenants {
		if tc.DatabaseURL == "" {
			return nil, fmt.Errorf("tenant %s: missing database URL", tc.ID)
		}
		if tc.PGPKey == "" {
			return nil, fmt.Errorf("tenant %s: missing decryption key", tc.ID)
		}
		if _, dup := r.tenants[tc.ID]; dup {
			return nil, fmt.Errorf("tenant %s: configured twice", tc.ID)
		}

		pool, ok := poolsByURL[tc.DatabaseURL]
		if !ok {
			p, err := database.Connect(ctx, tc.DatabaseURL, dbCfg)
			if err != nil {
				r.Close()
				return nil, fmt.Errorf("tenant %s: connect: %w", tc.ID, err)
			}
			pool = p
			poolsByURL[tc.DatabaseURL] = pool
			r.pools = append(r.pools, pool)
		}

		r.tenants[tc.ID] = NewContext(tc.ID, tc.DisplayName, tc.LogoRef, pool, tc.PGPKey)
	}

	r.def = r.tenants[cfg.DefaultTenant]
	if r.def == nil {
		return nil, fmt.Errorf("default tenant %s not configured", cfg.DefaultTenant)
	}

	return r, nil
}

// NewStatic builds a registry from prebuilt contexts. Test seam; Close is
// a no-op for contexts whose pools the caller owns.
func NewStatic(def *Context, tenants ...*Context) *Registry {
	r := &Registry{tenants: make(map[string]*Context, len(tenants)), def: def}
	for _, tc := range tenants {
		r.tenants[tc.ID] = tc
	}
	return r
}

func (r *Registry) Resolve(id string) (*Context, bool) {
	tc, ok := r.tenants[id]
	return tc, ok
}

// Default is the tenant whose branding backs responses for unknown
// tenants, so a probe cannot tell a bad tenant id from a bad token.
func (r *Registry) Default() *Context {
	return r.def
}

func (r *Registry) Close() {
	for _, p := range r.pools {
		p.Close()
	}
}
