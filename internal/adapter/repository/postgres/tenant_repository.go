package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/feedback-pipeline/internal/domain"
)

type flagsCacheEntry struct {
	flags     domain.TenantFlags
	expiresAt time.Time
}

// TenantRepository implements domain.TenantRepository on PostgreSQL with an
// in-memory, time-based cache for the flags read on every submission.
type TenantRepository struct {
	db       *sql.DB
	logger   *slog.Logger
	cache    map[string]flagsCacheEntry
	mu       sync.RWMutex
	cacheTTL time.Duration
}

// NewTenantRepository creates a PostgreSQL tenant repository.
func NewTenantRepository(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration) *TenantRepository {
	return &TenantRepository{
		db:       db,
		logger:   logger.With("component", "tenant_repository"),
		cache:    make(map[string]flagsCacheEntry),
		cacheTTL: cacheTTL,
	}
}

// Flags returns the tenant's feature flags, consulting the cache first. An
// unknown tenant reads as disabled, which fails the admission check closed.
func (r *TenantRepository) Flags(ctx context.Context, tenantID string) (domain.TenantFlags, error) {
	r.mu.RLock()
	entry, found := r.cache[tenantID]
	r.mu.RUnlock()
	if found && time.Now().Before(entry.expiresAt) {
		return entry.flags, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	entry, found = r.cache[tenantID]
	if found && time.Now().Before(entry.expiresAt) {
		return entry.flags, nil
	}

	var flags domain.TenantFlags
	query := `SELECT enabled, shadow FROM tenants WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&flags.Enabled, &flags.Shadow)
	if err == sql.ErrNoRows {
		flags = domain.TenantFlags{}
	} else if err != nil {
		return domain.TenantFlags{}, fmt.Errorf("tenant flags: %w", err)
	}

	r.cache[tenantID] = flagsCacheEntry{flags: flags, expiresAt: time.Now().Add(r.cacheTTL)}
	return flags, nil
}

// ListEnabled returns the IDs of tenants with the pipeline enabled.
func (r *TenantRepository) ListEnabled(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM tenants WHERE enabled ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list enabled tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StartRun increments and returns the tenant's run counter.
func (r *TenantRepository) StartRun(ctx context.Context, tenantID string) (int64, error) {
	var run int64
	query := `UPDATE tenants SET run_count = run_count + 1 WHERE id = $1 RETURNING run_count`
	if err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&run); err != nil {
		return 0, fmt.Errorf("start run: %w", err)
	}
	return run, nil
}

// RecordRun stores the completion time of a run and accumulates its error
// count.
func (r *TenantRepository) RecordRun(ctx context.Context, tenantID string, at time.Time, errDelta int64) error {
	query := `UPDATE tenants SET last_run = $2, error_count = error_count + $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, tenantID, at, errDelta); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Status reports the tenant's operational state.
func (r *TenantRepository) Status(ctx context.Context, tenantID string) (domain.TenantStatus, error) {
	var (
		status  domain.TenantStatus
		lastRun sql.NullTime
	)
	query := `SELECT enabled, last_run, error_count FROM tenants WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&status.Enabled, &lastRun, &status.ErrorCount)
	if err == sql.ErrNoRows {
		return domain.TenantStatus{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TenantStatus{}, fmt.Errorf("tenant status: %w", err)
	}
	if lastRun.Valid {
		status.LastRun = lastRun.Time
	}
	return status, nil
}
