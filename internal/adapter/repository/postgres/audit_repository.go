package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/feedback-pipeline/internal/domain"
)

// AuditRepository implements domain.AuditRepository on PostgreSQL. The
// table is append-only from the application's point of view: there is no
// UPDATE or DELETE statement anywhere in this file, and each entry extends
// a per-correlation blake3 hash chain so retroactive edits are detectable.
type AuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditRepository creates a PostgreSQL audit repository.
func NewAuditRepository(db *sql.DB, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger.With("component", "audit_repository")}
}

// Append writes one entry. Writers for the same correlation ID are
// serialized with a transaction-scoped advisory lock, so the chain never
// forks even with the API and worker processes writing concurrently.
func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("audit append begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, entry.CorrelationID); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("audit chain lock: %w", err)
	}

	var prevHash string
	err = tx.QueryRowContext(ctx, `
		SELECT entry_hash FROM audit_log
		WHERE correlation_id = $1
		ORDER BY seq DESC LIMIT 1`, entry.CorrelationID).Scan(&prevHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.AuditEntry{}, fmt.Errorf("audit chain head: %w", err)
	}

	entry.PrevHash = prevHash
	entry.EntryHash = entry.ComputeHash(prevHash)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_log
			(id, correlation_id, tenant_id, actor_type, actor, action, entity_type, entity_id, detail, prev_hash, entry_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID, entry.CorrelationID, entry.TenantID, entry.ActorType, entry.Actor,
		entry.Action, entry.EntityType, entry.EntityID, entry.Detail,
		entry.PrevHash, entry.EntryHash, entry.CreatedAt,
	)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("audit append: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("audit append commit: %w", err)
	}
	return entry, nil
}

// Trail returns the ordered entries for a correlation ID.
func (r *AuditRepository) Trail(ctx context.Context, correlationID string) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, correlation_id, tenant_id, actor_type, actor, action, entity_type, entity_id, detail, prev_hash, entry_hash, created_at
		FROM audit_log
		WHERE correlation_id = $1
		ORDER BY seq ASC`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("audit trail: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.CorrelationID, &e.TenantID, &e.ActorType, &e.Actor,
			&e.Action, &e.EntityType, &e.EntityID, &e.Detail, &e.PrevHash, &e.EntryHash, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
