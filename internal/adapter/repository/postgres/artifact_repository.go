package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/user/feedback-pipeline/internal/domain"
)

// ArtifactRepository implements domain.ArtifactRepository on PostgreSQL.
// Clusters and summaries are insert-only; recommendations additionally get
// a single-row status update guarded by an optimistic prior-status check.
type ArtifactRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewArtifactRepository creates a PostgreSQL artifact repository.
func NewArtifactRepository(db *sql.DB, logger *slog.Logger) *ArtifactRepository {
	return &ArtifactRepository{db: db, logger: logger.With("component", "artifact_repository")}
}

func (r *ArtifactRepository) StoreCluster(ctx context.Context, c domain.Cluster) error {
	query := `
		INSERT INTO clusters
			(id, tenant_id, correlation_id, version, theme, label, summary, member_ids, modules, status, shadow, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.TenantID, c.CorrelationID, c.Version, c.Theme, c.Label, c.Summary,
		pq.Array(c.MemberIDs), pq.Array(c.Modules), c.Status, c.Shadow, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store cluster: %w", err)
	}
	return nil
}

func (r *ArtifactRepository) StoreSummary(ctx context.Context, s domain.Summary) error {
	themes, err := json.Marshal(s.TopThemes)
	if err != nil {
		return fmt.Errorf("marshal top themes: %w", err)
	}

	query := `
		INSERT INTO summaries
			(id, tenant_id, correlation_id, window_start, window_end, top_themes, total_events, risk_notes, shadow, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.TenantID, s.CorrelationID, s.WindowStart, s.WindowEnd, themes,
		s.TotalEvents, s.RiskNotes, s.Shadow, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	return nil
}

func (r *ArtifactRepository) StoreRecommendation(ctx context.Context, rec domain.Recommendation) error {
	query := `
		INSERT INTO recommendations
			(id, tenant_id, correlation_id, theme, actions, feedback_ids, privacy_note, priority, status, shadow, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.TenantID, rec.CorrelationID, rec.Theme, pq.Array(rec.Actions),
		pq.Array(rec.FeedbackIDs), rec.PrivacyNote, rec.Priority, rec.Status, rec.Shadow,
		rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("store recommendation: %w", err)
	}
	return nil
}

const recommendationColumns = `
	id, tenant_id, correlation_id, theme, actions, feedback_ids, privacy_note,
	priority, status, created_at, expires_at, decided_by, decided_at, decision_notes`

func (r *ArtifactRepository) GetRecommendation(ctx context.Context, tenantID, id string) (*domain.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE tenant_id = $1 AND id = $2`
	rec, err := scanRecommendation(r.db.QueryRowContext(ctx, query, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

func (r *ArtifactRepository) ListPendingRecommendations(ctx context.Context, tenantID string) ([]domain.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + `
		FROM recommendations
		WHERE tenant_id = $1 AND status = $2 AND NOT shadow
		ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, tenantID, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending recommendations: %w", err)
	}
	defer rows.Close()
	return collectRecommendations(rows)
}

// UpdateRecommendationStatus performs the optimistic transition: the WHERE
// clause carries the expected prior status, so a concurrent decision makes
// this update match zero rows instead of overwriting it.
func (r *ArtifactRepository) UpdateRecommendationStatus(ctx context.Context, tenantID, id string, from, to domain.RecommendationStatus, actor, notes string, at time.Time) (*domain.Recommendation, error) {
	query := `
		UPDATE recommendations
		SET status = $1, decided_by = $2, decided_at = $3, decision_notes = $4
		WHERE tenant_id = $5 AND id = $6 AND status = $7
		RETURNING ` + recommendationColumns
	rec, err := scanRecommendation(r.db.QueryRowContext(ctx, query, to, actor, at, notes, tenantID, id, from))
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish a missing row from a lost optimistic race.
		current, getErr := r.GetRecommendation(ctx, tenantID, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &domain.TransitionError{From: current.Status, To: to}
	}
	return rec, err
}

// ExpirePending moves stale pending recommendations to expired and returns
// them so the caller can audit each transition.
func (r *ArtifactRepository) ExpirePending(ctx context.Context, cutoff time.Time) ([]domain.Recommendation, error) {
	query := `
		UPDATE recommendations
		SET status = $1, decided_at = $2
		WHERE status = $3 AND created_at < $4
		RETURNING ` + recommendationColumns
	rows, err := r.db.QueryContext(ctx, query, domain.StatusExpired, time.Now().UTC(), domain.StatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("expire pending recommendations: %w", err)
	}
	defer rows.Close()
	return collectRecommendations(rows)
}

func (r *ArtifactRepository) ListOutputs(ctx context.Context, tenantID string, from, to time.Time) (*domain.Outputs, error) {
	out := &domain.Outputs{}

	sumRows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, correlation_id, window_start, window_end, top_themes, total_events, risk_notes, created_at
		FROM summaries
		WHERE tenant_id = $1 AND created_at BETWEEN $2 AND $3 AND NOT shadow
		ORDER BY created_at ASC`, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer sumRows.Close()
	for sumRows.Next() {
		var (
			s      domain.Summary
			themes []byte
		)
		if err := sumRows.Scan(&s.ID, &s.TenantID, &s.CorrelationID, &s.WindowStart, &s.WindowEnd,
			&themes, &s.TotalEvents, &s.RiskNotes, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if err := json.Unmarshal(themes, &s.TopThemes); err != nil {
			return nil, fmt.Errorf("decode top themes: %w", err)
		}
		out.Summaries = append(out.Summaries, s)
	}
	if err := sumRows.Err(); err != nil {
		return nil, err
	}

	clusterRows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, correlation_id, version, theme, label, summary, member_ids, modules, status, created_at
		FROM clusters
		WHERE tenant_id = $1 AND created_at BETWEEN $2 AND $3 AND NOT shadow
		ORDER BY created_at ASC`, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	defer clusterRows.Close()
	for clusterRows.Next() {
		var c domain.Cluster
		if err := clusterRows.Scan(&c.ID, &c.TenantID, &c.CorrelationID, &c.Version, &c.Theme, &c.Label,
			&c.Summary, pq.Array(&c.MemberIDs), pq.Array(&c.Modules), &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		out.Clusters = append(out.Clusters, c)
	}
	if err := clusterRows.Err(); err != nil {
		return nil, err
	}

	recRows, err := r.db.QueryContext(ctx, `
		SELECT `+recommendationColumns+`
		FROM recommendations
		WHERE tenant_id = $1 AND created_at BETWEEN $2 AND $3 AND NOT shadow
		ORDER BY created_at ASC`, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer recRows.Close()
	recs, err := collectRecommendations(recRows)
	if err != nil {
		return nil, err
	}
	out.Recommendations = recs

	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecommendation(row rowScanner) (*domain.Recommendation, error) {
	var (
		rec       domain.Recommendation
		decidedBy sql.NullString
		decidedAt sql.NullTime
		notes     sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.CorrelationID, &rec.Theme, pq.Array(&rec.Actions),
		pq.Array(&rec.FeedbackIDs), &rec.PrivacyNote, &rec.Priority, &rec.Status,
		&rec.CreatedAt, &rec.ExpiresAt, &decidedBy, &decidedAt, &notes)
	if err != nil {
		return nil, err
	}
	rec.DecidedBy = decidedBy.String
	if decidedAt.Valid {
		t := decidedAt.Time
		rec.DecidedAt = &t
	}
	rec.DecisionNotes = notes.String
	return &rec, nil
}

func collectRecommendations(rows *sql.Rows) ([]domain.Recommendation, error) {
	var recs []domain.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}
