package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/user/feedback-pipeline/internal/adapter/cluster"
	"github.com/user/feedback-pipeline/internal/adapter/generation"
	"github.com/user/feedback-pipeline/internal/adapter/metrics"
	"github.com/user/feedback-pipeline/internal/adapter/safety"
	"github.com/user/feedback-pipeline/internal/domain"
)

// ProcessWindowUseCase drains a tenant's queue, clusters the redacted
// feedback, summarizes each cluster through the generation capability and
// produces the window's summary and pending recommendations. All artifacts
// of one run share a correlation ID so the audit trail reads as a single
// story.
type ProcessWindowUseCase struct {
	tenants   domain.TenantRepository
	queue     domain.QueueRepository
	artifacts domain.ArtifactRepository
	audit     domain.AuditRepository
	clusterer *cluster.Clusterer
	generator generation.Generator
	retry     generation.RetryPolicy
	guard     *safety.Guard
	metrics   *metrics.PipelineMetrics
	logger    *slog.Logger

	batchSize         int
	maxParallel       int
	recommendationTTL time.Duration
}

// NewProcessWindowUseCase creates a new ProcessWindowUseCase.
func NewProcessWindowUseCase(
	tenants domain.TenantRepository,
	queue domain.QueueRepository,
	artifacts domain.ArtifactRepository,
	audit domain.AuditRepository,
	clusterer *cluster.Clusterer,
	generator generation.Generator,
	retry generation.RetryPolicy,
	guard *safety.Guard,
	m *metrics.PipelineMetrics,
	logger *slog.Logger,
	batchSize, maxParallel int,
	recommendationTTL time.Duration,
) *ProcessWindowUseCase {
	return &ProcessWindowUseCase{
		tenants:           tenants,
		queue:             queue,
		artifacts:         artifacts,
		audit:             audit,
		clusterer:         clusterer,
		generator:         generator,
		retry:             retry,
		guard:             guard,
		metrics:           m,
		logger:            logger.With("component", "process_window"),
		batchSize:         batchSize,
		maxParallel:       maxParallel,
		recommendationTTL: recommendationTTL,
	}
}

// ProcessAll runs one window for every enabled tenant. Tenants are
// independent; one tenant's failure is logged and counted, not propagated.
func (uc *ProcessWindowUseCase) ProcessAll(ctx context.Context) error {
	tenantIDs, err := uc.tenants.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled tenants: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.maxParallel)
	for _, tenantID := range tenantIDs {
		g.Go(func() error {
			if err := uc.ProcessTenant(ctx, tenantID); err != nil {
				uc.logger.Error("tenant window failed", "tenant_id", tenantID, "error", err)
				if uc.metrics != nil {
					uc.metrics.ErrorsTotal.WithLabelValues("window").Inc()
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// clusterResult pairs a built cluster with the generation output that still
// needs guarding, keeping per-cluster work parallel and persistence ordered.
type clusterResult struct {
	cluster  domain.Cluster
	genErr   error
	guardErr error
}

// ProcessTenant runs one processing window for a single tenant.
func (uc *ProcessWindowUseCase) ProcessTenant(ctx context.Context, tenantID string) error {
	flags, err := uc.tenants.Flags(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("read tenant flags: %w", err)
	}
	if !flags.Enabled {
		return nil
	}

	items, err := uc.queue.Dequeue(ctx, tenantID, uc.batchSize)
	if err != nil {
		return fmt.Errorf("dequeue: %w", err)
	}
	uc.observeDepth(ctx, tenantID)
	if len(items) == 0 {
		return nil
	}

	correlationID := uuid.NewString()
	version, err := uc.tenants.StartRun(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	now := time.Now().UTC()
	windowStart, windowEnd := window(items, now)
	groups := uc.clusterer.Assign(items)

	uc.logger.Info("processing window",
		"tenant_id", tenantID, "correlation_id", correlationID,
		"events", len(items), "clusters", len(groups), "version", version)

	results := make([]clusterResult, len(groups))
	eg, genCtx := errgroup.WithContext(ctx)
	eg.SetLimit(uc.maxParallel)
	for i, grp := range groups {
		eg.Go(func() error {
			results[i] = uc.summarizeCluster(genCtx, tenantID, correlationID, version, flags.Shadow, grp, now)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	var errDelta int64
	for _, res := range results {
		if err := uc.artifacts.StoreCluster(ctx, res.cluster); err != nil {
			return fmt.Errorf("store cluster: %w", err)
		}
		uc.auditRun(ctx, tenantID, correlationID, domain.ActionClusterCreated, "cluster", res.cluster.ID,
			fmt.Sprintf("theme=%q members=%d status=%s", res.cluster.Theme, len(res.cluster.MemberIDs), res.cluster.Status))

		if res.genErr != nil {
			errDelta++
			uc.auditRun(ctx, tenantID, correlationID, domain.ActionGenerationFailed, "cluster", res.cluster.ID, res.genErr.Error())
		}
		if res.guardErr != nil {
			uc.auditRun(ctx, tenantID, correlationID, domain.ActionSafetyViolation, "cluster", res.cluster.ID, res.guardErr.Error())
		}
	}

	aggregate, aggErr := uc.generateAggregate(ctx, results)
	if aggErr != nil {
		errDelta++
		uc.countGeneration(aggErr)
		uc.auditRun(ctx, tenantID, correlationID, domain.ActionGenerationFailed, "summary", correlationID, aggErr.Error())
		aggregate = &aggregateOutput{}
	}

	riskNotes := aggregate.RiskNotes
	if riskNotes != "" {
		if guardErr := uc.guard.Check("risk_notes", riskNotes); guardErr != nil {
			uc.countSafety()
			uc.auditRun(ctx, tenantID, correlationID, domain.ActionSafetyViolation, "summary", correlationID, guardErr.Error())
			riskNotes = ""
		}
	}

	summary := domain.Summary{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		CorrelationID: correlationID,
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		TopThemes:     topThemes(groups),
		TotalEvents:   len(items),
		RiskNotes:     riskNotes,
		Shadow:        flags.Shadow,
		CreatedAt:     now,
	}
	if err := uc.artifacts.StoreSummary(ctx, summary); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	uc.auditRun(ctx, tenantID, correlationID, domain.ActionSummaryCreated, "summary", summary.ID,
		fmt.Sprintf("events=%d themes=%d", summary.TotalEvents, len(summary.TopThemes)))

	for _, draft := range aggregate.Recommendations {
		rec, ok := uc.buildRecommendation(ctx, tenantID, correlationID, flags.Shadow, draft, results, now)
		if !ok {
			continue
		}
		if err := uc.artifacts.StoreRecommendation(ctx, rec); err != nil {
			return fmt.Errorf("store recommendation: %w", err)
		}
		if uc.metrics != nil {
			uc.metrics.RecommendationsTotal.WithLabelValues(string(domain.StatusPending)).Inc()
		}
		uc.auditRun(ctx, tenantID, correlationID, domain.ActionRecCreated, "recommendation", rec.ID,
			fmt.Sprintf("theme=%q priority=%s", rec.Theme, rec.Priority))
	}

	if err := uc.tenants.RecordRun(ctx, tenantID, now, errDelta); err != nil {
		uc.logger.Error("failed to record run", "tenant_id", tenantID, "error", err)
	}
	uc.observeDepth(ctx, tenantID)

	return nil
}

// clusterOutput is the JSON shape requested from the generation capability
// for a single cluster.
type clusterOutput struct {
	Label     string `json:"label"`
	Summary   string `json:"summary"`
	RiskNotes string `json:"risk_notes"`
}

func (uc *ProcessWindowUseCase) summarizeCluster(ctx context.Context, tenantID, correlationID string, version int64, shadow bool, grp cluster.Group, now time.Time) clusterResult {
	c := domain.Cluster{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		CorrelationID: correlationID,
		Version:       version,
		Theme:         grp.Theme,
		MemberIDs:     memberIDs(grp),
		Modules:       grp.Modules,
		Status:        domain.ClusterStatusOK,
		Shadow:        shadow,
		CreatedAt:     now,
	}

	text, err := generation.GenerateWithRetry(ctx, uc.generator, uc.retry, clusterPrompt, clusterContext(grp), uc.logger)
	if err != nil {
		uc.countGeneration(err)
		c.Status = domain.ClusterStatusSummaryFailed
		return clusterResult{cluster: c, genErr: err}
	}

	var out clusterOutput
	if payload, jsonErr := generation.ExtractJSONObject(text); jsonErr != nil {
		err = jsonErr
	} else if jsonErr := json.Unmarshal([]byte(payload), &out); jsonErr != nil {
		err = jsonErr
	}
	if err != nil {
		c.Status = domain.ClusterStatusSummaryFailed
		return clusterResult{cluster: c, genErr: fmt.Errorf("malformed generation output: %w", err)}
	}

	if guardErr := uc.guard.Check("cluster_summary", out.Label+"\n"+out.Summary); guardErr != nil {
		uc.countSafety()
		c.Status = domain.ClusterStatusNeedsReview
		return clusterResult{cluster: c, guardErr: guardErr}
	}

	c.Label = out.Label
	c.Summary = out.Summary
	return clusterResult{cluster: c}
}

// aggregateOutput is the JSON shape requested for the window-level pass.
type aggregateOutput struct {
	RiskNotes       string                `json:"risk_notes"`
	Recommendations []recommendationDraft `json:"recommendations"`
}

type recommendationDraft struct {
	Cluster     int      `json:"cluster"`
	Theme       string   `json:"theme"`
	Actions     []string `json:"actions"`
	Priority    string   `json:"priority"`
	PrivacyNote string   `json:"privacy_note"`
}

func (uc *ProcessWindowUseCase) generateAggregate(ctx context.Context, results []clusterResult) (*aggregateOutput, error) {
	digest := aggregateContext(results)
	if digest == "" {
		return &aggregateOutput{}, nil
	}

	text, err := generation.GenerateWithRetry(ctx, uc.generator, uc.retry, aggregatePrompt, digest, uc.logger)
	if err != nil {
		return nil, err
	}
	payload, err := generation.ExtractJSONObject(text)
	if err != nil {
		return nil, fmt.Errorf("malformed generation output: %w", err)
	}
	var out aggregateOutput
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, fmt.Errorf("malformed generation output: %w", err)
	}
	return &out, nil
}

func (uc *ProcessWindowUseCase) buildRecommendation(ctx context.Context, tenantID, correlationID string, shadow bool, draft recommendationDraft, results []clusterResult, now time.Time) (domain.Recommendation, bool) {
	combined := draft.Theme + "\n" + strings.Join(draft.Actions, "\n") + "\n" + draft.PrivacyNote
	if guardErr := uc.guard.Check("recommendation", combined); guardErr != nil {
		uc.countSafety()
		uc.auditRun(ctx, tenantID, correlationID, domain.ActionSafetyViolation, "recommendation", draft.Theme, guardErr.Error())
		return domain.Recommendation{}, false
	}

	priority := domain.Priority(draft.Priority)
	if !priority.Valid() {
		priority = domain.PriorityMedium
	}

	var feedbackIDs []string
	if idx := draft.Cluster - 1; idx >= 0 && idx < len(results) {
		feedbackIDs = results[idx].cluster.MemberIDs
	}

	return domain.Recommendation{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		CorrelationID: correlationID,
		Theme:         draft.Theme,
		Actions:       draft.Actions,
		FeedbackIDs:   feedbackIDs,
		PrivacyNote:   draft.PrivacyNote,
		Priority:      priority,
		Status:        domain.StatusPending,
		Shadow:        shadow,
		CreatedAt:     now,
		ExpiresAt:     now.Add(uc.recommendationTTL),
	}, true
}

const clusterPrompt = `You are summarizing already-redacted product feedback for an internal
review console. Placeholder tokens such as [NAME] or [PHONE] mark removed
personal data; never invent replacements for them. Respond with a single
JSON object: {"label": short cluster title, "summary": two to three
sentences describing the common issue, "risk_notes": empty string or a
one-sentence clinical-risk flag}.`

const aggregatePrompt = `You are drafting improvement recommendations from already-summarized,
redacted feedback clusters. Respond with a single JSON object:
{"risk_notes": string, "recommendations": [{"cluster": 1-based index of
the source cluster, "theme": string, "actions": [strings], "priority":
"low"|"medium"|"high"|"critical", "privacy_note": string}]}. Recommend
process or product changes only; never identify individuals.`

func clusterContext(grp cluster.Group) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Theme: %s\nModules: %s\nFeedback:\n", grp.Theme, strings.Join(grp.Modules, ", "))
	for _, member := range grp.Members {
		fmt.Fprintf(&b, "- [%s/%s] %s\n", member.Module, member.Severity, member.Text)
	}
	return b.String()
}

func aggregateContext(results []clusterResult) string {
	var b strings.Builder
	for i, res := range results {
		if res.cluster.Status != domain.ClusterStatusOK {
			continue
		}
		fmt.Fprintf(&b, "Cluster %d (%d events, modules %s): %s\n%s\n\n",
			i+1, len(res.cluster.MemberIDs), strings.Join(res.cluster.Modules, ", "),
			res.cluster.Label, res.cluster.Summary)
	}
	return b.String()
}

func memberIDs(grp cluster.Group) []string {
	ids := make([]string, 0, len(grp.Members))
	for _, member := range grp.Members {
		ids = append(ids, member.EventID)
	}
	return ids
}

// window derives the summary's bounds from the redaction timestamps of the
// drained items, falling back to now for a degenerate batch.
func window(items []domain.RedactedFeedback, now time.Time) (time.Time, time.Time) {
	start, end := now, now
	for i, item := range items {
		if item.RedactedAt.IsZero() {
			continue
		}
		if i == 0 || item.RedactedAt.Before(start) {
			start = item.RedactedAt
		}
		if item.RedactedAt.After(end) {
			end = item.RedactedAt
		}
	}
	return start, end
}

func topThemes(groups []cluster.Group) []domain.ThemeCount {
	themes := make([]domain.ThemeCount, 0, len(groups))
	for _, grp := range groups {
		themes = append(themes, domain.ThemeCount{
			Theme:   grp.Theme,
			Count:   len(grp.Members),
			Modules: grp.Modules,
		})
	}
	return themes
}

func (uc *ProcessWindowUseCase) countGeneration(err error) {
	if uc.metrics == nil {
		return
	}
	uc.metrics.ErrorsTotal.WithLabelValues("generation").Inc()
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) && genErr.Attempts > 1 {
		uc.metrics.GenerationRetries.Add(float64(genErr.Attempts - 1))
	}
}

func (uc *ProcessWindowUseCase) countSafety() {
	if uc.metrics != nil {
		uc.metrics.SafetyViolations.Inc()
	}
}

func (uc *ProcessWindowUseCase) observeDepth(ctx context.Context, tenantID string) {
	if uc.metrics == nil {
		return
	}
	depth, err := uc.queue.Depth(ctx, tenantID)
	if err != nil {
		return
	}
	uc.metrics.QueueDepth.WithLabelValues(tenantID).Set(float64(depth))
}

func (uc *ProcessWindowUseCase) auditRun(ctx context.Context, tenantID, correlationID, action, entityType, entityID, detail string) {
	entry := domain.AuditEntry{
		ID:            uuid.NewString(),
		CorrelationID: correlationID,
		TenantID:      tenantID,
		ActorType:     domain.ActorSystem,
		Actor:         "pipeline",
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := uc.audit.Append(ctx, entry); err != nil {
		uc.logger.Error("failed to write audit entry", "action", action, "correlation_id", correlationID, "error", err)
	}
}
