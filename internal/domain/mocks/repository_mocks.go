package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/user/feedback-pipeline/internal/domain"
)

// MockFeedbackRepository is a mock implementation of domain.FeedbackRepository for testing.
type MockFeedbackRepository struct {
	mu                sync.Mutex
	StoredEvents      []domain.FeedbackEvent
	StoredRedacted    []domain.RedactedFeedback
	QuarantinedIDs    []string
	QuarantineList    []domain.FeedbackEvent
	StoreEventErr     error
	StoreRedactedErr  error
	QuarantineErr     error
	ListQuarantineErr error
}

func (m *MockFeedbackRepository) StoreEvent(ctx context.Context, event domain.FeedbackEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StoreEventErr != nil {
		return m.StoreEventErr
	}
	m.StoredEvents = append(m.StoredEvents, event)
	return nil
}

func (m *MockFeedbackRepository) StoreRedacted(ctx context.Context, rf domain.RedactedFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StoreRedactedErr != nil {
		return m.StoreRedactedErr
	}
	m.StoredRedacted = append(m.StoredRedacted, rf)
	return nil
}

func (m *MockFeedbackRepository) Quarantine(ctx context.Context, tenantID, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QuarantineErr != nil {
		return m.QuarantineErr
	}
	m.QuarantinedIDs = append(m.QuarantinedIDs, eventID)
	return nil
}

func (m *MockFeedbackRepository) ListQuarantined(ctx context.Context, tenantID string) ([]domain.FeedbackEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListQuarantineErr != nil {
		return nil, m.ListQuarantineErr
	}
	return m.QuarantineList, nil
}

// MockQueueRepository is a mock implementation of domain.QueueRepository for
// testing. Enqueue honors per-tenant capacity so backpressure paths can be
// exercised without Redis.
type MockQueueRepository struct {
	mu         sync.Mutex
	Queues     map[string][]domain.RedactedFeedback
	Capacity   int
	EnqueueErr error
	DequeueErr error
	DepthErr   error
}

func (m *MockQueueRepository) Enqueue(ctx context.Context, rf domain.RedactedFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	if m.Queues == nil {
		m.Queues = make(map[string][]domain.RedactedFeedback)
	}
	if m.Capacity > 0 && len(m.Queues[rf.TenantID]) >= m.Capacity {
		return domain.ErrBackpressure
	}
	m.Queues[rf.TenantID] = append(m.Queues[rf.TenantID], rf)
	return nil
}

func (m *MockQueueRepository) Dequeue(ctx context.Context, tenantID string, max int) ([]domain.RedactedFeedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DequeueErr != nil {
		return nil, m.DequeueErr
	}
	items := m.Queues[tenantID]
	if len(items) > max {
		items = items[:max]
	}
	m.Queues[tenantID] = m.Queues[tenantID][len(items):]
	return items, nil
}

func (m *MockQueueRepository) Depth(ctx context.Context, tenantID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DepthErr != nil {
		return 0, m.DepthErr
	}
	return int64(len(m.Queues[tenantID])), nil
}

// MockArtifactRepository is a mock implementation of domain.ArtifactRepository for testing.
type MockArtifactRepository struct {
	mu              sync.Mutex
	Clusters        []domain.Cluster
	Summaries       []domain.Summary
	Recommendations map[string]*domain.Recommendation
	ExpireResult    []domain.Recommendation
	OutputsResult   *domain.Outputs
	StoreErr        error
	UpdateErr       error
	ExpireErr       error
	ListErr         error
}

func (m *MockArtifactRepository) StoreCluster(ctx context.Context, c domain.Cluster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StoreErr != nil {
		return m.StoreErr
	}
	m.Clusters = append(m.Clusters, c)
	return nil
}

func (m *MockArtifactRepository) StoreSummary(ctx context.Context, s domain.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StoreErr != nil {
		return m.StoreErr
	}
	m.Summaries = append(m.Summaries, s)
	return nil
}

func (m *MockArtifactRepository) StoreRecommendation(ctx context.Context, rec domain.Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StoreErr != nil {
		return m.StoreErr
	}
	if m.Recommendations == nil {
		m.Recommendations = make(map[string]*domain.Recommendation)
	}
	stored := rec
	m.Recommendations[rec.ID] = &stored
	return nil
}

func (m *MockArtifactRepository) GetRecommendation(ctx context.Context, tenantID, id string) (*domain.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Recommendations[id]
	if !ok || rec.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (m *MockArtifactRepository) ListPendingRecommendations(ctx context.Context, tenantID string) ([]domain.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []domain.Recommendation
	for _, rec := range m.Recommendations {
		if rec.TenantID == tenantID && rec.Status == domain.StatusPending {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *MockArtifactRepository) UpdateRecommendationStatus(ctx context.Context, tenantID, id string, from, to domain.RecommendationStatus, actor, notes string, at time.Time) (*domain.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	rec, ok := m.Recommendations[id]
	if !ok || rec.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	if rec.Status != from {
		return nil, &domain.TransitionError{From: rec.Status, To: to}
	}
	rec.Status = to
	rec.DecidedBy = actor
	rec.DecidedAt = &at
	rec.DecisionNotes = notes
	copied := *rec
	return &copied, nil
}

func (m *MockArtifactRepository) ExpirePending(ctx context.Context, cutoff time.Time) ([]domain.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ExpireErr != nil {
		return nil, m.ExpireErr
	}
	if m.ExpireResult != nil {
		return m.ExpireResult, nil
	}
	var expired []domain.Recommendation
	for _, rec := range m.Recommendations {
		if rec.Status == domain.StatusPending && rec.CreatedAt.Before(cutoff) {
			rec.Status = domain.StatusExpired
			expired = append(expired, *rec)
		}
	}
	return expired, nil
}

func (m *MockArtifactRepository) ListOutputs(ctx context.Context, tenantID string, from, to time.Time) (*domain.Outputs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if m.OutputsResult != nil {
		return m.OutputsResult, nil
	}
	return &domain.Outputs{}, nil
}

// MockAuditRepository is a mock implementation of domain.AuditRepository for
// testing. It maintains real per-correlation hash chains so replay and
// verification tests run against the same math as the Postgres repository.
type MockAuditRepository struct {
	mu        sync.Mutex
	Entries   []domain.AuditEntry
	AppendErr error
	TrailErr  error
}

func (m *MockAuditRepository) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return domain.AuditEntry{}, m.AppendErr
	}
	prev := ""
	for i := len(m.Entries) - 1; i >= 0; i-- {
		if m.Entries[i].CorrelationID == entry.CorrelationID {
			prev = m.Entries[i].EntryHash
			break
		}
	}
	entry.PrevHash = prev
	entry.EntryHash = entry.ComputeHash(prev)
	m.Entries = append(m.Entries, entry)
	return entry, nil
}

func (m *MockAuditRepository) Trail(ctx context.Context, correlationID string) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TrailErr != nil {
		return nil, m.TrailErr
	}
	var trail []domain.AuditEntry
	for _, entry := range m.Entries {
		if entry.CorrelationID == correlationID {
			trail = append(trail, entry)
		}
	}
	return trail, nil
}

// Actions returns the ordered action names recorded for a correlation ID.
func (m *MockAuditRepository) Actions(correlationID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var actions []string
	for _, entry := range m.Entries {
		if entry.CorrelationID == correlationID {
			actions = append(actions, entry.Action)
		}
	}
	return actions
}

// MockTenantRepository is a mock implementation of domain.TenantRepository for testing.
type MockTenantRepository struct {
	mu           sync.Mutex
	FlagsByID    map[string]domain.TenantFlags
	StatusByID   map[string]domain.TenantStatus
	RunCounter   int64
	RecordedRuns []string
	ErrDeltas    []int64
	FlagsErr     error
	StartRunErr  error
}

func (m *MockTenantRepository) Flags(ctx context.Context, tenantID string) (domain.TenantFlags, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FlagsErr != nil {
		return domain.TenantFlags{}, m.FlagsErr
	}
	return m.FlagsByID[tenantID], nil
}

func (m *MockTenantRepository) ListEnabled(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, flags := range m.FlagsByID {
		if flags.Enabled {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MockTenantRepository) StartRun(ctx context.Context, tenantID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartRunErr != nil {
		return 0, m.StartRunErr
	}
	m.RunCounter++
	return m.RunCounter, nil
}

func (m *MockTenantRepository) RecordRun(ctx context.Context, tenantID string, at time.Time, errDelta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordedRuns = append(m.RecordedRuns, tenantID)
	m.ErrDeltas = append(m.ErrDeltas, errDelta)
	return nil
}

func (m *MockTenantRepository) Status(ctx context.Context, tenantID string) (domain.TenantStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.StatusByID[tenantID]
	if !ok {
		return domain.TenantStatus{}, domain.ErrNotFound
	}
	return status, nil
}
