package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/user/feedback-pipeline/internal/adapter/api/middleware"
	"github.com/user/feedback-pipeline/internal/adapter/redact"
	"github.com/user/feedback-pipeline/internal/domain"
	"github.com/user/feedback-pipeline/internal/domain/mocks"
	"github.com/user/feedback-pipeline/internal/usecase"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, subject, tenantID, role string) string {
	t.Helper()
	claims := middleware.Claims{
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newSubmitServer(t *testing.T, queueCapacity int) (http.Handler, *mocks.MockQueueRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	feedback := &mocks.MockFeedbackRepository{}
	queue := &mocks.MockQueueRepository{Capacity: queueCapacity}
	audit := &mocks.MockAuditRepository{}
	tenants := &mocks.MockTenantRepository{
		FlagsByID: map[string]domain.TenantFlags{"trust-a": {Enabled: true}},
	}
	redactor := redact.NewRedactor(redact.DefaultRuleSet(), logger)
	submitUC := usecase.NewSubmitFeedbackUseCase(tenants, feedback, queue, audit, redactor, nil, logger)
	gate := usecase.NewRBACGate(audit, nil, logger)

	h := NewSubmitHandler(submitUC, gate, logger, 64*1024)
	return middleware.Auth(testSecret, logger)(h), queue
}

func submitBody(text string) string {
	body, _ := json.Marshal(map[string]any{
		"event_id": "evt-1",
		"module":   "medication",
		"severity": "high",
		"text":     text,
		"consents": map[string]bool{"improvement_processing": true},
	})
	return string(body)
}

func TestSubmitHandler(t *testing.T) {
	validText := "The save button on the medication screen does nothing when pressed."

	tests := []struct {
		name           string
		token          string
		body           string
		queueCapacity  int
		expectedStatus int
		expectedField  string
		expectedValue  string
	}{
		{
			name:           "Accepted",
			token:          "clinician",
			body:           submitBody(validText),
			queueCapacity:  10,
			expectedStatus: http.StatusAccepted,
			expectedField:  "status",
			expectedValue:  "accepted",
		},
		{
			name:           "Validation Failure",
			token:          "clinician",
			body:           submitBody("broken"),
			queueCapacity:  10,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Malformed Body",
			token:          "clinician",
			body:           `{"event_id":`,
			queueCapacity:  10,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Unknown Field Rejected",
			token:          "clinician",
			body:           `{"event_id": "evt-1", "tenant_id": "trust-b", "module": "m", "severity": "low", "text": "some feedback text", "consents": {"improvement_processing": true}}`,
			queueCapacity:  10,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Missing Token",
			token:          "none",
			body:           submitBody(validText),
			queueCapacity:  10,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Role Without Submit Capability",
			token:          "compliance",
			body:           submitBody(validText),
			queueCapacity:  10,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "Oversize Text Rejected",
			token:          "clinician",
			body:           submitBody("the save button fails" + strings.Repeat(" on this screen every time", 100)),
			queueCapacity:  10,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newSubmitServer(t, tc.queueCapacity)

			req := httptest.NewRequest(http.MethodPost, "/v1/feedback", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			switch tc.token {
			case "clinician":
				req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", "trust-a", string(usecase.RoleDeveloper)))
			case "compliance":
				req.Header.Set("Authorization", "Bearer "+signToken(t, "user-2", "trust-a", string(usecase.RoleComplianceOfficer)))
			}

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			if rec.Code != tc.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.expectedStatus, rec.Code, rec.Body.String())
			}
			if tc.expectedField != "" {
				var resp map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp[tc.expectedField] != tc.expectedValue {
					t.Errorf("expected %s=%s, got %s", tc.expectedField, tc.expectedValue, resp[tc.expectedField])
				}
			}
		})
	}

	t.Run("Backpressure Returns 429", func(t *testing.T) {
		srv, queue := newSubmitServer(t, 1)
		queue.Queues = map[string][]domain.RedactedFeedback{
			"trust-a": {{EventID: "evt-0", TenantID: "trust-a"}},
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/feedback", strings.NewReader(submitBody(validText)))
		req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", "trust-a", string(usecase.RoleDeveloper)))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Error("expected Retry-After header")
		}
	})

	t.Run("Tenant Comes From Token", func(t *testing.T) {
		srv, queue := newSubmitServer(t, 10)

		req := httptest.NewRequest(http.MethodPost, "/v1/feedback", strings.NewReader(submitBody(validText)))
		req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", "trust-a", string(usecase.RoleDeveloper)))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(queue.Queues["trust-a"]) != 1 {
			t.Errorf("expected event queued under token tenant, got %v", queue.Queues)
		}
	})
}
