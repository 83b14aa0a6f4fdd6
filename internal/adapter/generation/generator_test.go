package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/user/feedback-pipeline/internal/domain"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Timeout: time.Second, BaseBackoff: time.Millisecond}
}

func TestGenerateWithRetryRecovers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stub := &StubGenerator{
		Default:   "ok",
		Err:       errors.New("upstream flake"),
		FailFirst: 2,
	}

	got, err := GenerateWithRetry(context.Background(), stub, testPolicy(), "label this", "ctx", logger)
	if err != nil {
		t.Fatalf("expected recovery on third attempt, got %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
	if stub.CallCount() != 3 {
		t.Errorf("expected 3 calls, got %d", stub.CallCount())
	}
}

func TestGenerateWithRetryExhausts(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stub := &StubGenerator{Err: errors.New("upstream down")}

	_, err := GenerateWithRetry(context.Background(), stub, testPolicy(), "label this", "ctx", logger)

	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", genErr.Attempts)
	}
	if stub.CallCount() != 3 {
		t.Errorf("expected 3 calls, got %d", stub.CallCount())
	}
}

func TestGenerateWithRetryHonorsCancellation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stub := &StubGenerator{Err: errors.New("upstream down")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := GenerateWithRetry(ctx, stub, RetryPolicy{MaxAttempts: 3, Timeout: time.Second, BaseBackoff: time.Hour}, "p", "c", logger)
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare object", `{"label":"x"}`, `{"label":"x"}`, false},
		{"wrapped in prose", "Here you go:\n{\"label\":\"x\"}\nHope that helps.", `{"label":"x"}`, false},
		{"no object", "no json here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	got, err := ExtractJSONArray("result: [1, 2, 3] done")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "[1, 2, 3]" {
		t.Errorf("got %q", got)
	}
}
