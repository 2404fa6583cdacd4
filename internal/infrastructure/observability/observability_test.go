package observability

import (
	"context"
	"errors"
	"testing"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		raw          string
		wantEndpoint string
		wantInsecure bool
	}{
		{"http://otel:4318", "otel:4318", true},
		{"https://collector.example.com", "collector.example.com", false},
		{"otel:4318", "otel:4318", true},
	}
	for _, tt := range tests {
		endpoint, insecure := normalizeEndpoint(tt.raw)
		if endpoint != tt.wantEndpoint || insecure != tt.wantInsecure {
			t.Fatalf("normalizeEndpoint(%q) = %q, %v", tt.raw, endpoint, insecure)
		}
	}
}

func TestJobInstrumenterReturnsJobError(t *testing.T) {
	jobs := NewJobInstrumenter("messaging-api-test")
	boom := errors.New("boom")

	ran := false
	err := jobs.Track(context.Background(), "unread_reminder", func(ctx context.Context) error {
		ran = ctx != nil
		return boom
	})
	if !ran {
		t.Fatal("expected the job to run with a context")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected job error to be returned, got %v", err)
	}

	if err := jobs.Track(context.Background(), "unread_reminder", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
