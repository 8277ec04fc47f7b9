package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostwatch/hostwatch/internal/issue"
)

func TestWebhookSend(t *testing.T) {
	var mu sync.Mutex
	var payloads []webhookPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		var p webhookPayload
		require.NoError(t, json.Unmarshal(body, &p))
		mu.Lock()
		payloads = append(payloads, p)
		mu.Unlock()
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, "run-1", slog.Default())
	w.Send(context.Background(), "Swap pressure critical", "swap usage at 85.0%", true)
	w.Send(context.Background(), "Container restarted", "health check passing again", false)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, 2)
	assert.Equal(t, "Swap pressure critical", payloads[0].Title)
	assert.Equal(t, "error", payloads[0].Level)
	assert.Equal(t, "run-1", payloads[0].RunID)
	assert.NotEmpty(t, payloads[0].Timestamp)
	assert.Equal(t, "info", payloads[1].Level)
}

func TestWebhookRateLimitDropsOverflow(t *testing.T) {
	var mu sync.Mutex
	received := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		received++
		mu.Unlock()
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, "run-1", slog.Default())
	for i := 0; i < 20; i++ {
		w.Send(context.Background(), "storm", "issue storm", true)
	}

	mu.Lock()
	defer mu.Unlock()
	// Burst of 5 plus at most a trickle; far fewer than 20.
	assert.LessOrEqual(t, received, 7)
	assert.GreaterOrEqual(t, received, 5)
}

func TestWebhookServerErrorSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, "run-1", slog.Default())
	// Must not panic or error; delivery problems are log-only.
	w.Send(context.Background(), "t", "m", true)
}

func TestWebhookEmptyURLNoop(t *testing.T) {
	w := NewWebhook("", "run-1", slog.Default())
	w.Send(context.Background(), "t", "m", false)
}

type stubAdvisor struct {
	diag string
	kind string
}

func (s *stubAdvisor) Diagnose(_ context.Context, kind string, _ map[string]string) string {
	s.kind = kind
	return s.diag
}

func TestGuidanceStaticOnly(t *testing.T) {
	var buf bytes.Buffer
	g := NewGuidance(nil)
	g.out = &buf

	g.Emit(context.Background(), issue.Issue{
		Type:    issue.TypeStuck,
		Message: "process pid 10 stuck in uninterruptible sleep",
		PID:     "10",
	})

	out := buf.String()
	assert.Contains(t, out, "stuck issue needs review")
	assert.Contains(t, out, "uninterruptible sleep cannot be killed")
	assert.NotContains(t, out, "AI diagnosis")
}

func TestGuidanceWithAdvisor(t *testing.T) {
	var buf bytes.Buffer
	adv := &stubAdvisor{diag: "line one\nline two"}
	g := NewGuidance(adv)
	g.out = &buf

	g.Emit(context.Background(), issue.Issue{
		Type:    issue.TypeRunaway,
		Message: "runaway process pid 10",
		PID:     "10",
		Command: "python worker.py",
	})

	out := buf.String()
	assert.Equal(t, "runaway", adv.kind)
	assert.Contains(t, out, "AI diagnosis:")
	assert.Contains(t, out, "  line one\n  line two")
}

func TestGuidanceAdvisorFailureFallsBack(t *testing.T) {
	var buf bytes.Buffer
	g := NewGuidance(&stubAdvisor{diag: ""})
	g.out = &buf

	g.Emit(context.Background(), issue.Issue{Type: issue.TypeSwap, Message: "swap usage at 90%"})

	out := buf.String()
	assert.Contains(t, out, "largest swap consumers")
	assert.NotContains(t, out, "AI diagnosis")
}

func TestFanout(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
	}))
	defer srv.Close()

	f := Fanout{NewWebhook(srv.URL, "run-1", slog.Default()), NewWebhook(srv.URL, "run-1", slog.Default())}
	f.Send(context.Background(), "t", "m", false)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, hits)
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "  a\n  b", indent("a\nb\n", "  "))
	assert.Equal(t, "  only", indent("only", "  "))
}
