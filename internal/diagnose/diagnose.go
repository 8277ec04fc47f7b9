// Package diagnose wraps the optional AI diagnosis collaborator. It is
// strictly best-effort: missing credentials, network errors, or a disabled
// config all degrade to static guidance, never to a failed invocation.
package diagnose

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
)

// DefaultModel is the cost-efficient model used for diagnosis; the task is
// short-form and does not need deep reasoning.
const DefaultModel = "claude-3-5-haiku-20241022"

// Advisor calls the Anthropic API to produce a short diagnosis for an
// issue. A nil *Advisor is valid and always returns an empty diagnosis.
type Advisor struct {
	client *anthropic.Client
	model  string
	sem    *semaphore.Weighted
	log    *slog.Logger
}

// Config holds advisor configuration.
type Config struct {
	Enabled bool
	Model   string // empty selects DefaultModel
	APIKey  string // empty reads ANTHROPIC_API_KEY
}

// New creates an advisor, or nil when diagnosis is disabled or no API key
// is available. The nil return is not an error: diagnosis is optional.
func New(cfg Config, log *slog.Logger) *Advisor {
	if !cfg.Enabled {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		log.Warn("diagnosis enabled but ANTHROPIC_API_KEY not set, falling back to static guidance")
		return nil
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Advisor{
		client: &client,
		model:  model,
		sem:    semaphore.NewWeighted(1),
		log:    log,
	}
}

// Diagnose returns a short remediation diagnosis, or an empty string on
// any failure.
func (a *Advisor) Diagnose(ctx context.Context, kind string, details map[string]string) string {
	if a == nil {
		return ""
	}
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return ""
	}
	defer a.sem.Release(1)

	prompt := buildPrompt(kind, details)
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		a.log.Warn("diagnosis call failed", "kind", kind, "err", err)
		return ""
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

func buildPrompt(kind string, details map[string]string) string {
	var sb strings.Builder
	sb.WriteString("You are assisting a host watchdog. A ")
	sb.WriteString(kind)
	sb.WriteString(" issue was detected on a Linux host and was routed to a human instead of automatic remediation.\n\nDetails:\n")

	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "- %s: %s\n", k, details[k])
	}

	sb.WriteString("\nIn at most five short lines: the most likely cause, how to confirm it, and the safest remediation. Plain text, no markdown.")
	return sb.String()
}
