package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/hostwatch/hostwatch/internal/issue"
)

// Advisor produces an enriched diagnosis for an issue. Implementations
// return an empty string on any failure so the caller can fall back to the
// static guidance text.
type Advisor interface {
	Diagnose(ctx context.Context, kind string, details map[string]string) string
}

// staticGuidance is the fallback remediation text per issue type.
var staticGuidance = map[issue.Type]string{
	issue.TypeContainer: "Check container logs (docker compose logs --tail 100) and restart the service manually once the cause is understood.",
	issue.TypeRunaway:   "Inspect the process (ps -p <pid> -o pid,pcpu,etime,args). If it is safe to stop, kill it with: kill -9 <pid>.",
	issue.TypeMemory:    "Inspect memory usage (ps -p <pid> -o pid,rss,etime,args; smem if available). Consider restarting the owning service instead of killing the process.",
	issue.TypeStuck:     "A process in uninterruptible sleep cannot be killed by signal. Check the I/O device or mount it is blocked on (cat /proc/<pid>/stack, dmesg); a reboot may be required.",
	issue.TypeSwap:      "Identify the largest swap consumers (smem -s swap or /proc/*/status VmSwap) and restart or kill them. Consider raising memory limits.",
}

// Guidance renders human-readable remediation guidance for issues the
// policy routed to a human instead of acting on. When an Advisor is
// configured its diagnosis is appended under the static text; the static
// text always prints so guidance still works with diagnosis disabled or
// failing.
type Guidance struct {
	advisor Advisor // may be nil
	out     io.Writer
}

// NewGuidance creates a guidance renderer. advisor may be nil.
func NewGuidance(advisor Advisor) *Guidance {
	return &Guidance{advisor: advisor, out: os.Stdout}
}

// Emit implements monitor.Guide.
func (g *Guidance) Emit(ctx context.Context, iss issue.Issue) {
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(g.out, "\n%s %s issue needs review: %s\n", cyan("▶"), iss.Type, iss.Message)

	if text, ok := staticGuidance[iss.Type]; ok {
		fmt.Fprintf(g.out, "  %s\n", text)
	}

	if g.advisor != nil {
		details := map[string]string{"message": iss.Message}
		if iss.PID != "" {
			details["pid"] = iss.PID
		}
		if iss.Command != "" {
			details["command"] = iss.Command
		}
		if diag := g.advisor.Diagnose(ctx, string(iss.Type), details); diag != "" {
			fmt.Fprintf(g.out, "\n  %s\n%s\n", cyan("AI diagnosis:"), indent(diag, "  "))
		}
	}
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+prefix)
}
