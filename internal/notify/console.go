package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Console prints notifications to the terminal. Used alongside (or instead
// of) the webhook so an interactive run always shows what was sent.
type Console struct {
	out io.Writer
}

// NewConsole creates a console sink writing to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// Send implements monitor.Notifier.
func (c *Console) Send(_ context.Context, title, message string, isError bool) {
	mark := color.New(color.FgYellow).Sprint("!")
	if isError {
		mark = color.New(color.FgRed).Sprint("✗")
	}
	fmt.Fprintf(c.out, "%s %s: %s\n", mark, title, message)
}

// Fanout delivers every notification to all wrapped sinks.
type Fanout []interface {
	Send(ctx context.Context, title, message string, isError bool)
}

// Send implements monitor.Notifier.
func (f Fanout) Send(ctx context.Context, title, message string, isError bool) {
	for _, n := range f {
		n.Send(ctx, title, message, isError)
	}
}
