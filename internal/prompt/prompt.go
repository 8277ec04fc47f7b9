// Package prompt provides interactive confirmation for ask-mode actions.
package prompt

import (
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
)

// Confirmer asks yes/no questions on the terminal. It is only wired when
// the agent runs with --interactive; unattended runs never block on input.
type Confirmer struct{}

func New() *Confirmer {
	return &Confirmer{}
}

// Confirm prints the question and reads a single line. Only an explicit
// "y" or "yes" approves; everything else, including read errors and EOF,
// declines.
func (c *Confirmer) Confirm(question string) bool {
	rl, err := readline.New(color.YellowString("? ") + question + " [y/N] ")
	if err != nil {
		return false
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
