package sysinfo

import (
	"log/slog"
	"os"
	"strconv"
)

// SignalKiller terminates processes with SIGKILL.
type SignalKiller struct {
	log *slog.Logger
}

// NewSignalKiller creates the default kill primitive.
func NewSignalKiller(log *slog.Logger) *SignalKiller {
	if log == nil {
		log = slog.Default()
	}
	return &SignalKiller{log: log}
}

// Kill implements monitor.Killer. Returns false when the pid is malformed
// or the signal could not be delivered.
func (k *SignalKiller) Kill(pid string) bool {
	n, err := strconv.Atoi(pid)
	if err != nil || n <= 1 {
		k.log.Error("refusing to kill invalid pid", "pid", pid)
		return false
	}
	proc, err := os.FindProcess(n)
	if err != nil {
		k.log.Error("kill failed", "pid", pid, "err", err)
		return false
	}
	if err := proc.Kill(); err != nil {
		k.log.Error("kill failed", "pid", pid, "err", err)
		return false
	}
	k.log.Warn("killed process", "pid", pid)
	return true
}
