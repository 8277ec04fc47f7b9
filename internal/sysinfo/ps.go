// Package sysinfo implements the external collaborators the monitors talk
// to: the process snapshot, swap reading, the HTTP health probe, compose
// service control, and the kill primitive. Everything here is deliberately
// thin; the decision logic lives in the monitors.
package sysinfo

import (
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hostwatch/hostwatch/internal/issue"
)

// PS snapshots the process table by invoking ps(1).
type PS struct {
	log *slog.Logger
}

// NewPS creates a ps-backed snapshotter.
func NewPS(log *slog.Logger) *PS {
	if log == nil {
		log = slog.Default()
	}
	return &PS{log: log}
}

// Snapshot returns the current process table. On any failure it returns an
// empty list so the monitors see "no processes found" rather than an error.
func (p *PS) Snapshot(ctx context.Context) []issue.ProcessInfo {
	out, err := exec.CommandContext(ctx,
		"ps", "-eo", "pid,pcpu,rss,etime,state,args", "--no-headers").Output()
	if err != nil {
		p.log.Error("process snapshot failed", "err", err)
		return nil
	}
	return ParsePS(string(out))
}

// ParsePS parses ps output lines into ProcessInfo records. Malformed lines
// are skipped.
func ParsePS(out string) []issue.ProcessInfo {
	var procs []issue.ProcessInfo
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}

		cpu, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		rssKB, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			continue
		}

		procs = append(procs, issue.ProcessInfo{
			PID:          fields[0],
			CPUPercent:   cpu,
			MemoryMB:     rssKB / 1024,
			RuntimeHours: ParseEtime(fields[3]),
			Elapsed:      fields[3],
			State:        fields[4],
			Command:      strings.Join(fields[5:], " "),
		})
	}
	return procs
}

// ParseEtime converts a ps etime value ([[dd-]hh:]mm:ss) into wall-clock
// hours. Unparseable values yield 0.
func ParseEtime(etime string) float64 {
	days := 0.0
	if idx := strings.Index(etime, "-"); idx >= 0 {
		d, err := strconv.Atoi(etime[:idx])
		if err != nil {
			return 0
		}
		days = float64(d)
		etime = etime[idx+1:]
	}

	parts := strings.Split(etime, ":")
	var hours, minutes, seconds float64
	switch len(parts) {
	case 3:
		hours = atof(parts[0])
		minutes = atof(parts[1])
		seconds = atof(parts[2])
	case 2:
		minutes = atof(parts[0])
		seconds = atof(parts[1])
	default:
		return 0
	}
	return days*24 + hours + minutes/60 + seconds/3600
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
