package sysinfo

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// MeminfoSwap reads swap totals from /proc/meminfo.
type MeminfoSwap struct {
	// path is overridable for tests; empty means /proc/meminfo.
	path string
}

// NewMeminfoSwap creates the default swap reader.
func NewMeminfoSwap() *MeminfoSwap {
	return &MeminfoSwap{}
}

// Read returns total and used swap in MB.
func (m *MeminfoSwap) Read() (totalMB, usedMB int, err error) {
	path := m.path
	if path == "" {
		path = "/proc/meminfo"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseMeminfo(string(data))
}

// ParseMeminfo extracts SwapTotal and SwapFree (reported in kB) and
// converts them to MB.
func ParseMeminfo(data string) (totalMB, usedMB int, err error) {
	totalKB, foundTotal := -1, false
	freeKB, foundFree := -1, false

	for _, line := range strings.Split(data, "\n") {
		switch {
		case strings.HasPrefix(line, "SwapTotal:"):
			totalKB, foundTotal = meminfoKB(line)
		case strings.HasPrefix(line, "SwapFree:"):
			freeKB, foundFree = meminfoKB(line)
		}
	}
	if !foundTotal || !foundFree {
		return 0, 0, fmt.Errorf("meminfo missing SwapTotal or SwapFree")
	}

	totalMB = totalKB / 1024
	usedMB = (totalKB - freeKB) / 1024
	return totalMB, usedMB, nil
}

func meminfoKB(line string) (int, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
