package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogHook forwards log entries to the monitor's message log. Entries are
// dropped while the monitor is not keeping up.
type LogHook struct {
	levels  []logrus.Level
	entries chan string
}

// NewLogHook returns a hook for level and everything more severe.
func NewLogHook(level logrus.Level) *LogHook {
	levels := make([]logrus.Level, 0, level+1)
	for _, l := range logrus.AllLevels {
		if l <= level {
			levels = append(levels, l)
		}
	}
	return &LogHook{levels: levels, entries: make(chan string, 64)}
}

// Levels implements logrus.Hook.
func (h *LogHook) Levels() []logrus.Level { return h.levels }

// Fire implements logrus.Hook.
func (h *LogHook) Fire(e *logrus.Entry) error {
	select {
	case h.entries <- formatEntry(e):
	default:
	}
	return nil
}

func formatEntry(e *logrus.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-5s %s", strings.ToUpper(e.Level.String()), e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	return b.String()
}
