// Package hooks provides logrus hooks shared by the runtest binaries.
package hooks

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// contextHook annotates every entry with the file:line of the log call site,
// trimmed to a path relative to the repository root.
type contextHook struct {
}

func NewContextHook() contextHook {
	return contextHook{}
}

func (hook contextHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook contextHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(0, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for frame, more := frames.Next(); more; frame, more = frames.Next() {
		if strings.Contains(frame.File, "sirupsen/logrus") ||
			strings.Contains(frame.File, "context_hook.go") ||
			strings.HasPrefix(frame.Function, "runtime.") {
			continue
		}
		file := frame.File
		if idx := strings.LastIndex(file, "runtest/"); idx >= 0 {
			file = file[idx+len("runtest/"):]
		}
		entry.Data["file:line"] = fmt.Sprintf("%s:%d", file, frame.Line)
		break
	}
	return nil
}
