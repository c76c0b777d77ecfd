// Package logger provides leveled, component-tagged logging for atendebot.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents a logging severity level.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var (
	mu     sync.Mutex
	level  = INFO
	output io.Writer = os.Stderr
)

// SetLevel sets the minimum level that will be logged.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// SetOutput redirects log output (used in tests).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "?"
	}
}

// ParseLevel maps a level name to a Level; unknown names default to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func logf(l Level, component, msg string, fields map[string]any) {
	mu.Lock()
	defer mu.Unlock()
	if l < level {
		return
	}

	var sb strings.Builder
	sb.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	sb.WriteString(" [")
	sb.WriteString(l.String())
	sb.WriteString("] [")
	sb.WriteString(component)
	sb.WriteString("] ")
	sb.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%v", k, fields[k])
		}
	}

	fmt.Fprintln(output, sb.String())
}

// DebugC logs a component-tagged message at DEBUG level.
func DebugC(component, msg string) { logf(DEBUG, component, msg, nil) }

// DebugCF logs a component-tagged message with structured fields at DEBUG level.
func DebugCF(component, msg string, fields map[string]any) { logf(DEBUG, component, msg, fields) }

// InfoC logs a component-tagged message at INFO level.
func InfoC(component, msg string) { logf(INFO, component, msg, nil) }

// InfoCF logs a component-tagged message with structured fields at INFO level.
func InfoCF(component, msg string, fields map[string]any) { logf(INFO, component, msg, fields) }

// WarnC logs a component-tagged message at WARN level.
func WarnC(component, msg string) { logf(WARN, component, msg, nil) }

// WarnCF logs a component-tagged message with structured fields at WARN level.
func WarnCF(component, msg string, fields map[string]any) { logf(WARN, component, msg, fields) }

// ErrorC logs a component-tagged message at ERROR level.
func ErrorC(component, msg string) { logf(ERROR, component, msg, nil) }

// ErrorCF logs a component-tagged message with structured fields at ERROR level.
func ErrorCF(component, msg string, fields map[string]any) { logf(ERROR, component, msg, fields) }
