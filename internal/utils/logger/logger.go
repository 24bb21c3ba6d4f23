// Package logger prints colored, leveled console lines tagged with the emitting component.
// Access logs for HTTP traffic go through zerolog instead (see RequestLogger).
package logger

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

type style struct {
	label string
	icon  string
	paint *color.Color
}

var (
	debugStyle   = style{"DEBUG", "🔍", color.New(color.FgMagenta)}
	infoStyle    = style{"INFO", "ℹ️", color.New(color.FgCyan)}
	successStyle = style{"SUCCESS", "✅", color.New(color.FgGreen)}
	warnStyle    = style{"WARN", "⚠️", color.New(color.FgYellow)}
	errorStyle   = style{"ERROR", "❌", color.New(color.FgRed)}
)

var threshold atomic.Int32

// output is swapped in tests.
var output = func() io.Writer { return color.Output }

func init() { threshold.Store(int32(LevelInfo)) }

// SetLevel sets the minimum level printed by every logger. Unknown names mean "info".
func SetLevel(level string) {
	l := LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = LevelDebug
	case "warn", "warning":
		l = LevelWarn
	case "error":
		l = LevelError
	}
	threshold.Store(int32(l))
}

// Logger is cheap to create; every package keeps its own with a component name.
type Logger struct {
	component string
}

func New(component string) *Logger {
	return &Logger{component: component}
}

// print must be called directly from the exported methods so the caller lookup lands on
// the right frame.
func (l *Logger) print(lvl Level, st style, line string) {
	if int32(lvl) < threshold.Load() {
		return
	}
	_, file, no, _ := runtime.Caller(2)
	st.paint.Fprintf(output(), "%s | %s | %s | %s:%d | %s | %s\n",
		st.icon, time.Now().Format(time.DateTime), st.label, filepath.Base(file), no, l.component, line)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.print(LevelDebug, debugStyle, fmt.Sprintf(msg, args...))
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.print(LevelInfo, infoStyle, fmt.Sprintf(msg, args...))
}

// Success is an info line rendered in green.
func (l *Logger) Success(msg string, args ...interface{}) {
	l.print(LevelInfo, successStyle, fmt.Sprintf(msg, args...))
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.print(LevelWarn, warnStyle, fmt.Sprintf(msg, args...))
}

// Error logs msg with err appended and returns err wrapped with msg, so call sites can
// `return log.Error(...)`.
func (l *Logger) Error(msg string, err error, args ...interface{}) error {
	text := fmt.Sprintf(msg, args...)
	l.print(LevelError, errorStyle, text+": "+fmt.Sprint(err))
	return fmt.Errorf("%s: %w", text, err)
}
