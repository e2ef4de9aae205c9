// Package logger is the structured JSON logger of Movie Night Hub. It writes
// one JSON object per line with a level, a message, optional caller info and
// accumulated fields, and travels through context between layers.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ──────────────────────────────────────────────
// Levels
// ──────────────────────────────────────────────

// Level is the severity of a log line.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// String returns the uppercase level name.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel converts a config string to a Level. Unknown strings mean INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// ──────────────────────────────────────────────
// Fields
// ──────────────────────────────────────────────

// Field is one key-value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// F is the generic field constructor.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

func String(key, value string) Field          { return Field{Key: key, Value: value} }
func Int(key string, value int) Field         { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field     { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field       { return Field{Key: key, Value: value} }
func Any(key string, value any) Field         { return Field{Key: key, Value: value} }

// Err records an error under the "error" key.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration formats a duration as its string form.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Time formats a timestamp as RFC3339.
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value.Format(time.RFC3339)}
}

// Field helpers for the hub's recurring attributes.
func UserID(id int64) Field         { return Int64("user_id", id) }
func Username(name string) Field    { return String("username", name) }
func MovieTitle(title string) Field { return String("movie_title", title) }
func Completion(pct float64) Field  { return Float64("completion_pct", pct) }
func BadgeID(id string) Field       { return String("badge_id", id) }
func Metric(name string) Field      { return String("metric", name) }
func RankPosition(pos int) Field    { return Int("rank_position", pos) }
func Component(name string) Field   { return String("component", name) }
func Operation(name string) Field   { return String("operation", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }

// ──────────────────────────────────────────────
// Logger
// ──────────────────────────────────────────────

// LogEntry is the wire form of one log line.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Caller    string         `json:"caller,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Logger writes structured JSON lines at or above its minimum level.
type Logger struct {
	mu         sync.Mutex
	output     io.Writer
	level      Level
	fields     []Field
	addCaller  bool
	callerSkip int
}

// Options configures a Logger.
type Options struct {
	Output     io.Writer
	Level      Level
	AddCaller  bool
	CallerSkip int
}

// DefaultOptions logs INFO and above to stdout with caller info.
func DefaultOptions() Options {
	return Options{
		Output:    os.Stdout,
		Level:     LevelInfo,
		AddCaller: true,
	}
}

// New builds a Logger. A nil output falls back to stdout.
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Logger{
		output:     opts.Output,
		level:      opts.Level,
		addCaller:  opts.AddCaller,
		callerSkip: opts.CallerSkip,
	}
}

// Default builds a Logger with DefaultOptions.
func Default() *Logger {
	return New(DefaultOptions())
}

// clone copies the logger so derived loggers never share field slices.
func (l *Logger) clone() *Logger {
	fields := make([]Field, len(l.fields))
	copy(fields, l.fields)
	return &Logger{
		output:     l.output,
		level:      l.level,
		fields:     fields,
		addCaller:  l.addCaller,
		callerSkip: l.callerSkip,
	}
}

// With returns a derived Logger carrying extra fields on every line.
func (l *Logger) With(fields ...Field) *Logger {
	derived := l.clone()
	derived.fields = append(derived.fields, fields...)
	return derived
}

// WithLevel returns a new Logger with the specified minimum log level.
func (l *Logger) WithLevel(level Level) *Logger {
	derived := l.clone()
	derived.level = level
	return derived
}

// WithRequestID returns a derived Logger tagged with the request ID.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With(String(RequestIDKey, requestID))
}

// RequestIDKey is the field key used for request tracing.
const RequestIDKey = "request_id"

// callerLocation resolves file:line of the logging call site.
func (l *Logger) callerLocation() string {
	_, file, line, ok := runtime.Caller(3 + l.callerSkip)
	if !ok {
		return ""
	}
	if idx := strings.LastIndex(file, "/"); idx >= 0 {
		file = file[idx+1:]
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// emit filters by level, builds the entry and writes one JSON line.
func (l *Logger) emit(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
	}
	if l.addCaller {
		entry.Caller = l.callerLocation()
	}

	if n := len(l.fields) + len(fields); n > 0 {
		entry.Fields = make(map[string]any, n)
		for _, f := range l.fields {
			entry.Fields[f.Key] = f.Value
		}
		for _, f := range fields {
			entry.Fields[f.Key] = f.Value
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		// Unmarshalable field value. Keep the line, drop the fields.
		fmt.Fprintf(l.output, "%s [%s] %s\n", entry.Timestamp, entry.Level, msg)
		return
	}
	l.output.Write(append(data, '\n'))
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.emit(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.emit(LevelError, msg, fields) }

// Fatal logs the message and terminates the process.
func (l *Logger) Fatal(msg string, fields ...Field) {
	l.emit(LevelFatal, msg, fields)
	os.Exit(1)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.emit(LevelDebug, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Infof(format string, args ...any) {
	l.emit(LevelInfo, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.emit(LevelWarn, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.emit(LevelError, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Fatalf(format string, args ...any) {
	l.emit(LevelFatal, fmt.Sprintf(format, args...), nil)
	os.Exit(1)
}

// ──────────────────────────────────────────────
// Context propagation
// ──────────────────────────────────────────────

type ctxKey struct{}

// WithContext attaches the logger to ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext extracts the logger, falling back to Default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}
