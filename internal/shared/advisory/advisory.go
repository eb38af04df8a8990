// Package advisory carries user-facing notices from the core to whatever
// surface is rendering them (CLI, websocket clients, logs).
package advisory

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level is the severity of an advisory.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Remediation actions offered alongside advisories.
const (
	ActionSetToken     = "Set Token"
	ActionOpenSettings = "Open Settings"
)

// Advisory is a single user-visible notice.
type Advisory struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Actions   []string  `json:"actions,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Info builds an informational advisory.
func Info(msg string) Advisory {
	return Advisory{Level: LevelInfo, Message: msg, Timestamp: time.Now()}
}

// Warning builds a warning advisory with optional remediation actions.
func Warning(msg string, actions ...string) Advisory {
	return Advisory{Level: LevelWarning, Message: msg, Actions: actions, Timestamp: time.Now()}
}

// Error builds an error advisory.
func Error(msg string) Advisory {
	return Advisory{Level: LevelError, Message: msg, Timestamp: time.Now()}
}

// Notifier receives advisories.
type Notifier interface {
	Notify(a Advisory)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(a Advisory)

// Notify calls f(a).
func (f NotifierFunc) Notify(a Advisory) {
	f(a)
}

// Discard drops every advisory.
var Discard Notifier = NotifierFunc(func(Advisory) {})

// Multi fans an advisory out to several notifiers in order.
type Multi []Notifier

// Notify forwards a to every non-nil notifier.
func (m Multi) Notify(a Advisory) {
	for _, n := range m {
		if n != nil {
			n.Notify(a)
		}
	}
}

// Log writes advisories to a zap logger.
type Log struct {
	Logger *zap.Logger
}

// Notify logs a at the level matching its severity.
func (l Log) Notify(a Advisory) {
	fields := []zap.Field{zap.String("advisory", a.Message)}
	if len(a.Actions) > 0 {
		fields = append(fields, zap.Strings("actions", a.Actions))
	}
	switch a.Level {
	case LevelError:
		l.Logger.Error("Advisory raised", fields...)
	case LevelWarning:
		l.Logger.Warn("Advisory raised", fields...)
	default:
		l.Logger.Info("Advisory raised", fields...)
	}
}

// Recorder keeps the most recent advisories in memory.
type Recorder struct {
	mu    sync.RWMutex
	limit int
	items []Advisory
}

// NewRecorder creates a recorder holding at most limit advisories.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 50
	}
	return &Recorder{limit: limit}
}

// Notify appends a, dropping the oldest entry when full.
func (r *Recorder) Notify(a Advisory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, a)
	if len(r.items) > r.limit {
		r.items = r.items[len(r.items)-r.limit:]
	}
}

// List returns a copy of the recorded advisories, oldest first.
func (r *Recorder) List() []Advisory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Advisory, len(r.items))
	copy(out, r.items)
	return out
}

// Messages returns just the message text of recorded advisories.
func (r *Recorder) Messages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.items))
	for _, a := range r.items {
		out = append(out, a.Message)
	}
	return out
}
