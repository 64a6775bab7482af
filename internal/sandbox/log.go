// SPDX-License-Identifier: AGPL-3.0-or-later

package sandbox

import (
	"strings"
	"sync"
	"time"
)

// LogType classifies a LogEntry.
type LogType string

const (
	LogCmd    LogType = "cmd"
	LogInfo   LogType = "info"
	LogStdout LogType = "stdout"
	LogStderr LogType = "stderr"
	LogError  LogType = "error"
	LogExit   LogType = "exit"
	LogStep   LogType = "step"
)

// LogEntry is one line of the replayable execution log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Type    LogType   `json:"type"`
	Message string    `json:"message"`
}

// recorder accumulates log entries and captured output for a single command.
// Output from the stdout and stderr copy goroutines is serialized through mu,
// so the entry order is the order in which chunks were received.
type recorder struct {
	now   func() time.Time
	onLog func(LogEntry)

	mu     sync.Mutex
	logs   []LogEntry
	stdout strings.Builder
	stderr strings.Builder
}

func (r *recorder) add(typ LogType, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendLocked(typ, msg)
}

func (r *recorder) appendLocked(typ LogType, msg string) {
	e := LogEntry{Time: r.now(), Type: typ, Message: msg}
	r.logs = append(r.logs, e)
	if r.onLog != nil {
		r.onLog(e)
	}
}

func (r *recorder) output(typ LogType, chunk string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if typ == LogStderr {
		r.stderr.WriteString(chunk)
	} else {
		r.stdout.WriteString(chunk)
	}
	r.appendLocked(typ, strings.TrimSpace(chunk))
}

func (r *recorder) entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogEntry, len(r.logs))
	copy(out, r.logs)
	return out
}

func (r *recorder) captured() (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stdout.String(), r.stderr.String()
}

// streamWriter receives raw chunks from a child's stdout or stderr. Each Write
// call is one chunk: it is redacted and logged as one entry.
type streamWriter struct {
	typ      LogType
	rec      *recorder
	redactor *Redactor
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.rec.output(w.typ, w.redactor.Redact(string(p)))
	return len(p), nil
}
