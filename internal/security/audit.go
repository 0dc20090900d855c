// Package security keeps the audit trail of catalog changes and denied
// admin requests.
package security

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"agenthub/internal/domain"
	"agenthub/internal/infra/logger"
	"agenthub/internal/infra/tracer"
)

// RetentionPolicy controls how long audit entries are kept.
type RetentionPolicy struct {
	MaxAge  time.Duration // 0 = no limit
	MaxSize int64         // bytes; 0 = no limit
}

func (p RetentionPolicy) empty() bool { return p.MaxAge <= 0 && p.MaxSize <= 0 }

// FileAuditLogger implements domain.AuditLogger by appending JSON lines to a
// file.
type FileAuditLogger struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	retention RetentionPolicy
}

// NewFileAuditLogger opens path for appending, creating it with 0600
// permissions when missing.
func NewFileAuditLogger(path string, retention RetentionPolicy) (*FileAuditLogger, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &FileAuditLogger{file: f, path: path, retention: retention}, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// Log writes event as a single JSON line. Missing timestamps and request IDs
// are filled from the clock and ctx.
func (a *FileAuditLogger) Log(ctx context.Context, event domain.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = logger.RequestIDFrom(ctx)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return domain.NewDomainError("FileAuditLogger.Log", domain.ErrAuditWrite, err.Error())
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.file.Write(append(data, '\n')); err != nil {
		return domain.NewDomainError("FileAuditLogger.Log", domain.ErrAuditWrite, err.Error())
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		attrs := []attribute.KeyValue{
			tracer.StringAttr("audit.actor", event.Actor),
			tracer.StringAttr("audit.resource", event.Resource),
		}
		for k, v := range event.Detail {
			attrs = append(attrs, tracer.StringAttr("audit."+k, v))
		}
		span.AddEvent("audit."+string(event.Type), trace.WithAttributes(attrs...))
	}
	return nil
}

// Close closes the audit log file.
func (a *FileAuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// EnforceRetention rewrites the log keeping only entries the retention policy
// allows, oldest dropped first. It is safe to call while the logger is in use.
func (a *FileAuditLogger) EnforceRetention() (removed int, err error) {
	if a.retention.empty() {
		return 0, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.retention.MaxAge <= 0 {
		info, err := os.Stat(a.path)
		if err != nil {
			return 0, fmt.Errorf("stat audit log: %w", err)
		}
		if info.Size() <= a.retention.MaxSize {
			return 0, nil
		}
	}

	if err := a.file.Close(); err != nil {
		return 0, fmt.Errorf("close for retention: %w", err)
	}
	// Whatever happens below, the logger must keep a usable handle.
	defer func() {
		f, openErr := openAppend(a.path)
		if openErr != nil && err == nil {
			err = fmt.Errorf("reopen after retention: %w", openErr)
		}
		a.file = f
	}()

	kept, removed, err := a.filter()
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, nil
	}

	tmpPath := a.path + ".tmp"
	if err := os.WriteFile(tmpPath, kept, 0600); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("write retained entries: %w", err)
	}
	if err := os.Rename(tmpPath, a.path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("rename temp file: %w", err)
	}
	return removed, nil
}

// filter returns the retained lines of the log joined back together.
func (a *FileAuditLogger) filter() ([]byte, int, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, 0, fmt.Errorf("open for reading: %w", err)
	}
	defer f.Close()

	var cutoff time.Time
	if a.retention.MaxAge > 0 {
		cutoff = time.Now().Add(-a.retention.MaxAge)
	}

	var (
		lines   [][]byte
		size    int64
		removed int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !cutoff.IsZero() {
			var entry struct {
				Timestamp time.Time `json:"timestamp"`
			}
			if json.Unmarshal(line, &entry) == nil && entry.Timestamp.Before(cutoff) {
				removed++
				continue
			}
		}
		lines = append(lines, append([]byte(nil), line...))
		size += int64(len(line)) + 1
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan audit log: %w", err)
	}

	if limit := a.retention.MaxSize; limit > 0 {
		for len(lines) > 0 && size > limit {
			size -= int64(len(lines[0])) + 1
			lines = lines[1:]
			removed++
		}
	}

	var out []byte
	for _, l := range lines {
		out = append(out, l...)
		out = append(out, '\n')
	}
	return out, removed, nil
}

// ParseSize parses a human-readable size such as "100MB" or "1GB". An empty
// string is zero.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		mult   int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(s, unit.suffix) {
			multiplier = unit.mult
			s = strings.TrimSuffix(s, unit.suffix)
			break
		}
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("parse size %q: negative", s)
	}
	return n * multiplier, nil
}

// NopAuditLogger discards every event.
type NopAuditLogger struct{}

func (NopAuditLogger) Log(context.Context, domain.AuditEvent) error { return nil }
func (NopAuditLogger) Close() error                                 { return nil }

var (
	_ domain.AuditLogger = (*FileAuditLogger)(nil)
	_ domain.AuditLogger = NopAuditLogger{}
)
