// Package debug records backend traffic for troubleshooting fetch problems.
package debug

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http/httptrace"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const debugSchemaVersion = 2

// Fetch states.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"cookie":        true,
}

// TimingBreakdown captures HTTP phase timing using httptrace.
type TimingBreakdown struct {
	DNSLookup       time.Duration `json:"dns_lookup"`
	TCPConnection   time.Duration `json:"tcp_connection"`
	TLSHandshake    time.Duration `json:"tls_handshake"`
	TimeToFirstByte time.Duration `json:"time_to_first_byte"`
	TotalDuration   time.Duration `json:"total_duration"`
}

// Logger collects per-source fetch logs and writes them out at the end of a run.
type Logger struct {
	mu          sync.RWMutex
	enabled     bool
	fullCapture bool
	session     *Session
	outputPath  string
}

// Session is the whole debug run.
type Session struct {
	StartTime  time.Time             `json:"start_time"`
	EndTime    *time.Time            `json:"end_time,omitempty"`
	Sources    map[string]*SourceLog `json:"sources"`
	SystemInfo map[string]any        `json:"system_info"`
}

// SourceLog holds every fetch made against one backend source.
type SourceLog struct {
	SchemaVersion int         `json:"schema_version"`
	Name          string      `json:"name"`
	InitTime      time.Time   `json:"init_time"`
	InitError     string      `json:"init_error,omitempty"`
	Fetches       []*FetchLog `json:"fetches"`
}

// FetchLog is one logical backend operation, possibly spanning several
// HTTP requests (retries, pagination).
type FetchLog struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Operation  string         `json:"operation"`
	Status     string         `json:"status"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    *time.Time     `json:"end_time,omitempty"`
	Duration   time.Duration  `json:"duration"`
	Requests   []RequestLog   `json:"requests"`
	Response   *ResponseLog   `json:"response,omitempty"`
	Errors     []ErrorLog     `json:"errors"`
	Metadata   map[string]any `json:"metadata"`

	trace *httptrace.ClientTrace
}

// RequestLog captures an outgoing request.
type RequestLog struct {
	Timestamp    time.Time         `json:"timestamp"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	Headers      map[string]string `json:"headers,omitempty"`
	BodyPreview  string            `json:"body_preview,omitempty"`
	BodyFull     string            `json:"body_full,omitempty"`
	Timing       *TimingBreakdown  `json:"timing,omitempty"`
	RetryAttempt int               `json:"retry_attempt,omitempty"`
}

// ResponseLog captures the last response of a fetch.
type ResponseLog struct {
	Timestamp   time.Time         `json:"timestamp"`
	StatusCode  int               `json:"status_code"`
	Headers     map[string]string `json:"headers,omitempty"`
	BodyPreview string            `json:"body_preview,omitempty"`
	BodyFull    string            `json:"body_full,omitempty"`
	BodySize    int               `json:"body_size"`
	Duration    time.Duration     `json:"duration"`
	Timing      *TimingBreakdown  `json:"timing,omitempty"`
}

// ErrorLog captures an error with context.
type ErrorLog struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Category  string    `json:"category,omitempty"`
	Context   string    `json:"context,omitempty"`
}

// NewLogger creates a debug logger. With fullCapture, complete bodies are
// stored next to the previews. Files go to <outputDir>/debug.
func NewLogger(enabled bool, fullCapture bool, outputDir string) *Logger {
	logger := &Logger{
		enabled:     enabled,
		fullCapture: fullCapture,
		session: &Session{
			StartTime: time.Now(),
			Sources:   make(map[string]*SourceLog),
			SystemInfo: map[string]any{
				"go_version":   runtime.Version(),
				"os":           runtime.GOOS,
				"arch":         runtime.GOARCH,
				"timestamp":    time.Now().Format(time.RFC3339),
				"full_capture": fullCapture,
			},
		},
	}

	if enabled {
		logger.outputPath = filepath.Join(outputDir, "debug")
	}

	return logger
}

// IsEnabled returns whether debug logging is enabled.
func (l *Logger) IsEnabled() bool {
	return l != nil && l.enabled
}

// IsFullCapture returns whether full body capture is enabled.
func (l *Logger) IsFullCapture() bool {
	return l.IsEnabled() && l.fullCapture
}

// NewTraceContext attaches an httptrace.ClientTrace to the fetch that fills
// the returned timing. Call finalize once the response has arrived.
func (l *Logger) NewTraceContext(fetch *FetchLog) (*TimingBreakdown, func()) {
	if !l.IsEnabled() || fetch == nil {
		return nil, func() {}
	}

	timing := &TimingBreakdown{}
	var start, dnsStart, tcpStart, tlsStart, firstByte time.Time
	start = time.Now()

	trace := &httptrace.ClientTrace{
		DNSStart: func(_ httptrace.DNSStartInfo) {
			dnsStart = time.Now()
		},
		DNSDone: func(_ httptrace.DNSDoneInfo) {
			timing.DNSLookup = time.Since(dnsStart)
		},
		ConnectStart: func(_, _ string) {
			tcpStart = time.Now()
		},
		ConnectDone: func(_, _ string, _ error) {
			timing.TCPConnection = time.Since(tcpStart)
		},
		TLSHandshakeStart: func() {
			tlsStart = time.Now()
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, _ error) {
			timing.TLSHandshake = time.Since(tlsStart)
		},
		GotFirstResponseByte: func() {
			firstByte = time.Now()
		},
	}

	finalize := func() {
		if !firstByte.IsZero() {
			timing.TimeToFirstByte = firstByte.Sub(start)
		}
	}

	l.mu.Lock()
	fetch.trace = trace
	l.mu.Unlock()

	return timing, finalize
}

// TraceFor returns the client trace attached to a fetch, if any.
func (l *Logger) TraceFor(fetch *FetchLog) *httptrace.ClientTrace {
	if !l.IsEnabled() || fetch == nil {
		return nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return fetch.trace
}

// LogSourceInit records that a backend source was constructed.
func (l *Logger) LogSourceInit(source string, err error) {
	if !l.IsEnabled() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sourceLog := l.sourceLocked(source)
	if err != nil {
		sourceLog.InitError = err.Error()
	}
}

func (l *Logger) sourceLocked(source string) *SourceLog {
	sourceLog, ok := l.session.Sources[source]
	if !ok {
		sourceLog = &SourceLog{
			SchemaVersion: debugSchemaVersion,
			Name:          source,
			InitTime:      time.Now(),
			Fetches:       []*FetchLog{},
		}
		l.session.Sources[source] = sourceLog
	}
	return sourceLog
}

// StartFetch begins logging an operation against a source. It returns nil
// when logging is disabled; every other method accepts a nil fetch.
func (l *Logger) StartFetch(source, collection, operation string) *FetchLog {
	if !l.IsEnabled() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fetch := &FetchLog{
		ID:         uuid.NewString(),
		Collection: collection,
		Operation:  operation,
		Status:     StatusRunning,
		StartTime:  time.Now(),
		Requests:   []RequestLog{},
		Errors:     []ErrorLog{},
		Metadata:   make(map[string]any),
	}

	sourceLog := l.sourceLocked(source)
	sourceLog.Fetches = append(sourceLog.Fetches, fetch)
	return fetch
}

// LogRequest records an outgoing request. Credentials in headers are redacted.
func (l *Logger) LogRequest(fetch *FetchLog, method, url string, headers map[string]string, body string) {
	l.LogRequestWithTiming(fetch, method, url, headers, body, nil, 0)
}

// LogRequestWithTiming records an outgoing request with timing and attempt number.
func (l *Logger) LogRequestWithTiming(fetch *FetchLog, method, url string, headers map[string]string, body string, timing *TimingBreakdown, retryAttempt int) {
	if !l.IsEnabled() || fetch == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	reqLog := RequestLog{
		Timestamp:    time.Now(),
		Method:       method,
		URL:          url,
		Headers:      redact(headers),
		BodyPreview:  truncateString(body, 500),
		Timing:       timing,
		RetryAttempt: retryAttempt,
	}
	if l.fullCapture {
		reqLog.BodyFull = body
	}

	fetch.Requests = append(fetch.Requests, reqLog)
}

// LogResponse records the response of a fetch, replacing any earlier one.
func (l *Logger) LogResponse(fetch *FetchLog, statusCode int, headers map[string]string, body string, bodySize int, duration time.Duration) {
	l.LogResponseWithTiming(fetch, statusCode, headers, body, bodySize, duration, nil)
}

// LogResponseWithTiming records the response with its timing breakdown.
func (l *Logger) LogResponseWithTiming(fetch *FetchLog, statusCode int, headers map[string]string, body string, bodySize int, duration time.Duration, timing *TimingBreakdown) {
	if !l.IsEnabled() || fetch == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fetch.Response = &ResponseLog{
		Timestamp:   time.Now(),
		StatusCode:  statusCode,
		Headers:     redact(headers),
		BodyPreview: truncateString(body, 1000),
		BodySize:    bodySize,
		Duration:    duration,
		Timing:      timing,
	}
	if l.fullCapture {
		fetch.Response.BodyFull = body
	}
	if timing != nil {
		timing.TotalDuration = duration
	}
}

// LogError records an error with a category and context.
func (l *Logger) LogError(fetch *FetchLog, message, category, context string) {
	if !l.IsEnabled() || fetch == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fetch.Errors = append(fetch.Errors, ErrorLog{
		Timestamp: time.Now(),
		Message:   message,
		Category:  category,
		Context:   context,
	})
}

// SetMetadata attaches a value to a fetch.
func (l *Logger) SetMetadata(fetch *FetchLog, key string, value any) {
	if !l.IsEnabled() || fetch == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fetch.Metadata[key] = value
}

// SetStatus sets the state of a fetch.
func (l *Logger) SetStatus(fetch *FetchLog, status string) {
	if !l.IsEnabled() || fetch == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fetch.Status = status
}

// EndFetch marks a fetch as done. A fetch still running becomes completed.
func (l *Logger) EndFetch(fetch *FetchLog) {
	if !l.IsEnabled() || fetch == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	fetch.EndTime = &now
	fetch.Duration = now.Sub(fetch.StartTime)
	if fetch.Status == StatusRunning || fetch.Status == "" {
		fetch.Status = StatusCompleted
	}
}

// Finalize ends the session and writes session.json plus one file per source.
func (l *Logger) Finalize() error {
	if !l.IsEnabled() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.session.EndTime = &now

	if err := os.MkdirAll(l.outputPath, 0750); err != nil {
		return fmt.Errorf("failed to create debug output directory: %w", err)
	}

	sources := make([]string, 0, len(l.session.Sources))
	for name := range l.session.Sources {
		sources = append(sources, name)
	}

	sessionData := map[string]any{
		"schema_version": debugSchemaVersion,
		"start_time":     l.session.StartTime,
		"end_time":       l.session.EndTime,
		"system_info":    l.session.SystemInfo,
		"sources":        sources,
	}

	data, err := json.MarshalIndent(sessionData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.outputPath, "session.json"), data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	for name, sourceLog := range l.session.Sources {
		data, err := json.MarshalIndent(sourceLog, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal source data for %s: %w", name, err)
		}
		if err := os.WriteFile(l.sourcePath(name), data, 0600); err != nil {
			return fmt.Errorf("failed to write source file for %s: %w", name, err)
		}
	}

	return nil
}

// GetOutputPath returns the debug directory.
func (l *Logger) GetOutputPath() string {
	return l.outputPath
}

// GetSessionPath returns the path of session.json.
func (l *Logger) GetSessionPath() string {
	if !l.IsEnabled() {
		return ""
	}
	return filepath.Join(l.outputPath, "session.json")
}

// GetSourcePath returns the path of a source's debug file.
func (l *Logger) GetSourcePath(source string) string {
	if !l.IsEnabled() {
		return ""
	}
	return l.sourcePath(source)
}

func (l *Logger) sourcePath(source string) string {
	return filepath.Join(l.outputPath, sanitizeFilename(source)+".json")
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}

func redact(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if sensitiveHeaders[strings.ToLower(k)] {
			v = "[REDACTED]"
		}
		out[k] = v
	}
	return out
}

// truncateString limits a string to a maximum length with ellipsis
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
