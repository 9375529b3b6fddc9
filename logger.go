package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of log event
type EventType string

const (
	EventRunStart       EventType = "run_start"
	EventRunEnd         EventType = "run_end"
	EventStageStart     EventType = "stage_start"
	EventStageEnd       EventType = "stage_end"
	EventFallback       EventType = "fallback"
	EventBrowserState   EventType = "browser_state"
	EventConsoleError   EventType = "console_error"
	EventPublishSkipped EventType = "publish_skipped"
	EventPublishDone    EventType = "publish_done"
	EventWarning        EventType = "warning"
	EventError          EventType = "error"
)

// Pipeline stage names used in stage_start/stage_end events.
const (
	StageInterpret  = "interpret"
	StageMine       = "mine"
	StageObserve    = "observe"
	StageSynthesize = "synthesize"
	StagePublish    = "publish"
)

// Event represents a single log event
type Event struct {
	Timestamp time.Time              `json:"ts"`
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run,omitempty"`
	Stage     string                 `json:"stage,omitempty"`
	Duration  *int64                 `json:"duration,omitempty"` // nanoseconds
	Success   *bool                  `json:"success,omitempty"`
	Message   string                 `json:"msg,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// LoggingConfig configures the logging system
type LoggingConfig struct {
	Enabled           bool   `json:"enabled"`
	Dir               string `json:"dir"`
	MaxRuns           int    `json:"maxRuns"`
	ConsoleTimestamps bool   `json:"consoleTimestamps"`
}

// DefaultLoggingConfig returns sensible defaults
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Enabled:           true,
		Dir:               ".autospec/logs",
		MaxRuns:           20,
		ConsoleTimestamps: true,
	}
}

// RunLogger handles structured logging for a single synthesis run. Every
// pipeline stage reports through it; the file is one JSONL stream per run.
type RunLogger struct {
	file      *os.File
	encoder   *json.Encoder
	mu        sync.Mutex
	runID     string
	startTime time.Time
	enabled   bool
	config    *LoggingConfig

	stageStarts map[string]time.Time
}

// NewRunLogger creates a logger for one run, rotating old run logs out.
func NewRunLogger(config *LoggingConfig) (*RunLogger, error) {
	if config == nil {
		config = DefaultLoggingConfig()
	}

	logger := &RunLogger{
		runID:       uuid.NewString(),
		startTime:   time.Now(),
		enabled:     config.Enabled,
		config:      config,
		stageStarts: make(map[string]time.Time),
	}

	if !config.Enabled {
		return logger, nil
	}

	logsDir := config.Dir
	if logsDir == "" {
		logsDir = DefaultLoggingConfig().Dir
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	if config.MaxRuns > 0 {
		rotateOldRuns(logsDir, config.MaxRuns)
	}

	name := fmt.Sprintf("run-%s-%s.jsonl",
		logger.startTime.Format("20060102-150405"), logger.runID[:8])
	file, err := os.Create(filepath.Join(logsDir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger.file = file
	logger.encoder = json.NewEncoder(file)

	return logger, nil
}

// Close closes the log file
func (l *RunLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// RunID returns the unique identifier of this run.
func (l *RunLogger) RunID() string {
	return l.runID
}

// LogPath returns the path to the current log file
func (l *RunLogger) LogPath() string {
	if l.file != nil {
		return l.file.Name()
	}
	return ""
}

// logEvent writes one event, stamping the timestamp and run identifier.
func (l *RunLogger) logEvent(event Event) {
	if l == nil || !l.enabled || l.file == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RunID == "" {
		event.RunID = l.runID
	}

	l.encoder.Encode(event)
}

// RunStart logs the start of a synthesis run.
func (l *RunLogger) RunStart(ticketID, title string) {
	l.logEvent(Event{
		Type: EventRunStart,
		Data: map[string]interface{}{
			"ticket": ticketID,
			"title":  title,
		},
	})
}

// RunEnd logs the end of a run with its overall outcome.
func (l *RunLogger) RunEnd(success bool, summary string) {
	duration := time.Since(l.startTime).Nanoseconds()
	l.logEvent(Event{
		Type:     EventRunEnd,
		Duration: &duration,
		Success:  &success,
		Message:  summary,
	})
}

// StageStart logs the start of a pipeline stage.
func (l *RunLogger) StageStart(stage string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.stageStarts[stage] = time.Now()
	l.mu.Unlock()
	l.logEvent(Event{Type: EventStageStart, Stage: stage})
}

// StageEnd logs the end of a pipeline stage with its duration.
func (l *RunLogger) StageEnd(stage string, success bool) {
	if l == nil {
		return
	}
	l.mu.Lock()
	started, ok := l.stageStarts[stage]
	l.mu.Unlock()
	event := Event{Type: EventStageEnd, Stage: stage, Success: &success}
	if ok {
		duration := time.Since(started).Nanoseconds()
		event.Duration = &duration
	}
	l.logEvent(event)
}

// Fallback logs a collaborator degrading to its fallback path.
func (l *RunLogger) Fallback(stage, reason string) {
	l.logEvent(Event{
		Type:    EventFallback,
		Stage:   stage,
		Message: reason,
	})
}

// BrowserState logs a driver state transition.
func (l *RunLogger) BrowserState(state DriverState, url string) {
	l.logEvent(Event{
		Type:  EventBrowserState,
		Stage: StageObserve,
		Data: map[string]interface{}{
			"state": string(state),
			"url":   url,
		},
	})
}

// ConsoleError logs a page exception observed during the run.
func (l *RunLogger) ConsoleError(text string) {
	l.logEvent(Event{
		Type:    EventConsoleError,
		Stage:   StageObserve,
		Message: text,
	})
}

// PublishSkipped logs a duplicate-guard skip.
func (l *RunLogger) PublishSkipped(path string) {
	l.logEvent(Event{
		Type:  EventPublishSkipped,
		Stage: StagePublish,
		Data:  map[string]interface{}{"path": path},
	})
}

// PublishDone logs a successful landing.
func (l *RunLogger) PublishDone(prURL string) {
	l.logEvent(Event{
		Type:  EventPublishDone,
		Stage: StagePublish,
		Data:  map[string]interface{}{"pr": prURL},
	})
}

// Warning logs a warning message
func (l *RunLogger) Warning(msg string) {
	l.logEvent(Event{
		Type:    EventWarning,
		Message: msg,
	})
}

// Error logs an error message
func (l *RunLogger) Error(msg string, err error) {
	data := make(map[string]interface{})
	if err != nil {
		data["error"] = err.Error()
	}
	l.logEvent(Event{
		Type:    EventError,
		Message: msg,
		Data:    data,
	})
}

// Console output helpers with timestamps

// LogPrint prints a timestamped message to stdout
func (l *RunLogger) LogPrint(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l != nil && l.config != nil && l.config.ConsoleTimestamps {
		timestamp := time.Now().Format("15:04:05")
		fmt.Printf("[%s] %s", timestamp, msg)
	} else {
		fmt.Print(msg)
	}
}

// LogPrintln prints a timestamped message with newline to stdout
func (l *RunLogger) LogPrintln(args ...interface{}) {
	msg := fmt.Sprint(args...)
	if l != nil && l.config != nil && l.config.ConsoleTimestamps {
		timestamp := time.Now().Format("15:04:05")
		fmt.Printf("[%s] %s\n", timestamp, msg)
	} else {
		fmt.Println(msg)
	}
}

// FormatDuration formats a duration for display
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d.Milliseconds()))
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if seconds == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// rotateOldRuns deletes runs beyond maxRuns, keeping the most recent. File
// names sort chronologically because they embed the start timestamp.
func rotateOldRuns(logsDir string, maxRuns int) {
	entries, err := os.ReadDir(logsDir)
	if err != nil {
		return
	}

	var runFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "run-") && strings.HasSuffix(name, ".jsonl") {
			runFiles = append(runFiles, name)
		}
	}

	if len(runFiles) < maxRuns {
		return
	}

	sort.Strings(runFiles)

	// Leave room for the run about to start.
	toDelete := len(runFiles) - maxRuns + 1
	for i := 0; i < toDelete; i++ {
		os.Remove(filepath.Join(logsDir, runFiles[i]))
	}
}

// ReadEvents reads events from a log file with optional filtering
func ReadEvents(logPath string, filter *EventFilter) ([]Event, error) {
	file, err := os.Open(logPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadEventsFromReader(file, filter)
}

// ReadEventsFromReader reads events from an io.Reader with optional filtering
func ReadEventsFromReader(r io.Reader, filter *EventFilter) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}

		if filter != nil && !filter.Match(&event) {
			continue
		}

		events = append(events, event)
	}

	return events, scanner.Err()
}

// EventFilter filters events when reading logs
type EventFilter struct {
	EventType EventType
	Stage     string
}

// Match returns true if the event matches the filter
func (f *EventFilter) Match(event *Event) bool {
	if f.EventType != "" && event.Type != f.EventType {
		return false
	}
	if f.Stage != "" && event.Stage != f.Stage {
		return false
	}
	return true
}
