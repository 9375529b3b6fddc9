package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLoggingConfig(dir string) *LoggingConfig {
	return &LoggingConfig{Enabled: true, Dir: dir, MaxRuns: 20, ConsoleTimestamps: false}
}

func TestRunLoggerWritesEvents(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewRunLogger(testLoggingConfig(dir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.RunStart("APP-123", "Invoice opens")
	logger.StageStart(StageInterpret)
	logger.StageEnd(StageInterpret, true)
	logger.Fallback(StageInterpret, "model unavailable")
	logger.BrowserState(StateObserving, "http://app.test/orders")
	logger.ConsoleError("TypeError: boom")
	logger.PublishSkipped("tests/orders-hub.spec.ts")
	logger.PublishDone("https://example.com/pr/1")
	logger.Warning("something odd")
	logger.Error("observation failed", fmt.Errorf("timeout"))
	logger.RunEnd(true, "done")
	logger.Close()

	events, err := ReadEvents(logger.LogPath(), nil)
	if err != nil {
		t.Fatalf("failed to read events: %v", err)
	}
	if len(events) != 11 {
		t.Fatalf("expected 11 events, got %d", len(events))
	}

	if events[0].Type != EventRunStart {
		t.Errorf("first event = %s", events[0].Type)
	}
	if events[0].Data["ticket"] != "APP-123" {
		t.Errorf("run_start data = %v", events[0].Data)
	}

	last := events[len(events)-1]
	if last.Type != EventRunEnd {
		t.Errorf("last event = %s", last.Type)
	}
	if last.Success == nil || !*last.Success {
		t.Error("run_end should carry success=true")
	}
	if last.Duration == nil {
		t.Error("run_end should carry a duration")
	}

	for _, e := range events {
		if e.RunID != logger.RunID() {
			t.Errorf("event missing run id: %+v", e)
		}
		if e.Timestamp.IsZero() {
			t.Errorf("event missing timestamp: %+v", e)
		}
	}
}

func TestRunLoggerStageDuration(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewRunLogger(testLoggingConfig(dir))
	if err != nil {
		t.Fatal(err)
	}

	logger.StageStart(StageMine)
	time.Sleep(10 * time.Millisecond)
	logger.StageEnd(StageMine, true)
	logger.Close()

	events, err := ReadEvents(logger.LogPath(), &EventFilter{EventType: EventStageEnd})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 stage_end, got %d", len(events))
	}
	if events[0].Duration == nil || *events[0].Duration <= 0 {
		t.Error("stage_end should carry a positive duration")
	}
	if events[0].Stage != StageMine {
		t.Errorf("stage = %s", events[0].Stage)
	}
}

func TestRunLoggerDisabled(t *testing.T) {
	logger, err := NewRunLogger(&LoggingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.RunStart("APP-1", "x")
	logger.RunEnd(true, "x")
	if logger.LogPath() != "" {
		t.Error("disabled logger should not create a file")
	}
	logger.Close()
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *RunLogger
	logger.StageStart(StageInterpret)
	logger.StageEnd(StageInterpret, true)
	logger.Warning("no logger")
	logger.Fallback(StageMine, "none")
	logger.ConsoleError("boom")
	logger.LogPrint("hello %s", "world\n")
	logger.LogPrintln("hello")
}

func TestEventFilter(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewRunLogger(testLoggingConfig(dir))
	if err != nil {
		t.Fatal(err)
	}
	logger.StageStart(StageInterpret)
	logger.StageStart(StageMine)
	logger.Warning("noise")
	logger.Close()

	events, err := ReadEvents(logger.LogPath(), &EventFilter{EventType: EventStageStart, Stage: StageMine})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 filtered event, got %d", len(events))
	}
	if events[0].Stage != StageMine {
		t.Errorf("stage = %s", events[0].Stage)
	}
}

func TestReadEventsSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-x.jsonl")
	content := `{"ts":"2026-01-02T03:04:05Z","type":"warning","msg":"ok"}
not json
{"ts":"2026-01-02T03:04:06Z","type":"error","msg":"fine"}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	events, err := ReadEvents(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events, got %d", len(events))
	}
}

func TestRotateOldRuns(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("run-2026010%d-000000-aaaaaaaa.jsonl", i+1)
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	// Unrelated files are never rotated.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	logger, err := NewRunLogger(&LoggingConfig{Enabled: true, Dir: dir, MaxRuns: 3})
	if err != nil {
		t.Fatal(err)
	}
	logger.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var runs, others int
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "run-") {
			runs++
			names = append(names, e.Name())
		} else {
			others++
		}
	}
	if runs != 3 {
		t.Errorf("expected 3 run files after rotation, got %d: %v", runs, names)
	}
	if others != 1 {
		t.Errorf("unrelated files must survive rotation, got %d others", others)
	}
	// The oldest runs go first.
	for _, n := range names {
		if n == "run-20260101-000000-aaaaaaaa.jsonl" || n == "run-20260102-000000-aaaaaaaa.jsonl" {
			t.Errorf("old run %s should have been rotated out", n)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
		{2 * time.Minute, "2m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
