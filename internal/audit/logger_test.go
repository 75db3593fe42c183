package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var out []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode audit line %q: %v", sc.Text(), err)
		}
		out = append(out, e)
	}
	return out
}

func TestLoggerAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")
	l := NewLogger(path)
	l.nowFunc = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	if err := l.Log("alice", ActionLogin, "", OutcomeSuccess, "ip=10.0.0.1"); err != nil {
		t.Fatalf("Log() error: %v", err)
	}
	if err := l.Log("alice", ActionLogin, "", OutcomeBlocked, "active elsewhere"); err != nil {
		t.Fatalf("Log() error: %v", err)
	}

	events := readEvents(t, path)
	if len(events) != 2 {
		t.Fatalf("expected 2 audit lines, got %d", len(events))
	}
	if events[0].At != "2026-03-01T09:00:00Z" || events[0].Action != ActionLogin || events[0].Outcome != OutcomeSuccess {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Outcome != OutcomeBlocked || events[1].Detail != "active elsewhere" {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}

func TestLoggerWithoutPathDiscards(t *testing.T) {
	var nilLogger *Logger
	if err := nilLogger.Log("a", ActionLogout, "", OutcomeSuccess, ""); err != nil {
		t.Fatalf("nil logger Log() error: %v", err)
	}
	if err := NewLogger("").Log("a", ActionLogout, "", OutcomeSuccess, ""); err != nil {
		t.Fatalf("pathless logger Log() error: %v", err)
	}
}
