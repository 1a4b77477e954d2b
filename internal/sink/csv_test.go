// internal/sink/csv_test.go
package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/YaganovValera/trade-recorder/internal/model"
	"github.com/YaganovValera/trade-recorder/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "debug", DevMode: true})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func testRecord(t *testing.T) model.Record {
	t.Helper()
	rec, err := model.NewRecord("2024-01-01T00:00:00.123Z", "BTC-USD", "42000.50", "0.001", nil)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	return rec
}

func TestCSVSink_InitCreatesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	s := NewCSV(path, testLogger(t))
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != Header+"\n" {
		t.Errorf("file = %q; want header only", data)
	}
}

// Повторный Init на существующем непустом файле ничего не меняет.
func TestCSVSink_InitIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	existing := Header + "\n2023-12-31T23:59:59.000000+00:00,ETH-USD,2500,1\n"
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	log := testLogger(t)
	for i := 0; i < 2; i++ {
		s := NewCSV(path, log)
		if err := s.Init(); err != nil {
			t.Fatalf("Init #%d: %v", i+1, err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i+1, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != existing {
		t.Errorf("file changed by Init:\n got %q\nwant %q", data, existing)
	}
}

// После успешного Append запись читается обратно из файла.
func TestCSVSink_AppendDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	s := NewCSV(path, testLogger(t))
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := s.Append(context.Background(), testRecord(t)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// не закрываем sink: содержимое обязано быть на диске уже сейчас

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d; want 2 (%q)", len(lines), data)
	}
	want := "2024-01-01T00:00:00.123000+00:00,BTC-USD,42000.5,0.001"
	if lines[1] != want {
		t.Errorf("line = %q; want %q", lines[1], want)
	}
	_ = s.Close()
}

// Повторный запуск поверх существующего файла дописывает без дублирования заголовка.
func TestCSVSink_ReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	log := testLogger(t)

	s1 := NewCSV(path, log)
	if err := s1.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s1.Append(context.Background(), testRecord(t)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2 := NewCSV(path, log)
	if err := s2.Init(); err != nil {
		t.Fatalf("re-Init: %v", err)
	}
	rec, err := model.NewRecord("2024-01-01T00:00:01Z", "ETH-USD", "2500", "1.5", nil)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	if err := s2.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	_ = s2.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := strings.Count(string(data), Header); got != 1 {
		t.Errorf("header occurs %d times; want 1", got)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Errorf("lines = %d; want 3 (%q)", len(lines), data)
	}
}

func TestCSVSink_AppendBeforeInitFails(t *testing.T) {
	s := NewCSV(filepath.Join(t.TempDir(), "trades.csv"), testLogger(t))
	err := s.Append(context.Background(), testRecord(t))
	var sErr *SinkError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected SinkError, got %v", err)
	}
	if sErr.Op != "append" {
		t.Errorf("Op = %q; want append", sErr.Op)
	}
}

func TestCSVSink_InitFailsOnBadPath(t *testing.T) {
	s := NewCSV(filepath.Join(t.TempDir(), "no-such-dir", "trades.csv"), testLogger(t))
	if err := s.Init(); err == nil {
		t.Fatal("expected error for unwritable path")
	}
}

// sanity: формат времени в записи соответствует контракту файла
func TestCSVTimestampLayout(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 123000000, time.UTC)
	if got := ts.Format(model.TimeLayout); got != "2024-01-01T00:00:00.123000+00:00" {
		t.Errorf("Format = %q", got)
	}
}
