// internal/sink/csv.go
package sink

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/YaganovValera/trade-recorder/internal/model"
	"github.com/YaganovValera/trade-recorder/pkg/logger"
)

// Header — фиксированная первая строка выходного файла.
const Header = "timestamp,symbol,price,quantity"

// CSVSink пишет записи в append-only CSV-файл с fsync на каждую строку.
type CSVSink struct {
	path string
	log  *logger.Logger

	mu sync.Mutex
	f  *os.File
}

// NewCSV создаёт CSVSink для файла path. Файл открывается в Init.
func NewCSV(path string, log *logger.Logger) *CSVSink {
	return &CSVSink{path: path, log: log.Named("csv-sink")}
}

// Init открывает файл в режиме append и дописывает заголовок, только если
// файл отсутствует или пуст. Существующие строки никогда не усекаются.
func (s *CSVSink) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f != nil {
		return nil
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &SinkError{Op: "init", Err: err}
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return &SinkError{Op: "init", Err: err}
	}
	if st.Size() == 0 {
		if _, err := f.WriteString(Header + "\n"); err != nil {
			f.Close()
			return &SinkError{Op: "init", Err: err}
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return &SinkError{Op: "init", Err: err}
		}
		s.log.Info("csv: created with header", zap.String("path", s.path))
	} else {
		s.log.Info("csv: appending to existing file",
			zap.String("path", s.path),
			zap.Int64("size_bytes", st.Size()),
		)
	}

	s.f = f
	return nil
}

// Append сериализует запись в одну строку и выполняет долговечную
// дозапись: успех возвращается только после fsync. Буферизации между
// вызовами нет.
func (s *CSVSink) Append(ctx context.Context, rec model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return &SinkError{Op: "append", Err: fmt.Errorf("sink is not initialized")}
	}

	line := rec.TimestampString() + "," + rec.Symbol + "," + rec.PriceString() + "," + rec.QuantityString() + "\n"
	if _, err := s.f.WriteString(line); err != nil {
		return &SinkError{Op: "append", Err: err}
	}
	if err := s.f.Sync(); err != nil {
		return &SinkError{Op: "append", Err: err}
	}
	return nil
}

// Close закрывает файл; повторный Close безопасен.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	if err != nil {
		return &SinkError{Op: "close", Err: err}
	}
	return nil
}
