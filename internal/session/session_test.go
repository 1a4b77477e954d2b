// internal/session/session_test.go
package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/YaganovValera/trade-recorder/internal/decoder"
	"github.com/YaganovValera/trade-recorder/internal/model"
	"github.com/YaganovValera/trade-recorder/internal/sink"
	"github.com/YaganovValera/trade-recorder/pkg/logger"
)

// ---------------------------------------------------------------------------
// фейки
// ---------------------------------------------------------------------------

type fakeConn struct {
	subErr  error
	msgs    [][]byte
	readErr error // возвращается после исчерпания msgs

	block  chan struct{} // если не nil, ReadMessage блокируется до Close
	closed chan struct{}
	i      int
}

func newFakeConn(msgs [][]byte, readErr error) *fakeConn {
	return &fakeConn{msgs: msgs, readErr: readErr, closed: make(chan struct{})}
}

func (c *fakeConn) Subscribe(ctx context.Context) error { return c.subErr }

func (c *fakeConn) ReadMessage() ([]byte, error) {
	if c.i < len(c.msgs) {
		m := c.msgs[c.i]
		c.i++
		return m, nil
	}
	if c.block != nil {
		select {
		case <-c.block:
		case <-c.closed:
		}
		return nil, errors.New("use of closed network connection")
	}
	return nil, c.readErr
}

func (c *fakeConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

type countingSink struct {
	records []model.Record
	err     error
}

func (s *countingSink) Init() error { return nil }
func (s *countingSink) Append(ctx context.Context, rec model.Record) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}
func (s *countingSink) Close() error { return nil }

type countingReporter struct{ displayed int }

func (r *countingReporter) Display(model.Record) { r.displayed++ }

func testSession(t *testing.T, conn *fakeConn, dialErr error, snk sink.Sink) (*Session, *countingReporter) {
	t.Helper()
	log, _ := logger.New(logger.Config{Level: "debug", DevMode: true})
	rep := &countingReporter{}
	dial := DialFunc(func(ctx context.Context) (Conn, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return conn, nil
	})
	return New(dial, decoder.New([]string{"BTC-USD"}), snk, rep, log), rep
}

const validMatch = `{"type":"match","time":"2024-01-01T00:00:00.123Z","product_id":"BTC-USD","price":"42000.50","size":"0.001"}`

// ---------------------------------------------------------------------------
// тесты
// ---------------------------------------------------------------------------

// Плохое сообщение пропускается, следующее валидное — сохраняется.
// Сессия не падает из-за одного мусорного сообщения.
func TestRun_SkipsBadMessage(t *testing.T) {
	conn := newFakeConn([][]byte{
		[]byte("this is not json"),
		[]byte(validMatch),
	}, errors.New("connection reset"))
	snk := &countingSink{}
	s, rep := testSession(t, conn, nil, snk)

	err := s.Run(context.Background())

	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransportError after stream end, got %v", err)
	}
	if len(snk.records) != 1 {
		t.Fatalf("appended = %d; want 1", len(snk.records))
	}
	rec := snk.records[0]
	if rec.Symbol != "BTC-USD" || rec.Price != 42000.50 || rec.Quantity != 0.001 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rep.displayed != 1 {
		t.Errorf("displayed = %d; want 1", rep.displayed)
	}
	if got := s.State(); got != StateFaulted {
		t.Errorf("State = %v; want faulted", got)
	}
}

// Подтверждённые, но нерелевантные сообщения не приводят ни к записи, ни к ошибке.
func TestRun_IgnoredMessages(t *testing.T) {
	conn := newFakeConn([][]byte{
		[]byte(`{"type":"heartbeat","product_id":"BTC-USD"}`),
		[]byte(`{"type":"subscriptions","channels":[]}`),
	}, errors.New("eof"))
	snk := &countingSink{}
	s, rep := testSession(t, conn, nil, snk)

	_ = s.Run(context.Background())
	if len(snk.records) != 0 || rep.displayed != 0 {
		t.Errorf("ignored messages must not be persisted or displayed")
	}
}

func TestRun_DialFailure(t *testing.T) {
	snk := &countingSink{}
	s, _ := testSession(t, nil, errors.New("refused"), snk)

	err := s.Run(context.Background())
	var cErr *ConnectError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConnectError, got %v", err)
	}
	if got := s.State(); got != StateFaulted {
		t.Errorf("State = %v; want faulted", got)
	}
}

func TestRun_SubscribeRejected(t *testing.T) {
	conn := newFakeConn(nil, nil)
	conn.subErr = errors.New("unknown channel")
	snk := &countingSink{}
	s, _ := testSession(t, conn, nil, snk)

	err := s.Run(context.Background())
	var sErr *SubscribeError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected SubscribeError, got %v", err)
	}
	select {
	case <-conn.closed:
	default:
		t.Error("connection must be released after subscribe failure")
	}
}

// Сбой персистентности фатален для сессии: читать дальше нельзя.
func TestRun_SinkFailureIsFatal(t *testing.T) {
	conn := newFakeConn([][]byte{[]byte(validMatch), []byte(validMatch)}, errors.New("eof"))
	snk := &countingSink{err: &sink.SinkError{Op: "append", Err: errors.New("disk full")}}
	s, rep := testSession(t, conn, nil, snk)

	err := s.Run(context.Background())
	var sinkErr *sink.SinkError
	if !errors.As(err, &sinkErr) {
		t.Fatalf("expected SinkError to propagate, got %v", err)
	}
	if conn.i != 1 {
		t.Errorf("read %d messages after sink failure; want 1", conn.i)
	}
	if rep.displayed != 0 {
		t.Errorf("record must not be displayed if append failed")
	}
}

// Отмена разблокирует чтение, освобождает транспорт и завершает Run без ошибки.
func TestRun_CancelReleasesTransport(t *testing.T) {
	conn := newFakeConn(nil, nil)
	conn.block = make(chan struct{})
	snk := &countingSink{}
	s, _ := testSession(t, conn, nil, snk)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// даём сессии дойти до чтения
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after cancel = %v; want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if got := s.State(); got != StateDisconnected {
		t.Errorf("State = %v; want disconnected", got)
	}
	select {
	case <-conn.closed:
	default:
		t.Error("connection must be closed on cancellation")
	}
}
