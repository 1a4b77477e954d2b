// internal/session/session.go
package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/YaganovValera/trade-recorder/internal/decoder"
	"github.com/YaganovValera/trade-recorder/internal/metrics"
	"github.com/YaganovValera/trade-recorder/internal/reporter"
	"github.com/YaganovValera/trade-recorder/internal/sink"
	"github.com/YaganovValera/trade-recorder/pkg/logger"
)

var tracer = otel.Tracer("recorder/session")

// State — этап жизненного цикла сессии.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribing
	StateStreaming
	StateClosing
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Conn — контракт установленного соединения с фидом.
type Conn interface {
	Subscribe(ctx context.Context) error
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer открывает новое соединение. Каждый вызов — свежее соединение:
// сессия никогда не реанимирует сбойный транспорт.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialFunc адаптирует функцию под Dialer.
type DialFunc func(ctx context.Context) (Conn, error)

func (f DialFunc) Dial(ctx context.Context) (Conn, error) { return f(ctx) }

// Session владеет одним логическим соединением: connect, subscribe,
// receive-loop, диспетчеризация каждого сообщения в Decoder и Sink.
// Экземпляр одноразовый: после Faulted сессия выбрасывается.
type Session struct {
	dialer Dialer
	dec    *decoder.Decoder
	sink   sink.Sink
	rep    reporter.Reporter
	log    *logger.Logger

	state atomic.Int32
}

// New создаёт одноразовую сессию.
func New(dialer Dialer, dec *decoder.Decoder, snk sink.Sink, rep reporter.Reporter, log *logger.Logger) *Session {
	return &Session{
		dialer: dialer,
		dec:    dec,
		sink:   snk,
		rep:    rep,
		log:    log.Named("session"),
	}
}

// State возвращает текущее состояние сессии.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// Run ведёт сессию до фатальной ошибки или отмены контекста.
// При отмене возвращает nil после освобождения транспорта; при сбое —
// классифицированную ошибку (ConnectError / SubscribeError /
// TransportError / ошибку Sink).
func (s *Session) Run(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "session.Run")
	defer span.End()
	if sc := span.SpanContext(); sc.HasTraceID() {
		ctx = logger.ContextWithTraceID(ctx, sc.TraceID().String())
	}
	defer func() {
		outcome := classifyOutcome(err)
		metrics.SessionsTotal.WithLabelValues(outcome).Inc()
		span.SetAttributes(attribute.String("outcome", outcome))
		if err != nil {
			span.RecordError(err)
		}
	}()

	s.setState(StateConnecting)
	conn, dialErr := s.dialer.Dial(ctx)
	if dialErr != nil {
		if ctx.Err() != nil {
			s.setState(StateDisconnected)
			return nil
		}
		s.setState(StateFaulted)
		return &ConnectError{Err: dialErr}
	}

	// Отмена контекста принудительно закрывает соединение,
	// чтобы разблокировать чтение.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	// Освобождение транспорта выполняется всегда, из какого бы состояния
	// ни пришла отмена. Faulted терминален и состоянием Closing не затирается.
	defer func() {
		if s.State() == StateFaulted {
			_ = conn.Close()
			return
		}
		s.setState(StateClosing)
		_ = conn.Close()
		s.setState(StateDisconnected)
	}()

	s.setState(StateSubscribing)
	if subErr := conn.Subscribe(ctx); subErr != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.setState(StateFaulted)
		return &SubscribeError{Err: subErr}
	}

	s.setState(StateStreaming)
	s.log.WithContext(ctx).Info("session: streaming")

	for {
		// точка кооперативной отмены: начало каждой итерации
		if ctx.Err() != nil {
			return nil
		}

		data, readErr := conn.ReadMessage()
		if readErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.setState(StateFaulted)
			return &TransportError{Err: readErr}
		}

		if err := s.handleMessage(ctx, data); err != nil {
			// сбой персистентности: сессия не имеет права продолжать чтение
			s.setState(StateFaulted)
			return err
		}
	}
}

// handleMessage обрабатывает одно сообщение синхронно и до конца:
// начатый append никогда не прерывается отменой.
func (s *Session) handleMessage(ctx context.Context, data []byte) error {
	metrics.EventsTotal.Inc()
	start := time.Now()

	res := s.dec.Decode(data)
	switch res.Kind {
	case decoder.KindRecord:
		if err := s.sink.Append(ctx, res.Record); err != nil {
			return fmt.Errorf("session: append: %w", err)
		}
		metrics.RecordsAppended.Inc()
		metrics.AppendLatency.Observe(time.Since(start).Seconds())
		s.rep.Display(res.Record)

	case decoder.KindIgnored:
		metrics.IgnoredTotal.Inc()

	case decoder.KindMalformed, decoder.KindProtocolError:
		// плохое сообщение никогда не роняет сессию
		metrics.DecodeErrors.WithLabelValues(res.Kind.String()).Inc()
		s.log.WithContext(ctx).Warn("message discarded",
			zap.String("class", res.Kind.String()),
			zap.String("reason", res.Reason),
		)
	}
	return nil
}

func classifyOutcome(err error) string {
	switch err.(type) {
	case nil:
		return "closed"
	case *ConnectError:
		return "connect_error"
	case *SubscribeError:
		return "subscribe_error"
	case *TransportError:
		return "transport_error"
	default:
		return "sink_error"
	}
}
