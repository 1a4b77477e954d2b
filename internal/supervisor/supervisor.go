// internal/supervisor/supervisor.go
package supervisor

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/YaganovValera/trade-recorder/internal/metrics"
	"github.com/YaganovValera/trade-recorder/pkg/backoff"
	"github.com/YaganovValera/trade-recorder/pkg/logger"
)

// Runner — одна попытка стриминга. Реализуется session.Session.
type Runner interface {
	Run(ctx context.Context) error
}

// Factory выдаёт свежую сессию для каждой попытки. Сессии одноразовые,
// поэтому супервизор никогда не перезапускает уже сбойный экземпляр.
type Factory func() Runner

// Config — настройки цикла перезапуска.
type Config struct {
	// Backoff — стратегия задержек между перезапусками.
	Backoff backoff.Config `mapstructure:"backoff"`

	// StabilityThreshold: если сессия прожила дольше этого порога,
	// следующая задержка начинается снова с начального интервала.
	StabilityThreshold time.Duration `mapstructure:"stability_threshold"`
}

func (c *Config) applyDefaults() {
	if c.Backoff.InitialInterval <= 0 {
		c.Backoff.InitialInterval = time.Second
	}
	if c.Backoff.MaxInterval <= 0 {
		c.Backoff.MaxInterval = 60 * time.Second
	}
	if c.StabilityThreshold <= 0 {
		c.StabilityThreshold = 5 * time.Minute
	}
}

// Supervisor бесконечно держит ровно одну живую сессию: создаёт новую
// через фабрику, а при сбое ждёт экспоненциальную задержку и пробует снова.
type Supervisor struct {
	factory Factory
	cfg     Config
	log     *logger.Logger

	// точка подмены в тестах
	sleep func(ctx context.Context, d time.Duration) error
}

// New создаёт супервизор поверх фабрики сессий.
func New(factory Factory, cfg Config, log *logger.Logger) *Supervisor {
	cfg.applyDefaults()
	return &Supervisor{
		factory: factory,
		cfg:     cfg,
		log:     log.Named("supervisor"),
		sleep:   sleepCtx,
	}
}

// Run крутит цикл перезапуска до отмены контекста. Возвращает nil:
// сбои сессий не фатальны для процесса, фатальна только отмена.
func (s *Supervisor) Run(ctx context.Context) error {
	bo := backoff.New(s.cfg.Backoff)
	attempt := 0
	sessions := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		attempt++
		sessions++
		// метка сессии протаскивается в логи через logger.WithContext
		sessCtx := logger.ContextWithSessionID(ctx, "session-"+strconv.Itoa(sessions))
		started := time.Now()
		err := s.factory().Run(sessCtx)
		uptime := time.Since(started)

		if ctx.Err() != nil {
			// сессия уже довела себя до Disconnected; выходим молча
			return nil
		}
		if err == nil {
			// штатное завершение без отмены не ожидается, но и не фатально
			s.log.Warn("session exited cleanly, restarting")
		}

		// Долгоживущая сессия означает, что прошлый сбой был преходящим:
		// серия задержек начинается заново.
		if uptime >= s.cfg.StabilityThreshold {
			bo.Reset()
			attempt = 1
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			// исчерпание MaxElapsedTime не означает "сдаться":
			// цикл живёт вечно, серия задержек начинается заново
			bo.Reset()
			delay = bo.NextBackOff()
		}
		metrics.ReconnectsTotal.Inc()
		s.log.Warn("session faulted, will reconnect",
			zap.Int("attempt", attempt),
			zap.Duration("uptime", uptime),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if sleepErr := s.sleep(ctx, delay); sleepErr != nil {
			return nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
