// internal/app/recorder.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/YaganovValera/trade-recorder/internal/config"
	"github.com/YaganovValera/trade-recorder/internal/decoder"
	httpserver "github.com/YaganovValera/trade-recorder/internal/http"
	"github.com/YaganovValera/trade-recorder/internal/metrics"
	"github.com/YaganovValera/trade-recorder/internal/reporter"
	"github.com/YaganovValera/trade-recorder/internal/session"
	"github.com/YaganovValera/trade-recorder/internal/sink"
	"github.com/YaganovValera/trade-recorder/internal/supervisor"
	"github.com/YaganovValera/trade-recorder/pkg/coinbase"
	"github.com/YaganovValera/trade-recorder/pkg/kafka"
	"github.com/YaganovValera/trade-recorder/pkg/logger"
	"github.com/YaganovValera/trade-recorder/pkg/telemetry"
)

// Run собирает пайплайн записи сделок и блокирует до отмены ctx.
func Run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	metrics.Register(nil)

	// Трассировка опциональна: локальный запуск обходится без коллектора.
	if cfg.Telemetry.Enabled {
		tCfg := cfg.Telemetry.Tracer
		tCfg.ServiceName = cfg.ServiceName
		tCfg.ServiceVersion = cfg.ServiceVersion
		shutdownTracer, err := telemetry.InitTracer(ctx, tCfg, log)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer shutdownSafe(ctx, "telemetry", func() error { return shutdownTracer(ctx) }, log)
	}

	// 1) Sink: первичный CSV-журнал, опционально зеркало в Kafka.
	var snk sink.Sink = sink.NewCSV(cfg.Output.Path, log)
	if cfg.Kafka.Enabled {
		prod, err := kafka.NewProducer(ctx, cfg.Kafka.Producer, log)
		if err != nil {
			return fmt.Errorf("kafka producer init: %w", err)
		}
		defer shutdownSafe(ctx, "kafka-producer", prod.Close, log)
		snk = sink.NewTee(snk, sink.NewKafka(prod, cfg.Kafka.Topic, log), log)
	}

	// Файл и заголовок готовятся до первого соединения: ошибка здесь фатальна.
	if err := snk.Init(); err != nil {
		return fmt.Errorf("sink init: %w", err)
	}
	defer shutdownSafe(ctx, "sink", snk.Close, log)

	// 2) Транспорт, декодер, консольный вывод.
	dialer, err := coinbase.NewDialer(cfg.Coinbase, log)
	if err != nil {
		return fmt.Errorf("coinbase dialer init: %w", err)
	}
	dec := decoder.New(cfg.Coinbase.ProductIDs)
	rep := reporter.NewConsole(nil)

	dial := session.DialFunc(func(ctx context.Context) (session.Conn, error) {
		return dialer.Dial(ctx)
	})
	factory := func() supervisor.Runner {
		return session.New(dial, dec, snk, rep, log)
	}
	sup := supervisor.New(factory, cfg.Supervisor, log)

	// 3) Служебный HTTP: /metrics, /healthz, /readyz.
	var running atomic.Bool
	readiness := func() error {
		if !running.Load() {
			return errors.New("supervisor is not running")
		}
		return nil
	}
	httpSrv := httpserver.NewServer(httpserver.Config{
		Port:            cfg.HTTP.Port,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		MetricsPath:     cfg.HTTP.MetricsPath,
		HealthzPath:     cfg.HTTP.HealthzPath,
		ReadyzPath:      cfg.HTTP.ReadyzPath,
	}, readiness, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpSrv.Start(ctx) })
	g.Go(func() error {
		running.Store(true)
		defer running.Store(false)
		return sup.Run(ctx)
	})

	log.Info("recorder started",
		zap.Strings("product_ids", cfg.Coinbase.ProductIDs),
		zap.String("output", cfg.Output.Path),
		zap.Bool("kafka_mirror", cfg.Kafka.Enabled),
	)

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			log.WithContext(ctx).Info("recorder stopped by context")
			return nil
		}
		return err
	}
	return nil
}

// shutdownSafe оборачивает вызов Close()/Shutdown() с логированием.
func shutdownSafe(ctx context.Context, name string, fn func() error, log *logger.Logger) {
	log.WithContext(ctx).Info(fmt.Sprintf("%s: shutting down", name))
	if err := fn(); err != nil {
		log.WithContext(ctx).Error(fmt.Sprintf("%s shutdown error", name), zap.Error(err))
	} else {
		log.WithContext(ctx).Info(fmt.Sprintf("%s: shutdown complete", name))
	}
}
