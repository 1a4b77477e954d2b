// internal/sink/tee.go
package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/YaganovValera/trade-recorder/internal/metrics"
	"github.com/YaganovValera/trade-recorder/internal/model"
	"github.com/YaganovValera/trade-recorder/pkg/logger"
)

// Tee пишет в основной Sink и best-effort зеркалирует в дополнительный.
// Гарантию долговечности даёт только основной: ошибка зеркала логируется
// и считается, но наверх не поднимается.
type Tee struct {
	primary Sink
	mirror  Sink
	log     *logger.Logger
}

// NewTee создаёт Tee.
func NewTee(primary, mirror Sink, log *logger.Logger) *Tee {
	return &Tee{primary: primary, mirror: mirror, log: log.Named("tee-sink")}
}

func (t *Tee) Init() error {
	if err := t.primary.Init(); err != nil {
		return err
	}
	if err := t.mirror.Init(); err != nil {
		t.log.Warn("mirror init failed, mirroring is best-effort", zap.Error(err))
	}
	return nil
}

func (t *Tee) Append(ctx context.Context, rec model.Record) error {
	if err := t.primary.Append(ctx, rec); err != nil {
		return err
	}
	if err := t.mirror.Append(ctx, rec); err != nil {
		metrics.MirrorErrors.Inc()
		t.log.Warn("mirror append failed", zap.String("symbol", rec.Symbol), zap.Error(err))
	}
	return nil
}

func (t *Tee) Close() error {
	mErr := t.mirror.Close()
	if err := t.primary.Close(); err != nil {
		return err
	}
	return mErr
}
