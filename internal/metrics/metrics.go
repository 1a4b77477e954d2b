package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// EventsTotal — общее число сообщений, принятых из WebSocket.
	EventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recorder",
		Subsystem: "ws",
		Name:      "events_total",
		Help:      "Total number of messages received from the feed",
	})

	// DecodeErrors — отброшенные сообщения по классу ошибки декодирования.
	DecodeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recorder",
		Subsystem: "decoder",
		Name:      "errors_total",
		Help:      "Messages discarded by the decoder, by classification",
	}, []string{"class"})

	// IgnoredTotal — структурно корректные, но нерелевантные сообщения.
	IgnoredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recorder",
		Subsystem: "decoder",
		Name:      "ignored_total",
		Help:      "Messages of non-trade types skipped without error",
	})

	// RecordsAppended — успешно сохранённые записи.
	RecordsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recorder",
		Subsystem: "sink",
		Name:      "records_appended_total",
		Help:      "Records durably appended to the sink",
	})

	// AppendLatency — гистограмма задержек от получения сообщения до fsync.
	AppendLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "recorder",
		Subsystem: "sink",
		Name:      "append_latency_seconds",
		Help:      "Latency from receiving a feed message to a durable append (seconds)",
		Buckets:   prometheus.DefBuckets,
	})

	// MirrorErrors — ошибки best-effort зеркала (Kafka).
	MirrorErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recorder",
		Subsystem: "sink",
		Name:      "mirror_errors_total",
		Help:      "Failed best-effort mirror publishes",
	})

	// SessionsTotal — созданные сессии, по исходу.
	SessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recorder",
		Subsystem: "session",
		Name:      "sessions_total",
		Help:      "Stream sessions created, by terminal outcome",
	}, []string{"outcome"})

	// ReconnectsTotal — попытки переподключения супервизора.
	ReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recorder",
		Subsystem: "supervisor",
		Name:      "reconnects_total",
		Help:      "Reconnect attempts scheduled by the supervisor",
	})
)

// Register регистрирует все метрики в заданном реестре.
// Можно вызвать без аргументов, чтобы зарегистрировать в DefaultRegisterer.
func Register(registerers ...prometheus.Registerer) {
	once.Do(func() {
		var reg prometheus.Registerer
		if len(registerers) > 0 && registerers[0] != nil {
			reg = registerers[0]
		} else {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			EventsTotal,
			DecodeErrors,
			IgnoredTotal,
			RecordsAppended,
			AppendLatency,
			MirrorErrors,
			SessionsTotal,
			ReconnectsTotal,
		)
	})
}
