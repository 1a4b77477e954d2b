// internal/sink/kafka.go
package sink

import (
	"context"
	"encoding/json"

	"github.com/YaganovValera/trade-recorder/internal/model"
	"github.com/YaganovValera/trade-recorder/pkg/kafka"
	"github.com/YaganovValera/trade-recorder/pkg/logger"
)

// KafkaSink публикует записи в Kafka-топик. Ключ — символ, чтобы события
// одного инструмента попадали в один раздел и сохраняли порядок.
type KafkaSink struct {
	producer kafka.Producer
	topic    string
	log      *logger.Logger
}

// NewKafka создаёт KafkaSink поверх готового продьюсера.
func NewKafka(producer kafka.Producer, topic string, log *logger.Logger) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic, log: log.Named("kafka-sink")}
}

// Init проверяет доступность кластера.
func (s *KafkaSink) Init() error {
	if err := s.producer.Ping(); err != nil {
		return &SinkError{Op: "init", Err: err}
	}
	return nil
}

// tradePayload — JSON-представление записи в топике.
type tradePayload struct {
	Timestamp string `json:"timestamp"`
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Quantity  string `json:"quantity"`
}

// Append публикует запись; долговечность делегирована политике acks продьюсера.
func (s *KafkaSink) Append(ctx context.Context, rec model.Record) error {
	payload, err := json.Marshal(tradePayload{
		Timestamp: rec.TimestampString(),
		Symbol:    rec.Symbol,
		Price:     rec.PriceString(),
		Quantity:  rec.QuantityString(),
	})
	if err != nil {
		return &SinkError{Op: "append", Err: err}
	}
	if err := s.producer.Publish(ctx, s.topic, []byte(rec.Symbol), payload); err != nil {
		return &SinkError{Op: "append", Err: err}
	}
	return nil
}

// Close ничего не закрывает: жизненным циклом продьюсера владеет приложение.
func (s *KafkaSink) Close() error { return nil }
