// internal/decoder/decoder.go
package decoder

import (
	"encoding/json"
	"fmt"

	"github.com/YaganovValera/trade-recorder/internal/model"
)

// Kind классифицирует результат декодирования одного сообщения.
type Kind int

const (
	// KindRecord — релевантное торговое событие, готовое к записи.
	KindRecord Kind = iota
	// KindIgnored — структурно корректное сообщение нерелевантного типа
	// (подтверждение подписки, heartbeat и т.п.).
	KindIgnored
	// KindMalformed — сообщение не разобралось как JSON ожидаемой формы.
	KindMalformed
	// KindProtocolError — JSON разобрался, но обязательные поля
	// отсутствуют или не проходят валидацию.
	KindProtocolError
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindIgnored:
		return "ignored"
	case KindMalformed:
		return "malformed"
	case KindProtocolError:
		return "protocol_error"
	default:
		return "unknown"
	}
}

// Result — исход декодирования. Record заполнен только при KindRecord;
// Reason — только при KindMalformed/KindProtocolError.
type Result struct {
	Kind   Kind
	Record model.Record
	Reason string
}

// Decoder преобразует сырые сообщения канала matches в Record.
// Между вызовами состояния не хранит; множество подписанных символов
// фиксируется при создании.
type Decoder struct {
	subscribed map[string]struct{}
}

// New создаёт Decoder для заданного списка product id.
func New(productIDs []string) *Decoder {
	set := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		set[id] = struct{}{}
	}
	return &Decoder{subscribed: set}
}

// событие Coinbase Exchange; интересующие нас поля канала matches
type feedEvent struct {
	Type      string `json:"type"`
	Time      string `json:"time"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Message   string `json:"message"`
	Reason    string `json:"reason"`
}

// Decode разбирает одно сообщение. Никогда не паникует.
func (d *Decoder) Decode(data []byte) Result {
	var evt feedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return Result{Kind: KindMalformed, Reason: fmt.Sprintf("unmarshal: %v", err)}
	}

	switch evt.Type {
	case "match", "last_match":
		rec, err := model.NewRecord(evt.Time, evt.ProductID, evt.Price, evt.Size, d.isSubscribed)
		if err != nil {
			return Result{Kind: KindProtocolError, Reason: err.Error()}
		}
		return Result{Kind: KindRecord, Record: rec}
	case "error":
		return Result{Kind: KindProtocolError, Reason: fmt.Sprintf("remote error: %s (%s)", evt.Message, evt.Reason)}
	case "":
		return Result{Kind: KindProtocolError, Reason: "missing event type"}
	default:
		// subscriptions, heartbeat, status и прочие нерелевантные типы
		return Result{Kind: KindIgnored}
	}
}

func (d *Decoder) isSubscribed(symbol string) bool {
	_, ok := d.subscribed[symbol]
	return ok
}
