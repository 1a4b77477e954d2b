// internal/sink/interface.go
package sink

import (
	"context"
	"fmt"

	"github.com/YaganovValera/trade-recorder/internal/model"
)

// Sink — эксклюзивный владелец выходного ресурса.
//
// Init идемпотентен: повторный вызов на уже существующем непустом ресурсе
// ничего не меняет. Append обязан быть долговечным: после успешного
// возврата запись переживает немедленное падение процесса. Sink никогда
// не ретраит сам — политика повторов принадлежит вызывающему.
type Sink interface {
	Init() error
	Append(ctx context.Context, rec model.Record) error
	Close() error
}

// SinkError — ошибка ввода-вывода выходного ресурса.
type SinkError struct {
	Op  string // "init" | "append" | "close"
	Err error
}

func (e *SinkError) Error() string { return fmt.Sprintf("sink: %s: %v", e.Op, e.Err) }
func (e *SinkError) Unwrap() error { return e.Err }
