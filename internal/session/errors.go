// internal/session/errors.go
package session

import "fmt"

// Классифицированные фатальные ошибки сессии. Каждая завершает только
// текущий экземпляр сессии; политика повторов принадлежит супервизору.

// ConnectError — не удалось открыть транспортное соединение.
type ConnectError struct{ Err error }

func (e *ConnectError) Error() string { return fmt.Sprintf("session: connect: %v", e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

// SubscribeError — отказ или сбой при оформлении подписки.
type SubscribeError struct{ Err error }

func (e *SubscribeError) Error() string { return fmt.Sprintf("session: subscribe: %v", e.Err) }
func (e *SubscribeError) Unwrap() error { return e.Err }

// TransportError — ошибка чтения на установившемся соединении.
type TransportError struct{ Err error }

func (e *TransportError) Error() string { return fmt.Sprintf("session: transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }
