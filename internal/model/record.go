// internal/model/record.go
package model

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// TimeLayout — формат отметки времени в выходном CSV: микросекунды и
// явное смещение зоны ("+00:00" для UTC).
const TimeLayout = "2006-01-02T15:04:05.000000-07:00"

// Record — одно нормализованное торговое событие, готовое к записи.
// Неизменяемо после создания; конструируется только через NewRecord.
type Record struct {
	Timestamp time.Time
	Symbol    string
	Price     float64
	Quantity  float64
}

// ValidationError описывает нарушение инвариантов Record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record: field %q: %s", e.Field, e.Reason)
}

// NewRecord валидирует сырые поля сообщения и собирает Record.
// subscribed защищает от утечки символов чужих подписок через общий транспорт.
// Побочных эффектов нет; любое нарушение — *ValidationError.
func NewRecord(timeStr, productID, price, size string, subscribed func(string) bool) (Record, error) {
	ts, err := time.Parse(time.RFC3339Nano, timeStr)
	if err != nil {
		return Record{}, &ValidationError{Field: "time", Reason: fmt.Sprintf("parse %q: %v", timeStr, err)}
	}

	if productID == "" {
		return Record{}, &ValidationError{Field: "product_id", Reason: "empty symbol"}
	}
	if subscribed != nil && !subscribed(productID) {
		return Record{}, &ValidationError{Field: "product_id", Reason: fmt.Sprintf("symbol %q is not subscribed", productID)}
	}

	p, err := parsePositive(price)
	if err != nil {
		return Record{}, &ValidationError{Field: "price", Reason: err.Error()}
	}
	q, err := parsePositive(size)
	if err != nil {
		return Record{}, &ValidationError{Field: "size", Reason: err.Error()}
	}

	return Record{
		Timestamp: ts.UTC(),
		Symbol:    productID,
		Price:     p,
		Quantity:  q,
	}, nil
}

func parsePositive(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %v", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %q is not finite", s)
	}
	if v <= 0 {
		return 0, fmt.Errorf("value %q must be positive", s)
	}
	return v, nil
}

// TimestampString форматирует отметку времени для CSV и консоли.
func (r Record) TimestampString() string {
	return r.Timestamp.UTC().Format(TimeLayout)
}

// PriceString — стабильная десятичная запись без экспоненты.
func (r Record) PriceString() string {
	return strconv.FormatFloat(r.Price, 'f', -1, 64)
}

// QuantityString — стабильная десятичная запись без экспоненты.
func (r Record) QuantityString() string {
	return strconv.FormatFloat(r.Quantity, 'f', -1, 64)
}
