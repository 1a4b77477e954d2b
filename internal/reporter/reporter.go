// internal/reporter/reporter.go
package reporter

import (
	"fmt"
	"io"
	"os"

	"github.com/YaganovValera/trade-recorder/internal/model"
)

// Reporter отображает записи для живого наблюдения.
type Reporter interface {
	Display(rec model.Record)
}

// Console печатает одну человекочитаемую строку на запись.
// Вывод best-effort: любая ошибка форматирования или записи гасится на
// границе и никогда не прерывает конвейер.
type Console struct {
	out io.Writer
}

// NewConsole создаёт Console-репортер. При w == nil пишет в stdout.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{out: w}
}

// Display печатает запись; не возвращает и не поднимает ошибок.
func (c *Console) Display(rec model.Record) {
	defer func() {
		_ = recover()
	}()
	fmt.Fprintf(c.out, "%s | %-10s | Price: %-15s | Quantity: %s\n",
		rec.TimestampString(), rec.Symbol, rec.PriceString(), rec.QuantityString())
}
