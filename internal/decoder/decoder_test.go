// internal/decoder/decoder_test.go
package decoder

import (
	"testing"
	"time"
)

func newTestDecoder() *Decoder {
	return New([]string{"BTC-USD", "ETH-USD"})
}

// Для всех корректных match-сообщений поля Record точно соответствуют источнику.
func TestDecode_MatchRoundTrip(t *testing.T) {
	d := newTestDecoder()
	raw := `{"type":"match","time":"2024-01-01T00:00:00.123Z","product_id":"BTC-USD","price":"42000.50","size":"0.001"}`

	res := d.Decode([]byte(raw))
	if res.Kind != KindRecord {
		t.Fatalf("Kind = %v (%s); want record", res.Kind, res.Reason)
	}
	rec := res.Record
	want := time.Date(2024, 1, 1, 0, 0, 0, 123000000, time.UTC)
	if !rec.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v; want %v", rec.Timestamp, want)
	}
	if rec.Symbol != "BTC-USD" {
		t.Errorf("Symbol = %q", rec.Symbol)
	}
	if rec.Price != 42000.50 {
		t.Errorf("Price = %v", rec.Price)
	}
	if rec.Quantity != 0.001 {
		t.Errorf("Quantity = %v", rec.Quantity)
	}
}

func TestDecode_LastMatchAlsoYieldsRecord(t *testing.T) {
	d := newTestDecoder()
	raw := `{"type":"last_match","time":"2024-01-01T00:00:00Z","product_id":"ETH-USD","price":"2500","size":"1.5"}`
	if res := d.Decode([]byte(raw)); res.Kind != KindRecord {
		t.Errorf("Kind = %v (%s); want record", res.Kind, res.Reason)
	}
}

// Классификация плохих входов; ни один из них не должен паниковать.
func TestDecode_Classification(t *testing.T) {
	d := newTestDecoder()
	cases := []struct {
		name string
		raw  string
		want Kind
	}{
		{"notJSON", "this is not json", KindMalformed},
		{"jsonArray", "[1,2,3]", KindMalformed},
		{"emptyObject", "{}", KindProtocolError},
		{"subscriptionsAck", `{"type":"subscriptions","channels":[]}`, KindIgnored},
		{"heartbeat", `{"type":"heartbeat","sequence":90,"product_id":"BTC-USD"}`, KindIgnored},
		{"status", `{"type":"status"}`, KindIgnored},
		{"unknownType", `{"type":"ticker","price":"1"}`, KindIgnored},
		{"remoteError", `{"type":"error","message":"oops","reason":"bad"}`, KindProtocolError},
		{"matchMissingTime", `{"type":"match","product_id":"BTC-USD","price":"1","size":"1"}`, KindProtocolError},
		{"matchMissingPrice", `{"type":"match","time":"2024-01-01T00:00:00Z","product_id":"BTC-USD","size":"1"}`, KindProtocolError},
		{"matchBadSize", `{"type":"match","time":"2024-01-01T00:00:00Z","product_id":"BTC-USD","price":"1","size":"x"}`, KindProtocolError},
		{"matchNonPositivePrice", `{"type":"match","time":"2024-01-01T00:00:00Z","product_id":"BTC-USD","price":"-1","size":"1"}`, KindProtocolError},
		{"matchForeignSymbol", `{"type":"match","time":"2024-01-01T00:00:00Z","product_id":"DOGE-USD","price":"1","size":"1"}`, KindProtocolError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := d.Decode([]byte(c.raw))
			if res.Kind != c.want {
				t.Errorf("Kind = %v; want %v (reason=%q)", res.Kind, c.want, res.Reason)
			}
			if (res.Kind == KindMalformed || res.Kind == KindProtocolError) && res.Reason == "" {
				t.Error("expected non-empty Reason")
			}
		})
	}
}
