// pkg/coinbase/ws.go
package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/YaganovValera/trade-recorder/pkg/logger"
)

// Dialer открывает одно WebSocket-соединение к Coinbase за вызов.
// Переподключениями Dialer не занимается: каждое Dial — новое соединение,
// политика ретраев принадлежит вызывающему.
type Dialer struct {
	cfg Config
	log *logger.Logger
}

// NewDialer создаёт Dialer.
// Логгер именуется как "coinbase-ws" для удобного фильтра в логах.
func NewDialer(cfg Config, log *logger.Logger) (*Dialer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Dialer{cfg: cfg, log: log.Named("coinbase-ws")}, nil
}

// Dial устанавливает соединение и настраивает read/ping-механизм.
func (d *Dialer) Dial(ctx context.Context) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, d.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("coinbase: dial %s: %w", d.cfg.URL, err)
	}
	d.log.Sugar().Infow("ws: connected", "url", d.cfg.URL)

	pingCtx, cancelPing := context.WithCancel(context.Background())
	c := &Conn{
		ws:         ws,
		cfg:        d.cfg,
		log:        d.log,
		cancelPing: cancelPing,
	}

	// Read deadline обновляется на каждом pong и на каждом входящем сообщении.
	_ = ws.SetReadDeadline(time.Now().Add(d.cfg.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(d.cfg.ReadTimeout))
	})

	go c.pingLoop(pingCtx)

	return c, nil
}

// Conn — одно живое соединение. Не потокобезопасно: читатель один.
type Conn struct {
	ws         *websocket.Conn
	cfg        Config
	log        *logger.Logger
	cancelPing context.CancelFunc

	// сообщения, пришедшие до подтверждения подписки
	pending [][]byte
}

func (c *Conn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.ReadTimeout / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				c.log.Sugar().Warnw("ws: ping failed", "err", err)
			}
		}
	}
}

// subscribeRequest — формат запроса подписки Coinbase Exchange.
type subscribeRequest struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

// Subscribe отправляет запрос подписки и ждёт подтверждения
// ("subscriptions") либо отказа ("error") от сервера. Сообщения данных,
// пришедшие до подтверждения, буферизуются и отдаются через ReadMessage.
func (c *Conn) Subscribe(ctx context.Context) error {
	req := subscribeRequest{
		Type:       "subscribe",
		ProductIDs: c.cfg.ProductIDs,
		Channels:   []string{c.cfg.Channel},
	}

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.SubscribeTimeout))
	if err := c.ws.WriteJSON(req); err != nil {
		return fmt.Errorf("coinbase: send subscribe: %w", err)
	}

	deadline := time.Now().Add(c.cfg.SubscribeTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = c.ws.SetReadDeadline(deadline)
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("coinbase: await subscribe ack: %w", err)
		}

		var meta struct {
			Type    string `json:"type"`
			Message string `json:"message"`
			Reason  string `json:"reason"`
		}
		if uErr := json.Unmarshal(data, &meta); uErr != nil {
			// не-JSON до подтверждения подписки — отдадим декодеру позже
			c.pending = append(c.pending, data)
			continue
		}
		switch meta.Type {
		case "subscriptions":
			_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
			c.log.Sugar().Infow("ws: subscribed",
				"channel", c.cfg.Channel,
				"product_ids", c.cfg.ProductIDs,
			)
			return nil
		case "error":
			return fmt.Errorf("coinbase: subscribe rejected: %s (%s)", meta.Message, meta.Reason)
		default:
			c.pending = append(c.pending, data)
		}
	}
}

// ReadMessage возвращает следующее входящее сообщение.
func (c *Conn) ReadMessage() ([]byte, error) {
	if len(c.pending) > 0 {
		data := c.pending[0]
		c.pending = c.pending[1:]
		return data, nil
	}
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	return data, nil
}

// Close останавливает ping-горутину и закрывает соединение.
func (c *Conn) Close() error {
	c.cancelPing()
	return c.ws.Close()
}
