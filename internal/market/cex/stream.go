package cex

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// reconnectBase is the initial backoff after a dropped stream.
	reconnectBase = time.Second
	// reconnectMax caps the backoff.
	reconnectMax = 30 * time.Second
	// streamReadWait bounds how long a healthy stream may stay silent.
	streamReadWait = 60 * time.Second
)

// Stream keeps the ticker cache warm from the exchange's WebSocket feed.
// It reconnects with exponential backoff until ctx is cancelled.
func (s *Source) Stream(ctx context.Context, symbols []string) error {
	backoff := reconnectBase
	for {
		err := s.streamOnce(ctx, symbols)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("ticker stream dropped",
			slog.Any("error", err),
			slog.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

func (s *Source) streamOnce(ctx context.Context, symbols []string) error {
	wsURL := strings.Replace(s.cfg.BaseURL, "http", "ws", 1) + "/v1/stream"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := map[string]any{"action": "subscribe", "channel": "ticker", "symbols": symbols}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	s.logger.Info("ticker stream connected", slog.Int("symbols", len(symbols)))

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(streamReadWait)); err != nil {
			return err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var payload tickerPayload
		if err := json.Unmarshal(msg, &payload); err != nil || payload.Symbol == "" {
			continue
		}
		book, err := bookFromPayload(payload)
		if err != nil {
			continue
		}
		s.remember(payload.Symbol, *book)
	}
}
