package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// fanBus is an in-memory signal bus with one channel per event type.
type fanBus struct {
	chans map[domain.EventType]chan []byte
}

func newFanBus() *fanBus {
	chans := make(map[domain.EventType]chan []byte)
	for _, e := range busEvents {
		chans[e] = make(chan []byte, 8)
	}
	return &fanBus{chans: chans}
}

func (b *fanBus) Publish(ctx context.Context, typ domain.EventType, payload any) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.chans[typ] <- blob
	return nil
}

func (b *fanBus) Subscribe(ctx context.Context, typ domain.EventType) (<-chan []byte, func(), error) {
	return b.chans[typ], func() {}, nil
}

func dialTestHub(t *testing.T, bus domain.SignalBus) (*websocket.Conn, context.CancelFunc) {
	t.Helper()

	hub := NewHub(bus, slog.New(slog.DiscardHandler), Config{Mode: "full", StrategyName: "pairwise"})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	wsSrv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(wsSrv.Close)

	url := "ws" + strings.TrimPrefix(wsSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, cancel
}

// readFrame reads one binary frame and decodes its protobuf Struct payload.
func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, kind, "data frames travel as protobuf binary")

	var val structpb.Value
	require.NoError(t, proto.Unmarshal(data, &val))
	frame, ok := val.AsInterface().(map[string]any)
	require.True(t, ok, "frame decodes to a struct")
	return frame
}

func TestHubSendsStatusThenBroadcasts(t *testing.T) {
	bus := newFanBus()
	conn, cancel := dialTestHub(t, bus)
	defer cancel()

	// First frame is the connection status.
	status := readFrame(t, conn)
	assert.Equal(t, "bot_status", status["type"])

	// A published decision reaches the client as a typed frame.
	require.NoError(t, bus.Publish(context.Background(), domain.EventDecision, domain.DecisionEvent{
		Status: domain.DecisionExecuted,
		At:     time.Now(),
	}))

	frame := readFrame(t, conn)
	assert.Equal(t, string(domain.EventDecision), frame["type"])

	payload, ok := frame["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(domain.DecisionExecuted), payload["status"])
}

func TestHubHonoursUnsubscribe(t *testing.T) {
	bus := newFanBus()
	conn, cancel := dialTestHub(t, bus)
	defer cancel()

	status := readFrame(t, conn)
	assert.Equal(t, "bot_status", status["type"])

	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "unsubscribe", Events: []string{"quote"}}))
	// Give the read pump a moment to apply the change.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), domain.EventQuote, map[string]string{"pair": "a-b"}))
	require.NoError(t, bus.Publish(context.Background(), domain.EventDecision, domain.DecisionEvent{
		Status: domain.DecisionSkipped,
		At:     time.Now(),
	}))

	// Only the decision arrives; the quote was filtered.
	frame := readFrame(t, conn)
	assert.Equal(t, string(domain.EventDecision), frame["type"])
}
