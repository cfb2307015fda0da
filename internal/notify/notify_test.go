package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

type recordingSender struct {
	mu     sync.Mutex
	titles []string
	events []string
	fail   bool
}

func (r *recordingSender) Send(ctx context.Context, event, title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return assert.AnError
	}
	r.events = append(r.events, event)
	r.titles = append(r.titles, title)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func (r *recordingSender) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...)
}

func TestNotifierFiltersEvents(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier([]Sender{sender}, []string{"executed"}, slog.New(slog.DiscardHandler))

	require.NoError(t, n.Notify(context.Background(), "executed", "yes", ""))
	require.NoError(t, n.Notify(context.Background(), "skipped", "no", ""))

	assert.Equal(t, []string{"yes"}, sender.sent())
}

func TestNotifierEmptyFilterAllowsAll(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier([]Sender{sender}, nil, slog.New(slog.DiscardHandler))

	require.NoError(t, n.Notify(context.Background(), "anything", "t", ""))
	assert.Len(t, sender.sent(), 1)
}

func TestNotifierCollectsSenderFailures(t *testing.T) {
	ok, bad := &recordingSender{}, &recordingSender{fail: true}
	n := NewNotifier([]Sender{bad, ok}, nil, slog.New(slog.DiscardHandler))

	err := n.NotifyAll(context.Background(), "t", "m")
	require.Error(t, err)
	// The healthy sender still received the message.
	assert.Len(t, ok.sent(), 1)
}

// stubBus delivers pre-loaded decision payloads.
type stubBus struct {
	msgs chan []byte
}

func (b *stubBus) Publish(ctx context.Context, typ domain.EventType, payload any) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.msgs <- blob
	return nil
}

func (b *stubBus) Subscribe(ctx context.Context, typ domain.EventType) (<-chan []byte, func(), error) {
	return b.msgs, func() {}, nil
}

func TestWatcherNotifiesOnDecision(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier([]Sender{sender}, []string{"executed"}, slog.New(slog.DiscardHandler))
	bus := &stubBus{msgs: make(chan []byte, 1)}
	w := NewWatcher(n, bus, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, bus.Publish(ctx, domain.EventDecision, domain.DecisionEvent{
		Status: domain.DecisionExecuted,
		At:     time.Now(),
	}))

	require.Eventually(t, func() bool {
		return len(sender.sent()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "Trade executed", sender.sent()[0])

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, []string{string(domain.DecisionExecuted)}, sender.events,
		"the decision status travels to the sender")
}

func TestFormatDecisionIncludesReasonAndProfit(t *testing.T) {
	event := &domain.DecisionEvent{
		Status: domain.DecisionSkipped,
		Reason: domain.ReasonCostTooHigh,
	}
	title, message := formatDecision(event)
	assert.Equal(t, "Opportunity skipped", title)
	assert.Contains(t, message, domain.ReasonCostTooHigh)
}

func TestTelegramSenderPostsMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewTelegramSender("tok", "chat-1")
	sender.baseURL = srv.URL

	require.NoError(t, sender.Send(context.Background(), string(domain.DecisionExecuted), "Title", "Body"))
	assert.Equal(t, "chat-1", got["chat_id"])
	assert.Contains(t, got["text"], "Title")
	assert.Contains(t, got["text"], "✅")
}

func TestDiscordSenderPostsColoredEmbed(t *testing.T) {
	type embed struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Color       int    `json:"color"`
	}
	var got struct {
		Embeds []embed `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sender := NewDiscordSender(srv.URL)
	require.NoError(t, sender.Send(context.Background(), string(domain.DecisionFailed), "Title", "Body"))
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Title", got.Embeds[0].Title)
	assert.Equal(t, "Body", got.Embeds[0].Description)
	assert.Equal(t, colorFailed, got.Embeds[0].Color)
}

func TestEmbedColorPerStatus(t *testing.T) {
	assert.Equal(t, colorExecuted, embedColor(string(domain.DecisionExecuted)))
	assert.Equal(t, colorExecuting, embedColor(string(domain.DecisionExecuting)))
	assert.Equal(t, colorNeutral, embedColor(string(domain.DecisionSkipped)))
}
