package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// Sub-store names, mirrored by the redis backend.
const (
	storeQuotes    = "quotes"
	storeLiquidity = "liquidity-cache"
	storeBetSizes  = "bet-sizes"
)

// Persister snapshots the hot caches into the persisted sub-stores so a
// restarted bot resumes with a warm view instead of an empty one.
type Persister struct {
	quotes    *QuoteStore
	liquidity *Liquidity
	betSizes  *BetSizes
	store     domain.SubStore
	interval  time.Duration
	logger    *slog.Logger
}

func NewPersister(quotes *QuoteStore, liquidity *Liquidity, betSizes *BetSizes, store domain.SubStore, interval time.Duration, logger *slog.Logger) *Persister {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Persister{
		quotes:    quotes,
		liquidity: liquidity,
		betSizes:  betSizes,
		store:     store,
		interval:  interval,
		logger:    logger.With(slog.String("component", "persister")),
	}
}

// Run saves on a fixed cadence and once more on shutdown.
func (p *Persister) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := p.Save(saveCtx); err != nil {
				p.logger.Warn("final save failed", slog.Any("error", err))
			}
			return ctx.Err()
		case <-ticker.C:
			if err := p.Save(ctx); err != nil {
				p.logger.Warn("periodic save failed", slog.Any("error", err))
			}
		}
	}
}

// Save writes all three sub-stores. Each store saves independently; the
// first failure is returned but does not stop the others.
func (p *Persister) Save(ctx context.Context) error {
	var firstErr error
	save := func(name string, payload any) {
		blob, err := json.Marshal(payload)
		if err != nil {
			err = fmt.Errorf("cache: marshal %s: %w", name, err)
		} else {
			err = p.store.Save(ctx, name, blob)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	save(storeQuotes, p.quotes.Snapshot())
	save(storeLiquidity, encodeAmounts(p.liquidity.entries()))
	save(storeBetSizes, encodeAmounts(p.betSizes.entries()))
	return firstErr
}

// Load restores whatever sub-stores exist; a missing store is a cold start,
// not an error.
func (p *Persister) Load(ctx context.Context) error {
	if blob, err := p.load(ctx, storeQuotes); err != nil {
		return err
	} else if blob != nil {
		var quotes []*domain.Quote
		if err := json.Unmarshal(blob, &quotes); err != nil {
			return fmt.Errorf("cache: decode %s: %w", storeQuotes, err)
		}
		for _, q := range quotes {
			p.quotes.Put(q)
		}
		p.logger.Info("quotes restored", slog.Int("count", len(quotes)))
	}

	if blob, err := p.load(ctx, storeLiquidity); err != nil {
		return err
	} else if blob != nil {
		entries, err := decodeAmounts(blob)
		if err != nil {
			return fmt.Errorf("cache: decode %s: %w", storeLiquidity, err)
		}
		p.liquidity.restore(entries)
	}

	if blob, err := p.load(ctx, storeBetSizes); err != nil {
		return err
	} else if blob != nil {
		entries, err := decodeAmounts(blob)
		if err != nil {
			return fmt.Errorf("cache: decode %s: %w", storeBetSizes, err)
		}
		p.betSizes.restore(entries)
	}
	return nil
}

func (p *Persister) load(ctx context.Context, name string) ([]byte, error) {
	blob, err := p.store.Load(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return blob, nil
}

func encodeAmounts(entries map[string]*big.Int) map[string]string {
	out := make(map[string]string, len(entries))
	for k, v := range entries {
		out[k] = v.String()
	}
	return out
}

func decodeAmounts(blob []byte) (map[string]*big.Int, error) {
	var raw map[string]string
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]*big.Int, len(raw))
	for k, s := range raw {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("cache: bad amount %q for %s", s, k)
		}
		out[k] = v
	}
	return out, nil
}
