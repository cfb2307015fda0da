package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// Config tunes the hill climb.
type Config struct {
	// Start is the first input size probed.
	Start *big.Int
	// InitialStep is the first probe offset; it halves every time the
	// center probe wins, down to one unit.
	InitialStep *big.Int
	// Timeout bounds the whole search. On expiry every partial result is
	// discarded.
	Timeout time.Duration
}

// Defaults mirrors a conservative climb from a mid-size position.
func Defaults() Config {
	return Config{
		Start:       big.NewInt(100_000_000),
		InitialStep: big.NewInt(25_000_000),
		Timeout:     5 * time.Second,
	}
}

// Plan is the optimizer's answer: the input to trade, the per-hop venue
// decisions, and the profit at that size.
type Plan struct {
	AmountIn  *big.Int
	AmountOut *big.Int
	// Profit is AmountOut - AmountIn, meaningful for cyclic routes.
	Profit *big.Int
	Legs   []PlanLeg
}

// Optimizer hill-climbs the input size of a step chain.
type Optimizer struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Optimizer {
	if cfg.Start == nil || cfg.Start.Sign() <= 0 {
		cfg.Start = Defaults().Start
	}
	if cfg.InitialStep == nil || cfg.InitialStep.Sign() <= 0 {
		cfg.InitialStep = Defaults().InitialStep
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = Defaults().Timeout
	}
	return &Optimizer{cfg: cfg, logger: logger.With(slog.String("component", "optimizer"))}
}

type probe struct {
	amount *big.Int
	profit *big.Int
	legs   []PlanLeg
	out    *big.Int
	ok     bool
}

// Optimal climbs the profit curve of the chain. Each iteration prices
// {center-step, center, center+step} concurrently; when the center wins, the
// step halves until it reaches one unit. Hitting the deadline abandons the
// search entirely, partial progress included.
func (o *Optimizer) Optimal(ctx context.Context, chain *Step) (*Plan, error) {
	return o.OptimalFrom(ctx, chain, o.cfg.Start)
}

// OptimalFrom climbs from an explicit starting size, e.g. a cached previous
// answer for the same route.
func (o *Optimizer) OptimalFrom(ctx context.Context, chain *Step, start *big.Int) (*Plan, error) {
	if start == nil || start.Sign() <= 0 {
		start = o.cfg.Start
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	center := new(big.Int).Set(start)
	step := new(big.Int).Set(o.cfg.InitialStep)
	one := big.NewInt(1)

	var best *probe
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("optimizer: %w: deadline hit, discarding probes", err)
		}

		probes := []*probe{
			{amount: new(big.Int).Sub(center, step)},
			{amount: new(big.Int).Set(center)},
			{amount: new(big.Int).Add(center, step)},
		}
		g, gctx := errgroup.WithContext(ctx)
		for _, p := range probes {
			g.Go(func() error {
				if p.amount.Sign() <= 0 {
					return nil
				}
				out, legs, err := chain.Price(gctx, p.amount)
				if err != nil {
					// An unpriceable size is just outside the
					// feasible region.
					return nil
				}
				p.out = out
				p.legs = legs
				p.profit = new(big.Int).Sub(out, p.amount)
				p.ok = true
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("optimizer: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("optimizer: %w: deadline hit, discarding probes", err)
		}

		// Ties go to the center so plateaus refine instead of walking.
		winner := bestProbe([]*probe{probes[1], probes[0], probes[2]})
		if winner == nil {
			return nil, fmt.Errorf("optimizer: %w", domain.ErrNoOpportunity)
		}
		if best == nil || winner.profit.Cmp(best.profit) > 0 {
			best = winner
		}

		// The walk keeps the step constant while moving and halves it only
		// when the center wins, so it terminates at a size whose one-unit
		// neighbours are no better, a strictly tighter stop than quitting
		// on the first center win at full step.
		if winner == probes[1] {
			// Center is the local peak at this resolution; refine.
			if step.Cmp(one) <= 0 {
				break
			}
			step.Rsh(step, 1)
			if step.Cmp(one) < 0 {
				step.Set(one)
			}
			continue
		}
		center.Set(winner.amount)
	}

	if best == nil || best.profit.Sign() <= 0 {
		return nil, fmt.Errorf("optimizer: %w", domain.ErrNotProfitable)
	}
	o.logger.Debug("optimal size found",
		slog.String("amount_in", best.amount.String()),
		slog.String("profit", best.profit.String()))
	return &Plan{
		AmountIn:  best.amount,
		AmountOut: best.out,
		Profit:    best.profit,
		Legs:      best.legs,
	}, nil
}

func bestProbe(probes []*probe) *probe {
	var best *probe
	for _, p := range probes {
		if !p.ok {
			continue
		}
		if best == nil || p.profit.Cmp(best.profit) > 0 {
			best = p
		}
	}
	return best
}

// Intermediaries lists the pool-hop helper addresses the execution plan
// touches, in route order.
func (p *Plan) Intermediaries() []string {
	var out []string
	for _, leg := range p.Legs {
		if leg.Quote != nil && leg.Quote.AMM != nil {
			var zero [20]byte
			if leg.Quote.AMM.Intermediary != zero {
				out = append(out, leg.Quote.AMM.Intermediary.Hex())
			}
		}
	}
	return out
}
