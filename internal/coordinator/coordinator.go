// Package coordinator runs the decision loop: detect an opportunity, vet it
// against liquidity, sizing, and cost, and hand it to the executor. At most
// one evaluation and one execution are in flight at any time.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arguiot/arbitrage-bot-sub000/internal/betsize"
	"github.com/arguiot/arbitrage-bot-sub000/internal/detector"
	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
	"github.com/arguiot/arbitrage-bot-sub000/internal/executor"
	"github.com/arguiot/arbitrage-bot-sub000/internal/graph"
	"github.com/arguiot/arbitrage-bot-sub000/internal/market"
	"github.com/arguiot/arbitrage-bot-sub000/internal/optimizer"
)

// State is the coordinator's lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateEvaluating
	StateExecuting
)

func (s State) String() string {
	switch s {
	case StateEvaluating:
		return "evaluating"
	case StateExecuting:
		return "executing"
	default:
		return "idle"
	}
}

// ratioScale fixes the precision at which fractional config knobs (safety
// factor, cost margin) apply to integer amounts.
const ratioScale = 1_000_000

// executeLockKey is the distributed lock guarding execution across instances.
const executeLockKey = "arbbot:execute"

// Config tunes the decision loop.
type Config struct {
	// Strategy names the detection strategy; empty selects pairwise.
	Strategy string
	// MinBet is the smallest input size worth trading, in start-token
	// smallest units.
	MinBet *big.Int
	// TickInterval spaces the Run loop's evaluations.
	TickInterval time.Duration
	// SafetyFactor is the fraction of the computed bet that actually goes
	// out, leaving room for quote drift between sizing and settlement.
	SafetyFactor float64
	// CostMargin multiplies the estimated cost before the profit gate:
	// profit must exceed cost * CostMargin or the tick skips.
	CostMargin float64
	// DryRun reports profitable opportunities without trading them.
	DryRun bool
}

func Defaults() Config {
	return Config{
		Strategy:     detector.StrategyPairwise,
		MinBet:       big.NewInt(1_000_000),
		TickInterval: 2 * time.Second,
		SafetyFactor: 0.97,
		CostMargin:   1.0,
	}
}

// Deps wires the coordinator's collaborators. Bus, Locks, and Store may be
// nil; the corresponding side effects are skipped.
type Deps struct {
	Strategies *detector.Registry
	Markets    *market.Registry
	Optimizer  *optimizer.Optimizer
	Executor   *executor.Executor
	Quotes     domain.QuoteStore
	Graph      *graph.RateGraph
	Liquidity  domain.LiquidityCache
	BetSizes   domain.BetSizeCache
	Locks      domain.LockManager
	Bus        domain.SignalBus
	Store      domain.ExecutionStore
}

// Coordinator owns the evaluate-and-execute cycle.
type Coordinator struct {
	cfg  Config
	deps Deps

	// softLock makes evaluation single-flight; hardLock additionally
	// guards the execution section.
	softLock atomic.Bool
	hardLock atomic.Bool
	state    atomic.Int32

	logger *slog.Logger
}

func New(cfg Config, deps Deps, logger *slog.Logger) *Coordinator {
	if cfg.Strategy == "" {
		cfg.Strategy = Defaults().Strategy
	}
	if cfg.MinBet == nil {
		cfg.MinBet = Defaults().MinBet
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = Defaults().TickInterval
	}
	if cfg.SafetyFactor <= 0 || cfg.SafetyFactor > 1 {
		cfg.SafetyFactor = Defaults().SafetyFactor
	}
	if cfg.CostMargin <= 0 {
		cfg.CostMargin = Defaults().CostMargin
	}
	return &Coordinator{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(slog.String("component", "coordinator")),
	}
}

// State reports the current lifecycle position.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Run ticks until the context ends.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	c.logger.Info("coordinator started",
		slog.String("strategy", c.cfg.Strategy),
		slog.Duration("interval", c.cfg.TickInterval))
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopped")
			return ctx.Err()
		case <-ticker.C:
			event := c.Tick(ctx)
			c.publish(ctx, event)
		}
	}
}

// Tick runs one full decision pass and always returns a terminal event. A
// tick that finds the coordinator busy comes back immediately as a skip with
// ReasonLocked.
func (c *Coordinator) Tick(ctx context.Context) domain.DecisionEvent {
	if !c.softLock.CompareAndSwap(false, true) {
		return skip(domain.ReasonLocked, nil)
	}
	defer c.softLock.Store(false)

	c.state.Store(int32(StateEvaluating))
	defer c.state.Store(int32(StateIdle))

	event := c.evaluate(ctx)
	c.record(ctx, event)
	return event
}

func (c *Coordinator) evaluate(ctx context.Context) domain.DecisionEvent {
	opp, err := c.detect(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoOpportunity) {
			return skip(domain.ReasonNoOpportunity, nil)
		}
		return fail(err, nil)
	}

	// Liquidity first: a route we cannot fill is not worth sizing.
	depths, err := c.legDepths(ctx, opp)
	if err != nil {
		c.logger.Debug("liquidity check failed", slog.Any("error", err))
		return skip(domain.ReasonNoLiquidity, opp)
	}

	plan, err := c.size(ctx, opp, depths)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBidTooLow):
			return skip(domain.ReasonBidTooLow, opp)
		case errors.Is(err, domain.ErrNotProfitable), errors.Is(err, domain.ErrNoOpportunity):
			return skip(domain.ReasonNoOpportunity, opp)
		default:
			return fail(err, opp)
		}
	}
	opp.AmountIn = plan.AmountIn
	opp.Profit = plan.Profit

	cost, err := c.cost(ctx, opp, plan)
	if err != nil {
		return fail(err, opp)
	}
	if scaleByRatio(cost.Gas, c.cfg.CostMargin).Cmp(plan.Profit) >= 0 {
		return skipWithCost(domain.ReasonCostTooHigh, opp, cost)
	}
	if c.cfg.DryRun {
		return skipWithCost(domain.ReasonDryRun, opp, cost)
	}

	return c.execute(ctx, opp, plan, cost)
}

func (c *Coordinator) detect(ctx context.Context) (*domain.Opportunity, error) {
	strategy, err := c.deps.Strategies.Get(c.cfg.Strategy)
	if err != nil {
		return nil, err
	}
	snap := detector.Snapshot{
		Quotes: c.deps.Quotes.Snapshot(),
		Matrix: c.deps.Graph.Snapshot(),
	}
	return strategy.Detect(ctx, snap)
}

// legDepths resolves venue depth for every leg, serving from the TTL cache
// and refilling it on miss.
func (c *Coordinator) legDepths(ctx context.Context, opp *domain.Opportunity) ([]*big.Int, error) {
	depths := make([]*big.Int, len(opp.Route.Legs))
	for i, leg := range opp.Route.Legs {
		name := leg.Market.Name
		if depth, ok := c.deps.Liquidity.Get(name, leg.TokenOut); ok {
			depths[i] = depth
			continue
		}
		adapter, err := c.deps.Markets.Get(name)
		if err != nil {
			return nil, err
		}
		depth, err := adapter.LiquidityFor(ctx, leg.TokenOut)
		if err != nil {
			return nil, err
		}
		if depth == nil || depth.Sign() <= 0 {
			return nil, fmt.Errorf("coordinator: %s has no %s depth: %w", name, leg.TokenOut, domain.ErrInsufficientLiquidity)
		}
		c.deps.Liquidity.Set(name, leg.TokenOut, depth)
		depths[i] = depth
	}
	return depths, nil
}

// size computes the bet, caps it at the liquidity ceilings, and takes the
// safety haircut. Flat-venue pairs size in closed form; anything touching a
// pool climbs, seeded by the previous answer for the route or the
// constant-product closed form. The result is re-priced so the returned plan
// reflects what will actually trade.
func (c *Coordinator) size(ctx context.Context, opp *domain.Opportunity, depths []*big.Int) (*optimizer.Plan, error) {
	chain, err := c.chain(opp)
	if err != nil {
		return nil, err
	}

	var plan *optimizer.Plan
	if c.flatPairRoute(opp) {
		plan, err = c.sizeFlat(ctx, opp, chain)
	} else {
		// A previous size for this route seeds the climb close to the
		// answer; a cold route gets the closed-form pool optimum.
		start, ok := c.deps.BetSizes.Get(betKey(opp))
		if !ok || start == nil || start.Sign() <= 0 {
			start = c.analyticSeed(opp)
		}
		plan, err = c.deps.Optimizer.OptimalFrom(ctx, chain, start)
	}
	if err != nil {
		return nil, err
	}

	legAmounts := make([]*big.Int, len(plan.Legs))
	for i, leg := range plan.Legs {
		legAmounts[i] = leg.AmountOut
	}
	amount := betsize.ScaleToDepth(plan.AmountIn, legAmounts, depths)
	amount = scaleByRatio(amount, c.cfg.SafetyFactor)

	if amount.Cmp(c.cfg.MinBet) < 0 {
		return nil, fmt.Errorf("coordinator: size %s under minimum %s: %w", amount, c.cfg.MinBet, domain.ErrBidTooLow)
	}
	c.deps.BetSizes.Set(betKey(opp), amount)

	if amount.Cmp(plan.AmountIn) == 0 {
		return plan, nil
	}
	chain, err = c.chain(opp)
	if err != nil {
		return nil, err
	}
	out, legs, err := chain.Price(ctx, amount)
	if err != nil {
		return nil, err
	}
	profit := new(big.Int).Sub(out, amount)
	if profit.Sign() <= 0 {
		return nil, fmt.Errorf("coordinator: %w at scaled size %s", domain.ErrNotProfitable, amount)
	}
	return &optimizer.Plan{AmountIn: amount, AmountOut: out, Profit: profit, Legs: legs}, nil
}

// sizeFlat sizes a two-leg round trip between flat-priced venues in closed
// form: the balances bound the position, and a Kelly fraction of the
// bankroll rides on the edge surviving until both legs settle.
func (c *Coordinator) sizeFlat(ctx context.Context, opp *domain.Opportunity, chain *optimizer.Step) (*optimizer.Plan, error) {
	leg1, leg2 := opp.Route.Legs[0], opp.Route.Legs[1]
	q1, q2 := opp.Quotes[0], opp.Quotes[1]

	buy, err := c.deps.Markets.Get(leg1.Market.Name)
	if err != nil {
		return nil, err
	}
	sell, err := c.deps.Markets.Get(leg2.Market.Name)
	if err != nil {
		return nil, err
	}
	balanceStart, err := buy.BalanceFor(ctx, leg1.TokenIn)
	if err != nil {
		return nil, err
	}
	balanceCounter, err := sell.BalanceFor(ctx, leg2.TokenIn)
	if err != nil {
		return nil, err
	}

	// Fees come from the registered venues; detector routes carry names
	// only. The sell quote is aligned with the buy direction, so the
	// return leg prices off its inverted book.
	rate1, fee1 := q1.Book.Bid, buy.Market().Fee
	rate2, fee2 := q2.Book.Invert().Bid, sell.Market().Fee
	size, err := betsize.FlatPair(balanceStart, balanceCounter, rate1, rate2, fee1, fee2)
	if err != nil {
		return nil, err
	}

	// Stake the Kelly fraction of what the balances support: the edge is
	// the net round trip, the win probability its survival odds over the
	// combined settlement window.
	edge := rate1*(1-fee1)*rate2*(1-fee2) - 1
	ttf := (q1.TTF + q2.TTF).Seconds()
	fraction := betsize.Fraction(betsize.ProfitProbability(edge, ttf), edge)
	if fraction <= 0 {
		return nil, fmt.Errorf("coordinator: %w: zero stake at edge %v over %vs settlement", domain.ErrNotProfitable, edge, ttf)
	}
	size = scaleByRatio(size, fraction)
	if size.Sign() <= 0 {
		return nil, fmt.Errorf("coordinator: %w", domain.ErrBidTooLow)
	}

	out, legs, err := chain.Price(ctx, size)
	if err != nil {
		return nil, err
	}
	profit := new(big.Int).Sub(out, size)
	if profit.Sign() <= 0 {
		return nil, fmt.Errorf("coordinator: %w at flat size %s", domain.ErrNotProfitable, size)
	}
	return &optimizer.Plan{AmountIn: size, AmountOut: out, Profit: profit, Legs: legs}, nil
}

// flatPairRoute reports whether the opportunity is a two-leg round trip
// entirely on flat-priced venues with usable book quotes. Venue kinds are
// resolved through the registry; detector routes carry names only.
func (c *Coordinator) flatPairRoute(opp *domain.Opportunity) bool {
	if len(opp.Route.Legs) != 2 || len(opp.Quotes) < 2 {
		return false
	}
	for _, leg := range opp.Route.Legs {
		adapter, err := c.deps.Markets.Get(leg.Market.Name)
		if err != nil || adapter.Market().Kind != domain.MarketBook {
			return false
		}
	}
	return opp.Quotes[0] != nil && opp.Quotes[0].Book != nil &&
		opp.Quotes[1] != nil && opp.Quotes[1].Book != nil
}

// analyticSeed returns the closed-form profit-maximising input against the
// first leg's pool, priced at the counter leg's quoted rate. Nil when the
// route's quotes do not carry the reserves the formula needs.
func (c *Coordinator) analyticSeed(opp *domain.Opportunity) *big.Int {
	if len(opp.Route.Legs) != 2 || len(opp.Quotes) < 2 {
		return nil
	}
	q1, q2 := opp.Quotes[0], opp.Quotes[1]
	if q1 == nil || q2 == nil || q1.AMM == nil {
		return nil
	}
	if q1.AMM.ReserveIn == nil || q1.AMM.ReserveOut == nil {
		return nil
	}
	if q2.AmountIn == nil || q2.AmountOut == nil || q2.AmountIn.Sign() <= 0 || q2.AmountOut.Sign() <= 0 {
		return nil
	}
	adapter, err := c.deps.Markets.Get(opp.Route.Legs[0].Market.Name)
	if err != nil {
		return nil
	}
	fee := uint64(adapter.Market().Fee * 1000)
	seed := betsize.MaxProfitableInput(q1.AMM.ReserveIn, q1.AMM.ReserveOut, q2.AmountOut, q2.AmountIn, fee)
	if seed.Sign() <= 0 {
		return nil
	}
	return seed
}

// scaleByRatio multiplies an amount by a fractional ratio in fixed-point
// integer arithmetic.
func scaleByRatio(amount *big.Int, ratio float64) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(int64(ratio*ratioScale)))
	return out.Div(out, big.NewInt(ratioScale))
}

// chain rebuilds the optimizer step chain for the opportunity's route, with
// the detector's quotes attached as pricing hints.
func (c *Coordinator) chain(opp *domain.Opportunity) (*optimizer.Step, error) {
	var head, tail *optimizer.Step
	for i, leg := range opp.Route.Legs {
		adapter, err := c.deps.Markets.Get(leg.Market.Name)
		if err != nil {
			return nil, err
		}
		step := optimizer.NewStep(leg.TokenIn, leg.TokenOut, adapter)
		if i < len(opp.Quotes) && opp.Quotes[i] != nil {
			step.WithHint(leg.Market.Name, opp.Quotes[i])
		}
		if head == nil {
			head, tail = step, step
		} else {
			tail = tail.Then(step)
		}
	}
	if head == nil {
		return nil, fmt.Errorf("coordinator: %w: empty route", domain.ErrMalformedRoute)
	}
	return head, nil
}

// cost fans the per-leg fee and settlement-time estimates out across the
// route's venues and sums the answers.
func (c *Coordinator) cost(ctx context.Context, opp *domain.Opportunity, plan *optimizer.Plan) (*domain.Cost, error) {
	legGas := make([]*big.Int, len(opp.Route.Legs))
	legTime := make([]time.Duration, len(opp.Route.Legs))

	g, gctx := errgroup.WithContext(ctx)
	for i, leg := range opp.Route.Legs {
		g.Go(func() error {
			adapter, err := c.deps.Markets.Get(leg.Market.Name)
			if err != nil {
				return err
			}
			amountIn := plan.AmountIn
			if i < len(plan.Legs) {
				amountIn = plan.Legs[i].AmountIn
			}
			if legGas[i], err = adapter.EstimateTransactionCost(gctx, amountIn, leg.TokenIn, leg.TokenOut); err != nil {
				return err
			}
			legTime[i], err = adapter.EstimateTransactionTime(gctx, leg.TokenIn, leg.TokenOut)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	gas := new(big.Int)
	var ttf time.Duration
	for i := range opp.Route.Legs {
		gas.Add(gas, legGas[i])
		ttf += legTime[i]
	}
	return &domain.Cost{Gas: gas, Time: ttf}, nil
}

// execute takes the hard lock, runs the plan, and drops the liquidity cache
// entries the fills just consumed.
func (c *Coordinator) execute(ctx context.Context, opp *domain.Opportunity, plan *optimizer.Plan, cost *domain.Cost) domain.DecisionEvent {
	if !c.hardLock.CompareAndSwap(false, true) {
		return skipWithCost(domain.ReasonLocked, opp, cost)
	}
	defer c.hardLock.Store(false)

	if c.deps.Locks != nil {
		release, err := c.deps.Locks.Acquire(ctx, executeLockKey)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return skipWithCost(domain.ReasonLocked, opp, cost)
			}
			return fail(err, opp)
		}
		defer func() {
			if err := release(ctx); err != nil {
				c.logger.Warn("lock release failed", slog.Any("error", err))
			}
		}()
	}

	c.state.Store(int32(StateExecuting))
	defer c.state.Store(int32(StateEvaluating))

	// Both locks are held: tell observers dispatch is starting before any
	// order goes out.
	c.publish(ctx, domain.DecisionEvent{
		Status:      domain.DecisionExecuting,
		Opportunity: opp,
		Cost:        cost,
		At:          time.Now().UTC(),
	})

	expectedOuts := make([]*big.Int, len(plan.Legs))
	for i, leg := range plan.Legs {
		expectedOuts[i] = leg.AmountOut
	}
	receipts, err := c.deps.Executor.Execute(ctx, opp.Route, plan.AmountIn, expectedOuts)

	// Fills moved venue depth by an unknown amount either way.
	for _, rcpt := range receipts {
		c.deps.Liquidity.Invalidate(rcpt.MarketName, rcpt.TokenIn)
		c.deps.Liquidity.Invalidate(rcpt.MarketName, rcpt.TokenOut)
	}

	if err != nil {
		c.logger.Error("execution failed",
			slog.String("route", opp.Route.String()),
			slog.Int("filled_legs", len(receipts)),
			slog.Any("error", err))
		return domain.DecisionEvent{
			Status:      domain.DecisionFailed,
			Reason:      err.Error(),
			Opportunity: opp,
			Cost:        cost,
			Receipts:    receipts,
			At:          time.Now().UTC(),
		}
	}

	c.logger.Info("opportunity executed",
		slog.String("route", opp.Route.String()),
		slog.String("amount_in", plan.AmountIn.String()),
		slog.String("profit", plan.Profit.String()))
	return domain.DecisionEvent{
		Status:      domain.DecisionExecuted,
		Opportunity: opp,
		Cost:        cost,
		Receipts:    receipts,
		At:          time.Now().UTC(),
	}
}

func (c *Coordinator) record(ctx context.Context, event domain.DecisionEvent) {
	if c.deps.Store == nil || event.Opportunity == nil {
		return
	}
	if event.Status == domain.DecisionSkipped && event.Reason == domain.ReasonNoOpportunity {
		return
	}
	exec := executionRecord(event)
	if err := c.deps.Store.Insert(ctx, exec); err != nil {
		c.logger.Warn("execution record insert failed", slog.Any("error", err))
	}
}

func (c *Coordinator) publish(ctx context.Context, event domain.DecisionEvent) {
	if c.deps.Bus == nil {
		return
	}
	if err := c.deps.Bus.Publish(ctx, domain.EventDecision, event); err != nil {
		c.logger.Warn("decision publish failed", slog.Any("error", err))
	}
}

func executionRecord(event domain.DecisionEvent) *domain.Execution {
	opp := event.Opportunity
	exec := &domain.Execution{
		ID:            opp.ID,
		OpportunityID: opp.ID,
		Strategy:      opp.Strategy,
		Status:        event.Status,
		Reason:        event.Reason,
		StartToken:    opp.StartToken().String(),
		ProfitRatio:   opp.ProfitRatio,
		Receipts:      event.Receipts,
		CreatedAt:     event.At,
	}
	if opp.AmountIn != nil {
		exec.AmountIn = opp.AmountIn.String()
	}
	if opp.Profit != nil {
		exec.Profit = opp.Profit.String()
	}
	return exec
}

func betKey(opp *domain.Opportunity) string {
	key := opp.Strategy
	for _, leg := range opp.Route.Legs {
		key += "|" + leg.Market.Name + ":" + domain.PairKey(leg.TokenIn, leg.TokenOut)
	}
	return key
}

func skip(reason string, opp *domain.Opportunity) domain.DecisionEvent {
	return domain.DecisionEvent{
		Status:      domain.DecisionSkipped,
		Reason:      reason,
		Opportunity: opp,
		At:          time.Now().UTC(),
	}
}

func skipWithCost(reason string, opp *domain.Opportunity, cost *domain.Cost) domain.DecisionEvent {
	e := skip(reason, opp)
	e.Cost = cost
	return e
}

func fail(err error, opp *domain.Opportunity) domain.DecisionEvent {
	return domain.DecisionEvent{
		Status:      domain.DecisionFailed,
		Reason:      err.Error(),
		Opportunity: opp,
		At:          time.Now().UTC(),
	}
}
