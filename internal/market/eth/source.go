// Package eth implements the chain-facing pool source for constant-product
// venues over a JSON-RPC client.
package eth

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/arguiot/arbitrage-bot-sub000/internal/crypto"
	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
	"github.com/arguiot/arbitrage-bot-sub000/internal/market"
)

// Minimal ABI fragments for the V2 periphery. Only the methods the bot calls
// are declared.
const (
	factoryABIJSON = `[{"name":"getPair","type":"function","stateMutability":"view","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"outputs":[{"name":"pair","type":"address"}]}]`

	pairABIJSON = `[
		{"name":"getReserves","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}]},
		{"name":"token0","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
	]`

	erc20ABIJSON = `[{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`

	routerABIJSON = `[
		{"name":"getAmountsOut","type":"function","stateMutability":"view","inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
		{"name":"getAmountsIn","type":"function","stateMutability":"view","inputs":[{"name":"amountOut","type":"uint256"},{"name":"path","type":"address[]"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
		{"name":"swapExactTokensForTokens","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
		{"name":"swapTokensForExactTokens","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amountOut","type":"uint256"},{"name":"amountInMax","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}
	]`

	flashABIJSON = `[{"name":"executeRoute","type":"function","stateMutability":"nonpayable","inputs":[{"name":"routers","type":"address[]"},{"name":"path","type":"address[]"},{"name":"amountIn","type":"uint256"}],"outputs":[{"name":"amountOut","type":"uint256"}]}]`
)

// SourceConfig describes one chain endpoint.
type SourceConfig struct {
	RPCURL  string
	ChainID *big.Int
	Factory common.Address
	Router  common.Address
	// Flash is the flash-route contract; the zero address disables atomic
	// multi-venue routes on this chain.
	Flash common.Address
	// Base anchors depth reads: a token's tradable depth is its reserve in
	// the (token, base) pool.
	Base domain.Token
	// Owner is the address used for balance reads when no signing wallet is
	// configured (monitor deployments).
	Owner common.Address
	// BlockTimeHint is the chain's expected block interval.
	BlockTimeHint time.Duration
}

// Source implements market.PoolSource against a live JSON-RPC endpoint.
type Source struct {
	cfg    SourceConfig
	client *ethclient.Client
	wallet *crypto.Wallet
	logger *slog.Logger

	factoryABI abi.ABI
	pairABI    abi.ABI
	erc20ABI   abi.ABI
	routerABI  abi.ABI
	flashABI   abi.ABI
}

var (
	_ market.PoolSource  = (*Source)(nil)
	_ market.FlashSource = (*Source)(nil)
)

// NewSource dials the RPC endpoint and parses the contract ABIs.
func NewSource(ctx context.Context, cfg SourceConfig, wallet *crypto.Wallet, logger *slog.Logger) (*Source, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("eth: dial %s: %w", cfg.RPCURL, err)
	}

	s := &Source{
		cfg:    cfg,
		client: client,
		wallet: wallet,
		logger: logger.With(slog.String("component", "eth-source")),
	}
	for _, def := range []struct {
		dst  *abi.ABI
		json string
	}{
		{&s.factoryABI, factoryABIJSON},
		{&s.pairABI, pairABIJSON},
		{&s.erc20ABI, erc20ABIJSON},
		{&s.routerABI, routerABIJSON},
		{&s.flashABI, flashABIJSON},
	} {
		parsed, err := abi.JSON(strings.NewReader(def.json))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("eth: parse abi: %w", err)
		}
		*def.dst = parsed
	}
	return s, nil
}

// Close releases the RPC connection.
func (s *Source) Close() {
	s.client.Close()
}

func (s *Source) BlockTime() time.Duration {
	if s.cfg.BlockTimeHint > 0 {
		return s.cfg.BlockTimeHint
	}
	return 12 * time.Second
}

// PairInfo resolves the pool for (in, out) and orders its reserves in trade
// direction.
func (s *Source) PairInfo(ctx context.Context, tokenIn, tokenOut domain.Token) (*domain.AMMInfo, error) {
	pairAddr, err := s.getPair(ctx, tokenIn.Address, tokenOut.Address)
	if err != nil {
		return nil, err
	}

	pair := bind.NewBoundContract(pairAddr, s.pairABI, s.client, s.client, s.client)
	opts := &bind.CallOpts{Context: ctx}

	var reservesOut []any
	if err := pair.Call(opts, &reservesOut, "getReserves"); err != nil {
		return nil, fmt.Errorf("eth: getReserves %s: %w", pairAddr.Hex(), err)
	}
	reserve0, ok0 := reservesOut[0].(*big.Int)
	reserve1, ok1 := reservesOut[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, fmt.Errorf("eth: getReserves %s: unexpected return types", pairAddr.Hex())
	}

	var token0Out []any
	if err := pair.Call(opts, &token0Out, "token0"); err != nil {
		return nil, fmt.Errorf("eth: token0 %s: %w", pairAddr.Hex(), err)
	}
	token0, ok := token0Out[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("eth: token0 %s: unexpected return type", pairAddr.Hex())
	}

	reserveIn, reserveOut := reserve0, reserve1
	if token0 != tokenIn.Address {
		reserveIn, reserveOut = reserve1, reserve0
	}
	return &domain.AMMInfo{
		Router:     s.cfg.Router,
		Factory:    s.cfg.Factory,
		ReserveIn:  new(big.Int).Set(reserveIn),
		ReserveOut: new(big.Int).Set(reserveOut),
	}, nil
}

func (s *Source) getPair(ctx context.Context, a, b common.Address) (common.Address, error) {
	factory := bind.NewBoundContract(s.cfg.Factory, s.factoryABI, s.client, s.client, s.client)

	var out []any
	if err := factory.Call(&bind.CallOpts{Context: ctx}, &out, "getPair", a, b); err != nil {
		return common.Address{}, fmt.Errorf("eth: getPair: %w", err)
	}
	pair, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("eth: getPair: unexpected return type")
	}
	if pair == (common.Address{}) {
		return common.Address{}, fmt.Errorf("eth: no pool for %s/%s: %w", a.Hex(), b.Hex(), domain.ErrNotFound)
	}
	return pair, nil
}

// Depth reads the token's reserve in its pool against the base token.
func (s *Source) Depth(ctx context.Context, token domain.Token) (*big.Int, error) {
	if token.Equal(s.cfg.Base) {
		info, err := s.PairInfo(ctx, s.cfg.Base, token)
		if err != nil {
			return nil, err
		}
		return info.ReserveIn, nil
	}
	info, err := s.PairInfo(ctx, token, s.cfg.Base)
	if err != nil {
		return nil, err
	}
	return info.ReserveIn, nil
}

// owner is the address balances and swaps settle to.
func (s *Source) owner() common.Address {
	if s.wallet != nil {
		return s.wallet.Address()
	}
	return s.cfg.Owner
}

// Balance reads the bot wallet's ERC-20 balance of token.
func (s *Source) Balance(ctx context.Context, token domain.Token) (*big.Int, error) {
	erc20 := bind.NewBoundContract(token.Address, s.erc20ABI, s.client, s.client, s.client)

	var out []any
	if err := erc20.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", s.owner()); err != nil {
		return nil, fmt.Errorf("eth: balanceOf %s: %w", token.Name, err)
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("eth: balanceOf %s: unexpected return type", token.Name)
	}
	return bal, nil
}

func (s *Source) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth: suggest gas price: %w", err)
	}
	return price, nil
}

// SwapExactIn spends amountIn along path via the router, reverting on-chain
// when the output would fall under minOut.
func (s *Source) SwapExactIn(ctx context.Context, router common.Address, path []common.Address, amountIn, minOut *big.Int, deadline time.Time) (string, *big.Int, error) {
	expected, err := s.amountsCall(ctx, router, "getAmountsOut", amountIn, path)
	if err != nil {
		return "", nil, err
	}

	tx, err := s.transact(ctx, router, "swapExactTokensForTokens",
		amountIn, minOut, path, s.wallet.Address(), deadlineArg(deadline))
	if err != nil {
		return "", nil, fmt.Errorf("eth: swapExactTokensForTokens: %w", err)
	}
	if err := s.waitMined(ctx, tx); err != nil {
		return tx.Hash().Hex(), nil, err
	}
	return tx.Hash().Hex(), expected[len(expected)-1], nil
}

// SwapExactOut acquires amountOut along path, reverting on-chain when the
// input would exceed maxIn.
func (s *Source) SwapExactOut(ctx context.Context, router common.Address, path []common.Address, amountOut, maxIn *big.Int, deadline time.Time) (string, *big.Int, error) {
	expected, err := s.amountsCall(ctx, router, "getAmountsIn", amountOut, path)
	if err != nil {
		return "", nil, err
	}

	tx, err := s.transact(ctx, router, "swapTokensForExactTokens",
		amountOut, maxIn, path, s.wallet.Address(), deadlineArg(deadline))
	if err != nil {
		return "", nil, fmt.Errorf("eth: swapTokensForExactTokens: %w", err)
	}
	if err := s.waitMined(ctx, tx); err != nil {
		return tx.Hash().Hex(), nil, err
	}
	return tx.Hash().Hex(), expected[0], nil
}

// FlashRoute executes a cyclic multi-venue route atomically through the
// flash-route contract.
func (s *Source) FlashRoute(ctx context.Context, routers []common.Address, path []common.Address, amountIn *big.Int) (string, *big.Int, error) {
	if s.cfg.Flash == (common.Address{}) {
		return "", nil, fmt.Errorf("eth: no flash contract on this chain: %w", domain.ErrNotFound)
	}

	flash := bind.NewBoundContract(s.cfg.Flash, s.flashABI, s.client, s.client, s.client)
	opts, err := s.wallet.Transactor(s.cfg.ChainID)
	if err != nil {
		return "", nil, err
	}
	opts.Context = ctx

	tx, err := flash.Transact(opts, "executeRoute", routers, path, amountIn)
	if err != nil {
		return "", nil, fmt.Errorf("eth: executeRoute: %w", err)
	}
	if err := s.waitMined(ctx, tx); err != nil {
		return tx.Hash().Hex(), nil, err
	}

	// The route ends where it starts, so the realised output is the balance
	// change of the first token. Quote it off-chain instead of parsing logs.
	out, err := s.amountsCall(ctx, routers[0], "getAmountsOut", amountIn, path)
	if err != nil {
		return tx.Hash().Hex(), new(big.Int).Set(amountIn), nil
	}
	return tx.Hash().Hex(), out[len(out)-1], nil
}

func (s *Source) amountsCall(ctx context.Context, router common.Address, method string, amount *big.Int, path []common.Address) ([]*big.Int, error) {
	bound := bind.NewBoundContract(router, s.routerABI, s.client, s.client, s.client)

	var out []any
	if err := bound.Call(&bind.CallOpts{Context: ctx}, &out, method, amount, path); err != nil {
		return nil, fmt.Errorf("eth: %s: %w", method, err)
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) == 0 {
		return nil, fmt.Errorf("eth: %s: unexpected return type", method)
	}
	return amounts, nil
}

func (s *Source) transact(ctx context.Context, router common.Address, method string, args ...any) (*types.Transaction, error) {
	bound := bind.NewBoundContract(router, s.routerABI, s.client, s.client, s.client)
	opts, err := s.wallet.Transactor(s.cfg.ChainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return bound.Transact(opts, method, args...)
}

func (s *Source) waitMined(ctx context.Context, tx *types.Transaction) error {
	receipt, err := bind.WaitMined(ctx, s.client, tx)
	if err != nil {
		return fmt.Errorf("eth: wait mined %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("eth: tx %s reverted", tx.Hash().Hex())
	}
	return nil
}

func deadlineArg(deadline time.Time) *big.Int {
	return big.NewInt(deadline.UTC().Unix())
}
