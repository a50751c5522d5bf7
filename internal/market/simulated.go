package market

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ksred/tradeshield-api/internal/types"
)

// SimulatedOracle quotes a fixed set of pairs with a small random walk
// applied on every query. Pairs are seeded in one direction; the reverse
// direction is answered with the reciprocal.
type SimulatedOracle struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func pairKey(base, quote string) string {
	return base + "/" + quote
}

// NewSimulatedOracle seeds the oracle with quote-per-base rates
func NewSimulatedOracle(seed map[string]decimal.Decimal) *SimulatedOracle {
	prices := make(map[string]decimal.Decimal, len(seed))
	for pair, rate := range seed {
		prices[pair] = rate
	}
	return &SimulatedOracle{prices: prices}
}

// GetPrice returns the current simulated rate for the pair, drifting it by
// up to ±0.5% per call
func (o *SimulatedOracle) GetPrice(baseDenom, quoteDenom string) (decimal.Decimal, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if rate, ok := o.prices[pairKey(baseDenom, quoteDenom)]; ok {
		drifted := o.drift(pairKey(baseDenom, quoteDenom), rate)
		return drifted, nil
	}
	if rate, ok := o.prices[pairKey(quoteDenom, baseDenom)]; ok {
		drifted := o.drift(pairKey(quoteDenom, baseDenom), rate)
		return decimal.NewFromInt(1).Div(drifted), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s/%s", types.ErrPriceUnavailable, baseDenom, quoteDenom)
}

func (o *SimulatedOracle) drift(key string, rate decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromFloat(1 + (rand.Float64()*0.01 - 0.005))
	next := rate.Mul(factor)
	o.prices[key] = next
	return next
}

// SetPrice pins a pair to an exact rate; the simulation driver uses this
// to move markets deliberately
func (o *SimulatedOracle) SetPrice(baseDenom, quoteDenom string, rate decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[pairKey(baseDenom, quoteDenom)] = rate
}

// SimulatedAMM executes swaps against the oracle price with a flat fee and
// a configurable failure rate
type SimulatedAMM struct {
	oracle      *SimulatedOracle
	feeRate     decimal.Decimal
	successRate float64
}

func NewSimulatedAMM(oracle *SimulatedOracle) *SimulatedAMM {
	return &SimulatedAMM{
		oracle:      oracle,
		feeRate:     decimal.NewFromFloat(0.0025), // 0.25%
		successRate: 0.97,
	}
}

// SwapExactIn swaps the full input into the target denom at the oracle
// rate minus fees, failing when the result lands under minOut
func (a *SimulatedAMM) SwapExactIn(owner string, in types.Coin, targetDenom string, minOut decimal.Decimal) (types.Coin, error) {
	logger := log.With().
		Str("component", "simulated_amm").
		Str("owner", owner).
		Str("in_denom", in.Denom).
		Str("target_denom", targetDenom).
		Logger()

	if rand.Float64() > a.successRate {
		logger.Warn().Msg("swap failed on simulated liquidity")
		return types.Coin{}, fmt.Errorf("swap %s to %s failed: insufficient liquidity", in.Denom, targetDenom)
	}

	rate, err := a.oracle.GetPrice(in.Denom, targetDenom)
	if err != nil {
		return types.Coin{}, err
	}

	gross := in.Amount.Mul(rate)
	out := gross.Mul(decimal.NewFromInt(1).Sub(a.feeRate))
	if out.LessThan(minOut) {
		logger.Warn().
			Str("amount_out", out.String()).
			Str("min_out", minOut.String()).
			Msg("swap rejected below minimum out")
		return types.Coin{}, fmt.Errorf("swap output %s below minimum %s", out, minOut)
	}

	logger.Info().
		Str("fill_id", "FILL-"+uuid.New().String()).
		Str("amount_in", in.Amount.String()).
		Str("amount_out", out.String()).
		Msg("swap executed")

	return types.NewCoin(targetDenom, out), nil
}

// SimulatedPerpetualEngine tracks open positions in memory
type SimulatedPerpetualEngine struct {
	mu        sync.Mutex
	positions map[uint64]*Position
	nextID    uint64
}

func NewSimulatedPerpetualEngine() *SimulatedPerpetualEngine {
	return &SimulatedPerpetualEngine{positions: make(map[uint64]*Position), nextID: 1}
}

func (e *SimulatedPerpetualEngine) OpenPosition(owner string, collateral types.Coin, tradingAsset string, direction types.Position, leverage decimal.Decimal, takeProfit decimal.NullDecimal) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.positions[id] = &Position{
		PositionID:   id,
		OwnerAddress: owner,
		TradingAsset: tradingAsset,
		Collateral:   collateral,
		Direction:    direction,
		Leverage:     leverage,
		Custody:      collateral.Amount.Mul(leverage),
	}

	log.Info().
		Str("component", "simulated_perpetual").
		Uint64("position_id", id).
		Str("owner", owner).
		Str("direction", string(direction)).
		Str("leverage", leverage.String()).
		Msg("position opened")

	return id, nil
}

func (e *SimulatedPerpetualEngine) ClosePosition(owner string, positionID uint64, custody decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.positions[positionID]
	if !ok || pos.OwnerAddress != owner {
		return fmt.Errorf("%w: %d", types.ErrPositionNotFound, positionID)
	}
	delete(e.positions, positionID)

	log.Info().
		Str("component", "simulated_perpetual").
		Uint64("position_id", positionID).
		Str("custody", custody.String()).
		Msg("position closed")

	return nil
}

func (e *SimulatedPerpetualEngine) GetPosition(owner string, positionID uint64) (*Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.positions[positionID]
	if !ok || pos.OwnerAddress != owner {
		return nil, fmt.Errorf("%w: %d", types.ErrPositionNotFound, positionID)
	}
	copied := *pos
	return &copied, nil
}

// SimulatedBank records outbound transfers; the escrow pool is implicit
type SimulatedBank struct {
	mu        sync.Mutex
	transfers map[string][]types.Coin
}

func NewSimulatedBank() *SimulatedBank {
	return &SimulatedBank{transfers: make(map[string][]types.Coin)}
}

func (b *SimulatedBank) Send(owner string, coins []types.Coin) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transfers[owner] = append(b.transfers[owner], coins...)
	for _, c := range coins {
		log.Info().
			Str("component", "simulated_bank").
			Str("owner", owner).
			Str("denom", c.Denom).
			Str("amount", c.Amount.String()).
			Msg("refund transferred")
	}
	return nil
}

// Transfers returns everything sent to the owner so far
func (b *SimulatedBank) Transfers(owner string) []types.Coin {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Coin, len(b.transfers[owner]))
	copy(out, b.transfers[owner])
	return out
}

// StaticTierService returns a fixed discount per owner, zero by default
type StaticTierService struct {
	discounts map[string]decimal.Decimal
}

func NewStaticTierService(discounts map[string]decimal.Decimal) *StaticTierService {
	if discounts == nil {
		discounts = make(map[string]decimal.Decimal)
	}
	return &StaticTierService{discounts: discounts}
}

func (t *StaticTierService) Discount(owner string) decimal.Decimal {
	if d, ok := t.discounts[owner]; ok {
		return d
	}
	return decimal.Zero
}
