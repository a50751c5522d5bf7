package settlement

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ksred/tradeshield-api/internal/market"
	"github.com/ksred/tradeshield-api/internal/types"
)

// RefundSet accumulates escrow refunds for a batch of canceled orders.
// Amounts are summed per (owner, denom) so that one aggregated transfer is
// emitted per owner; escrow for simultaneously canceled orders sits in one
// pooled balance, so per-order transfers would be wrong as well as wasteful.
type RefundSet struct {
	amounts map[string]map[string]decimal.Decimal
}

func NewRefundSet() *RefundSet {
	return &RefundSet{amounts: make(map[string]map[string]decimal.Decimal)}
}

// Add accumulates one order's escrow into the owner's refund
func (r *RefundSet) Add(owner string, coin types.Coin) {
	if coin.Denom == "" || !coin.Amount.IsPositive() {
		return
	}
	byDenom, ok := r.amounts[owner]
	if !ok {
		byDenom = make(map[string]decimal.Decimal)
		r.amounts[owner] = byDenom
	}
	byDenom[coin.Denom] = byDenom[coin.Denom].Add(coin.Amount)
}

// Empty reports whether there is anything to transfer
func (r *RefundSet) Empty() bool {
	return len(r.amounts) == 0
}

// Emit sends one aggregated transfer per owner, owners and denoms in
// sorted order for determinism
func (r *RefundSet) Emit(bank market.BankKeeper) error {
	owners := make([]string, 0, len(r.amounts))
	for owner := range r.amounts {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	for _, owner := range owners {
		byDenom := r.amounts[owner]
		denoms := make([]string, 0, len(byDenom))
		for denom := range byDenom {
			denoms = append(denoms, denom)
		}
		sort.Strings(denoms)

		coins := make([]types.Coin, 0, len(denoms))
		for _, denom := range denoms {
			coins = append(coins, types.NewCoin(denom, byDenom[denom]))
		}
		if err := bank.Send(owner, coins); err != nil {
			return err
		}
	}
	return nil
}
