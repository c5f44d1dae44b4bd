package model

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	StarterBalance = int64(1_000)
	DefaultLoanCap = int64(5_000)
	MaxSuspicion   = 100
)

func Notional(price, qty int64) (int64, error) {
	v := new(big.Int).Mul(big.NewInt(price), big.NewInt(qty))
	if !v.IsInt64() {
		return 0, fmt.Errorf("notional overflow")
	}
	return v.Int64(), nil
}

func ApplyRate(amount int64, rate decimal.Decimal) int64 {
	if amount <= 0 || !rate.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(rate).Floor().IntPart()
}

// ApplyRateCeil returns ceil(amount*rate); debt interest rounds against the
// borrower.
func ApplyRateCeil(amount int64, rate decimal.Decimal) int64 {
	if amount <= 0 || !rate.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(rate).Ceil().IntPart()
}

func ClampSuspicion(v int) int {
	return max(0, min(MaxSuspicion, v))
}

// MoneySupply is invariant under every action and tick: mints are
// subtracted, while everything removed into the treasury is added back.
func MoneySupply(s *GameState) int64 {
	var total int64
	for _, u := range s.Users {
		total += u.Balance + u.Deposit
	}
	t := s.Treasury
	return total + t.Taxes + t.Fees + t.Sales + t.Market + t.Burned - t.Minted
}
