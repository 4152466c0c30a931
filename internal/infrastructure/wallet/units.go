package wallet

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// BaseUnitExponent: 1 tNIGHT = 10^12 base units.
const BaseUnitExponent = 12

// TokensToBaseUnits converts a whole token amount into base units.
func TokensToBaseUnits(tokens int64) *big.Int {
	return decimal.NewFromInt(tokens).Shift(BaseUnitExponent).BigInt()
}

// BaseUnitsToTokens converts base units into tokens, keeping any fraction.
func BaseUnitsToTokens(baseUnits *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(baseUnits, -BaseUnitExponent)
}

// ParseBaseUnits parses a decimal base unit string as reported by the gateway.
func ParseBaseUnits(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid base unit amount %q", s)
	}
	return v, nil
}
