// Package price implements the payment authorization decision: a transfer
// is allowed when its amount lies within a basis-point band around the
// amount implied by the oracle prices. It never mutates state.
package price

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/oracle"
)

const (
	// TokenScale is the number of base units per whole token.
	TokenScale uint64 = 1_000_000_000
	// BasisPoints is the tolerance denominator.
	BasisPoints uint64 = 10_000
)

// Input holds the resolved records for one payment decision.
type Input struct {
	State        layout.PriceState
	ProductFeed  model.Account
	TokenUSDFeed model.Account
	Amount       uint64
	Now          int64
}

// Band is the inclusive range of acceptable amounts.
type Band struct {
	Expected uint64 `json:"expected"`
	Lower    uint64 `json:"lower"`
	Upper    uint64 `json:"upper"`
}

// Contains reports whether v lies in the band.
func (b Band) Contains(v uint64) bool {
	return v >= b.Lower && v <= b.Upper
}

// Engine evaluates payments against a feed reader.
type Engine struct {
	Oracle oracle.Reader
}

// Authorize runs the payment decision for path. The returned error is
// non-nil only for a fatal arithmetic overflow; every denial is a verdict.
func (e Engine) Authorize(in Input, path model.Path) (model.Verdict, error) {
	return model.Judge(model.PolicyPayment, path, e.check(in))
}

func (e Engine) check(in Input) error {
	if !in.State.Active {
		return nil
	}
	if in.ProductFeed.Address != in.State.ProductFeed || in.State.ProductFeed.IsZero() {
		return model.Denied(model.InvalidFeed,
			fmt.Sprintf("product feed %s is not configured", in.ProductFeed.Address.Short()))
	}
	product, err := e.Oracle.Units(in.ProductFeed, in.Now)
	if err != nil {
		return err
	}

	var band Band
	if in.State.TokenUSDFeed.IsZero() {
		// Single-feed mode compares whole tokens (amount / 10^9) against
		// the product price, so the price is taken in whole units too. A
		// hundredths price here would put the band 100x above every
		// transfer the legacy rule accepts.
		band = Around(product, in.State.ToleranceBasisPoints)
		current := in.Amount / TokenScale
		if !band.Contains(current) {
			return model.Denied(model.PriceOutOfRange,
				fmt.Sprintf("price %d outside [%d, %d]", current, band.Lower, band.Upper))
		}
		return nil
	}

	if in.TokenUSDFeed.Address != in.State.TokenUSDFeed {
		return model.Denied(model.InvalidFeed,
			fmt.Sprintf("token feed %s is not configured", in.TokenUSDFeed.Address.Short()))
	}
	tokenUSD, err := e.Oracle.Units(in.TokenUSDFeed, in.Now)
	if err != nil {
		return err
	}
	band, err = Expected(product, tokenUSD, in.State.ToleranceBasisPoints)
	if err != nil {
		return err
	}
	if !band.Contains(in.Amount) {
		return model.Denied(model.PriceOutOfRange,
			fmt.Sprintf("amount %d outside [%d, %d]", in.Amount, band.Lower, band.Upper))
	}
	return nil
}

// Expected computes the band around productPrice * 10^9 / tokenUSDPrice.
// Prices are whole units, truncated before the ratio is taken.
func Expected(productPrice, tokenUSDPrice, toleranceBP uint64) (Band, error) {
	if tokenUSDPrice == 0 {
		return Band{}, model.Denied(model.InvalidOracleData, "token price is zero")
	}
	hi, lo := bits.Mul64(productPrice, TokenScale)
	if hi >= tokenUSDPrice {
		return Band{}, fmt.Errorf("expected amount for price %d/%d: %w",
			productPrice, tokenUSDPrice, model.ErrArithmeticOverflow)
	}
	expected, _ := bits.Div64(hi, lo, tokenUSDPrice)
	return Around(expected, toleranceBP), nil
}

// Around returns [v - d, v + d] with d = v * bp / 10000, saturating at
// both ends.
func Around(v, toleranceBP uint64) Band {
	d := deviation(v, toleranceBP)
	lower, borrow := bits.Sub64(v, d, 0)
	if borrow != 0 {
		lower = 0
	}
	upper, carry := bits.Add64(v, d, 0)
	if carry != 0 {
		upper = math.MaxUint64
	}
	return Band{Expected: v, Lower: lower, Upper: upper}
}

func deviation(v, bp uint64) uint64 {
	hi, lo := bits.Mul64(v, bp)
	if hi >= BasisPoints {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, BasisPoints)
	return q
}
