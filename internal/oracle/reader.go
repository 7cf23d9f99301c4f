// Package oracle normalizes oracle feed results into fixed-point integers.
// It is the only package that reads raw feed bytes.
package oracle

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/model"
)

// MaxScale bounds the decimal scale a feed may report.
const MaxScale = 28

// Reader opens feed accounts. The zero value accepts feeds owned by any
// program.
type Reader struct {
	// OracleProgram, when set, must own every feed account.
	OracleProgram model.Address
}

// Read opens feed as a result container and returns its latest confirmed
// result. Every failure is a *model.DenialError.
func (r Reader) Read(feed model.Account, now int64) (layout.FeedResult, error) {
	if !r.OracleProgram.IsZero() && feed.Owner != r.OracleProgram {
		return layout.FeedResult{}, model.Denied(model.SwitchboardError,
			fmt.Sprintf("feed %s owned by %s", feed.Address.Short(), feed.Owner.Short()))
	}
	res, err := layout.DecodeFeedResult(feed.Data)
	if err != nil {
		return layout.FeedResult{}, model.Denied(model.InvalidOracleData, err.Error())
	}
	switch {
	case res.UpdatedAt == 0:
		return res, model.Denied(model.InvalidOracleData, "feed has no confirmed round")
	case res.NumSuccess < res.MinResponses:
		return res, model.Denied(model.InvalidOracleData,
			fmt.Sprintf("round has %d responses, need %d", res.NumSuccess, res.MinResponses))
	case res.MaxStaleness > 0 && age(now, res.UpdatedAt) > uint64(res.MaxStaleness):
		return res, model.Denied(model.InvalidOracleData,
			fmt.Sprintf("feed stale: updated %ds ago, limit %ds", age(now, res.UpdatedAt), res.MaxStaleness))
	case res.Scale > MaxScale:
		return res, model.Denied(model.InvalidOracleData,
			fmt.Sprintf("scale %d exceeds %d", res.Scale, MaxScale))
	}
	return res, nil
}

// age returns now-updatedAt in seconds without wrapping; a round stamped at
// or after now has age zero.
func age(now, updatedAt int64) uint64 {
	if updatedAt >= now {
		return 0
	}
	return uint64(now) - uint64(updatedAt)
}

// Hundredths reads feed and returns its value in fixed-point hundredths.
func (r Reader) Hundredths(feed model.Account, now int64) (uint64, error) {
	res, err := r.Read(feed, now)
	if err != nil {
		return 0, err
	}
	return ToHundredths(res.Mantissa, res.Scale), nil
}

// Units reads feed and returns its value truncated to whole units.
func (r Reader) Units(feed model.Account, now int64) (uint64, error) {
	res, err := r.Read(feed, now)
	if err != nil {
		return 0, err
	}
	return ToUnits(res.Mantissa, res.Scale), nil
}

// ToHundredths returns trunc(mantissa / 10^scale * 100), saturated to the
// uint64 range. Negative values become zero.
func ToHundredths(mantissa int64, scale uint32) uint64 {
	return shift(mantissa, scale, 2)
}

// ToUnits returns trunc(mantissa / 10^scale), saturated like ToHundredths.
func ToUnits(mantissa int64, scale uint32) uint64 {
	return shift(mantissa, scale, 0)
}

var maxU64 = new(big.Int).SetUint64(math.MaxUint64)

func shift(mantissa int64, scale uint32, digits int64) uint64 {
	if mantissa <= 0 {
		return 0
	}
	ten := big.NewInt(10)
	num := new(big.Int).Mul(big.NewInt(mantissa), new(big.Int).Exp(ten, big.NewInt(digits), nil))
	den := new(big.Int).Exp(ten, big.NewInt(int64(scale)), nil)
	q := num.Quo(num, den)
	if q.Cmp(maxU64) > 0 {
		return math.MaxUint64
	}
	return q.Uint64()
}
