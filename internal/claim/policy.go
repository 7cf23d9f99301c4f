package claim

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/model"
)

// SecondsPerDay converts coverage durations.
const SecondsPerDay = 86400

// Registration is a request to open a policy.
type Registration struct {
	Owner         model.Address
	Region        uint8
	InsuredAmount uint64
	Premium       uint64
	DurationDays  uint64
}

// Register builds a new policy record starting at now. The region tag is
// stored as given; an unknown region only fails at claim time. Whether a
// record already exists for the owner is the store's concern.
func Register(r Registration, now int64) (layout.PolicyRecord, error) {
	if r.DurationDays == 0 {
		return layout.PolicyRecord{}, model.Denied(model.InvalidUserData, "duration must be at least one day")
	}
	if r.Premium == 0 {
		return layout.PolicyRecord{}, model.Denied(model.InsufficientPremium, "premium must be positive")
	}
	end, err := addDays(now, r.DurationDays)
	if err != nil {
		return layout.PolicyRecord{}, err
	}
	return layout.PolicyRecord{
		Owner:         r.Owner,
		Region:        r.Region,
		InsuredAmount: r.InsuredAmount,
		PremiumPaid:   r.Premium,
		StartTime:     now,
		EndTime:       end,
	}, nil
}

// Revision carries the optional fields of a policy revision. Nil fields
// are left unchanged.
type Revision struct {
	InsuredAmount *uint64
	Premium       *uint64
	ExtensionDays *uint64
}

// Empty reports whether the revision changes nothing.
func (r Revision) Empty() bool {
	return r.InsuredAmount == nil && r.Premium == nil && r.ExtensionDays == nil
}

// Revise applies rev to an open policy owned by caller. Amounts may only
// grow and the extension has no upper bound. Every check runs before any
// field is written, so a failed revision leaves p unchanged.
func Revise(p *layout.PolicyRecord, caller model.Address, rev Revision) error {
	if p.Owner != caller {
		return model.Denied(model.UserLocationNotRegistered,
			fmt.Sprintf("caller %s does not own policy", caller.Short()))
	}
	if p.Claimed {
		return model.Denied(model.ClaimAlreadyProcessed, "claimed policies are immutable")
	}

	next := *p
	if rev.InsuredAmount != nil {
		if *rev.InsuredAmount < p.InsuredAmount {
			return model.Denied(model.InvalidUserData,
				fmt.Sprintf("insured amount cannot drop from %d to %d", p.InsuredAmount, *rev.InsuredAmount))
		}
		next.InsuredAmount = *rev.InsuredAmount
	}
	if rev.Premium != nil {
		if *rev.Premium < p.PremiumPaid {
			return model.Denied(model.InsufficientPremium,
				fmt.Sprintf("premium cannot drop from %d to %d", p.PremiumPaid, *rev.Premium))
		}
		next.PremiumPaid = *rev.Premium
	}
	if rev.ExtensionDays != nil {
		end, err := addDays(p.EndTime, *rev.ExtensionDays)
		if err != nil {
			return err
		}
		next.EndTime = end
	}
	*p = next
	return nil
}

// addDays returns t + days*86400, failing on overflow instead of wrapping.
func addDays(t int64, days uint64) (int64, error) {
	hi, secs := bits.Mul64(days, SecondsPerDay)
	if hi != 0 || secs > math.MaxInt64 {
		return 0, fmt.Errorf("duration of %d days: %w", days, model.ErrArithmeticOverflow)
	}
	s := int64(secs)
	if t > math.MaxInt64-s {
		return 0, fmt.Errorf("end time past %d: %w", t, model.ErrArithmeticOverflow)
	}
	return t + s, nil
}
