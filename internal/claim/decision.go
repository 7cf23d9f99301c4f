// Package claim implements the insurance policy state machine and the
// earthquake claim authorization decision.
//
// A policy moves from Registered to Claimed exactly once. Expiry is never
// stored; it is evaluated against the invocation time.
package claim

import (
	"fmt"

	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/oracle"
	"github.com/ppiankov/oraclegate/internal/registry"
)

// Input holds the resolved records for one claim decision.
type Input struct {
	Config   layout.Config
	Registry layout.Registry
	// Policy is updated in place when the claim is allowed.
	Policy *layout.PolicyRecord
	Feed   model.Account
	Caller model.Address
	Amount uint64
	Now    int64
}

// FeedReader normalizes a feed account to hundredths. oracle.Reader
// implements it.
type FeedReader interface {
	Hundredths(feed model.Account, now int64) (uint64, error)
}

// Engine evaluates claims against a feed reader. A nil Oracle reads feeds
// owned by any program.
type Engine struct {
	Oracle FeedReader
}

// Authorize runs the claim decision for path. On allow it sets
// Policy.Claimed before returning, and that is the only write it performs.
// A deny leaves the input untouched. The error is non-nil only for a fault
// that is not a denial, such as model.ErrArithmeticOverflow; the input is
// untouched then too.
func (e Engine) Authorize(in Input, path model.Path) (model.Verdict, error) {
	v, err := model.Judge(model.PolicyClaim, path, e.check(in, path))
	if err != nil {
		return model.Verdict{}, fmt.Errorf("claim decision: %w", err)
	}
	if v.Allowed() {
		in.Policy.Claimed = true
		v.Mutated = true
	}
	return v, nil
}

func (e Engine) reader() FeedReader {
	if e.Oracle == nil {
		return oracle.Reader{}
	}
	return e.Oracle
}

func (e Engine) check(in Input, path model.Path) error {
	p := in.Policy
	if p == nil {
		return model.Denied(model.InvalidUserData, "no policy record")
	}
	if p.Owner != in.Caller {
		return model.Denied(model.UserLocationNotRegistered,
			fmt.Sprintf("caller %s does not own policy", in.Caller.Short()))
	}
	if p.Claimed {
		return model.Denied(model.ClaimAlreadyProcessed, "")
	}
	if err := window(p, in.Now, path); err != nil {
		return err
	}
	if in.Amount > p.InsuredAmount {
		reason := model.UnauthorizedClaim
		if path == model.PathRaw {
			reason = model.ExcessClaimAmount
		}
		return model.Denied(reason,
			fmt.Sprintf("amount %d exceeds insured %d", in.Amount, p.InsuredAmount))
	}
	region, ok := model.RegionFromByte(p.Region)
	if !ok {
		return model.Denied(model.RegionNotSupported, fmt.Sprintf("region tag %d", p.Region))
	}
	if err := registry.Verify(in.Registry, region, in.Feed.Address); err != nil {
		return err
	}
	magnitude, err := e.reader().Hundredths(in.Feed, in.Now)
	if err != nil {
		return err
	}
	if magnitude < in.Config.Threshold {
		return model.Denied(model.MagnitudeBelowThreshold,
			fmt.Sprintf("magnitude %s below threshold %s",
				oracle.FormatHundredths(magnitude), oracle.FormatHundredths(in.Config.Threshold)))
	}
	return nil
}

// window checks startTime <= now <= endTime. The structured path reports a
// single reason for both sides; the raw path distinguishes them.
func window(p *layout.PolicyRecord, now int64, path model.Path) error {
	switch {
	case now < p.StartTime:
		if path == model.PathRaw {
			return model.Denied(model.PolicyNotActive, fmt.Sprintf("starts at %d", p.StartTime))
		}
		return model.Denied(model.UnauthorizedClaim, fmt.Sprintf("policy starts at %d", p.StartTime))
	case now > p.EndTime:
		if path == model.PathRaw {
			return model.Denied(model.PolicyExpired, fmt.Sprintf("ended at %d", p.EndTime))
		}
		return model.Denied(model.UnauthorizedClaim, fmt.Sprintf("policy ended at %d", p.EndTime))
	}
	return nil
}

// WindowReasons lists the reasons either path may give for a claim outside
// its coverage window.
var WindowReasons = []model.Reason{model.UnauthorizedClaim, model.PolicyNotActive, model.PolicyExpired}

// AmountReasons lists the reasons either path may give for a claim above
// the insured amount.
var AmountReasons = []model.Reason{model.UnauthorizedClaim, model.ExcessClaimAmount}
