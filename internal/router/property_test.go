package router

import (
	"bytes"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ppiankov/oraclegate/internal/claim"
	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/price"
)

// rawReason is the reason the raw path must give for a case the
// structured path denies with reason. Only the window and amount classes
// differ; the class follows from the case itself.
func rawReason(c claimCase, reason model.Reason) model.Reason {
	if reason != model.UnauthorizedClaim {
		return reason
	}
	switch {
	case c.now < c.policy.StartTime:
		return model.PolicyNotActive
	case c.now > c.policy.EndTime:
		return model.PolicyExpired
	case c.amount > c.policy.InsuredAmount:
		return model.ExcessClaimAmount
	}
	return reason
}

// sameOutcome reports whether the raw verdict is the one the structured
// verdict implies for c.
func sameOutcome(c claimCase, s, r model.Verdict) bool {
	return s.Decision == r.Decision && rawReason(c, s.Reason) == r.Reason
}

// TestPathEquivalence verifies both entry points agree on every input.
// Property: structured(x) ~ raw(encode(x)), and the persisted bytes match.
func TestPathEquivalence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	r := New(program, model.ZeroAddress)

	properties.Property("structured and raw paths agree", prop.ForAll(
		func(mantissa int64, threshold uint64, region uint8, claimed bool, amount uint64, now int64, feedInRegistry bool) bool {
			c := baseClaim()
			c.feed.Data = layout.FeedResult{Mantissa: mantissa, Scale: 2, UpdatedAt: 120}.Encode()
			c.cfg.Threshold = threshold
			c.policy.Region = region
			c.policy.Claimed = claimed
			c.amount = amount
			c.now = now
			if !feedInRegistry {
				c.feed.Address = model.NamedAddress("unregistered")
			}

			sv, structuredBytes, serr := c.structured(r)
			accts := c.accounts()
			rv, err := r.ExecuteClaim(EncodeExecute(c.amount), accts, c.now)
			if err != nil || serr != nil {
				return false
			}
			return sameOutcome(c, sv, rv) && bytes.Equal(structuredBytes, accts[PolicyIndex].Data)
		},
		gen.Int64Range(-1000, 1000),
		gen.UInt64Range(200, 900),
		gen.UInt8Range(0, 7),
		gen.Bool(),
		gen.UInt64Range(0, 2000),
		gen.Int64Range(50, 250),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestClaimedIsMonotonic verifies a record is claimed at most once.
// Property: after any sequence of raw executions at most one allows, and
// once claimed the record never reverts.
func TestClaimedIsMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	r := New(program, model.ZeroAddress)

	properties.Property("claimed flips once", prop.ForAll(
		func(amounts []uint64) bool {
			c := baseClaim()
			accts := c.accounts()
			allows := 0
			wasClaimed := false
			for _, amount := range amounts {
				v, err := r.ExecuteClaim(EncodeExecute(amount), accts, c.now)
				if err != nil {
					return false
				}
				rec, err := layout.DecodePolicyRecord(accts[PolicyIndex].Data)
				if err != nil {
					return false
				}
				if wasClaimed && (!rec.Claimed || v.Reason != model.ClaimAlreadyProcessed) {
					return false
				}
				if v.Allowed() {
					allows++
				}
				wasClaimed = rec.Claimed
			}
			return allows <= 1
		},
		gen.SliceOf(gen.UInt64Range(0, 1500)),
	))

	properties.TestingRun(t)
}

// TestWindowAlwaysDenies verifies claims outside the coverage window deny
// on both paths.
func TestWindowAlwaysDenies(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	r := New(program, model.ZeroAddress)

	properties.Property("outside window denies", prop.ForAll(
		func(offset int64, after bool) bool {
			c := baseClaim()
			if after {
				c.now = c.policy.EndTime + offset
			} else {
				c.now = c.policy.StartTime - offset
			}
			sv, _, serr := c.structured(r)
			rv, err := r.ExecuteClaim(EncodeExecute(c.amount), c.accounts(), c.now)
			return err == nil && serr == nil && !sv.Allowed() && !rv.Allowed() &&
				slices.Contains(claim.WindowReasons, sv.Reason) &&
				slices.Contains(claim.WindowReasons, rv.Reason)
		},
		gen.Int64Range(1, 1<<40),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestPaymentPathEquivalence verifies both payment entry points agree.
// Property: the structured and raw verdicts match, including a fatal error
// on one side only ever appearing on both.
func TestPaymentPathEquivalence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	r := New(program, model.ZeroAddress)
	productAddr := model.NamedAddress("product")
	tokenAddr := model.NamedAddress("token")

	properties.Property("structured and raw payment paths agree", prop.ForAll(
		func(productMantissa, tokenMantissa int64, scale uint32, bp, amount uint64, active, singleFeed bool) bool {
			st := layout.PriceState{
				ProductFeed: productAddr, TokenUSDFeed: tokenAddr,
				ToleranceBasisPoints: bp, Active: active, Authority: authority,
			}
			product := model.Account{Address: productAddr, Data: layout.FeedResult{
				Mantissa: productMantissa, Scale: scale, UpdatedAt: 5,
			}.Encode()}
			token := model.Account{Address: tokenAddr, Data: layout.FeedResult{
				Mantissa: tokenMantissa, Scale: scale, UpdatedAt: 5,
			}.Encode()}
			if singleFeed {
				st.TokenUSDFeed = model.ZeroAddress
				token = model.Account{}
			}

			sv, serr := r.AuthorizePayment(price.Input{
				State: st, ProductFeed: product, TokenUSDFeed: token, Amount: amount, Now: 10,
			})
			rv, rerr := r.ExecutePayment(EncodeExecute(amount), paymentAccounts(st, product, token), 10)
			if (serr == nil) != (rerr == nil) {
				return false
			}
			return serr != nil || (sv.Decision == rv.Decision && sv.Reason == rv.Reason)
		},
		gen.Int64Range(-10, 1_000_000),
		gen.Int64Range(-10, 1_000),
		gen.UInt32Range(0, 4),
		gen.UInt64Range(0, 12_000),
		gen.UInt64Range(0, 2_000_000_000_000),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
