// Package scenario runs YAML authorization cases through both entry points
// and fails any case where the paths disagree or the outcome is not the
// expected one.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/oraclegate/internal/claim"
	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/price"
	"github.com/ppiankov/oraclegate/internal/router"
)

// Scenario identities. Cases run against an isolated program.
var (
	Program       = model.NamedAddress("scenario-program")
	OracleProgram = model.NamedAddress("scenario-oracle")
	mint          = model.NamedAddress("scenario-mint")
)

const decisionError = "error"

// Load parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return &s, nil
}

// LoadAndRun loads a scenario file and runs it.
func LoadAndRun(path string) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	result := Run(s)
	result.File = path
	return result, nil
}

// Run evaluates every case. Cases are independent: each builds its own
// records.
func Run(s *Scenario) *RunResult {
	result := &RunResult{Name: s.Name, Total: len(s.Cases)}
	r := router.New(Program, OracleProgram)

	for i := range s.Cases {
		cr := runCase(r, s, i)
		if cr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}
	return result
}

func runCase(r *router.Router, s *Scenario, i int) CaseResult {
	cr := CaseResult{Index: i + 1}
	c, err := resolve(s, i)
	if err != nil {
		cr.Failure = err.Error()
		return cr
	}
	cr.Name = c.Name
	cr.Expected = strings.ToLower(c.Expect)

	var sv, rv model.Verdict
	var serr, rerr error
	var mismatch string
	switch strings.ToLower(s.Policy) {
	case "", string(model.PolicyClaim):
		sv, serr, rv, rerr, mismatch, err = runClaim(r, c)
	case string(model.PolicyPayment):
		sv, serr, rv, rerr, err = runPayment(r, c)
	default:
		err = fmt.Errorf("unknown policy %q", s.Policy)
	}
	if err != nil {
		cr.Failure = err.Error()
		return cr
	}
	cr.Structured = outcome(sv, serr)
	cr.Raw = outcome(rv, rerr)
	cr.Failure = judge(c, cr, mismatch)
	cr.Passed = cr.Failure == ""
	return cr
}

func outcome(v model.Verdict, err error) PathOutcome {
	if err != nil {
		return PathOutcome{Decision: decisionError, Reason: err.Error()}
	}
	return PathOutcome{Decision: string(v.Decision), Reason: string(v.Reason)}
}

// judge returns why a case failed, or "" when it passed.
func judge(c Case, cr CaseResult, mismatch string) string {
	switch {
	case mismatch != "":
		return mismatch
	case cr.Structured.Decision != cr.Raw.Decision:
		return fmt.Sprintf("paths disagree: structured %s, raw %s", cr.Structured.Decision, cr.Raw.Decision)
	case cr.Expected != "" && cr.Structured.Decision != cr.Expected:
		return fmt.Sprintf("expected %s, got %s", cr.Expected, cr.Structured.Decision)
	}
	if len(c.Reasons) > 0 && cr.Structured.Decision == string(model.Deny) {
		for _, reason := range []string{cr.Structured.Reason, cr.Raw.Reason} {
			if !slices.Contains(c.Reasons, reason) {
				return fmt.Sprintf("reason %s not in %v", reason, c.Reasons)
			}
		}
	}
	return ""
}

// resolve decodes case i over a fresh copy of the defaults.
func resolve(s *Scenario, i int) (Case, error) {
	var c Case
	if s.Defaults.Kind != 0 {
		if err := s.Defaults.Decode(&c); err != nil {
			return c, fmt.Errorf("decode defaults: %w", err)
		}
	}
	if err := s.Cases[i].Decode(&c); err != nil {
		return c, fmt.Errorf("decode case %d: %w", i+1, err)
	}
	if c.Name == "" {
		c.Name = fmt.Sprintf("case %d", i+1)
	}
	return c, nil
}

func runClaim(r *router.Router, c Case) (sv model.Verdict, serr error, rv model.Verdict, rerr error, mismatch string, err error) {
	owner, err := addressOr(c.Policy.Owner, "owner")
	if err != nil {
		return
	}
	caller := owner
	if c.Caller != "" {
		if caller, err = model.ResolveAddress(c.Caller); err != nil {
			return
		}
	}
	tag, err := regionTag(c.Policy.Region)
	if err != nil {
		return
	}
	var reg layout.Registry
	for name, feed := range c.Registry {
		region, perr := model.ParseRegion(name)
		if perr != nil {
			err = perr
			return
		}
		if reg[region], err = model.ResolveAddress(feed); err != nil {
			return
		}
	}
	presented := model.ZeroAddress
	if c.FeedAddress != "" {
		if presented, err = model.ResolveAddress(c.FeedAddress); err != nil {
			return
		}
	} else if region, ok := model.RegionFromByte(tag); ok {
		presented = reg[region]
	}
	feed, err := c.Feed.account(presented)
	if err != nil {
		return
	}

	cfg := layout.Config{Threshold: c.Threshold, Authority: model.NamedAddress("scenario-authority")}
	rec := layout.PolicyRecord{
		Owner: owner, Region: tag, Claimed: c.Policy.Claimed,
		InsuredAmount: c.Policy.InsuredAmount, PremiumPaid: c.Policy.Premium,
		StartTime: c.Policy.StartTime, EndTime: c.Policy.EndTime,
	}

	structured := rec
	sv, serr = r.AuthorizeClaim(claim.Input{
		Config: cfg, Registry: reg, Policy: &structured, Feed: feed,
		Caller: caller, Amount: c.Amount, Now: c.Now,
	})

	accounts := []model.Account{
		{Address: model.NamedAddress("scenario-source")},
		{Address: mint},
		{Address: model.NamedAddress("scenario-destination")},
		{Address: caller},
		{Address: router.MetasAddress(Program, mint), Owner: Program},
		{Address: router.ConfigAddress(Program), Owner: Program, Data: cfg.Encode()},
		{Address: router.RegistryAddress(Program), Owner: Program, Data: reg.Encode()},
		{Address: router.PolicyAddress(Program, owner), Owner: Program, Writable: true, Data: rec.Encode()},
		feed,
	}
	rv, rerr = r.ExecuteClaim(router.EncodeExecute(c.Amount), accounts, c.Now)
	if !bytes.Equal(structured.Encode(), accounts[router.PolicyIndex].Data) {
		mismatch = "paths left different policy record bytes"
	}
	return
}

func runPayment(r *router.Router, c Case) (sv model.Verdict, serr error, rv model.Verdict, rerr error, err error) {
	productAddr := model.NamedAddress("scenario-product-feed")
	tokenAddr := model.NamedAddress("scenario-token-usd-feed")
	st := layout.PriceState{
		ProductFeed:          productAddr,
		TokenUSDFeed:         tokenAddr,
		ToleranceBasisPoints: c.Price.ToleranceBP,
		Active:               c.Price.Active,
		Authority:            model.NamedAddress("scenario-authority"),
	}
	product, err := c.Price.Product.account(productAddr)
	if err != nil {
		return
	}
	token, err := c.Price.TokenUSD.account(tokenAddr)
	if err != nil {
		return
	}
	if c.Price.SingleFeed {
		st.TokenUSDFeed = model.ZeroAddress
		token = model.Account{}
	}

	sv, serr = r.AuthorizePayment(price.Input{
		State: st, ProductFeed: product, TokenUSDFeed: token, Amount: c.Amount, Now: c.Now,
	})
	accounts := []model.Account{
		{Address: model.NamedAddress("scenario-source")},
		{Address: mint},
		{Address: model.NamedAddress("scenario-destination")},
		{Address: model.NamedAddress("scenario-payer")},
		{Address: router.MetasAddress(Program, mint), Owner: Program},
		{Address: router.PriceStateAddress(Program), Owner: Program, Data: st.Encode()},
		product,
		token,
	}
	rv, rerr = r.ExecutePayment(router.EncodeExecute(c.Amount), accounts, c.Now)
	return
}

func (f FeedSpec) account(addr model.Address) (model.Account, error) {
	owner := OracleProgram
	if f.Owner != "" {
		var err error
		if owner, err = model.ResolveAddress(f.Owner); err != nil {
			return model.Account{}, err
		}
	}
	return model.Account{
		Address: addr,
		Owner:   owner,
		Data: layout.FeedResult{
			Mantissa:     f.Mantissa,
			Scale:        f.Scale,
			NumSuccess:   f.NumSuccess,
			MinResponses: f.MinResponses,
			UpdatedAt:    f.UpdatedAt,
			MaxStaleness: f.MaxStaleness,
		}.Encode(),
	}, nil
}

func addressOr(s, fallback string) (model.Address, error) {
	if s == "" {
		s = fallback
	}
	return model.ResolveAddress(s)
}

// regionTag accepts a region name, its ordinal, or any other u8 wire tag.
func regionTag(s string) (uint8, error) {
	if s == "" {
		return 0, fmt.Errorf("policy region is required")
	}
	if r, err := model.ParseRegion(s); err == nil {
		return uint8(r), nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("region %q: not a region name or u8 tag", s)
	}
	return uint8(n), nil
}
