// Package router exposes the two entry points of the authorization engine.
//
// The structured path takes records the caller already resolved. The raw
// path takes an instruction buffer and a positional account list, decodes
// every record up front with the same codec, and then runs the same
// decision. Both paths must agree on every input.
package router

import (
	"fmt"

	"github.com/ppiankov/oraclegate/internal/claim"
	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/oracle"
	"github.com/ppiankov/oraclegate/internal/price"
)

// Claim account positions.
const (
	SourceIndex = iota
	MintIndex
	DestinationIndex
	OwnerIndex
	MetasIndex
	ConfigIndex
	RegistryIndex
	PolicyIndex
	FeedIndex
	ClaimAccounts
)

// Payment account positions. The first five match the claim list.
const (
	PriceStateIndex = MetasIndex + 1 + iota
	ProductFeedIndex
	TokenUSDFeedIndex
	PaymentAccounts
)

// Router dispatches both entry points to the decision engines. It holds no
// mutable state; the host serializes invocations touching one record.
type Router struct {
	program  model.Address
	claims   claim.Engine
	payments price.Engine
}

// New returns a router for the program identity. When oracleProgram is
// non-zero every feed account must be owned by it.
func New(program, oracleProgram model.Address) *Router {
	reader := oracle.Reader{OracleProgram: oracleProgram}
	return &Router{
		program:  program,
		claims:   claim.Engine{Oracle: reader},
		payments: price.Engine{Oracle: reader},
	}
}

// Program returns the program identity records must be owned by.
func (r *Router) Program() model.Address {
	return r.program
}

// AuthorizeClaim is the structured claim entry point. On allow
// in.Policy.Claimed is set before it returns.
func (r *Router) AuthorizeClaim(in claim.Input) (model.Verdict, error) {
	return r.claims.Authorize(in, model.PathStructured)
}

// AuthorizePayment is the structured payment entry point.
func (r *Router) AuthorizePayment(in price.Input) (model.Verdict, error) {
	return r.payments.Authorize(in, model.PathStructured)
}

// Execute runs a raw instruction under policy.
func (r *Router) Execute(policy model.Policy, data []byte, accounts []model.Account, now int64) (model.Verdict, error) {
	switch policy {
	case model.PolicyClaim:
		return r.ExecuteClaim(data, accounts, now)
	case model.PolicyPayment:
		return r.ExecutePayment(data, accounts, now)
	}
	return model.Verdict{}, fmt.Errorf("unknown policy %q", policy)
}

// ExecuteClaim is the raw claim entry point. On allow the claimed flag is
// written into the policy account's data before it returns; on deny no
// account is touched.
func (r *Router) ExecuteClaim(data []byte, accounts []model.Account, now int64) (model.Verdict, error) {
	in, err := r.resolveClaim(data, accounts, now)
	if err != nil {
		return model.Judge(model.PolicyClaim, model.PathRaw, err)
	}
	v, err := r.claims.Authorize(in, model.PathRaw)
	if err != nil {
		return model.Verdict{}, err
	}
	if v.Allowed() {
		if err := layout.PutPolicyRecord(accounts[PolicyIndex].Data, *in.Policy); err != nil {
			// The record decoded from this buffer a moment ago.
			return model.Verdict{}, fmt.Errorf("write policy record: %w", err)
		}
	}
	return v, nil
}

func (r *Router) resolveClaim(data []byte, accounts []model.Account, now int64) (claim.Input, error) {
	amount, err := ParseExecute(data)
	if err != nil {
		return claim.Input{}, err
	}
	if len(accounts) < ClaimAccounts {
		return claim.Input{}, model.Denied(model.InvalidInstruction,
			fmt.Sprintf("claim needs %d accounts, got %d", ClaimAccounts, len(accounts)))
	}

	cfgAcct := accounts[ConfigIndex]
	if err := r.record(cfgAcct, ConfigAddress(r.program), "config", model.InvalidInstruction); err != nil {
		return claim.Input{}, err
	}
	cfg, err := layout.DecodeConfig(cfgAcct.Data)
	if err != nil {
		return claim.Input{}, model.Denied(model.InvalidInstruction, err.Error())
	}

	regAcct := accounts[RegistryIndex]
	if err := r.record(regAcct, RegistryAddress(r.program), "registry", model.InvalidInstruction); err != nil {
		return claim.Input{}, err
	}
	reg, err := layout.DecodeRegistry(regAcct.Data)
	if err != nil {
		return claim.Input{}, model.Denied(model.InvalidInstruction, err.Error())
	}

	polAcct := accounts[PolicyIndex]
	if err := r.owned(polAcct, "policy", model.InvalidUserData); err != nil {
		return claim.Input{}, err
	}
	if !polAcct.Writable {
		return claim.Input{}, model.Denied(model.InvalidInstruction, "policy account is not writable")
	}
	rec, err := layout.DecodePolicyRecord(polAcct.Data)
	if err != nil {
		return claim.Input{}, model.Denied(model.InvalidUserData, err.Error())
	}
	// A record is only valid in the slot derived from its own owner.
	if polAcct.Address != PolicyAddress(r.program, rec.Owner) {
		return claim.Input{}, model.Denied(model.InvalidUserData,
			fmt.Sprintf("policy account %s is not the owner's slot", polAcct.Address.Short()))
	}

	return claim.Input{
		Config:   cfg,
		Registry: reg,
		Policy:   &rec,
		Feed:     accounts[FeedIndex],
		Caller:   accounts[OwnerIndex].Address,
		Amount:   amount,
		Now:      now,
	}, nil
}

// ExecutePayment is the raw payment entry point. It never writes.
func (r *Router) ExecutePayment(data []byte, accounts []model.Account, now int64) (model.Verdict, error) {
	in, err := r.resolvePayment(data, accounts, now)
	if err != nil {
		return model.Judge(model.PolicyPayment, model.PathRaw, err)
	}
	return r.payments.Authorize(in, model.PathRaw)
}

func (r *Router) resolvePayment(data []byte, accounts []model.Account, now int64) (price.Input, error) {
	amount, err := ParseExecute(data)
	if err != nil {
		return price.Input{}, err
	}
	if len(accounts) < PaymentAccounts {
		return price.Input{}, model.Denied(model.InvalidInstruction,
			fmt.Sprintf("payment needs %d accounts, got %d", PaymentAccounts, len(accounts)))
	}
	stAcct := accounts[PriceStateIndex]
	if err := r.record(stAcct, PriceStateAddress(r.program), "price state", model.InvalidInstruction); err != nil {
		return price.Input{}, err
	}
	st, err := layout.DecodePriceState(stAcct.Data)
	if err != nil {
		return price.Input{}, model.Denied(model.InvalidInstruction, err.Error())
	}
	return price.Input{
		State:        st,
		ProductFeed:  accounts[ProductFeedIndex],
		TokenUSDFeed: accounts[TokenUSDFeedIndex],
		Amount:       amount,
		Now:          now,
	}, nil
}

// record checks that a singleton record account sits at its derived
// address and belongs to the program.
func (r *Router) record(a model.Account, want model.Address, what string, reason model.Reason) error {
	if a.Address != want {
		return model.Denied(reason, fmt.Sprintf("%s account %s is not at %s", what, a.Address.Short(), want.Short()))
	}
	return r.owned(a, what, reason)
}

func (r *Router) owned(a model.Account, what string, reason model.Reason) error {
	if a.Owner != r.program {
		return model.Denied(reason, fmt.Sprintf("%s account %s not owned by program", what, a.Address.Short()))
	}
	return nil
}
