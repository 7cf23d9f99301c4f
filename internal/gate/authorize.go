package gate

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/oraclegate/internal/claim"
	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/ledger"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/price"
	"github.com/ppiankov/oraclegate/internal/router"
)

// ClaimRequest is a structured claim by Owner against Feed.
type ClaimRequest struct {
	Owner  model.Address
	Feed   model.Address
	Amount uint64
	// DryRun evaluates the claim without persisting the mutation.
	DryRun bool
}

// Claim runs the structured claim path. An allowed claim marks the policy
// claimed in the same transaction that read it. The error is non-nil only
// when the ledger fails.
func (g *Gate) Claim(ctx context.Context, req ClaimRequest) (model.Verdict, error) {
	var v model.Verdict
	err := g.update(ctx, req.DryRun, func(tx *ledger.Tx) error {
		in, policyData, err := g.loadClaim(ctx, tx, req)
		if err != nil {
			if d := denialOrNil(err); d != nil {
				v, _ = model.Judge(model.PolicyClaim, model.PathStructured, d)
				return nil
			}
			return err
		}
		if v, err = g.router.AuthorizeClaim(in); err != nil {
			return err
		}
		if !v.Allowed() {
			return nil
		}
		if err := layout.PutPolicyRecord(policyData, *in.Policy); err != nil {
			return err
		}
		return tx.Put(ctx, router.PolicyAddress(g.program, req.Owner), policyData)
	})
	if err != nil {
		return model.Verdict{}, err
	}
	return g.finish("claim", v, req.Owner, req.Amount, req.DryRun), nil
}

// loadClaim resolves the structured inputs. Missing or foreign records
// come back as a *model.DenialError; any other error is a ledger failure.
func (g *Gate) loadClaim(ctx context.Context, tx *ledger.Tx, req ClaimRequest) (claim.Input, []byte, error) {
	in := claim.Input{Caller: req.Owner, Amount: req.Amount, Now: g.unix()}

	ce, err := g.ownedOr(ctx, tx, router.ConfigAddress(g.program), model.InvalidInstruction, "config")
	if err != nil {
		return in, nil, err
	}
	if in.Config, err = layout.DecodeConfig(ce.Data); err != nil {
		return in, nil, model.Denied(model.InvalidInstruction, err.Error())
	}

	re, err := tx.Get(ctx, router.RegistryAddress(g.program))
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		// Never written: every slot is unset.
	case err != nil:
		return in, nil, err
	default:
		if in.Registry, err = layout.DecodeRegistry(re.Data); err != nil {
			return in, nil, model.Denied(model.InvalidInstruction, err.Error())
		}
	}

	pe, err := g.ownedOr(ctx, tx, router.PolicyAddress(g.program, req.Owner), model.InvalidUserData, "policy")
	if err != nil {
		return in, nil, err
	}
	rec, err := layout.DecodePolicyRecord(pe.Data)
	if err != nil {
		return in, nil, model.Denied(model.InvalidUserData, err.Error())
	}
	in.Policy = &rec

	if in.Feed, err = g.account(ctx, tx, req.Feed); err != nil {
		return in, nil, err
	}
	return in, pe.Data, nil
}

// PayRequest is a structured payment of Amount base units.
type PayRequest struct {
	Amount uint64
	DryRun bool
}

// Pay runs the structured payment path against the configured feeds.
func (g *Gate) Pay(ctx context.Context, req PayRequest) (model.Verdict, error) {
	var v model.Verdict
	err := g.update(ctx, req.DryRun, func(tx *ledger.Tx) error {
		se, err := g.ownedOr(ctx, tx, router.PriceStateAddress(g.program), model.InvalidInstruction, "price state")
		if err != nil {
			if d := denialOrNil(err); d != nil {
				v, _ = model.Judge(model.PolicyPayment, model.PathStructured, d)
				return nil
			}
			return err
		}
		st, err := layout.DecodePriceState(se.Data)
		if err != nil {
			v, _ = model.Judge(model.PolicyPayment, model.PathStructured, model.Denied(model.InvalidInstruction, err.Error()))
			return nil
		}
		in := price.Input{State: st, Amount: req.Amount, Now: g.unix()}
		if in.ProductFeed, err = g.account(ctx, tx, st.ProductFeed); err != nil {
			return err
		}
		if in.TokenUSDFeed, err = g.account(ctx, tx, st.TokenUSDFeed); err != nil {
			return err
		}
		v, err = g.router.AuthorizePayment(in)
		return err
	})
	if err != nil {
		return model.Verdict{}, err
	}
	return g.finish("pay", v, router.PriceStateAddress(g.program), req.Amount, req.DryRun), nil
}

// ExecuteRequest is a raw invocation: instruction bytes and the positional
// account list with per-invocation flags.
type ExecuteRequest struct {
	Policy      model.Policy
	Instruction []byte
	Accounts    []layout.AccountMeta
	DryRun      bool
}

// Execute runs the raw path. Accounts are loaded by address; an address
// with no stored account is presented as empty. Writable accounts whose
// bytes changed are persisted when the verdict allows.
func (g *Gate) Execute(ctx context.Context, req ExecuteRequest) (model.Verdict, error) {
	var v model.Verdict
	var subject model.Address
	var amount uint64
	err := g.update(ctx, req.DryRun, func(tx *ledger.Tx) error {
		accounts := make([]model.Account, len(req.Accounts))
		before := make([][]byte, len(req.Accounts))
		for i, m := range req.Accounts {
			a, err := g.account(ctx, tx, m.Address)
			if err != nil {
				return err
			}
			a.Signer, a.Writable = m.Signer, m.Writable
			accounts[i] = a
			before[i] = bytes.Clone(a.Data)
		}
		if len(accounts) > router.OwnerIndex {
			subject = accounts[router.OwnerIndex].Address
		}
		amount, _ = router.ParseExecute(req.Instruction)

		var err error
		v, err = g.router.Execute(req.Policy, req.Instruction, accounts, g.unix())
		if err != nil {
			return err
		}
		if !v.Allowed() {
			return nil
		}
		for i, a := range accounts {
			if !a.Writable || bytes.Equal(before[i], a.Data) {
				continue
			}
			if err := tx.Put(ctx, a.Address, a.Data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Verdict{}, err
	}
	return g.finish("execute", v, subject, amount, req.DryRun), nil
}

// Transfer names the fixed accounts at the head of a raw account list.
type Transfer struct {
	Source      model.Address
	Mint        model.Address
	Destination model.Address
	Owner       model.Address
}

// ClaimAccounts assembles the raw account list for a claim: the transfer
// accounts, the stored extra metas for the mint, then the owner's policy
// record and the feed.
func (g *Gate) ClaimAccounts(ctx context.Context, t Transfer, feed model.Address) ([]layout.AccountMeta, error) {
	var out []layout.AccountMeta
	err := g.view(ctx, func(tx *ledger.Tx) error {
		extra, err := g.metas(ctx, tx, t.Mint)
		if err != nil {
			return err
		}
		out = append(g.head(t), extra...)
		out = append(out,
			layout.AccountMeta{Address: router.PolicyAddress(g.program, t.Owner), Writable: true},
			layout.AccountMeta{Address: feed},
		)
		return nil
	})
	return out, err
}

// PaymentAccounts assembles the raw account list for a payment: the
// transfer accounts, the stored extra metas for the mint, then the product
// and token/USD feeds named by the current price state. Without a readable
// price state the feeds are left zero and the invocation denies on the
// state account.
func (g *Gate) PaymentAccounts(ctx context.Context, t Transfer) ([]layout.AccountMeta, error) {
	var out []layout.AccountMeta
	err := g.view(ctx, func(tx *ledger.Tx) error {
		extra, err := g.metas(ctx, tx, t.Mint)
		if err != nil {
			return err
		}
		var st layout.PriceState
		e, err := tx.Get(ctx, router.PriceStateAddress(g.program))
		switch {
		case errors.Is(err, ledger.ErrNotFound):
		case err != nil:
			return err
		default:
			if decoded, derr := layout.DecodePriceState(e.Data); derr == nil {
				st = decoded
			}
		}
		out = append(g.head(t), extra...)
		out = append(out,
			layout.AccountMeta{Address: st.ProductFeed},
			layout.AccountMeta{Address: st.TokenUSDFeed},
		)
		return nil
	})
	return out, err
}

func (g *Gate) head(t Transfer) []layout.AccountMeta {
	return []layout.AccountMeta{
		{Address: t.Source, Writable: true},
		{Address: t.Mint},
		{Address: t.Destination, Writable: true},
		{Address: t.Owner, Signer: true},
		{Address: router.MetasAddress(g.program, t.Mint)},
	}
}

func (g *Gate) metas(ctx context.Context, tx *ledger.Tx, mint model.Address) ([]layout.AccountMeta, error) {
	e, err := g.owned(ctx, tx, router.MetasAddress(g.program, mint))
	if err != nil {
		return nil, fmt.Errorf("extra account metas for mint %s: %w", mint.Short(), err)
	}
	return layout.DecodeAccountMetas(e.Data)
}

// account loads addr as an invocation handle. A missing account is
// presented with no owner and no data, the way an empty address looks to
// the engine.
func (g *Gate) account(ctx context.Context, tx *ledger.Tx, addr model.Address) (model.Account, error) {
	e, err := tx.Get(ctx, addr)
	if errors.Is(err, ledger.ErrNotFound) {
		return model.Account{Address: addr}, nil
	}
	if err != nil {
		return model.Account{}, err
	}
	return e.Account(), nil
}

// ownedOr loads a program-owned record, turning absence or foreign
// ownership into a denial with reason.
func (g *Gate) ownedOr(ctx context.Context, tx *ledger.Tx, addr model.Address, reason model.Reason, what string) (ledger.Entry, error) {
	e, err := tx.Get(ctx, addr)
	if errors.Is(err, ledger.ErrNotFound) {
		return e, model.Denied(reason, what+" account does not exist")
	}
	if err != nil {
		return e, err
	}
	if e.Owner != g.program {
		return e, model.Denied(reason, what+" account is not owned by the program")
	}
	return e, nil
}

func denialOrNil(err error) error {
	if _, ok := model.ReasonOf(err); ok {
		return err
	}
	return nil
}
