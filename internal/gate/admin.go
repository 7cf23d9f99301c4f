package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/oraclegate/internal/claim"
	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/ledger"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/price"
	"github.com/ppiankov/oraclegate/internal/registry"
	"github.com/ppiankov/oraclegate/internal/router"
)

// InitConfig creates the program config. It fails with
// ledger.ErrAlreadyExists when a config exists.
func (g *Gate) InitConfig(ctx context.Context, authority model.Address, threshold float64) (layout.Config, error) {
	addr := router.ConfigAddress(g.program)
	cfg, err := claim.NewConfig(authority, threshold)
	if err == nil {
		err = g.update(ctx, false, func(tx *ledger.Tx) error {
			return tx.Create(ctx, ledger.Entry{Address: addr, Owner: g.program, Label: "config", Data: cfg.Encode()})
		})
	}
	g.recordAdmin("init-config", addr, err)
	return cfg, err
}

// UpdateThreshold changes the claim threshold on behalf of caller.
func (g *Gate) UpdateThreshold(ctx context.Context, caller model.Address, threshold float64) (layout.Config, error) {
	addr := router.ConfigAddress(g.program)
	var cfg layout.Config
	err := g.update(ctx, false, func(tx *ledger.Tx) error {
		e, err := g.owned(ctx, tx, addr)
		if err != nil {
			return err
		}
		if cfg, err = layout.DecodeConfig(e.Data); err != nil {
			return err
		}
		if err := claim.UpdateThreshold(&cfg, caller, threshold); err != nil {
			return err
		}
		if err := layout.PutConfig(e.Data, cfg); err != nil {
			return err
		}
		return tx.Put(ctx, addr, e.Data)
	})
	g.recordAdmin("update-threshold", addr, err)
	return cfg, err
}

// UpdateRegionFeed points region at feed. The registry is created on first
// use.
func (g *Gate) UpdateRegionFeed(ctx context.Context, caller model.Address, region model.Region, feed model.Address) (layout.Registry, error) {
	addr := router.RegistryAddress(g.program)
	var reg layout.Registry
	err := g.update(ctx, false, func(tx *ledger.Tx) error {
		ce, err := g.owned(ctx, tx, router.ConfigAddress(g.program))
		if err != nil {
			return err
		}
		cfg, err := layout.DecodeConfig(ce.Data)
		if err != nil {
			return err
		}

		re, err := tx.Get(ctx, addr)
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			re = ledger.Entry{Address: addr, Owner: g.program, Label: "registry", Data: reg.Encode()}
			if err := tx.Create(ctx, re); err != nil {
				return err
			}
		case err != nil:
			return err
		}
		if reg, err = layout.DecodeRegistry(re.Data); err != nil {
			return err
		}
		if err := registry.SetSlot(&reg, cfg, caller, region, feed); err != nil {
			return err
		}
		if err := layout.PutRegistry(re.Data, reg); err != nil {
			return err
		}
		return tx.Put(ctx, addr, re.Data)
	})
	g.recordAdmin("region-feed", addr, err)
	return reg, err
}

// Register opens a policy for r.Owner. Each owner has one create-once
// policy slot.
func (g *Gate) Register(ctx context.Context, r claim.Registration) (layout.PolicyRecord, error) {
	addr := router.PolicyAddress(g.program, r.Owner)
	rec, err := claim.Register(r, g.unix())
	if err == nil {
		err = g.update(ctx, false, func(tx *ledger.Tx) error {
			return tx.Create(ctx, ledger.Entry{
				Address: addr, Owner: g.program, Label: "policy:" + r.Owner.Short(), Data: rec.Encode(),
			})
		})
	}
	g.recordAdmin("register", addr, err)
	return rec, err
}

// Revise applies rev to owner's open policy.
func (g *Gate) Revise(ctx context.Context, owner model.Address, rev claim.Revision) (layout.PolicyRecord, error) {
	addr := router.PolicyAddress(g.program, owner)
	var rec layout.PolicyRecord
	err := g.update(ctx, false, func(tx *ledger.Tx) error {
		e, err := g.owned(ctx, tx, addr)
		if err != nil {
			return err
		}
		if rec, err = layout.DecodePolicyRecord(e.Data); err != nil {
			return err
		}
		if err := claim.Revise(&rec, owner, rev); err != nil {
			return err
		}
		if err := layout.PutPolicyRecord(e.Data, rec); err != nil {
			return err
		}
		return tx.Put(ctx, addr, e.Data)
	})
	g.recordAdmin("revise", addr, err)
	return rec, err
}

// RecordDisaster overwrites region's disaster slot.
func (g *Gate) RecordDisaster(ctx context.Context, caller model.Address, region model.Region, magnitude float64) (layout.DisasterEvent, error) {
	addr := router.DisasterAddress(g.program, region)
	var ev layout.DisasterEvent
	err := g.update(ctx, false, func(tx *ledger.Tx) error {
		ce, err := g.owned(ctx, tx, router.ConfigAddress(g.program))
		if err != nil {
			return err
		}
		cfg, err := layout.DecodeConfig(ce.Data)
		if err != nil {
			return err
		}
		if ev, err = claim.RecordDisaster(cfg, caller, region, magnitude, g.unix()); err != nil {
			return err
		}
		return tx.Upsert(ctx, ledger.Entry{
			Address: addr, Owner: g.program, Label: "disaster:" + region.String(), Data: ev.Encode(),
		})
	})
	g.recordAdmin("disaster", addr, err)
	return ev, err
}

// Disaster returns the recorded event for region.
func (g *Gate) Disaster(ctx context.Context, region model.Region) (layout.DisasterEvent, error) {
	var ev layout.DisasterEvent
	err := g.view(ctx, func(tx *ledger.Tx) error {
		e, err := g.owned(ctx, tx, router.DisasterAddress(g.program, region))
		if err != nil {
			return err
		}
		ev, err = layout.DecodeDisasterEvent(e.Data)
		return err
	})
	return ev, err
}

// InitPriceState creates the payment policy state owned by s.Authority.
func (g *Gate) InitPriceState(ctx context.Context, s layout.PriceState) (layout.PriceState, error) {
	addr := router.PriceStateAddress(g.program)
	var err error
	if s.Authority.IsZero() {
		err = model.Denied(model.UnauthorizedClaim, "price state needs an authority")
	} else {
		err = g.update(ctx, false, func(tx *ledger.Tx) error {
			return tx.Create(ctx, ledger.Entry{Address: addr, Owner: g.program, Label: "price-state", Data: s.Encode()})
		})
	}
	g.recordAdmin("init-price-state", addr, err)
	return s, err
}

// UpdatePriceState applies u on behalf of caller.
func (g *Gate) UpdatePriceState(ctx context.Context, caller model.Address, u price.Update) (layout.PriceState, error) {
	addr := router.PriceStateAddress(g.program)
	var st layout.PriceState
	err := g.update(ctx, false, func(tx *ledger.Tx) error {
		e, err := g.owned(ctx, tx, addr)
		if err != nil {
			return err
		}
		if st, err = layout.DecodePriceState(e.Data); err != nil {
			return err
		}
		if err := price.Apply(&st, caller, u); err != nil {
			return err
		}
		if err := layout.PutPriceState(e.Data, st); err != nil {
			return err
		}
		return tx.Put(ctx, addr, e.Data)
	})
	g.recordAdmin("update-price-state", addr, err)
	return st, err
}

// PublishFeed writes a feed result account owned by the oracle program.
// It stands in for the external oracle service.
func (g *Gate) PublishFeed(ctx context.Context, feed model.Address, label string, res layout.FeedResult) error {
	err := g.update(ctx, false, func(tx *ledger.Tx) error {
		return tx.Upsert(ctx, ledger.Entry{Address: feed, Owner: g.oracle, Label: "feed:" + label, Data: res.Encode()})
	})
	g.recordAdmin("publish-feed", feed, err)
	return err
}

// InitExtraAccountMetas writes the extra account list for transfers of mint
// under policy.
func (g *Gate) InitExtraAccountMetas(ctx context.Context, mint model.Address, policy model.Policy) ([]layout.AccountMeta, error) {
	addr := router.MetasAddress(g.program, mint)
	var metas []layout.AccountMeta
	err := g.update(ctx, false, func(tx *ledger.Tx) error {
		switch policy {
		case model.PolicyClaim:
			metas = router.ClaimMetas(g.program)
		case model.PolicyPayment:
			metas = router.PaymentMetas(g.program)
		default:
			return fmt.Errorf("unknown policy %q", policy)
		}
		data, err := layout.EncodeAccountMetas(metas)
		if err != nil {
			return err
		}
		return tx.Create(ctx, ledger.Entry{Address: addr, Owner: g.program, Label: "metas:" + mint.Short(), Data: data})
	})
	g.recordAdmin("init-extra-account-metas", addr, err)
	return metas, err
}

// owned loads addr and requires the program to own it.
func (g *Gate) owned(ctx context.Context, tx *ledger.Tx, addr model.Address) (ledger.Entry, error) {
	e, err := tx.Get(ctx, addr)
	if err != nil {
		return e, err
	}
	if e.Owner != g.program {
		return e, fmt.Errorf("account %s is not owned by the program", addr.Short())
	}
	return e, nil
}
