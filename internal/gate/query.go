package gate

import (
	"context"
	"errors"

	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/ledger"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/router"
)

// Policy states as seen at a point in time. Only claimed is stored.
const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusClaimed = "claimed"
)

// PolicyView is a policy record with its evaluated status.
type PolicyView struct {
	Address model.Address       `json:"address"`
	Record  layout.PolicyRecord `json:"record"`
	Region  string              `json:"region"`
	Status  string              `json:"status"`
}

// StatusAt evaluates p at now.
func StatusAt(p layout.PolicyRecord, now int64) string {
	switch {
	case p.Claimed:
		return StatusClaimed
	case now < p.StartTime:
		return StatusPending
	case now > p.EndTime:
		return StatusExpired
	}
	return StatusActive
}

// Policy returns owner's policy and its current status.
func (g *Gate) Policy(ctx context.Context, owner model.Address) (PolicyView, error) {
	view := PolicyView{Address: router.PolicyAddress(g.program, owner)}
	err := g.view(ctx, func(tx *ledger.Tx) error {
		e, err := g.owned(ctx, tx, view.Address)
		if err != nil {
			return err
		}
		view.Record, err = layout.DecodePolicyRecord(e.Data)
		return err
	})
	if err != nil {
		return view, err
	}
	view.Region = "unsupported"
	if r, ok := model.RegionFromByte(view.Record.Region); ok {
		view.Region = r.String()
	}
	view.Status = StatusAt(view.Record, g.unix())
	return view, nil
}

// Config returns the program config.
func (g *Gate) Config(ctx context.Context) (layout.Config, error) {
	var cfg layout.Config
	err := g.view(ctx, func(tx *ledger.Tx) error {
		e, err := g.owned(ctx, tx, router.ConfigAddress(g.program))
		if err != nil {
			return err
		}
		cfg, err = layout.DecodeConfig(e.Data)
		return err
	})
	return cfg, err
}

// Registry returns the region feed registry. A registry that was never
// written has every slot unset.
func (g *Gate) Registry(ctx context.Context) (layout.Registry, error) {
	var reg layout.Registry
	err := g.view(ctx, func(tx *ledger.Tx) error {
		e, err := g.owned(ctx, tx, router.RegistryAddress(g.program))
		if errors.Is(err, ledger.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		reg, err = layout.DecodeRegistry(e.Data)
		return err
	})
	return reg, err
}

// PriceState returns the payment policy state.
func (g *Gate) PriceState(ctx context.Context) (layout.PriceState, error) {
	var st layout.PriceState
	err := g.view(ctx, func(tx *ledger.Tx) error {
		e, err := g.owned(ctx, tx, router.PriceStateAddress(g.program))
		if err != nil {
			return err
		}
		st, err = layout.DecodePriceState(e.Data)
		return err
	})
	return st, err
}

// Accounts lists every program-owned account.
func (g *Gate) Accounts(ctx context.Context) ([]ledger.Entry, error) {
	var out []ledger.Entry
	err := g.view(ctx, func(tx *ledger.Tx) error {
		var err error
		out, err = tx.List(ctx, g.program)
		return err
	})
	return out, err
}
