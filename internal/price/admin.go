package price

import (
	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/model"
)

// Update carries the optional fields of a price state update.
type Update struct {
	ProductFeed          *model.Address
	TokenUSDFeed         *model.Address
	ToleranceBasisPoints *uint64
	Active               *bool
}

// Apply updates s on behalf of caller, who must be the state authority.
func Apply(s *layout.PriceState, caller model.Address, u Update) error {
	if caller != s.Authority {
		return model.Denied(model.UnauthorizedClaim, "only the price authority may update the price state")
	}
	if u.ProductFeed != nil {
		s.ProductFeed = *u.ProductFeed
	}
	if u.TokenUSDFeed != nil {
		s.TokenUSDFeed = *u.TokenUSDFeed
	}
	if u.ToleranceBasisPoints != nil {
		s.ToleranceBasisPoints = *u.ToleranceBasisPoints
	}
	if u.Active != nil {
		s.Active = *u.Active
	}
	return nil
}
