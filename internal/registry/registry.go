// Package registry resolves a region tag to its authoritative feed address.
package registry

import (
	"fmt"

	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/model"
)

// Lookup returns the feed registered for region. ok is false when the
// region is unknown or its slot is unset.
func Lookup(r layout.Registry, region model.Region) (model.Address, bool) {
	if !region.Valid() {
		return model.ZeroAddress, false
	}
	feed := r[region]
	return feed, !feed.IsZero()
}

// Verify checks that presented is the feed registered for region. An unset
// slot never matches, even a zero presented address.
func Verify(r layout.Registry, region model.Region, presented model.Address) error {
	feed, ok := Lookup(r, region)
	if !ok {
		return model.Denied(model.InvalidFeed, fmt.Sprintf("no feed registered for %s", region))
	}
	if feed != presented {
		return model.Denied(model.InvalidFeed,
			fmt.Sprintf("feed %s is not the %s feed", presented.Short(), region))
	}
	return nil
}

// SetSlot assigns feed to region on behalf of caller, who must be the
// configured authority.
func SetSlot(r *layout.Registry, cfg layout.Config, caller model.Address, region model.Region, feed model.Address) error {
	if caller != cfg.Authority {
		return model.Denied(model.UnauthorizedClaim, "only the config authority may set region feeds")
	}
	if !region.Valid() {
		return model.Denied(model.RegionNotSupported, fmt.Sprintf("region tag %d", uint8(region)))
	}
	r[region] = feed
	return nil
}
