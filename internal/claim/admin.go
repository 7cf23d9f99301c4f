package claim

import (
	"fmt"

	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/oracle"
)

// NewConfig validates an administrator-supplied threshold and returns the
// config record. Floats stop here; the record stores hundredths.
func NewConfig(authority model.Address, threshold float64) (layout.Config, error) {
	if !oracle.MagnitudeInRange(threshold) {
		return layout.Config{}, model.Denied(model.InvalidOracleData,
			fmt.Sprintf("threshold %.2f outside [2.00, 9.00]", threshold))
	}
	return layout.Config{
		Threshold: oracle.HundredthsFromFloat(threshold),
		Authority: authority,
	}, nil
}

// UpdateThreshold replaces the threshold on behalf of caller.
func UpdateThreshold(cfg *layout.Config, caller model.Address, threshold float64) error {
	if caller != cfg.Authority {
		return model.Denied(model.UnauthorizedClaim, "only the config authority may change the threshold")
	}
	next, err := NewConfig(cfg.Authority, threshold)
	if err != nil {
		return err
	}
	cfg.Threshold = next.Threshold
	return nil
}

// RecordDisaster builds the verified disaster event for region. The caller
// must be the config authority.
func RecordDisaster(cfg layout.Config, caller model.Address, region model.Region, magnitude float64, now int64) (layout.DisasterEvent, error) {
	if caller != cfg.Authority {
		return layout.DisasterEvent{}, model.Denied(model.UnauthorizedClaim, "only the config authority may record disasters")
	}
	if !region.Valid() {
		return layout.DisasterEvent{}, model.Denied(model.RegionNotSupported, fmt.Sprintf("region tag %d", uint8(region)))
	}
	if !oracle.MagnitudeInRange(magnitude) {
		return layout.DisasterEvent{}, model.Denied(model.InvalidOracleData,
			fmt.Sprintf("magnitude %.2f outside [2.00, 9.00]", magnitude))
	}
	return layout.DisasterEvent{
		Region:    uint8(region),
		Magnitude: oracle.HundredthsFromFloat(magnitude),
		Timestamp: now,
		Verified:  true,
	}, nil
}
