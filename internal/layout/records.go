package layout

import "github.com/ppiankov/oraclegate/internal/model"

// Config offsets.
const (
	ConfigThresholdOffset = 0
	ConfigAuthorityOffset = 8
	ConfigSize            = 40
)

// Config is the insurance program configuration.
type Config struct {
	// Threshold is the minimum magnitude in hundredths (700 = 7.00).
	Threshold uint64
	Authority model.Address
}

// DecodeConfig reads a Config from a tagged buffer.
func DecodeConfig(data []byte) (Config, error) {
	b, err := body(data, ConfigSize, "config")
	if err != nil {
		return Config{}, err
	}
	return Config{
		Threshold: u64(b, ConfigThresholdOffset),
		Authority: addr(b, ConfigAuthorityOffset),
	}, nil
}

// PutConfig writes c into an existing tagged buffer in place.
func PutConfig(data []byte, c Config) error {
	b, err := body(data, ConfigSize, "config")
	if err != nil {
		return err
	}
	putU64(b, ConfigThresholdOffset, c.Threshold)
	putAddr(b, ConfigAuthorityOffset, c.Authority)
	return nil
}

// Encode returns a freshly tagged Config record.
func (c Config) Encode() []byte {
	buf := alloc(ConfigTag, ConfigSize)
	_ = PutConfig(buf, c)
	return buf
}

// PolicyRecord offsets.
const (
	PolicyOwnerOffset   = 0
	PolicyRegionOffset  = 32
	PolicyClaimedOffset = 33
	PolicyInsuredOffset = 34
	PolicyPremiumOffset = 42
	PolicyStartOffset   = 50
	PolicyEndOffset     = 58
	PolicyRecordSize    = 66
)

// PolicyRecord is one subject's insurance coverage.
type PolicyRecord struct {
	Owner model.Address
	// Region is the raw wire tag; it is resolved only at claim time.
	Region        uint8
	Claimed       bool
	InsuredAmount uint64
	PremiumPaid   uint64
	StartTime     int64
	EndTime       int64
}

// DecodePolicyRecord reads a PolicyRecord from a tagged buffer.
func DecodePolicyRecord(data []byte) (PolicyRecord, error) {
	b, err := body(data, PolicyRecordSize, "policy record")
	if err != nil {
		return PolicyRecord{}, err
	}
	return PolicyRecord{
		Owner:         addr(b, PolicyOwnerOffset),
		Region:        b[PolicyRegionOffset],
		Claimed:       boolean(b, PolicyClaimedOffset),
		InsuredAmount: u64(b, PolicyInsuredOffset),
		PremiumPaid:   u64(b, PolicyPremiumOffset),
		StartTime:     i64(b, PolicyStartOffset),
		EndTime:       i64(b, PolicyEndOffset),
	}, nil
}

// PutPolicyRecord writes p into an existing tagged buffer in place. Bytes
// outside the layout are left untouched.
func PutPolicyRecord(data []byte, p PolicyRecord) error {
	b, err := body(data, PolicyRecordSize, "policy record")
	if err != nil {
		return err
	}
	putAddr(b, PolicyOwnerOffset, p.Owner)
	b[PolicyRegionOffset] = p.Region
	putBool(b, PolicyClaimedOffset, p.Claimed)
	putU64(b, PolicyInsuredOffset, p.InsuredAmount)
	putU64(b, PolicyPremiumOffset, p.PremiumPaid)
	putI64(b, PolicyStartOffset, p.StartTime)
	putI64(b, PolicyEndOffset, p.EndTime)
	return nil
}

// Encode returns a freshly tagged PolicyRecord.
func (p PolicyRecord) Encode() []byte {
	buf := alloc(PolicyRecordTag, PolicyRecordSize)
	_ = PutPolicyRecord(buf, p)
	return buf
}

// RegistrySize is five 32-byte slots in region order.
const RegistrySize = model.RegionCount * model.AddressSize

// Registry holds the authoritative feed address per region.
type Registry [model.RegionCount]model.Address

// DecodeRegistry reads a Registry from a tagged buffer.
func DecodeRegistry(data []byte) (Registry, error) {
	var r Registry
	b, err := body(data, RegistrySize, "region registry")
	if err != nil {
		return r, err
	}
	for i := range r {
		r[i] = addr(b, i*model.AddressSize)
	}
	return r, nil
}

// PutRegistry writes r into an existing tagged buffer in place.
func PutRegistry(data []byte, r Registry) error {
	b, err := body(data, RegistrySize, "region registry")
	if err != nil {
		return err
	}
	for i, a := range r {
		putAddr(b, i*model.AddressSize, a)
	}
	return nil
}

// Encode returns a freshly tagged Registry.
func (r Registry) Encode() []byte {
	buf := alloc(RegistryTag, RegistrySize)
	_ = PutRegistry(buf, r)
	return buf
}

// DisasterEvent offsets.
const (
	DisasterRegionOffset    = 0
	DisasterMagnitudeOffset = 1
	DisasterTimeOffset      = 9
	DisasterVerifiedOffset  = 17
	DisasterEventSize       = 18
)

// DisasterEvent is the authority-recorded event for one region.
type DisasterEvent struct {
	Region    uint8
	Magnitude uint64
	Timestamp int64
	Verified  bool
}

// DecodeDisasterEvent reads a DisasterEvent from a tagged buffer.
func DecodeDisasterEvent(data []byte) (DisasterEvent, error) {
	b, err := body(data, DisasterEventSize, "disaster event")
	if err != nil {
		return DisasterEvent{}, err
	}
	return DisasterEvent{
		Region:    b[DisasterRegionOffset],
		Magnitude: u64(b, DisasterMagnitudeOffset),
		Timestamp: i64(b, DisasterTimeOffset),
		Verified:  boolean(b, DisasterVerifiedOffset),
	}, nil
}

// PutDisasterEvent writes e into an existing tagged buffer in place.
func PutDisasterEvent(data []byte, e DisasterEvent) error {
	b, err := body(data, DisasterEventSize, "disaster event")
	if err != nil {
		return err
	}
	b[DisasterRegionOffset] = e.Region
	putU64(b, DisasterMagnitudeOffset, e.Magnitude)
	putI64(b, DisasterTimeOffset, e.Timestamp)
	putBool(b, DisasterVerifiedOffset, e.Verified)
	return nil
}

// Encode returns a freshly tagged DisasterEvent.
func (e DisasterEvent) Encode() []byte {
	buf := alloc(DisasterTag, DisasterEventSize)
	_ = PutDisasterEvent(buf, e)
	return buf
}

// PriceValidationState offsets. Authority follows the documented fields.
const (
	PriceProductFeedOffset  = 0
	PriceTokenUSDFeedOffset = 32
	PriceToleranceOffset    = 64
	PriceActiveOffset       = 72
	PriceAuthorityOffset    = 73
	PriceStateSize          = 105
)

// PriceState configures the payment policy.
type PriceState struct {
	ProductFeed          model.Address
	TokenUSDFeed         model.Address
	ToleranceBasisPoints uint64
	Active               bool
	Authority            model.Address
}

// DecodePriceState reads a PriceState from a tagged buffer.
func DecodePriceState(data []byte) (PriceState, error) {
	b, err := body(data, PriceStateSize, "price state")
	if err != nil {
		return PriceState{}, err
	}
	return PriceState{
		ProductFeed:          addr(b, PriceProductFeedOffset),
		TokenUSDFeed:         addr(b, PriceTokenUSDFeedOffset),
		ToleranceBasisPoints: u64(b, PriceToleranceOffset),
		Active:               boolean(b, PriceActiveOffset),
		Authority:            addr(b, PriceAuthorityOffset),
	}, nil
}

// PutPriceState writes s into an existing tagged buffer in place.
func PutPriceState(data []byte, s PriceState) error {
	b, err := body(data, PriceStateSize, "price state")
	if err != nil {
		return err
	}
	putAddr(b, PriceProductFeedOffset, s.ProductFeed)
	putAddr(b, PriceTokenUSDFeedOffset, s.TokenUSDFeed)
	putU64(b, PriceToleranceOffset, s.ToleranceBasisPoints)
	putBool(b, PriceActiveOffset, s.Active)
	putAddr(b, PriceAuthorityOffset, s.Authority)
	return nil
}

// Encode returns a freshly tagged PriceState.
func (s PriceState) Encode() []byte {
	buf := alloc(PriceStateTag, PriceStateSize)
	_ = PutPriceState(buf, s)
	return buf
}
