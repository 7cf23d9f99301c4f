package model

import "fmt"

// Reason is one of the closed set of denial reasons. Unstructured messages
// are never used to report a denial.
type Reason string

const (
	InvalidFeed               Reason = "InvalidFeed"
	InvalidOracleData         Reason = "InvalidOracleData"
	MagnitudeBelowThreshold   Reason = "MagnitudeBelowThreshold"
	UserLocationNotRegistered Reason = "UserLocationNotRegistered"
	RegionNotSupported        Reason = "RegionNotSupported"
	InvalidInstruction        Reason = "InvalidInstruction"
	UnauthorizedClaim         Reason = "UnauthorizedClaim"
	InvalidUserData           Reason = "InvalidUserData"
	ClaimAlreadyProcessed     Reason = "ClaimAlreadyProcessed"
	PolicyExpired             Reason = "PolicyExpired"
	PolicyNotActive           Reason = "PolicyNotActive"
	ExcessClaimAmount         Reason = "ExcessClaimAmount"
	InsufficientPremium       Reason = "InsufficientPremium"
	PriceOutOfRange           Reason = "PriceOutOfRange"
	SwitchboardError          Reason = "SwitchboardError"
)

// reasons is ordered; a reason's index is its stable numeric code.
var reasons = []struct {
	reason  Reason
	message string
}{
	{InvalidFeed, "feed does not match the configured feed"},
	{InvalidOracleData, "oracle data unavailable or out of range"},
	{MagnitudeBelowThreshold, "magnitude is below threshold"},
	{UserLocationNotRegistered, "caller is not the policy owner"},
	{RegionNotSupported, "region not supported"},
	{InvalidInstruction, "invalid instruction"},
	{UnauthorizedClaim, "caller or claim not authorized"},
	{InvalidUserData, "invalid policy record data"},
	{ClaimAlreadyProcessed, "claim already processed"},
	{PolicyExpired, "policy expired"},
	{PolicyNotActive, "policy not active yet"},
	{ExcessClaimAmount, "claim amount exceeds insured amount"},
	{InsufficientPremium, "premium payment insufficient"},
	{PriceOutOfRange, "payment is outside of the allowed range"},
	{SwitchboardError, "feed account could not be read"},
}

// Reasons returns every reason in code order.
func Reasons() []Reason {
	out := make([]Reason, len(reasons))
	for i, r := range reasons {
		out[i] = r.reason
	}
	return out
}

// Code returns the stable numeric code, or false for an unknown reason.
func (r Reason) Code() (uint32, bool) {
	for i, e := range reasons {
		if e.reason == r {
			return uint32(i), true
		}
	}
	return 0, false
}

// Message returns the human-readable description.
func (r Reason) Message() string {
	for _, e := range reasons {
		if e.reason == r {
			return e.message
		}
	}
	return string(r)
}

// ReasonFromCode maps a numeric code back to its reason.
func ReasonFromCode(code uint32) (Reason, error) {
	if int(code) >= len(reasons) {
		return "", fmt.Errorf("unknown reason code %d", code)
	}
	return reasons[code].reason, nil
}

// ParseReason validates a reason name.
func ParseReason(s string) (Reason, error) {
	r := Reason(s)
	if _, ok := r.Code(); !ok {
		return "", fmt.Errorf("unknown reason %q", s)
	}
	return r, nil
}
