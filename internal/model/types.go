package model

import (
	"errors"
	"fmt"
)

// Decision is the authorization outcome.
type Decision string

const (
	Allow Decision = "allow"
	Deny  Decision = "deny"
)

// Path identifies which entry point produced a verdict.
type Path string

const (
	// PathStructured is the typed entry point: records arrive pre-resolved.
	PathStructured Path = "structured"
	// PathRaw is the fallback entry point: opaque instruction bytes plus a
	// positional account list.
	PathRaw Path = "raw"
)

// Policy names the decision policy that produced a verdict.
type Policy string

const (
	PolicyClaim   Policy = "claim"
	PolicyPayment Policy = "payment"
)

// ErrArithmeticOverflow aborts an invocation when a value cannot be
// saturated safely. It is the only fatal outcome of a decision.
var ErrArithmeticOverflow = errors.New("arithmetic overflow")

// Verdict is the output of one authorization decision.
type Verdict struct {
	Decision Decision `json:"decision"`
	Reason   Reason   `json:"reason,omitempty"`
	Policy   Policy   `json:"policy"`
	Path     Path     `json:"path"`
	Detail   string   `json:"detail,omitempty"`
	// Mutated reports that the single authorized write was applied.
	Mutated bool `json:"mutated,omitempty"`
}

// Allowed reports whether the verdict authorizes the transfer.
func (v Verdict) Allowed() bool {
	return v.Decision == Allow
}

// Err returns the verdict as an error: nil for allow, *DenialError for deny.
func (v Verdict) Err() error {
	if v.Decision == Allow {
		return nil
	}
	return &DenialError{Reason: v.Reason, Detail: v.Detail}
}

// Permit builds an allow verdict.
func Permit(policy Policy, path Path) Verdict {
	return Verdict{Decision: Allow, Policy: policy, Path: path}
}

// Refuse builds a deny verdict. Fail-closed: an empty reason is never
// returned for a denial.
func Refuse(policy Policy, path Path, reason Reason) Verdict {
	if reason == "" {
		reason = InvalidInstruction
	}
	return Verdict{Decision: Deny, Reason: reason, Policy: policy, Path: path}
}

// Judge converts the outcome of a decision into a verdict. A nil err
// permits, a denial refuses with its reason and detail, and any other error
// is fatal and returned unchanged.
func Judge(policy Policy, path Path, err error) (Verdict, error) {
	if err == nil {
		return Permit(policy, path), nil
	}
	var de *DenialError
	if errors.As(err, &de) {
		v := Refuse(policy, path, de.Reason)
		v.Detail = de.Detail
		return v, nil
	}
	return Verdict{}, err
}

// DenialError is returned by operations that refuse a request with one of
// the closed reasons.
type DenialError struct {
	Reason Reason
	Detail string
}

func (e *DenialError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("denied (%s): %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("denied (%s): %s", e.Reason, e.Reason.Message())
}

// Denied returns a *DenialError for reason.
func Denied(reason Reason, detail string) error {
	return &DenialError{Reason: reason, Detail: detail}
}

// ReasonOf extracts the denial reason from err. The second return is false
// when err is nil or not a denial.
func ReasonOf(err error) (Reason, bool) {
	var de *DenialError
	if errors.As(err, &de) {
		return de.Reason, true
	}
	return "", false
}
