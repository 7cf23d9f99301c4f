package audit

import "github.com/ppiankov/oraclegate/internal/model"

// Entry types.
const (
	TypeAuthorize = "authorize"
	TypeAdmin     = "admin"
)

// Action describes the operation an entry records.
type Action struct {
	// Op is the operation name, e.g. "claim", "execute", "region-feed".
	Op     string `json:"op"`
	Policy string `json:"policy,omitempty"`
	Path   string `json:"path,omitempty"`
	// Subject is the account the operation is about, hex encoded.
	Subject string `json:"subject,omitempty"`
	Amount  uint64 `json:"amount,omitempty"`
}

// AuditEntry is one line in the hash-chained JSONL audit log.
// All fields are structs (no map[string]any) so json.Marshal field order
// is fixed and hashes are reproducible.
type AuditEntry struct {
	Timestamp  string `json:"ts"`
	ID         string `json:"id"`
	TraceID    string `json:"trace_id"`
	Type       string `json:"type"`
	Action     Action `json:"action"`
	Decision   string `json:"decision"`
	Reason     string `json:"reason,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Mutated    bool   `json:"mutated,omitempty"`
	ConfigHash string `json:"config_hash,omitempty"`
	PrevHash   string `json:"prev_hash"`
}

// FromVerdict builds the entry for one authorization decision.
func FromVerdict(op string, v model.Verdict, subject model.Address, amount uint64) AuditEntry {
	return AuditEntry{
		Type: TypeAuthorize,
		Action: Action{
			Op:      op,
			Policy:  string(v.Policy),
			Path:    string(v.Path),
			Subject: subject.String(),
			Amount:  amount,
		},
		Decision: string(v.Decision),
		Reason:   string(v.Reason),
		Detail:   v.Detail,
		Mutated:  v.Mutated,
	}
}
