package scenario

import "gopkg.in/yaml.v3"

// FeedSpec describes a feed result account.
type FeedSpec struct {
	Mantissa     int64  `yaml:"mantissa"`
	Scale        uint32 `yaml:"scale"`
	NumSuccess   uint32 `yaml:"num_success"`
	MinResponses uint32 `yaml:"min_responses"`
	UpdatedAt    int64  `yaml:"updated_at"`
	MaxStaleness int64  `yaml:"max_staleness"`
	// Owner defaults to the scenario oracle program.
	Owner string `yaml:"owner,omitempty"`
}

// PolicySpec describes a policy record. Region is a region name or a raw
// wire tag, so unsupported tags can be exercised.
type PolicySpec struct {
	Owner         string `yaml:"owner"`
	Region        string `yaml:"region"`
	Claimed       bool   `yaml:"claimed"`
	InsuredAmount uint64 `yaml:"insured_amount"`
	Premium       uint64 `yaml:"premium"`
	StartTime     int64  `yaml:"start_time"`
	EndTime       int64  `yaml:"end_time"`
}

// PriceSpec describes the payment policy state and its two feeds.
type PriceSpec struct {
	Product     FeedSpec `yaml:"product"`
	TokenUSD    FeedSpec `yaml:"token_usd"`
	ToleranceBP uint64   `yaml:"tolerance_bp"`
	Active      bool     `yaml:"active"`
	// SingleFeed leaves the token/USD feed unset.
	SingleFeed bool `yaml:"single_feed"`
}

// Case is one fully resolved test case: the scenario defaults with the
// case's own fields decoded on top.
type Case struct {
	Name string `yaml:"name"`
	// Threshold is in hundredths (700 = 7.00).
	Threshold uint64 `yaml:"threshold"`
	// Registry maps region names to feed names or hex addresses.
	Registry map[string]string `yaml:"registry"`
	Policy   PolicySpec        `yaml:"policy"`
	Feed     FeedSpec          `yaml:"feed"`
	// FeedAddress is the feed the caller presents. Empty presents the
	// registry slot for the policy region.
	FeedAddress string    `yaml:"feed_address"`
	Caller      string    `yaml:"caller"`
	Price       PriceSpec `yaml:"price"`
	Amount      uint64    `yaml:"amount"`
	Now         int64     `yaml:"now"`
	Expect      string    `yaml:"expect"`
	// Reasons lists the denial reasons either path may report.
	Reasons []string `yaml:"reasons"`
}

// Scenario is a named collection of authorization cases for one policy.
// Defaults and cases stay as nodes so each case decodes over a fresh copy
// of the defaults.
type Scenario struct {
	Name     string      `yaml:"name"`
	Policy   string      `yaml:"policy"`
	Defaults yaml.Node   `yaml:"defaults"`
	Cases    []yaml.Node `yaml:"cases"`
}

// PathOutcome is what one entry point returned.
type PathOutcome struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

// CaseResult is the outcome of evaluating one case on both paths.
type CaseResult struct {
	Index      int         `json:"index"`
	Name       string      `json:"name"`
	Passed     bool        `json:"passed"`
	Expected   string      `json:"expected"`
	Structured PathOutcome `json:"structured"`
	Raw        PathOutcome `json:"raw"`
	Failure    string      `json:"failure,omitempty"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
