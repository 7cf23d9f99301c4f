package oracle

import (
	"math"
	"testing"

	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/model"
)

func feedAccount(owner model.Address, res layout.FeedResult) model.Account {
	return model.Account{
		Address: model.NamedAddress("feed"),
		Owner:   owner,
		Data:    res.Encode(),
	}
}

func fresh(mantissa int64, scale uint32) layout.FeedResult {
	return layout.FeedResult{
		Mantissa:     mantissa,
		Scale:        scale,
		NumSuccess:   3,
		MinResponses: 2,
		UpdatedAt:    1000,
		MaxStaleness: 60,
	}
}

func TestToHundredths(t *testing.T) {
	tests := []struct {
		mantissa int64
		scale    uint32
		want     uint64
	}{
		{65, 1, 650},
		{6512, 3, 651},
		{7, 0, 700},
		{-5, 0, 0},
		{0, 4, 0},
		{1, 28, 0},
		{math.MaxInt64, 0, math.MaxUint64},
		{math.MaxInt64, 2, math.MaxInt64},
	}
	for _, tt := range tests {
		if got := ToHundredths(tt.mantissa, tt.scale); got != tt.want {
			t.Errorf("ToHundredths(%d, %d) = %d, want %d", tt.mantissa, tt.scale, got, tt.want)
		}
	}
}

func TestToUnits(t *testing.T) {
	if got := ToUnits(15099, 2); got != 150 {
		t.Errorf("ToUnits = %d, want 150", got)
	}
	if got := ToUnits(-1, 0); got != 0 {
		t.Errorf("negative ToUnits = %d, want 0", got)
	}
}

func TestReadValidity(t *testing.T) {
	r := Reader{}
	tests := []struct {
		name   string
		mutate func(*layout.FeedResult)
		now    int64
		want   model.Reason
	}{
		{"fresh", func(*layout.FeedResult) {}, 1030, ""},
		{"never updated", func(f *layout.FeedResult) { f.UpdatedAt = 0 }, 1030, model.InvalidOracleData},
		{"too few responses", func(f *layout.FeedResult) { f.NumSuccess = 1 }, 1030, model.InvalidOracleData},
		{"stale", func(f *layout.FeedResult) {}, 1061, model.InvalidOracleData},
		{"exactly at limit", func(f *layout.FeedResult) {}, 1060, ""},
		{"no staleness bound", func(f *layout.FeedResult) { f.MaxStaleness = 0 }, 99999, ""},
		{"scale too large", func(f *layout.FeedResult) { f.Scale = 29 }, 1030, model.InvalidOracleData},
		{"ancient round", func(f *layout.FeedResult) { f.UpdatedAt = math.MinInt64 + 1 }, 1_700_000_000, model.InvalidOracleData},
		{"ancient round, negative now", func(f *layout.FeedResult) { f.UpdatedAt = math.MinInt64 }, -1, model.InvalidOracleData},
		{"round from the future", func(f *layout.FeedResult) { f.UpdatedAt = math.MaxInt64 }, 1030, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := fresh(65, 1)
			tt.mutate(&res)
			_, err := r.Read(feedAccount(model.ZeroAddress, res), tt.now)
			got, _ := model.ReasonOf(err)
			if got != tt.want {
				t.Errorf("reason = %q, want %q (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestReadTruncated(t *testing.T) {
	acct := feedAccount(model.ZeroAddress, fresh(65, 1))
	acct.Data = acct.Data[:10]
	_, err := Reader{}.Read(acct, 1000)
	if r, _ := model.ReasonOf(err); r != model.InvalidOracleData {
		t.Fatalf("reason = %q, want InvalidOracleData", r)
	}
}

func TestReadOwnerCheck(t *testing.T) {
	oracleProgram := model.NamedAddress("oracle")
	r := Reader{OracleProgram: oracleProgram}

	_, err := r.Read(feedAccount(model.NamedAddress("other"), fresh(65, 1)), 1000)
	if reason, _ := model.ReasonOf(err); reason != model.SwitchboardError {
		t.Fatalf("reason = %q, want SwitchboardError", reason)
	}

	v, err := r.Hundredths(feedAccount(oracleProgram, fresh(65, 1)), 1000)
	if err != nil {
		t.Fatalf("Hundredths: %v", err)
	}
	if v != 650 {
		t.Errorf("Hundredths = %d, want 650", v)
	}
}

func TestHundredthsFromFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want uint64
	}{
		{7.0, 700},
		{2.5, 250},
		{9.0, 900},
		{-1, 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := HundredthsFromFloat(tt.in); got != tt.want {
			t.Errorf("HundredthsFromFloat(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if MagnitudeInRange(1.99) || MagnitudeInRange(9.01) || !MagnitudeInRange(2.0) {
		t.Error("MagnitudeInRange bounds wrong")
	}
	if s := FormatHundredths(705); s != "7.05" {
		t.Errorf("FormatHundredths = %q", s)
	}
}
