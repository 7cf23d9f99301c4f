package router

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/oraclegate/internal/claim"
	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/price"
)

var (
	program   = model.NamedAddress("program")
	authority = model.NamedAddress("authority")
	owner     = model.NamedAddress("alice")
	feedC     = model.NamedAddress("feed-midwest")
	mint      = model.NamedAddress("mint")
)

type claimCase struct {
	cfg    layout.Config
	reg    layout.Registry
	policy layout.PolicyRecord
	feed   model.Account
	caller model.Address
	amount uint64
	now    int64
}

func baseClaim() claimCase {
	var reg layout.Registry
	reg[model.Midwest] = feedC
	return claimCase{
		cfg: layout.Config{Threshold: 600, Authority: authority},
		reg: reg,
		policy: layout.PolicyRecord{
			Owner: owner, Region: uint8(model.Midwest), InsuredAmount: 1000,
			PremiumPaid: 10, StartTime: 100, EndTime: 200,
		},
		feed: model.Account{
			Address: feedC,
			Data:    layout.FeedResult{Mantissa: 650, Scale: 2, UpdatedAt: 120}.Encode(),
		},
		caller: owner,
		amount: 500,
		now:    150,
	}
}

// accounts lays the case out positionally the way a transfer presents it.
func (c claimCase) accounts() []model.Account {
	return []model.Account{
		{Address: model.NamedAddress("source")},
		{Address: mint},
		{Address: model.NamedAddress("destination")},
		{Address: c.caller},
		{Address: MetasAddress(program, mint), Owner: program},
		{Address: ConfigAddress(program), Owner: program, Data: c.cfg.Encode()},
		{Address: RegistryAddress(program), Owner: program, Data: c.reg.Encode()},
		{Address: PolicyAddress(program, c.policy.Owner), Owner: program, Writable: true, Data: c.policy.Encode()},
		c.feed,
	}
}

// structured runs the typed path and returns the verdict and the record
// bytes the host would persist.
func (c claimCase) structured(r *Router) (model.Verdict, []byte, error) {
	rec := c.policy
	v, err := r.AuthorizeClaim(claim.Input{
		Config: c.cfg, Registry: c.reg, Policy: &rec, Feed: c.feed,
		Caller: c.caller, Amount: c.amount, Now: c.now,
	})
	return v, rec.Encode(), err
}

func TestExecuteClaimAllows(t *testing.T) {
	r := New(program, model.ZeroAddress)
	c := baseClaim()
	accts := c.accounts()

	v, err := r.ExecuteClaim(EncodeExecute(c.amount), accts, c.now)
	require.NoError(t, err)
	assert.True(t, v.Allowed())
	assert.Equal(t, model.PathRaw, v.Path)

	rec, err := layout.DecodePolicyRecord(accts[PolicyIndex].Data)
	require.NoError(t, err)
	assert.True(t, rec.Claimed)

	sv, bytesOut, err := c.structured(r)
	require.NoError(t, err)
	assert.Equal(t, v.Decision, sv.Decision)
	assert.Equal(t, accts[PolicyIndex].Data, bytesOut)

	v, err = r.ExecuteClaim(EncodeExecute(c.amount), accts, c.now)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimAlreadyProcessed, v.Reason)
}

func TestExecuteClaimBelowThreshold(t *testing.T) {
	r := New(program, model.ZeroAddress)
	c := baseClaim()
	c.cfg.Threshold = 700
	accts := c.accounts()
	before := bytes.Clone(accts[PolicyIndex].Data)

	v, err := r.ExecuteClaim(EncodeExecute(c.amount), accts, c.now)
	require.NoError(t, err)
	assert.Equal(t, model.MagnitudeBelowThreshold, v.Reason)
	assert.Equal(t, before, accts[PolicyIndex].Data)
}

func TestExecuteClaimMalformed(t *testing.T) {
	r := New(program, model.ZeroAddress)
	c := baseClaim()
	ix := EncodeExecute(c.amount)

	tests := []struct {
		name  string
		data  []byte
		setup func([]model.Account) []model.Account
		want  model.Reason
	}{
		{"empty instruction", nil, nil, model.InvalidInstruction},
		{"wrong opcode", append([]byte{1, 2, 3, 4, 5, 6, 7, 8}, ix[8:]...), nil, model.InvalidInstruction},
		{"missing amount", ix[:12], nil, model.InvalidInstruction},
		{"too few accounts", ix, func(a []model.Account) []model.Account { return a[:8] }, model.InvalidInstruction},
		{"foreign config", ix, func(a []model.Account) []model.Account {
			a[ConfigIndex].Owner = model.NamedAddress("other")
			return a
		}, model.InvalidInstruction},
		{"truncated config", ix, func(a []model.Account) []model.Account {
			a[ConfigIndex].Data = a[ConfigIndex].Data[:20]
			return a
		}, model.InvalidInstruction},
		{"truncated registry", ix, func(a []model.Account) []model.Account {
			a[RegistryIndex].Data = a[RegistryIndex].Data[:100]
			return a
		}, model.InvalidInstruction},
		{"foreign policy", ix, func(a []model.Account) []model.Account {
			a[PolicyIndex].Owner = model.NamedAddress("other")
			return a
		}, model.InvalidUserData},
		{"read-only policy", ix, func(a []model.Account) []model.Account {
			a[PolicyIndex].Writable = false
			return a
		}, model.InvalidInstruction},
		{"truncated policy", ix, func(a []model.Account) []model.Account {
			a[PolicyIndex].Data = a[PolicyIndex].Data[:40]
			return a
		}, model.InvalidUserData},
		{"config at wrong address", ix, func(a []model.Account) []model.Account {
			a[ConfigIndex].Address = model.NamedAddress("decoy-config")
			return a
		}, model.InvalidInstruction},
		{"registry at wrong address", ix, func(a []model.Account) []model.Account {
			a[RegistryIndex].Address = ConfigAddress(program)
			return a
		}, model.InvalidInstruction},
		{"policy in another owner's slot", ix, func(a []model.Account) []model.Account {
			a[PolicyIndex].Address = PolicyAddress(program, authority)
			return a
		}, model.InvalidUserData},
		{"policy at arbitrary address", ix, func(a []model.Account) []model.Account {
			a[PolicyIndex].Address = model.NamedAddress("decoy-policy")
			return a
		}, model.InvalidUserData},
		{"feed not in registry", ix, func(a []model.Account) []model.Account {
			a[FeedIndex].Address = model.NamedAddress("feed-y")
			return a
		}, model.InvalidFeed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accts := c.accounts()
			if tt.setup != nil {
				accts = tt.setup(accts)
			}
			v, err := r.ExecuteClaim(tt.data, accts, c.now)
			require.NoError(t, err)
			assert.Equal(t, model.Deny, v.Decision)
			assert.Equal(t, tt.want, v.Reason)
		})
	}
}

func TestPathReasonGranularity(t *testing.T) {
	r := New(program, model.ZeroAddress)

	c := baseClaim()
	c.now = 50
	sv, _, err := c.structured(r)
	require.NoError(t, err)
	rv, err := r.ExecuteClaim(EncodeExecute(c.amount), c.accounts(), c.now)
	require.NoError(t, err)
	assert.Equal(t, model.UnauthorizedClaim, sv.Reason)
	assert.Equal(t, model.PolicyNotActive, rv.Reason)

	c = baseClaim()
	c.amount = 1001
	sv, _, err = c.structured(r)
	require.NoError(t, err)
	rv, err = r.ExecuteClaim(EncodeExecute(c.amount), c.accounts(), c.now)
	require.NoError(t, err)
	assert.Equal(t, model.UnauthorizedClaim, sv.Reason)
	assert.Equal(t, model.ExcessClaimAmount, rv.Reason)
}

func paymentAccounts(st layout.PriceState, product, token model.Account) []model.Account {
	return []model.Account{
		{Address: model.NamedAddress("source")},
		{Address: mint},
		{Address: model.NamedAddress("destination")},
		{Address: owner},
		{Address: MetasAddress(program, mint), Owner: program},
		{Address: PriceStateAddress(program), Owner: program, Data: st.Encode()},
		product,
		token,
	}
}

func TestExecutePayment(t *testing.T) {
	r := New(program, model.ZeroAddress)
	productAddr := model.NamedAddress("product")
	tokenAddr := model.NamedAddress("token")
	st := layout.PriceState{
		ProductFeed: productAddr, TokenUSDFeed: tokenAddr,
		ToleranceBasisPoints: 2000, Active: true, Authority: authority,
	}
	product := model.Account{Address: productAddr, Data: layout.FeedResult{Mantissa: 1000, UpdatedAt: 1}.Encode()}
	token := model.Account{Address: tokenAddr, Data: layout.FeedResult{Mantissa: 1, UpdatedAt: 1}.Encode()}
	accts := paymentAccounts(st, product, token)

	for _, tt := range []struct {
		amount uint64
		want   model.Decision
	}{
		{900_000_000_000, model.Allow},
		{700_000_000_000, model.Deny},
	} {
		rv, err := r.ExecutePayment(EncodeExecute(tt.amount), accts, 10)
		require.NoError(t, err)
		sv, err := r.AuthorizePayment(price.Input{
			State: st, ProductFeed: product, TokenUSDFeed: token, Amount: tt.amount, Now: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, tt.want, rv.Decision)
		assert.Equal(t, rv.Decision, sv.Decision)
		assert.Equal(t, rv.Reason, sv.Reason)
	}

	v, err := r.ExecutePayment(EncodeExecute(1), accts[:7], 10)
	require.NoError(t, err)
	assert.Equal(t, model.InvalidInstruction, v.Reason)

	moved := paymentAccounts(st, product, token)
	moved[PriceStateIndex].Address = model.NamedAddress("decoy-state")
	v, err = r.ExecutePayment(EncodeExecute(900_000_000_000), moved, 10)
	require.NoError(t, err)
	assert.Equal(t, model.InvalidInstruction, v.Reason, "price state must sit at its derived address")
}

func TestExecuteDispatch(t *testing.T) {
	r := New(program, model.ZeroAddress)
	c := baseClaim()
	v, err := r.Execute(model.PolicyClaim, EncodeExecute(c.amount), c.accounts(), c.now)
	require.NoError(t, err)
	assert.Equal(t, model.PolicyClaim, v.Policy)

	_, err = r.Execute("bogus", nil, nil, 0)
	assert.Error(t, err)
}

func TestParseExecute(t *testing.T) {
	amount, err := ParseExecute(append(EncodeExecute(42), 0xff))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), amount)
	assert.Equal(t, []byte{105, 37, 101, 197, 75, 251, 102, 26}, ExecuteOpcode[:])
}

func TestAddressesAreDistinct(t *testing.T) {
	seen := map[model.Address]string{}
	for name, a := range map[string]model.Address{
		"config":   ConfigAddress(program),
		"registry": RegistryAddress(program),
		"policy":   PolicyAddress(program, owner),
		"disaster": DisasterAddress(program, model.West),
		"state":    PriceStateAddress(program),
		"metas":    MetasAddress(program, mint),
	} {
		if prev, ok := seen[a]; ok {
			t.Fatalf("%s collides with %s", name, prev)
		}
		seen[a] = name
	}
	assert.NotEqual(t, PolicyAddress(program, owner), PolicyAddress(program, authority))
	assert.NotEqual(t, ConfigAddress(program), ConfigAddress(authority))
}
