package router

import (
	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/model"
)

// Derivation seeds.
const (
	ConfigSeed     = "config"
	RegistrySeed   = "region_feeds"
	PolicySeed     = "user"
	DisasterSeed   = "disaster"
	PriceStateSeed = "state_v3"
	MetasSeed      = "extra-account-metas"
)

func ConfigAddress(program model.Address) model.Address {
	return model.DeriveAddress(program, []byte(ConfigSeed))
}

func RegistryAddress(program model.Address) model.Address {
	return model.DeriveAddress(program, []byte(RegistrySeed))
}

// PolicyAddress is the create-once slot holding owner's policy record.
func PolicyAddress(program, owner model.Address) model.Address {
	return model.DeriveAddress(program, []byte(PolicySeed), owner[:])
}

func DisasterAddress(program model.Address, region model.Region) model.Address {
	return model.DeriveAddress(program, []byte(DisasterSeed), []byte(region.String()))
}

func PriceStateAddress(program model.Address) model.Address {
	return model.DeriveAddress(program, []byte(PriceStateSeed))
}

// MetasAddress holds the extra account list for transfers of mint.
func MetasAddress(program, mint model.Address) model.Address {
	return model.DeriveAddress(program, []byte(MetasSeed), mint[:])
}

// ClaimMetas is the static part of the claim account list. The policy
// record and feed follow it and depend on the transfer owner.
func ClaimMetas(program model.Address) []layout.AccountMeta {
	return []layout.AccountMeta{
		{Address: ConfigAddress(program)},
		{Address: RegistryAddress(program)},
	}
}

// PaymentMetas is the stored part of the payment account list. The feeds
// follow it and are read from the price state at transfer time, so a feed
// rotation never leaves a stale list behind.
func PaymentMetas(program model.Address) []layout.AccountMeta {
	return []layout.AccountMeta{
		{Address: PriceStateAddress(program)},
	}
}
