package model

// Account is one resolved account handle as the host ledger presents it to
// an invocation.
type Account struct {
	Address Address
	// Owner is the program that owns the account data.
	Owner    Address
	Signer   bool
	Writable bool
	Data     []byte
}
