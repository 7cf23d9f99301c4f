package layout

import (
	"fmt"

	"github.com/ppiankov/oraclegate/internal/model"
)

// metaEntrySize is address + signer flag + writable flag.
const metaEntrySize = model.AddressSize + 2

// AccountMeta describes one extra account the transfer hook requires.
type AccountMeta struct {
	Address  model.Address `json:"address"`
	Signer   bool          `json:"signer"`
	Writable bool          `json:"writable"`
}

// EncodeAccountMetas builds the untagged extra-account list: a count byte
// followed by fixed-size entries.
func EncodeAccountMetas(metas []AccountMeta) ([]byte, error) {
	if len(metas) > 255 {
		return nil, fmt.Errorf("too many account metas: %d", len(metas))
	}
	buf := make([]byte, 1+len(metas)*metaEntrySize)
	buf[0] = byte(len(metas))
	off := 1
	for _, m := range metas {
		putAddr(buf, off, m.Address)
		putBool(buf, off+model.AddressSize, m.Signer)
		putBool(buf, off+model.AddressSize+1, m.Writable)
		off += metaEntrySize
	}
	return buf, nil
}

// DecodeAccountMetas parses an extra-account list.
func DecodeAccountMetas(data []byte) ([]AccountMeta, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("account metas: %w", ErrShortRecord)
	}
	n := int(data[0])
	if len(data) < 1+n*metaEntrySize {
		return nil, fmt.Errorf("account metas: %w: %d entries need %d bytes, have %d",
			ErrShortRecord, n, 1+n*metaEntrySize, len(data))
	}
	metas := make([]AccountMeta, n)
	off := 1
	for i := range metas {
		metas[i] = AccountMeta{
			Address:  addr(data, off),
			Signer:   boolean(data, off+model.AddressSize),
			Writable: boolean(data, off+model.AddressSize+1),
		}
		off += metaEntrySize
	}
	return metas, nil
}
