package layout

import "testing"

func FuzzDecodePolicyRecord(f *testing.F) {
	f.Add(PolicyRecord{InsuredAmount: 100, StartTime: 1, EndTime: 2}.Encode())
	f.Add([]byte{})
	f.Add(make([]byte, TagSize+PolicyRecordSize-1))

	f.Fuzz(func(t *testing.T, data []byte) {
		p, err := DecodePolicyRecord(data)
		if err != nil {
			return
		}
		// Re-encoding into a copy must not change anything but a
		// non-canonical claimed byte.
		cp := append([]byte(nil), data...)
		if err := PutPolicyRecord(cp, p); err != nil {
			t.Fatalf("put after successful decode: %v", err)
		}
		for i := range cp {
			if i == TagSize+PolicyClaimedOffset {
				continue
			}
			if cp[i] != data[i] {
				t.Fatalf("byte %d changed on re-encode", i)
			}
		}
	})
}

func FuzzDecodeAccountMetas(f *testing.F) {
	f.Add([]byte{0})
	f.Add([]byte{3, 1, 2})
	f.Fuzz(func(t *testing.T, data []byte) {
		// Must not panic.
		DecodeAccountMetas(data)
	})
}
