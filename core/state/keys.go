package state

import (
	"encoding/binary"

	"leasehub/native/assets"
)

var (
	rentalRecordPrefix  = []byte("rental/record/")
	rentalNextIDKey     = []byte("rental/next-id")
	rentalListingPrefix = []byte("rental/listing/")
	rentalAccountPrefix = []byte("rental/account/")
	rentalFeePolicyKey  = []byte("rental/fee-policy")
	assetHolderPrefix   = []byte("assets/holder/")
	bankBalancePrefix   = []byte("bank/balance/")
)

func rentalRecordKey(id uint64) []byte {
	buf := make([]byte, len(rentalRecordPrefix)+8)
	copy(buf, rentalRecordPrefix)
	binary.BigEndian.PutUint64(buf[len(rentalRecordPrefix):], id)
	return buf
}

func assetSuffix(prefix []byte, asset assets.Ref) []byte {
	buf := make([]byte, len(prefix)+20+8)
	copy(buf, prefix)
	copy(buf[len(prefix):], asset.Collection[:])
	binary.BigEndian.PutUint64(buf[len(prefix)+20:], asset.TokenID)
	return buf
}

func rentalListingKey(asset assets.Ref) []byte {
	return assetSuffix(rentalListingPrefix, asset)
}

func assetHolderKey(asset assets.Ref) []byte {
	return assetSuffix(assetHolderPrefix, asset)
}

func addrSuffix(prefix []byte, addr [20]byte) []byte {
	buf := make([]byte, len(prefix)+20)
	copy(buf, prefix)
	copy(buf[len(prefix):], addr[:])
	return buf
}

func rentalAccountKey(addr [20]byte) []byte {
	return addrSuffix(rentalAccountPrefix, addr)
}

func bankBalanceKey(addr [20]byte) []byte {
	return addrSuffix(bankBalancePrefix, addr)
}
