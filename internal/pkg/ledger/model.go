package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

type Address string

func (a Address) String() string {
	return string(a)
}

// Descriptor identifies exactly one collectible. Two descriptors are the same
// asset iff all four fields are equal.
type Descriptor struct {
	Issuer     Address `json:"issuer"`
	Collection string  `json:"collection"`
	Item       string  `json:"item"`
	Version    uint64  `json:"version"`
}

type AssetID string

func (d Descriptor) ID() AssetID {
	h := sha256.New()

	// length prefixes keep ("ab","c") and ("a","bc") apart
	for _, field := range []string{string(d.Issuer), d.Collection, d.Item} {
		fmt.Fprintf(h, "%d:%s|", len(field), field)
	}

	fmt.Fprintf(h, "%d", d.Version)

	return AssetID(hex.EncodeToString(h.Sum(nil)))
}

type Asset struct {
	ID         AssetID    `json:"id"`
	Descriptor Descriptor `json:"descriptor"`
	Owner      Address    `json:"owner"`
}

// Signer is the principal ordering a transfer.
type Signer interface {
	Address() Address
}

// Account signs for a regular account. The transport has already
// authenticated the caller by the time one is built.
type Account Address

func (a Account) Address() Address {
	return Address(a)
}

// Custodian knows which addresses are custodial identities and whether a
// signer holds authority over one.
type Custodian interface {
	IsCustodial(tx *bolt.Tx, address Address) (bool, error)
	Verify(tx *bolt.Tx, signer Signer) error
}
