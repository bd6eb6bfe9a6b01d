package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vreid/duel/internal/pkg/common"
	"github.com/vreid/duel/internal/pkg/custody"
	"github.com/vreid/duel/internal/pkg/ledger"
	bolt "go.etcd.io/bbolt"
)

var cat = ledger.Descriptor{
	Issuer:     "studio",
	Collection: "cats",
	Item:       "tabby",
	Version:    1,
}

func newLedger(t *testing.T) (*common.DatabaseService, *ledger.LedgerService, *custody.CustodyService) {
	t.Helper()

	db, err := common.OpenDatabase(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Shutdown()
	})

	custodyService := &custody.CustodyService{DatabaseService: db}

	return db, &ledger.LedgerService{DatabaseService: db, Custodian: custodyService}, custodyService
}

func TestDescriptorID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, cat.ID(), ledger.Descriptor{Issuer: "studio", Collection: "cats", Item: "tabby", Version: 1}.ID())

	bumped := cat
	bumped.Version = 2
	assert.NotEqual(t, cat.ID(), bumped.ID())

	a := ledger.Descriptor{Issuer: "ab", Collection: "c"}
	b := ledger.Descriptor{Issuer: "a", Collection: "bc"}
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestMintAndResolve(t *testing.T) {
	t.Parallel()

	db, ledgerService, _ := newLedger(t)

	err := db.DB.Update(func(tx *bolt.Tx) error {
		id, err := ledgerService.Mint(tx, cat, "alice")
		require.NoError(t, err)
		assert.Equal(t, cat.ID(), id)

		_, err = ledgerService.Mint(tx, cat, "bob")
		require.ErrorIs(t, err, ledger.ErrAssetExists)

		resolved, err := ledgerService.Resolve(tx, cat.Issuer, cat.Collection, cat.Item, cat.Version)
		require.NoError(t, err)
		assert.Equal(t, id, resolved)

		_, err = ledgerService.Resolve(tx, cat.Issuer, cat.Collection, cat.Item, 9)
		require.ErrorIs(t, err, ledger.ErrAssetNotFound)

		return nil
	})
	require.NoError(t, err)

	owner, err := ledgerService.Owner(cat.ID())
	require.NoError(t, err)
	assert.Equal(t, ledger.Address("alice"), owner)
}

func TestTransferBetweenAccounts(t *testing.T) {
	t.Parallel()

	db, ledgerService, _ := newLedger(t)

	err := db.DB.Update(func(tx *bolt.Tx) error {
		id, err := ledgerService.Mint(tx, cat, "alice")
		require.NoError(t, err)

		err = ledgerService.Transfer(tx, ledger.Account("alice"), id, "alice", "bob", 2)
		require.ErrorIs(t, err, ledger.ErrInvalidQuantity)

		err = ledgerService.Transfer(tx, ledger.Account("bob"), id, "alice", "bob", 1)
		require.ErrorIs(t, err, ledger.ErrUnauthorized)

		err = ledgerService.Transfer(tx, ledger.Account("bob"), id, "bob", "carol", 1)
		require.ErrorIs(t, err, ledger.ErrNotOwner)

		return ledgerService.Transfer(tx, ledger.Account("alice"), id, "alice", "bob", 1)
	})
	require.NoError(t, err)

	assets, err := ledgerService.Assets("bob")
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, cat, assets[0].Descriptor)

	assets, err = ledgerService.Assets("alice")
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestTransferThroughCustody(t *testing.T) {
	t.Parallel()

	db, ledgerService, custodyService := newLedger(t)

	err := db.DB.Update(func(tx *bolt.Tx) error {
		id, err := ledgerService.Mint(tx, cat, "alice")
		require.NoError(t, err)

		escrow, capability, err := custodyService.CreateCustodialIdentity(tx, "alice", []byte("seed"))
		require.NoError(t, err)

		err = ledgerService.Transfer(tx, ledger.Account("alice"), id, "alice", escrow, 1)
		require.ErrorIs(t, err, ledger.ErrReceiptDisabled)

		require.NoError(t, ledgerService.EnableDirectReceipt(tx, escrow))
		require.NoError(t, ledgerService.Transfer(tx, ledger.Account("alice"), id, "alice", escrow, 1))

		// naming the escrow address is not enough to move out of it
		err = ledgerService.Transfer(tx, ledger.Account(escrow), id, escrow, "alice", 1)
		require.ErrorIs(t, err, ledger.ErrUnauthorized)

		authority := custodyService.AuthorityFrom(capability)
		require.NoError(t, ledgerService.Transfer(tx, authority, id, escrow, "bob", 1))

		owner, err := ledgerService.OwnerOf(tx, id)
		require.NoError(t, err)
		assert.Equal(t, ledger.Address("bob"), owner)

		authority.Release()

		require.NoError(t, ledgerService.Transfer(tx, ledger.Account("bob"), id, "bob", escrow, 1))

		err = ledgerService.Transfer(tx, authority, id, escrow, "bob", 1)
		require.ErrorIs(t, err, ledger.ErrUnauthorized)

		return nil
	})
	require.NoError(t, err)
}

func TestAuthorityIsScopedToItsIdentity(t *testing.T) {
	t.Parallel()

	db, ledgerService, custodyService := newLedger(t)

	err := db.DB.Update(func(tx *bolt.Tx) error {
		id, err := ledgerService.Mint(tx, cat, "alice")
		require.NoError(t, err)

		first, _, err := custodyService.CreateCustodialIdentity(tx, "alice", []byte("seed"))
		require.NoError(t, err)

		_, other, err := custodyService.CreateCustodialIdentity(tx, "bob", []byte("seed"))
		require.NoError(t, err)

		require.NoError(t, ledgerService.EnableDirectReceipt(tx, first))
		require.NoError(t, ledgerService.Transfer(tx, ledger.Account("alice"), id, "alice", first, 1))

		err = ledgerService.Transfer(tx, custodyService.AuthorityFrom(other), id, first, "bob", 1)
		require.ErrorIs(t, err, ledger.ErrUnauthorized)

		return nil
	})
	require.NoError(t, err)
}
